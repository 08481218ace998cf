package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makerhive/makerhive/cmd/makerhive-api/helpers"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/services"
)

func (h *Handler) CreateLessonHandler(c *gin.Context) {
	var request models.CreateLessonRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	lesson, err := services.CreateLesson(c.Request.Context(), h.store, currentUser(c), request)
	if err != nil {
		handleServiceError(c, err, "lesson")
		return
	}
	c.JSON(http.StatusCreated, lesson)
}

func (h *Handler) ListLessonsHandler(c *gin.Context) {
	lessons, err := services.ListLessons(c.Request.Context(), h.store, parseListOptions(c))
	if err != nil {
		handleServiceError(c, err, "lesson")
		return
	}
	c.JSON(http.StatusOK, lessons)
}

func (h *Handler) GetLessonHandler(c *gin.Context) {
	lesson, err := services.GetLesson(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "lesson")
		return
	}
	c.JSON(http.StatusOK, lesson)
}
