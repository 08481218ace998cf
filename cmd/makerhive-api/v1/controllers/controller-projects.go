package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makerhive/makerhive/cmd/makerhive-api/helpers"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/services"
)

func (h *Handler) CreateProjectHandler(c *gin.Context) {
	var request models.CreateProjectRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	project, err := services.CreateProject(c.Request.Context(), h.store, currentUser(c)["id"], request)
	if err != nil {
		handleServiceError(c, err, "project")
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *Handler) ListProjectsHandler(c *gin.Context) {
	projects, err := services.ListProjects(c.Request.Context(), h.store, parseListOptions(c))
	if err != nil {
		handleServiceError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) GetProjectHandler(c *gin.Context) {
	project, err := services.GetProject(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) UpdateProjectHandler(c *gin.Context) {
	var request models.UpdateProjectRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	project, err := services.UpdateProject(c.Request.Context(), h.store, currentUser(c)["id"], c.Param("id"), request)
	if err != nil {
		handleServiceError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) LikeProjectHandler(c *gin.Context) {
	project, err := services.LikeProject(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) DeleteProjectHandler(c *gin.Context) {
	err := services.DeleteProject(c.Request.Context(), h.store, currentUser(c)["id"], c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "project")
		return
	}
	c.Status(http.StatusNoContent)
}
