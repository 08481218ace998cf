package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makerhive/makerhive/cmd/makerhive-api/helpers"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/services"
)

func (h *Handler) CreateRoomHandler(c *gin.Context) {
	var request models.CreateRoomRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	room, err := services.CreateRoom(c.Request.Context(), h.store, currentUser(c)["id"], request)
	if err != nil {
		handleServiceError(c, err, "room")
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) ListRoomsHandler(c *gin.Context) {
	rooms, err := services.ListRooms(c.Request.Context(), h.store, parseListOptions(c))
	if err != nil {
		handleServiceError(c, err, "room")
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) GetRoomHandler(c *gin.Context) {
	room, err := services.GetRoom(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "room")
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) JoinRoomHandler(c *gin.Context) {
	room, err := services.JoinRoom(c.Request.Context(), h.store, currentUser(c)["id"], c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "room")
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) LeaveRoomHandler(c *gin.Context) {
	room, err := services.LeaveRoom(c.Request.Context(), h.store, currentUser(c)["id"], c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "room")
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) DeleteRoomHandler(c *gin.Context) {
	err := services.DeleteRoom(c.Request.Context(), h.store, currentUser(c)["id"], c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "room")
		return
	}
	c.Status(http.StatusNoContent)
}
