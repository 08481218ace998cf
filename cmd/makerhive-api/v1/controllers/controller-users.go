package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makerhive/makerhive/cmd/makerhive-api/helpers"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/services"
)

func (h *Handler) RegisterUserHandler(c *gin.Context) {
	var request models.RegisterUserRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	user, err := services.RegisterUser(c.Request.Context(), h.store, request)
	if err != nil {
		handleServiceError(c, err, "user")
		return
	}

	// The response carries the API key once; PublicUser strips it, so the
	// key rides alongside the profile.
	c.JSON(http.StatusCreated, gin.H{
		"user":   models.PublicUser(user),
		"apiKey": user["apiKey"],
	})
}

func (h *Handler) LoginHandler(c *gin.Context) {
	var request models.LoginRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	user, err := services.AuthenticateUser(c.Request.Context(), h.store, request)
	if err != nil {
		handleServiceError(c, err, "user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   models.PublicUser(user),
		"apiKey": user["apiKey"],
	})
}

func (h *Handler) GetUserHandler(c *gin.Context) {
	user, err := services.GetUser(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, models.PublicUser(user))
}

func (h *Handler) GetCurrentUserHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.PublicUser(currentUser(c)))
}

func (h *Handler) UpdateCurrentUserHandler(c *gin.Context) {
	var request models.UpdateUserRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	caller := currentUser(c)
	user, err := services.UpdateUser(c.Request.Context(), h.store, stringID(caller["id"]), request)
	if err != nil {
		handleServiceError(c, err, "user")
		return
	}

	// Drop the stale cached profile so the next request sees the update.
	if key, ok := caller["apiKey"].(string); ok {
		h.keys.Delete(key)
	}
	c.JSON(http.StatusOK, models.PublicUser(user))
}
