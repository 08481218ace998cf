package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makerhive/makerhive/cmd/makerhive-api/helpers"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/services"
)

func (h *Handler) CreateDiscussionHandler(c *gin.Context) {
	var request models.CreateDiscussionRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	discussion, err := services.CreateDiscussion(c.Request.Context(), h.store, currentUser(c)["id"], request)
	if err != nil {
		handleServiceError(c, err, "discussion")
		return
	}
	c.JSON(http.StatusCreated, discussion)
}

func (h *Handler) ListDiscussionsHandler(c *gin.Context) {
	discussions, err := services.ListDiscussions(c.Request.Context(), h.store, parseListOptions(c))
	if err != nil {
		handleServiceError(c, err, "discussion")
		return
	}
	c.JSON(http.StatusOK, discussions)
}

// GetDiscussionHandler returns the thread together with its replies, so one
// request renders a whole discussion page.
func (h *Handler) GetDiscussionHandler(c *gin.Context) {
	discussion, err := services.GetDiscussion(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "discussion")
		return
	}
	replies, err := services.ListReplies(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "discussion")
		return
	}

	out := make(map[string]any, len(discussion)+1)
	for k, v := range discussion {
		out[k] = v
	}
	out["replies"] = replies
	c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteDiscussionHandler(c *gin.Context) {
	err := services.DeleteDiscussion(c.Request.Context(), h.store, currentUser(c)["id"], c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "discussion")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateReplyHandler(c *gin.Context) {
	var request models.CreateReplyRequest

	err := c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	reply, err := services.CreateReply(c.Request.Context(), h.store, currentUser(c)["id"], c.Param("id"), request)
	if err != nil {
		handleServiceError(c, err, "discussion")
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (h *Handler) ListRepliesHandler(c *gin.Context) {
	replies, err := services.ListReplies(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "discussion")
		return
	}
	c.JSON(http.StatusOK, replies)
}
