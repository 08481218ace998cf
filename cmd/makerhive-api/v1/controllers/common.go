package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/makerhive/makerhive/cmd/makerhive-api/helpers"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/models"
	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/services"
	"github.com/makerhive/makerhive/internal/docstore"
)

const userContextKey = "authUser"

// Handler binds the HTTP surface to one store handle. API key lookups are
// cached for a few minutes so every authenticated request does not cost a
// store round trip.
type Handler struct {
	store docstore.Store
	keys  *cache.Cache
}

func New(store docstore.Store) *Handler {
	return &Handler{
		store: store,
		keys:  cache.New(5*time.Minute, 10*time.Minute),
	}
}

// APIKeyAuth authenticates requests via the X-API-Key header and stores the
// account document in the request context.
func (h *Handler) APIKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			helpers.HandleUnauthorized(c)
			return
		}
		if cached, found := h.keys.Get(key); found {
			c.Set(userContextKey, cached.(docstore.Document))
			c.Next()
			return
		}

		user, err := services.GetUserByAPIKey(c.Request.Context(), h.store, key)
		if errors.Is(err, services.ErrUnauthorized) {
			helpers.HandleUnauthorized(c)
			return
		}
		if err != nil {
			helpers.HandleInternalServerError(c, err)
			c.Abort()
			return
		}
		h.keys.SetDefault(key, user)
		c.Set(userContextKey, user)
		c.Next()
	}
}

// currentUser returns the account set by APIKeyAuth.
func currentUser(c *gin.Context) docstore.Document {
	return c.MustGet(userContextKey).(docstore.Document)
}

// stringID renders an identity value for use as a path-style argument.
func stringID(v any) string {
	return fmt.Sprint(v)
}

// handleServiceError maps the service sentinels onto HTTP responses.
func handleServiceError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		helpers.HandleNotFound(c, what)
	case errors.Is(err, services.ErrForbidden):
		helpers.HandleForbidden(c)
	case errors.Is(err, services.ErrConflict):
		helpers.HandleConflict(c, err)
	case errors.Is(err, services.ErrUnauthorized):
		helpers.HandleUnauthorized(c)
	default:
		helpers.HandleInternalServerError(c, err)
	}
}

// parseListOptions reads the shared list query parameters: skip, limit, the
// q search term and category values, which may repeat or arrive as one
// comma-separated list.
func parseListOptions(c *gin.Context) models.ListOptions {
	skip, limit := helpers.ParsePagination(c)

	var categories []string
	for _, raw := range c.QueryArray("category") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				categories = append(categories, part)
			}
		}
	}

	return models.ListOptions{
		Categories: categories,
		Search:     c.Query("q"),
		Skip:       skip,
		Limit:      limit,
	}
}
