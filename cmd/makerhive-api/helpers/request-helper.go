package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rung/go-safecast"
	"go.uber.org/zap"
)

func HandleInternalServerError(c *gin.Context, err error) {
	if c == nil {
		panic("HandleInternalServerError: c is nil")
	}
	if err == nil {
		err = errors.New("unknown error")
	}

	erx := SanitizeString(err.Error())
	zap.S().Errorw(
		"Internal server error",
		"error", erx,
	)

	c.JSON(
		http.StatusInternalServerError,
		gin.H{
			"error":   erx,
			"status":  http.StatusInternalServerError,
			"message": "The server had an internal error.",
		})
}

func HandleInvalidInputError(c *gin.Context, err error) {
	if c == nil {
		panic("HandleInvalidInputError: c is nil")
	}
	if err == nil {
		err = errors.New("unknown error")
	}
	erx := SanitizeString(err.Error())
	zap.S().Infow(
		"Invalid input error",
		"error", erx,
	)

	c.JSON(
		http.StatusBadRequest,
		gin.H{
			"error":   erx,
			"status":  http.StatusBadRequest,
			"message": "You have provided a wrong input. Please check your parameters.",
		})
}

func HandleNotFound(c *gin.Context, what string) {
	if c == nil {
		panic("HandleNotFound: c is nil")
	}
	route := c.FullPath()

	c.JSON(
		http.StatusNotFound,
		gin.H{
			"error":   fmt.Sprintf("%s not found", what),
			"status":  http.StatusNotFound,
			"message": fmt.Sprintf("The requested %s was not found.", what),
			"route":   route,
		})
}

func HandleUnauthorized(c *gin.Context) {
	if c == nil {
		panic("HandleUnauthorized: c is nil")
	}
	c.AbortWithStatusJSON(
		http.StatusUnauthorized,
		gin.H{
			"error":   "unauthorized",
			"status":  http.StatusUnauthorized,
			"message": "A valid API key is required. Send it in the X-API-Key header.",
		})
}

func HandleForbidden(c *gin.Context) {
	if c == nil {
		panic("HandleForbidden: c is nil")
	}
	c.JSON(
		http.StatusForbidden,
		gin.H{
			"error":   "forbidden",
			"status":  http.StatusForbidden,
			"message": "You do not have permission to do that.",
		})
}

func HandleConflict(c *gin.Context, err error) {
	if c == nil {
		panic("HandleConflict: c is nil")
	}
	c.JSON(
		http.StatusConflict,
		gin.H{
			"error":   SanitizeString(err.Error()),
			"status":  http.StatusConflict,
			"message": "The request conflicts with existing data.",
		})
}

// SanitizeString strips control characters that would let request data forge
// log lines.
func SanitizeString(s string) string {
	return strings.NewReplacer("\n", "", "\r", "", "\t", " ").Replace(s)
}

// ParsePagination reads the skip and limit query parameters. Out-of-range or
// junk values fall back to the defaults; limit is capped at 100.
func ParsePagination(c *gin.Context) (skip, limit int64) {
	limit = 20
	if raw := c.Query("skip"); raw != "" {
		if v, err := safecast.Atoi32(raw); err == nil && v > 0 {
			skip = int64(v)
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if v, err := safecast.Atoi32(raw); err == nil && v > 0 {
			limit = int64(v)
		}
	}
	if limit > 100 {
		limit = 100
	}
	return skip, limit
}
