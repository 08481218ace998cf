package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/makerhive/makerhive/cmd/makerhive-api/v1/controllers"
	"github.com/makerhive/makerhive/internal/docstore"
)

// SetupRestAPI initializes the REST API and starts listening
func SetupRestAPI(store docstore.Store) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))

	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Healthcheck
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	h := controllers.New(store)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/users", h.RegisterUserHandler)
		v1.POST("/users/login", h.LoginHandler)
		v1.GET("/users/:id", h.GetUserHandler)

		v1.GET("/projects", h.ListProjectsHandler)
		v1.GET("/projects/:id", h.GetProjectHandler)
		v1.GET("/discussions", h.ListDiscussionsHandler)
		v1.GET("/discussions/:id", h.GetDiscussionHandler)
		v1.GET("/discussions/:id/replies", h.ListRepliesHandler)
		v1.GET("/lessons", h.ListLessonsHandler)
		v1.GET("/lessons/:id", h.GetLessonHandler)
		v1.GET("/rooms", h.ListRoomsHandler)
		v1.GET("/rooms/:id", h.GetRoomHandler)
	}

	authed := router.Group("/api/v1", h.APIKeyAuth())
	{
		authed.GET("/users/me", h.GetCurrentUserHandler)
		authed.PATCH("/users/me", h.UpdateCurrentUserHandler)

		authed.POST("/projects", h.CreateProjectHandler)
		authed.PATCH("/projects/:id", h.UpdateProjectHandler)
		authed.POST("/projects/:id/like", h.LikeProjectHandler)
		authed.DELETE("/projects/:id", h.DeleteProjectHandler)

		authed.POST("/discussions", h.CreateDiscussionHandler)
		authed.POST("/discussions/:id/replies", h.CreateReplyHandler)
		authed.DELETE("/discussions/:id", h.DeleteDiscussionHandler)

		authed.POST("/lessons", h.CreateLessonHandler)

		authed.POST("/rooms", h.CreateRoomHandler)
		authed.POST("/rooms/:id/join", h.JoinRoomHandler)
		authed.POST("/rooms/:id/leave", h.LeaveRoomHandler)
		authed.DELETE("/rooms/:id", h.DeleteRoomHandler)
	}

	apiPort := os.Getenv("API_PORT")
	if apiPort == "" {
		apiPort = "80"
	}
	err := router.Run(":" + apiPort)
	if err != nil {
		zap.S().Fatalf("Failed to serve REST API: %s", err)
	}
}
