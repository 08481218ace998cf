package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerhive/makerhive/internal/docstore"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := docstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	h := New(store)
	router := gin.New()

	v1 := router.Group("/api/v1")
	v1.POST("/users", h.RegisterUserHandler)
	v1.POST("/users/login", h.LoginHandler)
	v1.GET("/users/:id", h.GetUserHandler)
	v1.GET("/projects", h.ListProjectsHandler)
	v1.GET("/projects/:id", h.GetProjectHandler)
	v1.GET("/discussions/:id", h.GetDiscussionHandler)
	v1.GET("/discussions/:id/replies", h.ListRepliesHandler)
	v1.GET("/rooms/:id", h.GetRoomHandler)

	authed := router.Group("/api/v1", h.APIKeyAuth())
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

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func registerUser(t *testing.T, router *gin.Engine, username string) (apiKey, userID string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/users", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	apiKey, _ = body["apiKey"].(string)
	user, _ := body["user"].(map[string]any)
	require.NotEmpty(t, apiKey)
	require.NotNil(t, user)
	userID, _ = user["id"].(string)
	require.NotEmpty(t, userID)
	return apiKey, userID
}

func TestRegisterAndLogin(t *testing.T) {
	router := newTestRouter(t)

	apiKey, _ := registerUser(t, router, "ada")
	assert.Len(t, apiKey, 32)

	// Same username again is a conflict.
	w := doJSON(t, router, http.MethodPost, "/api/v1/users", "", gin.H{
		"username": "ada",
		"email":    "other@example.com",
		"password": "correct-horse-battery",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Login by username and by email, wrong password rejected.
	w = doJSON(t, router, http.MethodPost, "/api/v1/users/login", "", gin.H{
		"username": "ada",
		"password": "correct-horse-battery",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, apiKey, decodeBody(t, w)["apiKey"])

	w = doJSON(t, router, http.MethodPost, "/api/v1/users/login", "", gin.H{
		"username": "ada@example.com",
		"password": "correct-horse-battery",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/users/login", "", gin.H{
		"username": "ada",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users", "", gin.H{
		"username": "x",
		"email":    "not-an-email",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCurrentUserEndpoints(t *testing.T) {
	router := newTestRouter(t)
	apiKey, _ := registerUser(t, router, "grace")

	w := doJSON(t, router, http.MethodGet, "/api/v1/users/me", apiKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decodeBody(t, w)
	assert.Equal(t, "grace", me["username"])
	// Credentials never leave the server on reads.
	assert.NotContains(t, me, "passwordHash")
	assert.NotContains(t, me, "apiKey")

	w = doJSON(t, router, http.MethodPatch, "/api/v1/users/me", apiKey, gin.H{"bio": "systems"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "systems", decodeBody(t, w)["bio"])

	// No key at all.
	w = doJSON(t, router, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Junk key.
	w = doJSON(t, router, http.MethodGet, "/api/v1/users/me", "deadbeef", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjectLifecycle(t *testing.T) {
	router := newTestRouter(t)
	owner, _ := registerUser(t, router, "owner")
	other, _ := registerUser(t, router, "other")

	w := doJSON(t, router, http.MethodPost, "/api/v1/projects", owner, gin.H{
		"title":    "CNC dust boot",
		"category": "woodworking",
		"tags":     []string{"cnc", "dust"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	project := decodeBody(t, w)
	id, _ := project["id"].(string)
	require.NotEmpty(t, id)

	// Unauthenticated reads are fine.
	w = doJSON(t, router, http.MethodGet, "/api/v1/projects/"+id, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Non-owner cannot update.
	w = doJSON(t, router, http.MethodPatch, "/api/v1/projects/"+id, other, gin.H{"title": "hijacked title"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Owner can.
	w = doJSON(t, router, http.MethodPatch, "/api/v1/projects/"+id, owner, gin.H{"title": "CNC dust boot v2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CNC dust boot v2", decodeBody(t, w)["title"])

	// Anyone authenticated can like, repeatedly.
	for i := 0; i < 3; i++ {
		w = doJSON(t, router, http.MethodPost, "/api/v1/projects/"+id+"/like", other, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.EqualValues(t, 3, decodeBody(t, w)["likes"])

	// Non-owner cannot delete.
	w = doJSON(t, router, http.MethodDelete, "/api/v1/projects/"+id, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/projects/"+id, owner, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/projects/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectListFilters(t *testing.T) {
	router := newTestRouter(t)
	apiKey, _ := registerUser(t, router, "lister")

	for _, p := range []gin.H{
		{"title": "LED matrix clock", "category": "electronics"},
		{"title": "Walnut side table", "category": "woodworking"},
		{"title": "Clock enclosure", "category": "3dprinting", "description": "printed clock case"},
	} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/projects", apiKey, p)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	var listed []map[string]any
	list := func(path string) []map[string]any {
		w := doJSON(t, router, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		listed = nil
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
		return listed
	}

	assert.Len(t, list("/api/v1/projects"), 3)
	assert.Len(t, list("/api/v1/projects?category=electronics"), 1)
	assert.Len(t, list("/api/v1/projects?category=electronics&category=woodworking"), 2)
	// Comma lists are equivalent to repeated parameters.
	assert.Len(t, list("/api/v1/projects?category=electronics,woodworking"), 2)
	// Search spans title and description, case-insensitively.
	assert.Len(t, list("/api/v1/projects?q=clock"), 2)
	assert.Len(t, list("/api/v1/projects?limit=2"), 2)
	assert.Len(t, list("/api/v1/projects?skip=2&limit=2"), 1)
}

func TestDiscussionRepliesCascade(t *testing.T) {
	router := newTestRouter(t)
	apiKey, _ := registerUser(t, router, "poster")

	w := doJSON(t, router, http.MethodPost, "/api/v1/discussions", apiKey, gin.H{
		"title":   "Best resin for casting?",
		"content": "Looking for something food safe.",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id, _ := decodeBody(t, w)["id"].(string)
	require.NotEmpty(t, id)

	w = doJSON(t, router, http.MethodPost, "/api/v1/discussions/"+id+"/replies", apiKey, gin.H{
		"content": "Epoxy with FDA approval works.",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/discussions/"+id+"/replies", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var replies []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &replies))
	assert.Len(t, replies, 1)

	// The thread endpoint embeds its replies.
	w = doJSON(t, router, http.MethodGet, "/api/v1/discussions/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decodeBody(t, w)
	embedded, _ := thread["replies"].([]any)
	assert.Len(t, embedded, 1)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/discussions/"+id, apiKey, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// Replies died with the thread.
	w = doJSON(t, router, http.MethodGet, "/api/v1/discussions/"+id+"/replies", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLessonRequiresAdmin(t *testing.T) {
	router := newTestRouter(t)
	apiKey, _ := registerUser(t, router, "member")

	w := doJSON(t, router, http.MethodPost, "/api/v1/lessons", apiKey, gin.H{
		"title":    "Intro to TIG welding",
		"level":    "beginner",
		"duration": 45,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoomMembership(t *testing.T) {
	router := newTestRouter(t)
	creator, creatorID := registerUser(t, router, "creator")
	joiner, joinerID := registerUser(t, router, "joiner")

	w := doJSON(t, router, http.MethodPost, "/api/v1/rooms", creator, gin.H{
		"name": "Laser cutter corner",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	room := decodeBody(t, w)
	id, _ := room["id"].(string)
	require.NotEmpty(t, id)
	assert.ElementsMatch(t, []any{creatorID}, room["members"])

	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+id+"/join", joiner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []any{creatorID, joinerID}, decodeBody(t, w)["members"])

	// Joining twice is a conflict.
	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+id+"/join", joiner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/"+id+"/leave", joiner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []any{creatorID}, decodeBody(t, w)["members"])

	// Only the creator may delete.
	w = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/"+id, joiner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/"+id, creator, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
