package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/workhub/backend/internal/http/middleware"
	"github.com/workhub/backend/internal/models"
)

// withTestAuth подкладывает аутентифицированного пользователя в контекст.
func withTestAuth(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Set(middleware.ContextRoleKey, role)
		c.Next()
	}
}

func TestProjectHandler_CreateProject_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ProjectHandler{projects: nil}
	r.POST("/projects", handler.CreateProject)

	req, _ := http.NewRequest("POST", "/projects", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjectHandler_GetProject_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ProjectHandler{projects: nil}
	r.GET("/projects/:id", handler.GetProject)

	req, _ := http.NewRequest("GET", "/projects/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjectHandler_GetProject_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ProjectHandler{projects: nil}
	r.GET("/projects/:id", withTestAuth(uuid.New(), models.RoleClient), handler.GetProject)

	req, _ := http.NewRequest("GET", "/projects/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectHandler_ChangeStatus_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ProjectHandler{projects: nil}
	r.PATCH("/projects/:id/status", handler.ChangeStatus)

	req, _ := http.NewRequest("PATCH", "/projects/"+uuid.NewString()+"/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjectHandler_DecideProposal_InvalidProposalID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ProjectHandler{projects: nil}
	r.PATCH("/projects/:id/proposals/:proposalId", withTestAuth(uuid.New(), models.RoleClient), handler.DecideProposal)

	req, _ := http.NewRequest("PATCH", "/projects/"+uuid.NewString()+"/proposals/oops", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
