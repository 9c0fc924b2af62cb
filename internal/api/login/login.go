// Package login issues access tokens for username and password pairs.
package login

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planilla-hr/planilla/internal/auth"
	"github.com/planilla-hr/planilla/internal/middleware"
	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/services"
	"github.com/planilla-hr/planilla/internal/store"
)

// Request is the body of POST /auth.
type Request struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Response carries the issued token.
type Response struct {
	AccessToken string `json:"access_token"`
}

// Handler authenticates users against their app_user record.
type Handler struct {
	store  store.Store
	svc    *services.RecordService
	tokens *auth.Tokens
}

// NewHandler creates the login handler.
func NewHandler(st store.Store, svc *services.RecordService, tokens *auth.Tokens) *Handler {
	return &Handler{store: st, svc: svc, tokens: tokens}
}

// Login handles POST /auth. Unknown users, wrong passwords and inactive
// accounts all answer 401 with the same body.
func (h *Handler) Login(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required."})
		return
	}

	var user *records.Record
	err := store.RunInTx(c.Request.Context(), h.store, func(uow store.UnitOfWork) error {
		var err error
		user, err = h.svc.Authenticate(c.Request.Context(), uow, req.Username, req.Password)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInactiveUser):
		slog.Info("login rejected", "username", req.Username, "reason", err.Error(), "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials."})
		return
	default:
		slog.Error("login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while signing in."})
		return
	}

	org, _ := user.Int(schema.OrganizationField)
	token, err := h.tokens.Generate(user.ID, org)
	if err != nil {
		slog.Error("failed to sign token", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while signing in."})
		return
	}

	c.Set(middleware.UserIDKey, user.ID)
	c.Set(middleware.OrganizationIDKey, org)
	middleware.SetAuditTarget(c, user.Type, "login", user.ID)
	c.JSON(http.StatusOK, Response{AccessToken: token})
}
