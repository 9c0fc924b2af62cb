// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, metrics and audit shipping.
//
// Ordering is fixed in router.go:
//
//	Recovery → RequestID → Metrics → Logger → Security → Auth → Audit → Handler
//
// Rate limiting is attached only to the login route, before any password
// check runs.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planilla-hr/planilla/internal/auth"
	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/scope"
	"github.com/planilla-hr/planilla/internal/services"
	"github.com/planilla-hr/planilla/internal/store"
)

const (
	// CallerKey is the gin.Context key holding the authenticated scope.Caller.
	CallerKey = "caller"
	// UserIDKey and OrganizationIDKey mirror the caller's identity as int64.
	UserIDKey         = "user_id"
	OrganizationIDKey = "organization_id"
)

// CallerResolver loads the live identity behind a token's user id.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, uow store.UnitOfWork, userID int64) (scope.Caller, error)
}

// AuthMiddleware requires a valid bearer token. The user named by the token
// is re-read on every request so deactivation takes effect immediately.
func AuthMiddleware(tokens *auth.Tokens, st store.Store, resolver CallerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.ExtractBearer(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}
		claims, err := tokens.Validate(raw)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		var caller scope.Caller
		err = store.RunInTx(c.Request.Context(), st, func(uow store.UnitOfWork) error {
			caller, err = resolver.ResolveCaller(c.Request.Context(), uow, claims.UserID)
			return err
		})
		switch {
		case err == nil:
		case errors.Is(err, records.ErrNotFound):
			unauthorized(c, "User not found")
			return
		case errors.Is(err, services.ErrInactiveUser):
			unauthorized(c, "User is inactive")
			return
		default:
			slog.Error("failed to resolve caller", "user_id", claims.UserID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to load user"})
			return
		}

		c.Set(CallerKey, caller)
		c.Set(UserIDKey, caller.ID)
		c.Set(OrganizationIDKey, caller.OrganizationID)
		c.Next()
	}
}

// GetCaller returns the caller stored by AuthMiddleware.
func GetCaller(c *gin.Context) (scope.Caller, bool) {
	v, ok := c.Get(CallerKey)
	if !ok {
		return scope.Caller{}, false
	}
	caller, ok := v.(scope.Caller)
	return caller, ok
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
}
