package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/planilla-hr/planilla/internal/audit"
	"github.com/planilla-hr/planilla/internal/safego"
)

const (
	auditActionKey   = "audit_action"
	auditResourceKey = "audit_resource"
	auditIDKey       = "audit_resource_id"
)

const shipTimeout = 5 * time.Second

// SetAuditTarget names the action and record a handler acted on. id may be
// zero when no record was produced.
func SetAuditTarget(c *gin.Context, resource, action string, id int64) {
	c.Set(auditResourceKey, resource)
	c.Set(auditActionKey, resource+"."+action)
	if id != 0 {
		c.Set(auditIDKey, id)
	}
}

// AuditMiddleware ships one entry for every successful state-changing
// request whose handler called SetAuditTarget. Shipping happens in the
// background.
func AuditMiddleware(shipper audit.Shipper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if shipper == nil {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		action := c.GetString(auditActionKey)
		if action == "" || c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		entry := &audit.Entry{
			Timestamp:      time.Now().UTC(),
			Action:         action,
			UserID:         c.GetInt64(UserIDKey),
			OrganizationID: c.GetInt64(OrganizationIDKey),
			Resource:       c.GetString(auditResourceKey),
			ResourceID:     c.GetInt64(auditIDKey),
			RequestID:      GetRequestID(c),
			IPAddress:      c.ClientIP(),
			StatusCode:     c.Writer.Status(),
		}
		safego.Go("audit-ship", func() {
			ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
			defer cancel()
			_ = shipper.Ship(ctx, entry)
		})
	}
}
