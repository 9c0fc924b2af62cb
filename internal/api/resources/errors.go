package resources

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/planilla-hr/planilla/internal/lifecycle"
	"github.com/planilla-hr/planilla/internal/middleware"
	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/scope"
	"github.com/planilla-hr/planilla/internal/services"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Status maps a record error onto its HTTP status. Out-of-scope records
// answer exactly like missing ones.
func Status(err error) int {
	var (
		ve *records.ValidationError
		ae *records.AuthorizationError
		se *records.StateConflictError
		ue *records.UniquenessConflictError
	)
	switch {
	case errors.Is(err, records.ErrNotFound), errors.Is(err, services.ErrUnknownType):
		return http.StatusNotFound
	case errors.As(err, &ae):
		if ae.Reason == records.OutOfScope {
			return http.StatusNotFound
		}
		return http.StatusForbidden
	case errors.As(err, &ve), errors.As(err, &se):
		return http.StatusBadRequest
	case errors.As(err, &ue):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, m *schema.Manifest, doing string, err error) {
	status := Status(err)
	_ = c.Error(err)

	var (
		ve *records.ValidationError
		ae *records.AuthorizationError
		se *records.StateConflictError
	)
	switch {
	case status == http.StatusNotFound:
		notFound(c, m)
	case errors.As(err, &ve):
		problems := make(map[string]string, len(ve.Problems))
		for _, p := range ve.Problems {
			problems[p.Field] = p.Reason
		}
		c.JSON(status, gin.H{"message": "The " + strings.ToLower(displayName(m)) + " is invalid.", "errors": problems})
	case errors.As(err, &ae):
		c.JSON(status, gin.H{"message": "You are not allowed to " + ae.Detail + "."})
	case errors.As(err, &se):
		c.JSON(status, gin.H{"message": conflictMessage(m, se)})
	case status == http.StatusConflict:
		c.JSON(status, gin.H{"message": capitalize(err.Error()) + "."})
	default:
		slog.Error("record request failed", "resource", m.Type, "error", err, "request_id", middleware.GetRequestID(c))
		c.JSON(status, gin.H{"message": "An error occurred while " + doing + " the " + strings.ToLower(displayName(m)) + "."})
	}
}

func conflictMessage(m *schema.Manifest, se *records.StateConflictError) string {
	switch {
	case se.Transition == lifecycle.TransitionInactivate && se.State == string(lifecycle.Inactive):
		return displayName(m) + " was already inactive."
	case se.Transition == lifecycle.TransitionActivate && se.State == string(lifecycle.Active):
		return displayName(m) + " was already active."
	case se.State == records.StateReferenced:
		return displayName(m) + " is still referenced by other records."
	case !m.SoftDeletable:
		return displayName(m) + " cannot be activated."
	default:
		return capitalize(se.Error()) + "."
	}
}

func notFound(c *gin.Context, m *schema.Manifest) {
	c.JSON(http.StatusNotFound, gin.H{"message": displayName(m) + " not found."})
}

func requireCaller(c *gin.Context) (scope.Caller, bool) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required."})
	}
	return caller, ok
}

// decodeObject reads the body as one JSON object. Numbers stay json.Number
// so integers and decimals keep their exact text.
func decodeObject(c *gin.Context) (map[string]any, bool) {
	dec := json.NewDecoder(io.LimitReader(c.Request.Body, maxBodyBytes))
	dec.UseNumber()

	var payload map[string]any
	err := dec.Decode(&payload)
	if err == nil && dec.More() {
		err = errors.New("trailing data")
	}
	if err != nil || payload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Request body must be a JSON object."})
		return nil, false
	}
	return payload, true
}

// displayName turns a type name such as employment_position into
// "Employment position".
func displayName(m *schema.Manifest) string {
	return capitalize(strings.ReplaceAll(m.Type, "_", " "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
