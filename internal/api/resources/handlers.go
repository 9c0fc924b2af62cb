// Package resources exposes every registered record type over HTTP through
// one set of generic handlers. Routes are derived from the manifests:
//
//	GET    /{type}/:id           fetch
//	POST   /{type}               create
//	PUT    /{type}/:id           partial update
//	DELETE /{type}/:id           inactivate or erase
//	PUT    /activate_{type}/:id  reactivate
//	GET    /{plural}             list, optionally ?parent_id=N
//
// Each request runs in one unit of work that commits only when the handler
// succeeds.
package resources

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/planilla-hr/planilla/internal/lifecycle"
	"github.com/planilla-hr/planilla/internal/middleware"
	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/scope"
	"github.com/planilla-hr/planilla/internal/services"
	"github.com/planilla-hr/planilla/internal/store"
)

// Handlers serves the generic record routes.
type Handlers struct {
	store store.Store
	svc   *services.RecordService
}

// NewHandlers creates the record handlers.
func NewHandlers(st store.Store, svc *services.RecordService) *Handlers {
	return &Handlers{store: st, svc: svc}
}

// Register adds the routes of every type in registry to rg.
func (h *Handlers) Register(rg gin.IRoutes, registry *schema.Registry) {
	for _, typ := range registry.Types() {
		m := registry.Describe(typ)
		rg.GET("/"+m.Type+"/:id", h.Fetch(m))
		rg.POST("/"+m.Type, h.Create(m))
		rg.PUT("/"+m.Type+"/:id", h.Mutate(m))
		rg.DELETE("/"+m.Type+"/:id", h.Retire(m))
		rg.PUT("/activate_"+m.Type+"/:id", h.Activate(m))
		rg.GET("/"+m.Plural, h.List(m))
	}
}

// Fetch returns one record with its children.
func (h *Handlers) Fetch(m *schema.Manifest) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, id, ok := h.target(c, m)
		if !ok {
			return
		}

		var body *records.Representation
		err := h.tx(c, func(ctx context.Context, uow store.UnitOfWork) error {
			rec, err := h.svc.Fetch(ctx, uow, caller, m.Type, id)
			if err != nil {
				return err
			}
			body, err = h.svc.Represent(ctx, uow, rec)
			return err
		})
		if err != nil {
			writeError(c, m, "retrieving", err)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

// Create validates the body and inserts a new record.
func (h *Handlers) Create(m *schema.Manifest) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := requireCaller(c)
		if !ok {
			return
		}
		payload, ok := decodeObject(c)
		if !ok {
			return
		}

		var (
			id   int64
			body *records.Representation
		)
		err := h.tx(c, func(ctx context.Context, uow store.UnitOfWork) error {
			rec, err := h.svc.Create(ctx, uow, caller, m.Type, payload)
			if err != nil {
				return err
			}
			id = rec.ID
			body, err = h.svc.Represent(ctx, uow, rec)
			return err
		})
		if err != nil {
			writeError(c, m, "creating", err)
			return
		}
		middleware.SetAuditTarget(c, m.Type, services.OpCreate, id)
		c.JSON(http.StatusCreated, gin.H{
			"message": displayName(m) + " created successfully.",
			m.Type:    body,
		})
	}
}

// Mutate applies a partial update from the body.
func (h *Handlers) Mutate(m *schema.Manifest) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, id, ok := h.target(c, m)
		if !ok {
			return
		}
		patch, ok := decodeObject(c)
		if !ok {
			return
		}

		var body *records.Representation
		err := h.tx(c, func(ctx context.Context, uow store.UnitOfWork) error {
			rec, err := h.svc.Mutate(ctx, uow, caller, m.Type, id, patch)
			if err != nil {
				return err
			}
			body, err = h.svc.Represent(ctx, uow, rec)
			return err
		})
		if err != nil {
			writeError(c, m, "updating", err)
			return
		}
		middleware.SetAuditTarget(c, m.Type, services.OpMutate, id)
		c.JSON(http.StatusOK, gin.H{
			"message": displayName(m) + " updated successfully.",
			m.Type:    body,
		})
	}
}

// Retire inactivates soft-deletable records and erases the rest.
func (h *Handlers) Retire(m *schema.Manifest) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, id, ok := h.target(c, m)
		if !ok {
			return
		}

		var outcome lifecycle.Outcome
		err := h.tx(c, func(ctx context.Context, uow store.UnitOfWork) error {
			var err error
			outcome, err = h.svc.Retire(ctx, uow, caller, m.Type, id)
			return err
		})
		if err != nil {
			writeError(c, m, "deleting", err)
			return
		}
		middleware.SetAuditTarget(c, m.Type, outcome.String(), id)

		msg := displayName(m) + " is now inactive."
		if outcome == lifecycle.Erased {
			msg = displayName(m) + " deleted."
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}

// Activate reactivates an inactive record.
func (h *Handlers) Activate(m *schema.Manifest) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, id, ok := h.target(c, m)
		if !ok {
			return
		}

		err := h.tx(c, func(ctx context.Context, uow store.UnitOfWork) error {
			_, err := h.svc.Activate(ctx, uow, caller, m.Type, id)
			return err
		})
		if err != nil {
			writeError(c, m, "activating", err)
			return
		}
		middleware.SetAuditTarget(c, m.Type, services.OpActivate, id)
		c.JSON(http.StatusOK, gin.H{"message": displayName(m) + " is now active."})
	}
}

// List returns the visible records of a type under its plural name.
func (h *Handlers) List(m *schema.Manifest) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := requireCaller(c)
		if !ok {
			return
		}
		var parentID int64
		if raw := c.Query("parent_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"message": "parent_id must be a positive integer."})
				return
			}
			parentID = id
		}

		var body []*records.Representation
		err := h.tx(c, func(ctx context.Context, uow store.UnitOfWork) error {
			list, err := h.svc.List(ctx, uow, caller, m.Type, parentID)
			if err != nil {
				return err
			}
			body, err = h.svc.RepresentAll(ctx, uow, list)
			return err
		})
		if err != nil {
			writeError(c, m, "listing", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{m.Plural: body})
	}
}

func (h *Handlers) tx(c *gin.Context, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	ctx := c.Request.Context()
	return store.RunInTx(ctx, h.store, func(uow store.UnitOfWork) error {
		return fn(ctx, uow)
	})
}

// target reads the caller and the :id parameter. A malformed id is answered
// like a missing record.
func (h *Handlers) target(c *gin.Context, m *schema.Manifest) (caller scope.Caller, id int64, ok bool) {
	caller, ok = requireCaller(c)
	if !ok {
		return caller, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		notFound(c, m)
		return caller, 0, false
	}
	return caller, id, true
}
