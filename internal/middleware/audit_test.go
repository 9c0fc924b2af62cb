package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/planilla-hr/planilla/internal/audit"
)

type captureShipper struct {
	ch chan *audit.Entry
}

func newCaptureShipper() *captureShipper {
	return &captureShipper{ch: make(chan *audit.Entry, 8)}
}

func (s *captureShipper) Ship(_ context.Context, e *audit.Entry) error {
	s.ch <- e
	return nil
}

func (s *captureShipper) Close() error { return nil }

func (s *captureShipper) wait(t *testing.T) *audit.Entry {
	t.Helper()
	select {
	case e := <-s.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit entry")
		return nil
	}
}

func (s *captureShipper) expectNone(t *testing.T) {
	t.Helper()
	select {
	case e := <-s.ch:
		t.Fatalf("unexpected audit entry %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func newAuditRouter(shipper audit.Shipper) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(func(c *gin.Context) {
		c.Set(UserIDKey, int64(7))
		c.Set(OrganizationIDKey, int64(2))
		c.Next()
	})
	r.Use(AuditMiddleware(shipper))
	r.POST("/department", func(c *gin.Context) {
		SetAuditTarget(c, "department", "create", 41)
		c.Status(http.StatusCreated)
	})
	r.DELETE("/department/:id", func(c *gin.Context) {
		SetAuditTarget(c, "department", "retire", 41)
		c.Status(http.StatusBadRequest)
	})
	r.GET("/department/:id", func(c *gin.Context) {
		SetAuditTarget(c, "department", "fetch", 41)
		c.Status(http.StatusOK)
	})
	r.PUT("/untracked", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestAuditMiddleware_ShipsWrites(t *testing.T) {
	s := newCaptureShipper()
	r := newAuditRouter(s)

	w := serve(r, http.MethodPost, "/department")
	e := s.wait(t)

	if e.Action != "department.create" || e.Resource != "department" || e.ResourceID != 41 {
		t.Errorf("entry = %+v", e)
	}
	if e.UserID != 7 || e.OrganizationID != 2 {
		t.Errorf("identity = (%d, %d), want (7, 2)", e.UserID, e.OrganizationID)
	}
	if e.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", e.StatusCode)
	}
	if e.RequestID == "" || e.RequestID != w.Header().Get(RequestIDHeader) {
		t.Errorf("RequestID = %q, response header %q", e.RequestID, w.Header().Get(RequestIDHeader))
	}
}

func TestAuditMiddleware_SkipsFailuresReadsAndUntracked(t *testing.T) {
	s := newCaptureShipper()
	r := newAuditRouter(s)

	serve(r, http.MethodDelete, "/department/41")
	serve(r, http.MethodGet, "/department/41")
	serve(r, http.MethodPut, "/untracked")
	s.expectNone(t)
}

func TestAuditMiddleware_NilShipper(t *testing.T) {
	r := newAuditRouter(nil)
	if w := serve(r, http.MethodPost, "/department"); w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}
