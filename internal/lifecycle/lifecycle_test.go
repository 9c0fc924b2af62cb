package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planilla-hr/planilla/internal/lifecycle"
	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/schema/catalog"
)

type recordingWriter struct {
	updated []*records.Record
	deleted []int64
	err     error
}

func (w *recordingWriter) Update(_ context.Context, _ *schema.Manifest, rec *records.Record) error {
	if w.err != nil {
		return w.err
	}
	w.updated = append(w.updated, rec.Clone())
	return nil
}

func (w *recordingWriter) Delete(_ context.Context, _ *schema.Manifest, id int64) error {
	if w.err != nil {
		return w.err
	}
	w.deleted = append(w.deleted, id)
	return nil
}

func manifests(t *testing.T) (dept, dependent *schema.Manifest) {
	t.Helper()
	reg, err := catalog.NewRegistry()
	require.NoError(t, err)
	return reg.Describe("department"), reg.Describe("dependent")
}

func conflictState(t *testing.T, err error) string {
	t.Helper()
	var se *records.StateConflictError
	require.ErrorAs(t, err, &se)
	return se.State
}

func TestSoftDeleteCycle(t *testing.T) {
	dept, _ := manifests(t)
	ctx := context.Background()
	w := &recordingWriter{}
	rec := &records.Record{Type: "department", ID: 3, Values: map[string]any{"department_name": "Ops", "is_active": true}}

	outcome, err := lifecycle.Retire(ctx, w, dept, rec)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Inactivated, outcome)
	assert.Equal(t, lifecycle.Inactive, lifecycle.StateOf(dept, rec))
	require.Len(t, w.updated, 1)
	assert.Equal(t, false, w.updated[0].Get("is_active"))
	assert.Empty(t, w.deleted, "soft-deletable records are never erased")

	_, err = lifecycle.Retire(ctx, w, dept, rec)
	assert.Equal(t, "inactive", conflictState(t, err))
	assert.EqualError(t, err, "department 3 is already inactive")

	require.NoError(t, lifecycle.Activate(ctx, w, dept, rec))
	assert.Equal(t, lifecycle.Active, lifecycle.StateOf(dept, rec))

	err = lifecycle.Activate(ctx, w, dept, rec)
	assert.EqualError(t, err, "department 3 is already active")
	assert.Len(t, w.updated, 2)
}

func TestHardDelete(t *testing.T) {
	_, dependent := manifests(t)
	ctx := context.Background()
	w := &recordingWriter{}
	rec := &records.Record{Type: "dependent", ID: 8, Values: map[string]any{"first_name": "Sol"}}

	assert.Equal(t, lifecycle.Present, lifecycle.StateOf(dependent, rec))
	outcome, err := lifecycle.Retire(ctx, w, dependent, rec)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Erased, outcome)
	assert.Equal(t, []int64{8}, w.deleted)

	err = lifecycle.Activate(ctx, w, dependent, rec)
	assert.Equal(t, "present", conflictState(t, err))
	err = lifecycle.Inactivate(ctx, w, dependent, rec)
	assert.Equal(t, "present", conflictState(t, err))
}

func TestEraseRejectsSoftDeletable(t *testing.T) {
	dept, _ := manifests(t)
	w := &recordingWriter{}
	rec := &records.Record{Type: "department", ID: 1, Values: map[string]any{"is_active": true}}
	err := lifecycle.Erase(context.Background(), w, dept, rec)
	assert.Equal(t, "active", conflictState(t, err))
	assert.Empty(t, w.deleted)
}

func TestInitial(t *testing.T) {
	dept, dependent := manifests(t)

	rec := records.New("department")
	assert.Equal(t, lifecycle.Active, lifecycle.Initial(dept, rec))

	rec.Set("is_active", false)
	assert.Equal(t, lifecycle.Inactive, lifecycle.Initial(dept, rec))

	assert.Equal(t, lifecycle.Present, lifecycle.Initial(dependent, records.New("dependent")))
}

func TestWriteFailureLeavesRecordUnchanged(t *testing.T) {
	dept, _ := manifests(t)
	w := &recordingWriter{err: errors.New("disk full")}
	rec := &records.Record{Type: "department", ID: 1, Values: map[string]any{"is_active": true}}

	err := lifecycle.Inactivate(context.Background(), w, dept, rec)
	var pe *records.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, true, rec.Get("is_active"))
}
