// Package lifecycle implements activation and retirement of records.
//
// Soft-deletable types move between Active and Inactive through their
// is_active flag and are never physically removed. Every other type is
// Present until it is erased.
package lifecycle

import (
	"context"

	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
)

// State is the lifecycle state of a record.
type State string

const (
	Active   State = "active"
	Inactive State = "inactive"
	Present  State = "present"
)

// Transition names, also used as metric labels.
const (
	TransitionActivate   = "activate"
	TransitionInactivate = "inactivate"
	TransitionErase      = "erase"
)

// Outcome tells which transition Retire performed.
type Outcome int

const (
	Inactivated Outcome = iota + 1
	Erased
)

func (o Outcome) String() string {
	switch o {
	case Inactivated:
		return TransitionInactivate
	case Erased:
		return TransitionErase
	default:
		return "none"
	}
}

// Writer persists transitions inside the caller's unit of work.
type Writer interface {
	Update(ctx context.Context, m *schema.Manifest, rec *records.Record) error
	Delete(ctx context.Context, m *schema.Manifest, id int64) error
}

// StateOf returns the current state of rec.
func StateOf(m *schema.Manifest, rec *records.Record) State {
	if !m.SoftDeletable {
		return Present
	}
	if rec.Bool(schema.ActiveField) {
		return Active
	}
	return Inactive
}

// Initial settles the state of a record about to be created: Active unless
// the payload explicitly asked for is_active=false.
func Initial(m *schema.Manifest, rec *records.Record) State {
	if !m.SoftDeletable {
		return Present
	}
	if _, ok := rec.Get(schema.ActiveField).(bool); !ok {
		rec.Set(schema.ActiveField, true)
	}
	return StateOf(m, rec)
}

// Activate moves an Inactive record to Active.
func Activate(ctx context.Context, w Writer, m *schema.Manifest, rec *records.Record) error {
	return setActive(ctx, w, m, rec, true)
}

// Inactivate moves an Active record to Inactive.
func Inactivate(ctx context.Context, w Writer, m *schema.Manifest, rec *records.Record) error {
	return setActive(ctx, w, m, rec, false)
}

// Erase physically removes a record of a hard-deletable type.
func Erase(ctx context.Context, w Writer, m *schema.Manifest, rec *records.Record) error {
	if m.SoftDeletable {
		return conflict(m, rec, TransitionErase)
	}
	if err := w.Delete(ctx, m, rec.ID); err != nil {
		return records.Persistence("erase "+m.Type, err)
	}
	return nil
}

// Retire inactivates soft-deletable records and erases the rest.
func Retire(ctx context.Context, w Writer, m *schema.Manifest, rec *records.Record) (Outcome, error) {
	if m.SoftDeletable {
		if err := Inactivate(ctx, w, m, rec); err != nil {
			return 0, err
		}
		return Inactivated, nil
	}
	if err := Erase(ctx, w, m, rec); err != nil {
		return 0, err
	}
	return Erased, nil
}

func setActive(ctx context.Context, w Writer, m *schema.Manifest, rec *records.Record, active bool) error {
	transition, from := TransitionInactivate, Active
	if active {
		transition, from = TransitionActivate, Inactive
	}
	if StateOf(m, rec) != from {
		return conflict(m, rec, transition)
	}

	next := rec.Clone()
	next.Set(schema.ActiveField, active)
	if err := w.Update(ctx, m, next); err != nil {
		return records.Persistence(transition+" "+m.Type, err)
	}
	rec.Set(schema.ActiveField, active)
	return nil
}

func conflict(m *schema.Manifest, rec *records.Record, transition string) error {
	return &records.StateConflictError{
		Type:       m.Type,
		ID:         rec.ID,
		State:      string(StateOf(m, rec)),
		Transition: transition,
	}
}
