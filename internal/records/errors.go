package records

import (
	"errors"
	"fmt"
	"strings"

	"github.com/planilla-hr/planilla/internal/schema"
)

// ErrNotFound matches every NotFoundError with errors.Is.
var ErrNotFound = errors.New("record not found")

// NotFoundError reports an absent record.
type NotFoundError struct {
	Type string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Type, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError collects every problem found in a payload.
type ValidationError struct {
	Type     string
	Problems []*schema.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Error())
	}
	return fmt.Sprintf("invalid %s: %s", e.Type, strings.Join(parts, "; "))
}

// Add appends a problem for field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Problems = append(e.Problems, &schema.FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) addErr(field string, err error) {
	var fe *schema.FieldError
	if errors.As(err, &fe) {
		e.Problems = append(e.Problems, fe)
		return
	}
	e.Add(field, "%v", err)
}

// OrNil returns e when it holds problems and nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Reason distinguishes the two ways an authorization check can fail.
type Reason int

const (
	// OutOfScope means the record belongs to another tenant. It must be
	// indistinguishable from NotFoundError to the caller.
	OutOfScope Reason = iota
	// InsufficientRole means the record is in the caller's tenant but the
	// caller lacks the role for the operation.
	InsufficientRole
)

// AuthorizationError reports a failed scope or role check.
type AuthorizationError struct {
	Type   string
	ID     int64
	Reason Reason
	Detail string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == InsufficientRole {
		return fmt.Sprintf("not allowed to %s", e.Detail)
	}
	return fmt.Sprintf("%s %d is outside the caller's organization", e.Type, e.ID)
}

// StateReferenced is the State of a StateConflictError raised when erasing a
// row that other rows still point at.
const StateReferenced = "referenced"

// StateConflictError reports a lifecycle transition whose precondition does
// not hold. State is the current state.
type StateConflictError struct {
	Type       string
	ID         int64
	State      string
	Transition string
}

func (e *StateConflictError) Error() string {
	if (e.Transition == "activate" && e.State == "active") || (e.Transition == "inactivate" && e.State == "inactive") {
		return fmt.Sprintf("%s %d is already %s", e.Type, e.ID, e.State)
	}
	return fmt.Sprintf("cannot %s %s %d while it is %s", e.Transition, e.Type, e.ID, e.State)
}

// UniquenessConflictError reports a unique group collision found at commit.
type UniquenessConflictError struct {
	Type       string
	Constraint string
	Fields     []string
}

func (e *UniquenessConflictError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s violates unique constraint %s", e.Type, e.Constraint)
	}
	return fmt.Sprintf("a %s with the same %s already exists", e.Type, strings.Join(e.Fields, ", "))
}

// PersistenceError wraps an unexpected storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err unless it already belongs to the taxonomy.
func Persistence(op string, err error) error {
	if err == nil || IsTyped(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsTyped reports whether err is already one of the record errors.
func IsTyped(err error) bool {
	var (
		ve *ValidationError
		ae *AuthorizationError
		se *StateConflictError
		ue *UniquenessConflictError
		pe *PersistenceError
	)
	return errors.Is(err, ErrNotFound) ||
		errors.As(err, &ve) || errors.As(err, &ae) || errors.As(err, &se) ||
		errors.As(err, &ue) || errors.As(err, &pe)
}
