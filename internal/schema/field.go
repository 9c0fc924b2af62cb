// Package schema describes record types: their fields, ownership edges,
// lifecycle capability and uniqueness rules. Manifests are registered once at
// startup and read concurrently afterwards.
package schema

import "fmt"

// Well-known field and type names shared by every manifest.
const (
	IDField           = "id"
	ActiveField       = "is_active"
	OrganizationType  = "organization"
	OrganizationField = "organization_id"

	// InternalPrefix marks storage columns that are never emitted.
	InternalPrefix = "_"
)

// Kind is the value kind of a field.
type Kind int

const (
	KindInteger Kind = iota + 1
	KindDecimal
	KindBoolean
	KindText
	KindDate
	KindTime
	KindTimestamp
	// KindSecret is a credential. The plaintext is accepted on write, hashed,
	// and stored under the field's Column. It is never read back.
	KindSecret
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindBoolean:
		return "boolean"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindTimestamp:
		return "timestamp"
	case KindSecret:
		return "secret"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Role is the caller capability a write requires.
type Role int

const (
	RoleMember Role = iota
	RoleOwner
	RoleSuper
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleOwner:
		return "owner"
	case RoleSuper:
		return "super"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Field describes one writable attribute of a record type.
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool

	// MaxLength bounds text values in runes. Zero means unbounded.
	MaxLength int
	// Precision and Scale bound decimal values like NUMERIC(p,s).
	Precision int
	Scale     int
	// Choices restricts text values to an enumeration.
	Choices []string

	// Column overrides the storage column. Secret fields always set it.
	Column string
	// Ref names the record type this integer field points at.
	Ref string
	// Privilege is the role required to set this field at all.
	Privilege Role
	// Default is applied on create when the key is absent.
	Default any
	// AutoNow stamps timestamp fields with the current time on create.
	AutoNow bool
}

// StorageColumn returns the column the field is persisted under.
func (f Field) StorageColumn() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Required reports whether a create payload must carry the field.
func (f Field) Required() bool {
	return !f.Nullable && f.Default == nil && !f.AutoNow
}

// Emitted reports whether the field's stored value appears in representations.
func (f Field) Emitted() bool {
	if f.Kind == KindSecret {
		return false
	}
	col := f.StorageColumn()
	return len(col) == 0 || col[:1] != InternalPrefix
}

// FieldError describes why a single value was rejected.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func fieldErrorf(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
