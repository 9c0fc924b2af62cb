package records

import (
	"fmt"
	"slices"
	"time"

	"github.com/planilla-hr/planilla/internal/schema"
)

// DefaultMaxDepth bounds how many levels of children a representation nests.
const DefaultMaxDepth = 3

// Hasher turns a secret plaintext into its stored form.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// Engine validates payloads against manifests and renders representations.
type Engine struct {
	registry *schema.Registry
	hasher   Hasher
	maxDepth int
	now      func() time.Time
}

// NewEngine creates an engine. maxDepth <= 0 selects DefaultMaxDepth.
func NewEngine(registry *schema.Registry, hasher Hasher, maxDepth int) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Engine{
		registry: registry,
		hasher:   hasher,
		maxDepth: maxDepth,
		now:      time.Now,
	}
}

// Build validates a create payload and returns the unsaved record. Unknown
// and read-only keys are rejected, required fields must be present, and
// secrets are hashed into their storage column.
func (e *Engine) Build(m *schema.Manifest, payload map[string]any) (*Record, error) {
	verr := &ValidationError{Type: m.Type}
	for _, key := range sortedKeys(payload) {
		if _, ok := m.Field(key); ok {
			continue
		}
		if _, ok := m.AuditField(key); ok || key == schema.IDField {
			verr.Add(key, "is read-only")
			continue
		}
		verr.Add(key, "is not a field of %s", m.Type)
	}

	rec := New(m.Type)
	for _, f := range m.Fields {
		v, present := payload[f.Name]
		if !present {
			switch {
			case f.Default != nil:
				rec.Set(f.StorageColumn(), f.Default)
			case f.Nullable:
				rec.Set(f.StorageColumn(), nil)
			default:
				verr.Add(f.Name, "is required")
			}
			continue
		}
		if err := e.assign(rec, f, v); err != nil {
			if _, ok := err.(*hashError); ok {
				return nil, err
			}
			verr.addErr(f.Name, err)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	for _, f := range m.Audit {
		switch {
		case f.AutoNow:
			rec.Set(f.StorageColumn(), now)
		case f.Default != nil:
			rec.Set(f.StorageColumn(), f.Default)
		default:
			rec.Set(f.StorageColumn(), nil)
		}
	}
	return rec, nil
}

// Apply merges a partial update into rec. Keys outside the manifest fail the
// whole patch, secrets are hashed, and excluded fields are ignored without
// error. Nothing is assigned unless every key validates.
func (e *Engine) Apply(rec *Record, patch map[string]any, m *schema.Manifest) error {
	verr := &ValidationError{Type: m.Type}
	staged := New(m.Type)

	for _, key := range sortedKeys(patch) {
		f, ok := m.Field(key)
		if !ok {
			if _, audit := m.AuditField(key); audit || key == schema.IDField {
				verr.Add(key, "is read-only")
			} else {
				verr.Add(key, "is not a field of %s", m.Type)
			}
			continue
		}
		if f.Kind != schema.KindSecret && m.IsExcluded(key) {
			continue
		}
		if err := e.assign(staged, f, patch[key]); err != nil {
			if _, ok := err.(*hashError); ok {
				return err
			}
			verr.addErr(key, err)
		}
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	for col, v := range staged.Values {
		rec.Set(col, v)
	}
	return nil
}

// Touched returns the fields of m that Apply would write for patch.
func Touched(m *schema.Manifest, patch map[string]any) []schema.Field {
	var out []schema.Field
	for _, f := range m.Fields {
		if _, ok := patch[f.Name]; !ok {
			continue
		}
		if f.Kind != schema.KindSecret && m.IsExcluded(f.Name) {
			continue
		}
		out = append(out, f)
	}
	return out
}

type hashError struct{ err error }

func (e *hashError) Error() string { return fmt.Sprintf("failed to hash secret: %v", e.err) }
func (e *hashError) Unwrap() error { return e.err }

func (e *Engine) assign(rec *Record, f schema.Field, v any) error {
	cv, err := f.Coerce(v)
	if err != nil {
		return err
	}
	if f.Kind == schema.KindSecret && cv != nil {
		if e.hasher == nil {
			return &hashError{err: fmt.Errorf("no hasher configured")}
		}
		hashed, err := e.hasher.Hash(cv.(string))
		if err != nil {
			return &hashError{err: err}
		}
		cv = hashed
	}
	rec.Set(f.StorageColumn(), cv)
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
