package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/planilla-hr/planilla/internal/schema"
)

// ChildLoader lists the records of m whose column equals value.
type ChildLoader interface {
	List(ctx context.Context, m *schema.Manifest, column string, value int64) ([]*Record, error)
}

// Representation is an ordered field mapping that marshals to a JSON object
// in insertion order.
type Representation struct {
	keys   []string
	values map[string]any
}

// NewRepresentation returns an empty representation.
func NewRepresentation() *Representation {
	return &Representation{values: make(map[string]any)}
}

// Set adds or replaces a key. New keys are appended.
func (r *Representation) Set(key string, v any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r *Representation) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in output order.
func (r *Representation) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r *Representation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Represent renders rec and its children. Secrets and internal columns are
// omitted, temporal values become ISO-8601 text and decimals exact strings.
// Children nest up to the engine's depth bound and a record already on the
// current path is never rendered twice.
func (e *Engine) Represent(ctx context.Context, loader ChildLoader, rec *Record) (*Representation, error) {
	return e.represent(ctx, loader, rec, 0, map[string]bool{})
}

func (e *Engine) represent(ctx context.Context, loader ChildLoader, rec *Record, depth int, path map[string]bool) (*Representation, error) {
	m := e.registry.Describe(rec.Type)
	key := fmt.Sprintf("%s#%d", rec.Type, rec.ID)
	path[key] = true
	defer delete(path, key)

	out := NewRepresentation()
	out.Set(schema.IDField, rec.ID)
	for _, f := range m.StorageFields() {
		if !f.Emitted() {
			continue
		}
		out.Set(f.Name, f.Format(rec.Get(f.StorageColumn())))
	}

	if depth >= e.maxDepth || loader == nil {
		return out, nil
	}
	for _, rel := range m.Children {
		childManifest := e.registry.Describe(rel.Type)
		children, err := loader.List(ctx, childManifest, rel.ForeignKey, rec.ID)
		if err != nil {
			return nil, Persistence("load "+rel.Name, err)
		}
		list := make([]*Representation, 0, len(children))
		for _, child := range children {
			if path[fmt.Sprintf("%s#%d", child.Type, child.ID)] {
				continue
			}
			cr, err := e.represent(ctx, loader, child, depth+1, path)
			if err != nil {
				return nil, err
			}
			list = append(list, cr)
		}
		out.Set(rel.Name, list)
	}
	return out, nil
}
