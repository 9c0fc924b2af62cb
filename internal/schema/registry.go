package schema

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrSealed is returned when registering into a sealed registry.
var ErrSealed = errors.New("schema registry is sealed")

// Registry holds the manifests of every record type. Register and Seal run at
// startup; afterwards the registry is read-only and safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	manifests map[string]*Manifest
	byPlural  map[string]*Manifest
	order     []string
	sealed    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		manifests: make(map[string]*Manifest),
		byPlural:  make(map[string]*Manifest),
	}
}

// Register validates m and adds it. Owner and referenced types must already
// be registered, so registration order is also a valid table creation order.
func (r *Registry) Register(m Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	if m.Type == "" || m.Table == "" {
		return errors.New("manifest requires a type and a table")
	}
	if _, dup := r.manifests[m.Type]; dup {
		return fmt.Errorf("record type %q already registered", m.Type)
	}

	m.Fields = slices.Clone(m.Fields)
	m.Audit = slices.Clone(m.Audit)
	m.Excluded = slices.Clone(m.Excluded)
	m.Unique = slices.Clone(m.Unique)
	m.Children = slices.Clone(m.Children)
	m.finalize()

	if err := r.check(&m); err != nil {
		return fmt.Errorf("invalid manifest %q: %w", m.Type, err)
	}
	if _, dup := r.byPlural[m.Plural]; dup {
		return fmt.Errorf("plural %q already registered", m.Plural)
	}

	r.manifests[m.Type] = &m
	r.byPlural[m.Plural] = &m
	r.order = append(r.order, m.Type)
	return nil
}

// MustRegister registers every manifest and panics on the first error.
func (r *Registry) MustRegister(ms ...Manifest) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Seal checks cross-type relations and freezes the registry.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		m := r.manifests[name]
		for _, rel := range m.Children {
			child, ok := r.manifests[rel.Type]
			if !ok {
				return fmt.Errorf("invalid manifest %q: child %q has unknown type %q", m.Type, rel.Name, rel.Type)
			}
			f, ok := child.Field(rel.ForeignKey)
			if !ok || f.Kind != KindInteger {
				return fmt.Errorf("invalid manifest %q: child %q has no integer field %q", m.Type, rel.Name, rel.ForeignKey)
			}
		}
	}
	r.sealed = true
	return nil
}

// Describe returns the manifest of a registered type. An unknown type is a
// programming error and panics.
func (r *Registry) Describe(typ string) *Manifest {
	m, ok := r.Lookup(typ)
	if !ok {
		panic(fmt.Sprintf("schema: unknown record type %q", typ))
	}
	return m
}

// Lookup returns the manifest of typ if it is registered.
func (r *Registry) Lookup(typ string) (*Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[typ]
	return m, ok
}

// LookupPlural finds a manifest by its collection name.
func (r *Registry) LookupPlural(plural string) (*Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byPlural[plural]
	return m, ok
}

// Types returns the registered type names in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func (r *Registry) check(m *Manifest) error {
	seen := make(map[string]bool, len(m.Fields)+len(m.Audit))
	for _, f := range m.StorageFields() {
		if f.Name == "" || f.Name == IDField {
			return fmt.Errorf("field name %q is reserved", f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if f.Kind < KindInteger || f.Kind > KindSecret {
			return fmt.Errorf("field %q has no kind", f.Name)
		}
		if f.Kind == KindSecret && (f.Column == "" || f.Column == f.Name) {
			return fmt.Errorf("secret field %q needs a separate storage column", f.Name)
		}
		if f.Ref != "" {
			if f.Kind != KindInteger {
				return fmt.Errorf("reference field %q must be an integer", f.Name)
			}
			if _, ok := r.manifests[f.Ref]; !ok && f.Ref != m.Type {
				return fmt.Errorf("field %q references unknown type %q", f.Name, f.Ref)
			}
		}
	}
	for _, f := range m.Audit {
		if f.Kind == KindSecret {
			return fmt.Errorf("audit field %q cannot be secret", f.Name)
		}
	}

	switch {
	case m.Root && m.Global:
		return errors.New("a type cannot be both root and global")
	case m.Root || m.Global:
		if m.Owner != (Ownership{}) {
			return errors.New("root and global types have no owner")
		}
		if m.ManageRole != RoleSuper {
			return errors.New("root and global types are managed by super callers")
		}
	default:
		f, ok := m.Field(m.Owner.Field)
		if !ok || f.Kind != KindInteger || f.Nullable {
			return fmt.Errorf("owner field %q must be a non-null integer", m.Owner.Field)
		}
		parent, ok := r.manifests[m.Owner.Parent]
		if !ok {
			return fmt.Errorf("owner type %q is not registered", m.Owner.Parent)
		}
		if parent.Global {
			return fmt.Errorf("owner type %q is a global catalog", m.Owner.Parent)
		}
	}

	for _, name := range m.Excluded {
		if _, ok := m.Field(name); !ok {
			return fmt.Errorf("excluded field %q does not exist", name)
		}
	}
	for _, g := range m.Unique {
		if len(g.Fields) == 0 {
			return fmt.Errorf("unique group %q is empty", g.Name)
		}
		for _, name := range g.Fields {
			if _, ok := m.Field(name); !ok {
				return fmt.Errorf("unique group %q names unknown field %q", g.Name, name)
			}
		}
	}

	active, hasActive := m.Field(ActiveField)
	if m.SoftDeletable && (!hasActive || active.Kind != KindBoolean || active.Nullable) {
		return fmt.Errorf("soft-deletable types need a non-null boolean %q", ActiveField)
	}
	if !m.SoftDeletable && hasActive {
		return fmt.Errorf("field %q is reserved for soft-deletable types", ActiveField)
	}
	return nil
}
