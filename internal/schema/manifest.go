package schema

import (
	"slices"
	"strings"
)

// UniqueGroup is a tuple of fields whose combined values must be unique.
// Name is the storage constraint name; it defaults to <table>_<fields>_key.
type UniqueGroup struct {
	Name   string
	Fields []string
}

// Ownership is the edge from a record to the record that owns it.
// Following Parent repeatedly ends at the organization.
type Ownership struct {
	Field  string
	Parent string
}

// Relation is a one-to-many child collection included in representations.
type Relation struct {
	Name       string
	Type       string
	ForeignKey string
}

// Manifest is the static description of one record type.
type Manifest struct {
	Type   string
	Table  string
	Plural string

	// Fields are the writable attributes in representation order, excluding id.
	Fields []Field
	// Audit fields are emitted but never accepted from callers.
	Audit []Field
	// Excluded fields are silently ignored by generic updates.
	Excluded []string
	Unique   []UniqueGroup

	SoftDeletable bool

	// Root marks the organization type itself; its id is the tenant id.
	Root bool
	// Global marks tenant-less catalogs readable by every caller.
	Global bool
	Owner  Ownership

	// ManageRole is the role needed to create, change or retire records.
	ManageRole Role
	// SelfService lets a caller change its own record without ManageRole.
	SelfService bool

	Children []Relation

	index    map[string]int
	audit    map[string]int
	excluded map[string]struct{}
	byConstr map[string]UniqueGroup
}

// Field returns the writable field with the given name.
func (m *Manifest) Field(name string) (Field, bool) {
	i, ok := m.index[name]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

// AuditField returns the read-only audit field with the given name.
func (m *Manifest) AuditField(name string) (Field, bool) {
	i, ok := m.audit[name]
	if !ok {
		return Field{}, false
	}
	return m.Audit[i], true
}

// Keys returns the writable field names in declaration order.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		keys = append(keys, f.Name)
	}
	return keys
}

// NullableKeys returns the names of fields that accept null.
func (m *Manifest) NullableKeys() []string {
	var keys []string
	for _, f := range m.Fields {
		if f.Nullable {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// KeysOfKind returns the names of fields of kind k.
func (m *Manifest) KeysOfKind(k Kind) []string {
	var keys []string
	for _, f := range m.Fields {
		if f.Kind == k {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// ExcludedKeys returns the update-excluded field names.
func (m *Manifest) ExcludedKeys() []string {
	return slices.Clone(m.Excluded)
}

// IsExcluded reports whether generic updates ignore the field.
func (m *Manifest) IsExcluded(name string) bool {
	_, ok := m.excluded[name]
	return ok
}

// UniqueGroups returns the unique tuples with their resolved constraint names.
func (m *Manifest) UniqueGroups() []UniqueGroup {
	out := make([]UniqueGroup, 0, len(m.Unique))
	for _, g := range m.Unique {
		out = append(out, UniqueGroup{Name: g.Name, Fields: slices.Clone(g.Fields)})
	}
	return out
}

// UniqueGroupByConstraint maps a storage constraint name back to its group.
func (m *Manifest) UniqueGroupByConstraint(name string) (UniqueGroup, bool) {
	g, ok := m.byConstr[name]
	return g, ok
}

// StorageFields returns writable and audit fields in column order.
func (m *Manifest) StorageFields() []Field {
	out := make([]Field, 0, len(m.Fields)+len(m.Audit))
	out = append(out, m.Fields...)
	return append(out, m.Audit...)
}

// OwnedByOrganization reports whether the owner edge points straight at the
// organization.
func (m *Manifest) OwnedByOrganization() bool {
	return !m.Root && !m.Global && m.Owner.Parent == OrganizationType
}

func (m *Manifest) finalize() {
	m.index = make(map[string]int, len(m.Fields))
	for i, f := range m.Fields {
		m.index[f.Name] = i
	}
	m.audit = make(map[string]int, len(m.Audit))
	for i, f := range m.Audit {
		m.audit[f.Name] = i
	}
	m.excluded = make(map[string]struct{}, len(m.Excluded))
	for _, name := range m.Excluded {
		m.excluded[name] = struct{}{}
	}
	m.byConstr = make(map[string]UniqueGroup, len(m.Unique))
	for i, g := range m.Unique {
		if g.Name == "" {
			g.Name = m.Table + "_" + strings.Join(g.Fields, "_") + "_key"
			m.Unique[i] = g
		}
		m.byConstr[g.Name] = g
	}
	if m.Plural == "" {
		m.Plural = m.Type + "s"
	}
}
