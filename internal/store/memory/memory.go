// Package memory is an in-process store. Units of work run one at a time on
// a private copy of the data that replaces the shared state on commit. It
// backs tests and single-process demos.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/store"
)

var errTxDone = errors.New("transaction already finished")

type table struct {
	rows   map[int64]map[string]any
	nextID int64
}

func (t *table) clone() *table {
	c := &table{rows: make(map[int64]map[string]any, len(t.rows)), nextID: t.nextID}
	for id, row := range t.rows {
		c.rows[id] = maps.Clone(row)
	}
	return c
}

// Store keeps every table in memory.
type Store struct {
	registry *schema.Registry
	sem      chan struct{}
	tables   map[string]*table
}

var _ store.Store = (*Store)(nil)

// New creates an empty store for the registered types.
func New(registry *schema.Registry) *Store {
	return &Store{
		registry: registry,
		sem:      make(chan struct{}, 1),
		tables:   make(map[string]*table),
	}
}

// Begin waits for any running unit of work to finish, then starts a new one.
func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	snapshot := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		snapshot[name] = t.clone()
	}
	return &unit{store: s, tables: snapshot}, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type unit struct {
	store  *Store
	tables map[string]*table
	done   bool
}

func (u *unit) table(m *schema.Manifest) *table {
	t, ok := u.tables[m.Table]
	if !ok {
		t = &table{rows: make(map[int64]map[string]any)}
		u.tables[m.Table] = t
	}
	return t
}

func (u *unit) Get(_ context.Context, m *schema.Manifest, id int64) (*records.Record, error) {
	if u.done {
		return nil, errTxDone
	}
	row, ok := u.table(m).rows[id]
	if !ok {
		return nil, &records.NotFoundError{Type: m.Type, ID: id}
	}
	return &records.Record{Type: m.Type, ID: id, Values: maps.Clone(row)}, nil
}

func (u *unit) List(_ context.Context, m *schema.Manifest, column string, value int64) ([]*records.Record, error) {
	if u.done {
		return nil, errTxDone
	}
	return u.scan(m, func(row map[string]any) bool {
		n, ok := row[column].(int64)
		return ok && n == value
	}), nil
}

func (u *unit) Find(_ context.Context, m *schema.Manifest, column string, value any) ([]*records.Record, error) {
	if u.done {
		return nil, errTxDone
	}
	return u.scan(m, func(row map[string]any) bool {
		return row[column] != nil && equal(row[column], value)
	}), nil
}

func (u *unit) All(_ context.Context, m *schema.Manifest) ([]*records.Record, error) {
	if u.done {
		return nil, errTxDone
	}
	return u.scan(m, func(map[string]any) bool { return true }), nil
}

func (u *unit) scan(m *schema.Manifest, keep func(map[string]any) bool) []*records.Record {
	t := u.table(m)
	ids := slices.Sorted(maps.Keys(t.rows))
	out := make([]*records.Record, 0, len(ids))
	for _, id := range ids {
		if keep(t.rows[id]) {
			out = append(out, &records.Record{Type: m.Type, ID: id, Values: maps.Clone(t.rows[id])})
		}
	}
	return out
}

func (u *unit) OwnerOf(_ context.Context, m *schema.Manifest, id int64) (int64, error) {
	if u.done {
		return 0, errTxDone
	}
	row, ok := u.table(m).rows[id]
	if !ok {
		return 0, &records.NotFoundError{Type: m.Type, ID: id}
	}
	switch {
	case m.Root:
		return id, nil
	case m.Global:
		return 0, nil
	}
	owner, _ := row[m.Owner.Field].(int64)
	return owner, nil
}

func (u *unit) Insert(_ context.Context, m *schema.Manifest, rec *records.Record) error {
	if u.done {
		return errTxDone
	}
	t := u.table(m)
	if err := u.checkUnique(m, t, 0, rec.Values); err != nil {
		return err
	}
	t.nextID++
	rec.ID = t.nextID
	t.rows[rec.ID] = u.row(m, rec.Values)
	return nil
}

func (u *unit) Update(_ context.Context, m *schema.Manifest, rec *records.Record) error {
	if u.done {
		return errTxDone
	}
	t := u.table(m)
	if _, ok := t.rows[rec.ID]; !ok {
		return &records.NotFoundError{Type: m.Type, ID: rec.ID}
	}
	if err := u.checkUnique(m, t, rec.ID, rec.Values); err != nil {
		return err
	}
	t.rows[rec.ID] = u.row(m, rec.Values)
	return nil
}

// Delete removes the row and, like ON DELETE CASCADE, every row owned by it.
// Like a plain foreign key, it refuses when a surviving row still refers to
// a removed one, leaving the unit unchanged.
func (u *unit) Delete(ctx context.Context, m *schema.Manifest, id int64) error {
	if u.done {
		return errTxDone
	}
	if _, ok := u.table(m).rows[id]; !ok {
		return &records.NotFoundError{Type: m.Type, ID: id}
	}

	before := make(map[string]*table, len(u.tables))
	for name, t := range u.tables {
		before[name] = t.clone()
	}
	removed := make(map[string][]int64)
	u.cascade(ctx, m, id, removed)
	if u.referenced(removed) {
		u.tables = before
		return &records.StateConflictError{Type: m.Type, ID: id, State: records.StateReferenced, Transition: "erase"}
	}
	return nil
}

func (u *unit) cascade(ctx context.Context, m *schema.Manifest, id int64, removed map[string][]int64) {
	delete(u.table(m).rows, id)
	removed[m.Type] = append(removed[m.Type], id)

	for _, typ := range u.store.registry.Types() {
		child := u.store.registry.Describe(typ)
		if child.Root || child.Global || child.Owner.Parent != m.Type {
			continue
		}
		owned, _ := u.List(ctx, child, child.Owner.Field, id)
		for _, rec := range owned {
			u.cascade(ctx, child, rec.ID, removed)
		}
	}
}

// referenced reports whether a remaining row holds a ref to a removed one.
func (u *unit) referenced(removed map[string][]int64) bool {
	for _, typ := range u.store.registry.Types() {
		m := u.store.registry.Describe(typ)
		for _, f := range m.Fields {
			ids, ok := removed[f.Ref]
			if f.Ref == "" || !ok {
				continue
			}
			col := f.StorageColumn()
			for _, row := range u.table(m).rows {
				n, isID := row[col].(int64)
				if isID && slices.Contains(ids, n) {
					return true
				}
			}
		}
	}
	return false
}

func (u *unit) Commit() error {
	if u.done {
		return errTxDone
	}
	u.done = true
	u.store.tables = u.tables
	<-u.store.sem
	return nil
}

func (u *unit) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	<-u.store.sem
	return nil
}

// row keeps only the storage columns of m.
func (u *unit) row(m *schema.Manifest, values map[string]any) map[string]any {
	out := make(map[string]any, len(m.Fields)+len(m.Audit))
	for _, f := range m.StorageFields() {
		out[f.StorageColumn()] = values[f.StorageColumn()]
	}
	return out
}

// checkUnique mirrors SQL semantics: a tuple containing null never collides.
func (u *unit) checkUnique(m *schema.Manifest, t *table, self int64, values map[string]any) error {
	for _, g := range m.UniqueGroups() {
		cols := make([]string, 0, len(g.Fields))
		for _, name := range g.Fields {
			f, _ := m.Field(name)
			cols = append(cols, f.StorageColumn())
		}
		if slices.ContainsFunc(cols, func(c string) bool { return values[c] == nil }) {
			continue
		}
		for id, row := range t.rows {
			if id == self {
				continue
			}
			same := true
			for _, c := range cols {
				if !equal(row[c], values[c]) {
					same = false
					break
				}
			}
			if same {
				return &records.UniquenessConflictError{Type: m.Type, Constraint: g.Name, Fields: g.Fields}
			}
		}
	}
	return nil
}

func equal(a, b any) bool {
	switch x := a.(type) {
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return a == b
}
