package sqlstore

import (
	"errors"
	"slices"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
)

// violation is a constraint failure reported by any of the supported drivers,
// normalized to a Postgres SQLSTATE.
type violation struct {
	code       string
	constraint string
	columns    []string
}

func classify(err error) (violation, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return violation{code: string(pqErr.Code), constraint: pqErr.Constraint}, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return violation{code: pgErr.Code, constraint: pgErr.ConstraintName}, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		msg := liteErr.Error()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
			code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE constraint failed"):
			return violation{code: pgerrcode.UniqueViolation, columns: sqliteColumns(msg)}, true
		case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
			code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "FOREIGN KEY constraint failed"):
			return violation{code: pgerrcode.ForeignKeyViolation}, true
		case code&0xff == sqlite3.SQLITE_BUSY:
			return violation{code: pgerrcode.SerializationFailure}, true
		}
	}
	return violation{}, false
}

// sqliteColumns extracts column names from
// "UNIQUE constraint failed: department.department_name, department.organization_id".
func sqliteColumns(msg string) []string {
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return nil
	}
	rest := msg[i+len(marker):]
	if j := strings.Index(rest, " ("); j >= 0 {
		rest = rest[:j]
	}
	var cols []string
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if dot := strings.LastIndex(part, "."); dot >= 0 {
			part = part[dot+1:]
		}
		if part != "" {
			cols = append(cols, part)
		}
	}
	return cols
}

// mapError turns driver errors into the record error taxonomy. m may be nil
// when the failing statement is the commit itself.
func (u *unit) mapError(m *schema.Manifest, op string, err error) error {
	v, ok := classify(err)
	if !ok {
		return &records.PersistenceError{Op: op, Err: err}
	}

	switch v.code {
	case pgerrcode.UniqueViolation:
		return u.uniqueConflict(m, v)
	case pgerrcode.ForeignKeyViolation:
		typ := ""
		if m != nil {
			typ = m.Type
		}
		verr := &records.ValidationError{Type: typ}
		verr.Add(v.constraint, "refers to a missing record")
		return verr
	}
	return &records.PersistenceError{Op: op, Err: err}
}

func (u *unit) uniqueConflict(m *schema.Manifest, v violation) error {
	candidates := []*schema.Manifest{m}
	if m == nil {
		candidates = candidates[:0]
		for _, typ := range u.registry.Types() {
			candidates = append(candidates, u.registry.Describe(typ))
		}
	}

	for _, c := range candidates {
		if v.constraint != "" {
			if g, ok := c.UniqueGroupByConstraint(v.constraint); ok {
				return &records.UniquenessConflictError{Type: c.Type, Constraint: g.Name, Fields: g.Fields}
			}
			continue
		}
		for _, g := range c.UniqueGroups() {
			if sameColumns(c, g, v.columns) {
				return &records.UniquenessConflictError{Type: c.Type, Constraint: g.Name, Fields: g.Fields}
			}
		}
	}

	typ := ""
	if m != nil {
		typ = m.Type
	}
	return &records.UniquenessConflictError{Type: typ, Constraint: v.constraint}
}

func sameColumns(m *schema.Manifest, g schema.UniqueGroup, cols []string) bool {
	if len(cols) != len(g.Fields) {
		return false
	}
	for _, name := range g.Fields {
		f, _ := m.Field(name)
		if !slices.Contains(cols, f.StorageColumn()) {
			return false
		}
	}
	return true
}
