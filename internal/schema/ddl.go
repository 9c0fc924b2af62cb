package schema

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavour rendered by DDL.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// DDL renders one CREATE TABLE statement per registered type, in
// registration order so that foreign keys always point backwards.
func DDL(r *Registry, d Dialect) []string {
	types := r.Types()
	stmts := make([]string, 0, len(types))
	for _, typ := range types {
		stmts = append(stmts, TableDDL(r, r.Describe(typ), d))
	}
	return stmts
}

// TableDDL renders the CREATE TABLE statement of a single manifest.
func TableDDL(r *Registry, m *Manifest, d Dialect) string {
	var lines []string
	if d == DialectSQLite {
		lines = append(lines, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	} else {
		lines = append(lines, "id SERIAL PRIMARY KEY")
	}

	for _, f := range m.StorageFields() {
		col := f.StorageColumn() + " " + columnType(f, d)
		if !f.Nullable {
			col += " NOT NULL"
		}
		if def, ok := defaultLiteral(f, d); ok {
			col += " DEFAULT " + def
		}
		lines = append(lines, col)
	}

	for _, f := range m.Fields {
		target := f.Ref
		if !m.Root && !m.Global && f.Name == m.Owner.Field {
			target = m.Owner.Parent
		}
		if target == "" {
			continue
		}
		ref, ok := r.Lookup(target)
		if !ok {
			continue
		}
		fk := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(id)", f.StorageColumn(), ref.Table)
		if target == m.Owner.Parent && f.Name == m.Owner.Field {
			fk += " ON DELETE CASCADE"
		}
		lines = append(lines, fk)
	}

	for _, g := range m.UniqueGroups() {
		cols := make([]string, 0, len(g.Fields))
		for _, name := range g.Fields {
			f, _ := m.Field(name)
			cols = append(cols, f.StorageColumn())
		}
		lines = append(lines, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", g.Name, strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", m.Table, strings.Join(lines, ",\n    "))
}

func columnType(f Field, d Dialect) string {
	if d == DialectSQLite {
		switch f.Kind {
		case KindInteger, KindBoolean:
			return "INTEGER"
		default:
			// Decimals are kept as text so no precision is lost to REAL.
			return "TEXT"
		}
	}
	switch f.Kind {
	case KindInteger:
		return "INTEGER"
	case KindDecimal:
		if f.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", f.Precision, f.Scale)
		}
		return "NUMERIC"
	case KindBoolean:
		return "BOOLEAN"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindSecret:
		return "VARCHAR(255)"
	default:
		if f.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
		}
		return "TEXT"
	}
}

func defaultLiteral(f Field, d Dialect) (string, bool) {
	switch v := f.Default.(type) {
	case bool:
		if d == DialectSQLite {
			if v {
				return "1", true
			}
			return "0", true
		}
		if v {
			return "TRUE", true
		}
		return "FALSE", true
	case int64:
		return fmt.Sprintf("%d", v), true
	case int:
		return fmt.Sprintf("%d", v), true
	}
	return "", false
}
