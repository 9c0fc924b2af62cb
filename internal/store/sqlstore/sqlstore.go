// Package sqlstore persists records through sqlx. Queries are generated from
// manifests and written with ? placeholders, rebound per driver, so the same
// store serves Postgres (lib/pq or pgx) and SQLite (modernc).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"

	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/store"
)

func init() {
	// sqlx does not know the modernc driver name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store opens sqlx transactions as units of work.
type Store struct {
	db       *sqlx.DB
	registry *schema.Registry
}

var _ store.Store = (*Store)(nil)

// New wraps an open database.
func New(db *sqlx.DB, registry *schema.Registry) *Store {
	return &Store{db: db, registry: registry}
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &unit{tx: tx, registry: s.registry}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type unit struct {
	tx       *sqlx.Tx
	registry *schema.Registry
	done     bool
}

func selectList(m *schema.Manifest) string {
	cols := []string{schema.IDField}
	for _, f := range m.StorageFields() {
		cols = append(cols, f.StorageColumn())
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(m *schema.Manifest, row scanner) (*records.Record, error) {
	fields := m.StorageFields()
	raw := make([]any, len(fields))
	dest := make([]any, 0, len(fields)+1)

	rec := records.New(m.Type)
	dest = append(dest, &rec.ID)
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, f := range fields {
		v, err := f.FromStorage(raw[i])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s.%s: %w", m.Table, f.StorageColumn(), err)
		}
		rec.Set(f.StorageColumn(), v)
	}
	return rec, nil
}

func (u *unit) Get(ctx context.Context, m *schema.Manifest, id int64) (*records.Record, error) {
	query := u.tx.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectList(m), m.Table))
	rec, err := scanRecord(m, u.tx.QueryRowxContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &records.NotFoundError{Type: m.Type, ID: id}
	}
	if err != nil {
		return nil, records.Persistence("get "+m.Type, err)
	}
	return rec, nil
}

func (u *unit) List(ctx context.Context, m *schema.Manifest, column string, value int64) ([]*records.Record, error) {
	if _, ok := m.Field(column); !ok {
		return nil, fmt.Errorf("%s has no column %s", m.Type, column)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY id", selectList(m), m.Table, column)
	return u.query(ctx, m, query, value)
}

func (u *unit) Find(ctx context.Context, m *schema.Manifest, column string, value any) ([]*records.Record, error) {
	f, ok := storageField(m, column)
	if !ok {
		return nil, fmt.Errorf("%s has no column %s", m.Type, column)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY id", selectList(m), m.Table, column)
	return u.query(ctx, m, query, f.ToStorage(value))
}

func storageField(m *schema.Manifest, column string) (schema.Field, bool) {
	for _, f := range m.StorageFields() {
		if f.StorageColumn() == column {
			return f, true
		}
	}
	return schema.Field{}, false
}

func (u *unit) All(ctx context.Context, m *schema.Manifest) ([]*records.Record, error) {
	return u.query(ctx, m, fmt.Sprintf("SELECT %s FROM %s ORDER BY id", selectList(m), m.Table))
}

func (u *unit) query(ctx context.Context, m *schema.Manifest, query string, args ...any) ([]*records.Record, error) {
	rows, err := u.tx.QueryxContext(ctx, u.tx.Rebind(query), args...)
	if err != nil {
		return nil, records.Persistence("list "+m.Type, err)
	}
	defer rows.Close()

	var out []*records.Record
	for rows.Next() {
		rec, err := scanRecord(m, rows)
		if err != nil {
			return nil, records.Persistence("list "+m.Type, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, records.Persistence("list "+m.Type, err)
	}
	return out, nil
}

func (u *unit) OwnerOf(ctx context.Context, m *schema.Manifest, id int64) (int64, error) {
	column := schema.IDField
	if !m.Root && !m.Global {
		column = m.Owner.Field
	}
	query := u.tx.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", column, m.Table))

	var owner int64
	err := u.tx.QueryRowxContext(ctx, query, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &records.NotFoundError{Type: m.Type, ID: id}
	}
	if err != nil {
		return 0, records.Persistence("resolve owner of "+m.Type, err)
	}
	if m.Global {
		return 0, nil
	}
	return owner, nil
}

func (u *unit) Insert(ctx context.Context, m *schema.Manifest, rec *records.Record) error {
	fields := m.StorageFields()
	cols := make([]string, 0, len(fields))
	marks := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.StorageColumn())
		marks = append(marks, "?")
		args = append(args, f.ToStorage(rec.Get(f.StorageColumn())))
	}
	query := u.tx.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		m.Table, strings.Join(cols, ", "), strings.Join(marks, ", ")))

	if err := u.tx.QueryRowxContext(ctx, query, args...).Scan(&rec.ID); err != nil {
		return u.mapError(m, "insert "+m.Type, err)
	}
	return nil
}

func (u *unit) Update(ctx context.Context, m *schema.Manifest, rec *records.Record) error {
	fields := m.StorageFields()
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		sets = append(sets, f.StorageColumn()+" = ?")
		args = append(args, f.ToStorage(rec.Get(f.StorageColumn())))
	}
	args = append(args, rec.ID)
	query := u.tx.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", m.Table, strings.Join(sets, ", ")))

	result, err := u.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return u.mapError(m, "update "+m.Type, err)
	}
	return affected(result, m, rec.ID)
}

func (u *unit) Delete(ctx context.Context, m *schema.Manifest, id int64) error {
	query := u.tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", m.Table))
	result, err := u.tx.ExecContext(ctx, query, id)
	if err != nil {
		if v, ok := classify(err); ok && v.code == pgerrcode.ForeignKeyViolation {
			return &records.StateConflictError{Type: m.Type, ID: id, State: records.StateReferenced, Transition: "erase"}
		}
		return u.mapError(m, "delete "+m.Type, err)
	}
	return affected(result, m, id)
}

func affected(result sql.Result, m *schema.Manifest, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return records.Persistence("count affected rows", err)
	}
	if n == 0 {
		return &records.NotFoundError{Type: m.Type, ID: id}
	}
	return nil
}

func (u *unit) Commit() error {
	u.done = true
	if err := u.tx.Commit(); err != nil {
		return u.mapError(nil, "commit", err)
	}
	return nil
}

func (u *unit) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	return nil
}
