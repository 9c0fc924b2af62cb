// Package store defines the unit of work every record operation runs in.
// Implementations live in the memory and sqlstore subpackages.
package store

import (
	"context"

	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
)

// UnitOfWork is one transaction. Reads observe the transaction's own writes.
// Insert and Update report unique group collisions as
// records.UniquenessConflictError; absent rows are records.NotFoundError.
type UnitOfWork interface {
	Get(ctx context.Context, m *schema.Manifest, id int64) (*records.Record, error)
	// List returns the rows whose column equals value, ordered by id.
	List(ctx context.Context, m *schema.Manifest, column string, value int64) ([]*records.Record, error)
	// Find returns the rows whose column equals a canonical field value,
	// ordered by id.
	Find(ctx context.Context, m *schema.Manifest, column string, value any) ([]*records.Record, error)
	// All returns every row of m ordered by id.
	All(ctx context.Context, m *schema.Manifest) ([]*records.Record, error)
	// OwnerOf returns the owner edge of a row: the id itself for root types,
	// zero for global types.
	OwnerOf(ctx context.Context, m *schema.Manifest, id int64) (int64, error)

	Insert(ctx context.Context, m *schema.Manifest, rec *records.Record) error
	Update(ctx context.Context, m *schema.Manifest, rec *records.Record) error
	Delete(ctx context.Context, m *schema.Manifest, id int64) error

	Commit() error
	// Rollback discards the transaction. It is a no-op after Commit.
	Rollback() error
}

// Store opens units of work.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// RunInTx runs fn inside one unit of work, committing when fn succeeds and
// rolling back otherwise.
func RunInTx(ctx context.Context, s Store, fn func(uow UnitOfWork) error) error {
	uow, err := s.Begin(ctx)
	if err != nil {
		return records.Persistence("begin transaction", err)
	}
	defer func() { _ = uow.Rollback() }()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}
