//go:build integration

package sqlstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/planilla-hr/planilla/internal/db"
	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/schema/catalog"
	"github.com/planilla-hr/planilla/internal/store"
	"github.com/planilla-hr/planilla/internal/store/sqlstore"
)

func setupPostgresContainer(t *testing.T, ctx context.Context, driver string) (*sqlstore.Store, *schema.Registry, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "planilla",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/planilla?sslmode=disable", host, port.Port())
	conn, err := db.Connect(driver, dsn, 10, 2)
	require.NoError(t, err)

	reg, err := catalog.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(conn, reg, "up"))

	version, dirty, err := db.GetMigrationVersion(conn)
	require.NoError(t, err)
	require.Equal(t, uint(1), version)
	require.False(t, dirty)

	s := sqlstore.New(conn, reg)
	cleanup := func() {
		s.Close()
		_ = container.Terminate(ctx)
	}
	return s, reg, cleanup
}

func TestIntegration_DepartmentUniqueness(t *testing.T) {
	for _, driver := range []string{db.DriverPostgres, db.DriverPGX} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s, reg, cleanup := setupPostgresContainer(t, ctx, driver)
			defer cleanup()

			org := insert(t, s, reg.Describe("organization"), map[string]any{
				"organization_name": "Acme", "is_active": true,
			})
			dept := reg.Describe("department")
			insert(t, s, dept, map[string]any{"department_name": "Payroll", "is_active": true, "organization_id": org.ID})

			err := store.RunInTx(ctx, s, func(uow store.UnitOfWork) error {
				return uow.Insert(ctx, dept, &records.Record{Type: "department", Values: map[string]any{
					"department_name": "Payroll", "is_active": true, "organization_id": org.ID,
				}})
			})
			var ue *records.UniquenessConflictError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "department_department_name_organization_id_key", ue.Constraint)
		})
	}
}

func TestIntegration_ConcurrentDuplicateInserts(t *testing.T) {
	ctx := context.Background()
	s, reg, cleanup := setupPostgresContainer(t, ctx, db.DriverPGX)
	defer cleanup()

	org := insert(t, s, reg.Describe("organization"), map[string]any{
		"organization_name": "Acme", "is_active": true,
	})
	dept := reg.Describe("department")

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.RunInTx(ctx, s, func(uow store.UnitOfWork) error {
				return uow.Insert(ctx, dept, &records.Record{Type: "department", Values: map[string]any{
					"department_name": "Payroll", "is_active": true, "organization_id": org.ID,
				}})
			})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var ue *records.UniquenessConflictError
		assert.ErrorAs(t, err, &ue)
	}
	assert.Equal(t, 1, succeeded)
}
