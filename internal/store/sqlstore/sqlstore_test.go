package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/schema/catalog"
	"github.com/planilla-hr/planilla/internal/store"
)

var departmentCols = []string{"id", "department_name", "is_active", "organization_id"}

func newTestStore(t *testing.T) (*Store, *schema.Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := catalog.NewRegistry()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return New(sqlx.NewDb(db, "sqlmock"), reg), reg, mock
}

func begin(t *testing.T, s *Store, mock sqlmock.Sqlmock) store.UnitOfWork {
	t.Helper()
	mock.ExpectBegin()
	uow, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	return uow
}

func TestGet(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)
	m := reg.Describe("department")

	mock.ExpectQuery(`SELECT id, department_name, is_active, organization_id FROM department WHERE id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(departmentCols).AddRow(7, "Payroll", true, 3))

	rec, err := uow.Get(context.Background(), m, 7)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.ID != 7 || rec.Get("department_name") != "Payroll" || rec.Get("organization_id") != int64(3) {
		t.Errorf("Get() = %+v", rec)
	}
	if rec.Get("is_active") != true {
		t.Errorf("is_active = %v, want true", rec.Get("is_active"))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)

	mock.ExpectQuery(`SELECT .* FROM department WHERE id = \?`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(departmentCols))

	_, err := uow.Get(context.Background(), reg.Describe("department"), 99)
	if !errors.Is(err, records.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGet_DecimalAndDates(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)

	cols := []string{"id", "payment_type", "gross_payment", "ss_deduction", "se_deduction", "isr_deduction", "payment_id"}
	mock.ExpectQuery(`SELECT .* FROM payment_detail WHERE id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "Salario", []byte("1250.5"), []byte("121.88"), nil, nil, 4))

	rec, err := uow.Get(context.Background(), reg.Describe("payment_detail"), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	gross, ok := rec.Get("gross_payment").(decimal.Decimal)
	if !ok || !gross.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("gross_payment = %v", rec.Get("gross_payment"))
	}
	if rec.Get("se_deduction") != nil {
		t.Errorf("se_deduction = %v, want nil", rec.Get("se_deduction"))
	}
}

func TestList(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)

	mock.ExpectQuery(`SELECT .* FROM department WHERE organization_id = \? ORDER BY id`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(departmentCols).
			AddRow(1, "Payroll", true, 3).
			AddRow(2, "Sales", false, 3))

	list, err := uow.List(context.Background(), reg.Describe("department"), "organization_id", 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[1].Get("is_active") != false {
		t.Errorf("List() = %+v", list)
	}

	if _, err := uow.List(context.Background(), reg.Describe("department"), "1=1; --", 3); err == nil {
		t.Error("List() accepted an unknown column")
	}
}

func TestFind(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)

	mock.ExpectQuery(`SELECT .* FROM department WHERE department_name = \? ORDER BY id`).
		WithArgs("Payroll").
		WillReturnRows(sqlmock.NewRows(departmentCols).AddRow(1, "Payroll", true, 3))

	list, err := uow.Find(context.Background(), reg.Describe("department"), "department_name", "Payroll")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != 1 {
		t.Errorf("Find() = %+v", list)
	}

	if _, err := uow.Find(context.Background(), reg.Describe("app_user"), "password", "x"); err == nil {
		t.Error("Find() accepted a field name instead of its storage column")
	}
}

func TestOwnerOf(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT employee_id FROM dependent WHERE id = \?`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"employee_id"}).AddRow(12))
	owner, err := uow.OwnerOf(ctx, reg.Describe("dependent"), 5)
	if err != nil || owner != 12 {
		t.Errorf("OwnerOf(dependent) = %d, %v", owner, err)
	}

	mock.ExpectQuery(`SELECT id FROM organization WHERE id = \?`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	owner, err = uow.OwnerOf(ctx, reg.Describe("organization"), 3)
	if err != nil || owner != 3 {
		t.Errorf("OwnerOf(organization) = %d, %v", owner, err)
	}

	mock.ExpectQuery(`SELECT id FROM bank WHERE id = \?`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	if _, err := uow.OwnerOf(ctx, reg.Describe("bank"), 8); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("OwnerOf(missing bank) error = %v, want ErrNotFound", err)
	}
}

func TestInsert(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)

	mock.ExpectQuery(`INSERT INTO department \(department_name, is_active, organization_id\) VALUES \(\?, \?, \?\) RETURNING id`).
		WithArgs("Payroll", true, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	rec := &records.Record{Type: "department", Values: map[string]any{
		"department_name": "Payroll", "is_active": true, "organization_id": int64(3),
	}}
	if err := uow.Insert(context.Background(), reg.Describe("department"), rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if rec.ID != 11 {
		t.Errorf("ID = %d, want 11", rec.ID)
	}
}

func TestInsert_UniqueViolation(t *testing.T) {
	const constraint = "department_department_name_organization_id_key"
	tests := []struct {
		name string
		err  error
	}{
		{"lib/pq", &pq.Error{Code: "23505", Constraint: constraint}},
		{"pgx", &pgconn.PgError{Code: "23505", ConstraintName: constraint}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, reg, mock := newTestStore(t)
			uow := begin(t, s, mock)
			mock.ExpectQuery(`INSERT INTO department`).WillReturnError(tt.err)

			rec := &records.Record{Type: "department", Values: map[string]any{
				"department_name": "Payroll", "is_active": true, "organization_id": int64(3),
			}}
			err := uow.Insert(context.Background(), reg.Describe("department"), rec)
			var ue *records.UniquenessConflictError
			if !errors.As(err, &ue) {
				t.Fatalf("Insert() error = %v, want UniquenessConflictError", err)
			}
			if ue.Constraint != constraint || len(ue.Fields) != 2 {
				t.Errorf("conflict = %+v", ue)
			}
		})
	}
}

func TestInsert_OtherFailureIsPersistenceError(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)
	mock.ExpectQuery(`INSERT INTO bank`).WillReturnError(errors.New("connection reset by peer"))

	rec := &records.Record{Type: "bank", Values: map[string]any{"bank_name": "Banco General"}}
	err := uow.Insert(context.Background(), reg.Describe("bank"), rec)
	var pe *records.PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("Insert() error = %v, want PersistenceError", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s, reg, mock := newTestStore(t)
	uow := begin(t, s, mock)
	ctx := context.Background()
	m := reg.Describe("department")

	mock.ExpectExec(`UPDATE department SET department_name = \?, is_active = \?, organization_id = \? WHERE id = \?`).
		WithArgs("Finance", false, int64(3), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rec := &records.Record{Type: "department", ID: 4, Values: map[string]any{
		"department_name": "Finance", "is_active": false, "organization_id": int64(3),
	}}
	if err := uow.Update(ctx, m, rec); err != nil {
		t.Errorf("Update() error = %v", err)
	}

	mock.ExpectExec(`UPDATE department SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	rec.ID = 40
	if err := uow.Update(ctx, m, rec); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	mock.ExpectExec(`DELETE FROM dependent WHERE id = \?`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := uow.Delete(ctx, reg.Describe("dependent"), 9); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestDelete_ReferencedRow(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"lib/pq", &pq.Error{Code: "23503", Constraint: "bank_account_bank_id_fkey"}},
		{"pgx", &pgconn.PgError{Code: "23503", ConstraintName: "bank_account_bank_id_fkey"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, reg, mock := newTestStore(t)
			uow := begin(t, s, mock)
			mock.ExpectExec(`DELETE FROM bank WHERE id = \?`).WithArgs(int64(2)).WillReturnError(tt.err)

			err := uow.Delete(context.Background(), reg.Describe("bank"), 2)
			var se *records.StateConflictError
			if !errors.As(err, &se) {
				t.Fatalf("Delete() error = %v, want StateConflictError", err)
			}
			if se.State != records.StateReferenced || se.Type != "bank" || se.ID != 2 {
				t.Errorf("conflict = %+v", se)
			}
		})
	}
}

func TestCommitThenRollbackIsNoop(t *testing.T) {
	s, _, mock := newTestStore(t)
	uow := begin(t, s, mock)
	mock.ExpectCommit()

	if err := uow.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := uow.Rollback(); err != nil {
		t.Errorf("Rollback() after Commit error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s, _, mock := newTestStore(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.RunInTx(context.Background(), s, func(store.UnitOfWork) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("RunInTx() error = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSqliteColumns(t *testing.T) {
	msg := "constraint failed: UNIQUE constraint failed: department.department_name, department.organization_id (2067)"
	got := sqliteColumns(msg)
	if len(got) != 2 || got[0] != "department_name" || got[1] != "organization_id" {
		t.Errorf("sqliteColumns() = %v", got)
	}
	if sqliteColumns("disk I/O error") != nil {
		t.Error("expected nil for unrelated messages")
	}
}

func TestUniqueConflictByColumns(t *testing.T) {
	_, reg, _ := newTestStore(t)
	u := &unit{registry: reg}

	err := u.uniqueConflict(reg.Describe("app_user"), violation{columns: []string{"email"}})
	var ue *records.UniquenessConflictError
	if !errors.As(err, &ue) || ue.Constraint != "app_user_email_key" {
		t.Errorf("uniqueConflict() = %v", err)
	}

	err = u.uniqueConflict(nil, violation{constraint: "bank_bank_name_key"})
	if !errors.As(err, &ue) || ue.Type != "bank" {
		t.Errorf("uniqueConflict(commit) = %v", err)
	}
}
