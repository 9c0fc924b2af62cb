// Package catalog declares the manifests of the HR and payroll record types
// served by planilla.
package catalog

import (
	"fmt"

	"github.com/planilla-hr/planilla/internal/schema"
)

// Manifests returns every manifest in registration order: global catalogs,
// the organization, then each type after the type that owns it.
func Manifests() []schema.Manifest {
	return []schema.Manifest{
		MaritalStatus,
		FamilyRelation,
		Bank,
		Country,
		Organization,
		AppUser,
		Department,
		EmploymentPosition,
		Shift,
		Creditor,
		UniformItem,
		UniformSize,
		Employee,
		Dependent,
		EmergencyContact,
		HealthPermit,
		BankAccount,
		Passport,
		UniformRequirement,
		Schedule,
		ScheduleDetail,
		Payment,
		PaymentDetail,
		Deduction,
		DeductionDetail,
	}
}

// Register adds every manifest to r and seals it.
func Register(r *schema.Registry) error {
	for _, m := range Manifests() {
		if err := r.Register(m); err != nil {
			return fmt.Errorf("failed to register %s: %w", m.Type, err)
		}
	}
	return r.Seal()
}

// NewRegistry returns a sealed registry holding the full catalog.
func NewRegistry() (*schema.Registry, error) {
	r := schema.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Shared field helpers.

func text(name string, max int) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindText, MaxLength: max}
}

func optText(name string, max int) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindText, MaxLength: max, Nullable: true}
}

func choice(name string, choices ...string) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindText, MaxLength: 30, Choices: choices}
}

func money(name string, nullable bool) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindDecimal, Precision: 7, Scale: 2, Nullable: nullable}
}

func date(name string, nullable bool) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindDate, Nullable: nullable}
}

func ref(name, typ string, nullable bool) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindInteger, Ref: typ, Nullable: nullable}
}

func owner(name string) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindInteger}
}

func active() schema.Field {
	return schema.Field{Name: schema.ActiveField, Kind: schema.KindBoolean, Default: true}
}

func flag(name string) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindBoolean, Default: false}
}
