package catalog

import (
	"testing"

	"github.com/planilla-hr/planilla/internal/schema"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if got, want := len(r.Types()), len(Manifests()); got != want {
		t.Errorf("registered %d types, want %d", got, want)
	}
}

func TestOwnerChainsReachOrganization(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range r.Types() {
		m := r.Describe(typ)
		hops := 0
		for !m.Root && !m.Global {
			m = r.Describe(m.Owner.Parent)
			hops++
			if hops > 8 {
				t.Fatalf("%s: owner chain does not terminate", typ)
			}
		}
		if m.Global && typ != m.Type {
			t.Errorf("%s: owner chain ends at global type %s", typ, m.Type)
		}
	}
}

func TestSoftDeletableTypesExcludeActiveFlag(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range r.Types() {
		m := r.Describe(typ)
		if m.SoftDeletable && !m.IsExcluded(schema.ActiveField) {
			t.Errorf("%s: %s must only change through activation", typ, schema.ActiveField)
		}
		if !m.Root && !m.Global && !m.IsExcluded(m.Owner.Field) {
			t.Errorf("%s: owner field %s must be excluded from updates", typ, m.Owner.Field)
		}
	}
}

func TestCatalogTypes(t *testing.T) {
	want := []string{
		"marital_status", "family_relation", "bank", "country",
		"organization", "app_user",
		"department", "employment_position", "shift", "creditor", "uniform_item", "uniform_size",
		"employee", "dependent", "emergency_contact", "health_permit", "bank_account",
		"passport", "uniform_requirement", "schedule", "schedule_detail",
		"payment", "payment_detail", "deduction", "deduction_detail",
	}
	r, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	got := r.Types()
	if len(got) != len(want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("types[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOwnerChains(t *testing.T) {
	tests := []struct {
		typ  string
		want []string
	}{
		{"payment_detail", []string{"payment", "employee", schema.OrganizationType}},
		{"deduction_detail", []string{"deduction", "employee", schema.OrganizationType}},
		{"schedule_detail", []string{"schedule", schema.OrganizationType}},
		{"uniform_size", []string{"uniform_item", schema.OrganizationType}},
		{"uniform_requirement", []string{"employee", schema.OrganizationType}},
		{"passport", []string{"employee", schema.OrganizationType}},
	}
	r, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			var chain []string
			for m := r.Describe(tt.typ); !m.Root; m = r.Describe(m.Owner.Parent) {
				chain = append(chain, m.Owner.Parent)
			}
			if len(chain) != len(tt.want) {
				t.Fatalf("chain = %v, want %v", chain, tt.want)
			}
			for i := range tt.want {
				if chain[i] != tt.want[i] {
					t.Errorf("chain[%d] = %s, want %s", i, chain[i], tt.want[i])
				}
			}
		})
	}
}

func TestCountryIsGlobalCatalog(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	m := r.Describe("country")
	if !m.Global || m.ManageRole != schema.RoleSuper {
		t.Errorf("country: global = %v, manage role = %v", m.Global, m.ManageRole)
	}
	f, ok := r.Describe("passport").Field("country_id")
	if !ok || f.Ref != "country" {
		t.Errorf("passport.country_id = %+v", f)
	}
}
