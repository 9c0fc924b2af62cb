package catalog

import "github.com/planilla-hr/planilla/internal/schema"

var employeeOwned = schema.Ownership{Field: "employee_id", Parent: "employee"}

// Dependent is a family member of an employee. Erased rather than inactivated.
var Dependent = schema.Manifest{
	Type:   "dependent",
	Table:  "dependent",
	Plural: "dependents",
	Fields: []schema.Field{
		text("first_name", 40),
		optText("second_name", 40),
		text("first_surname", 40),
		optText("second_surname", 40),
		choice("gender", "Hombre", "Mujer"),
		date("date_of_birth", true),
		ref("family_relation_id", "family_relation", false),
		owner("employee_id"),
	},
	Excluded: []string{"employee_id"},
	Owner:    employeeOwned,
}

// EmergencyContact is a person to call on behalf of an employee.
var EmergencyContact = schema.Manifest{
	Type:   "emergency_contact",
	Table:  "emergency_contact",
	Plural: "emergency_contacts",
	Fields: []schema.Field{
		text("first_name", 40),
		text("last_name", 40),
		optText("home_phone", 20),
		optText("work_phone", 20),
		optText("mobile_phone", 20),
		owner("employee_id"),
	},
	Excluded: []string{"employee_id"},
	Owner:    employeeOwned,
}

// HealthPermit is a food-handling or health certificate held by an employee.
var HealthPermit = schema.Manifest{
	Type:   "health_permit",
	Table:  "health_permit",
	Plural: "health_permits",
	Fields: []schema.Field{
		choice("health_permit_type", "Blanco", "Verde"),
		date("issue_date", false),
		date("expiration_date", false),
		owner("employee_id"),
	},
	Excluded: []string{"employee_id"},
	Owner:    employeeOwned,
}

// BankAccount is where an employee is paid by ACH.
var BankAccount = schema.Manifest{
	Type:   "bank_account",
	Table:  "bank_account",
	Plural: "bank_accounts",
	Fields: []schema.Field{
		text("account_number", 30),
		choice("account_type", "Ahorro", "Corriente"),
		active(),
		ref("bank_id", "bank", false),
		owner("employee_id"),
	},
	Excluded:      []string{"employee_id", schema.ActiveField},
	Unique:        []schema.UniqueGroup{{Fields: []string{"account_number", "bank_id"}}},
	SoftDeletable: true,
	Owner:         employeeOwned,
}

// Passport is a travel document held by an employee.
var Passport = schema.Manifest{
	Type:   "passport",
	Table:  "passport",
	Plural: "passports",
	Fields: []schema.Field{
		text("passport_number", 30),
		date("issue_date", false),
		date("expiration_date", false),
		ref("country_id", "country", false),
		owner("employee_id"),
	},
	Excluded: []string{"employee_id"},
	Unique:   []schema.UniqueGroup{{Fields: []string{"passport_number", "country_id"}}},
	Owner:    employeeOwned,
}

// UniformRequirement is how many of an item, in which size, an employee is
// issued.
var UniformRequirement = schema.Manifest{
	Type:   "uniform_requirement",
	Table:  "uniform_requirement",
	Plural: "uniform_requirements",
	Fields: []schema.Field{
		{Name: "quantity", Kind: schema.KindInteger},
		ref("uniform_item_id", "uniform_item", false),
		ref("uniform_size_id", "uniform_size", false),
		owner("employee_id"),
	},
	Excluded: []string{"employee_id"},
	Unique:   []schema.UniqueGroup{{Fields: []string{"uniform_item_id", "employee_id"}}},
	Owner:    employeeOwned,
}
