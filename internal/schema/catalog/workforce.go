package catalog

import "github.com/planilla-hr/planilla/internal/schema"

var orgOwned = schema.Ownership{Field: schema.OrganizationField, Parent: schema.OrganizationType}

// Department groups employees within an organization.
var Department = schema.Manifest{
	Type:   "department",
	Table:  "department",
	Plural: "departments",
	Fields: []schema.Field{
		text("department_name", 80),
		active(),
		owner(schema.OrganizationField),
	},
	Excluded:      []string{schema.OrganizationField, schema.ActiveField},
	Unique:        []schema.UniqueGroup{{Fields: []string{"department_name", schema.OrganizationField}}},
	SoftDeletable: true,
	Owner:         orgOwned,
	Children: []schema.Relation{
		{Name: "employees", Type: "employee", ForeignKey: "department_id"},
	},
}

// EmploymentPosition is a job title with gendered names and a wage floor.
var EmploymentPosition = schema.Manifest{
	Type:   "employment_position",
	Table:  "employment_position",
	Plural: "employment_positions",
	Fields: []schema.Field{
		text("position_name_feminine", 80),
		text("position_name_masculine", 80),
		money("minimum_hourly_wage", false),
		active(),
		owner(schema.OrganizationField),
	},
	Excluded:      []string{schema.OrganizationField, schema.ActiveField},
	Unique:        []schema.UniqueGroup{{Fields: []string{"position_name_feminine", schema.OrganizationField}}},
	SoftDeletable: true,
	Owner:         orgOwned,
}

var weekdays = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

// Shift is a working schedule template.
var Shift = schema.Manifest{
	Type:   "shift",
	Table:  "shift",
	Plural: "shifts",
	Fields: []schema.Field{
		text("shift_name", 80),
		{Name: "weekly_hours", Kind: schema.KindDecimal, Precision: 4, Scale: 2},
		flag("is_rotating"),
		choice("payment_period", "Semanal", "Quincenal", "Mensual"),
		{Name: "break_length", Kind: schema.KindTime},
		flag("is_break_included_in_shift"),
		{Name: "rotation_start_hour", Kind: schema.KindTime, Nullable: true},
		{Name: "rotation_end_hour", Kind: schema.KindTime, Nullable: true},
		{Name: "fixed_start_hour", Kind: schema.KindTime, Nullable: true},
		{Name: "fixed_end_hour", Kind: schema.KindTime, Nullable: true},
		{Name: "rest_day", Kind: schema.KindText, MaxLength: 10, Choices: weekdays, Nullable: true},
		active(),
		owner(schema.OrganizationField),
	},
	Excluded:      []string{schema.OrganizationField, schema.ActiveField},
	Unique:        []schema.UniqueGroup{{Fields: []string{"shift_name", schema.OrganizationField}}},
	SoftDeletable: true,
	Owner:         orgOwned,
}

// Creditor receives deductions withheld from employees.
var Creditor = schema.Manifest{
	Type:   "creditor",
	Table:  "creditor",
	Plural: "creditors",
	Fields: []schema.Field{
		text("creditor_name", 80),
		optText("phone_number", 20),
		optText("email", 120),
		active(),
		owner(schema.OrganizationField),
	},
	Excluded:      []string{schema.OrganizationField, schema.ActiveField},
	Unique:        []schema.UniqueGroup{{Fields: []string{"creditor_name", schema.OrganizationField}}},
	SoftDeletable: true,
	Owner:         orgOwned,
}

// UniformItem is a garment an organization issues to its staff.
var UniformItem = schema.Manifest{
	Type:   "uniform_item",
	Table:  "uniform_item",
	Plural: "uniform_items",
	Fields: []schema.Field{
		text("item_name", 80),
		owner(schema.OrganizationField),
	},
	Excluded: []string{schema.OrganizationField},
	Unique:   []schema.UniqueGroup{{Fields: []string{"item_name", schema.OrganizationField}}},
	Owner:    orgOwned,
	Children: []schema.Relation{
		{Name: "uniform_sizes", Type: "uniform_size", ForeignKey: "uniform_item_id"},
	},
}

var UniformSize = schema.Manifest{
	Type:   "uniform_size",
	Table:  "uniform_size",
	Plural: "uniform_sizes",
	Fields: []schema.Field{
		text("size_name", 20),
		owner("uniform_item_id"),
	},
	Excluded: []string{"uniform_item_id"},
	Unique:   []schema.UniqueGroup{{Fields: []string{"size_name", "uniform_item_id"}}},
	Owner:    schema.Ownership{Field: "uniform_item_id", Parent: "uniform_item"},
}

// Employee is a person on the payroll of an organization.
var Employee = schema.Manifest{
	Type:   "employee",
	Table:  "employee",
	Plural: "employees",
	Fields: []schema.Field{
		text("first_name", 40),
		optText("second_name", 40),
		text("first_surname", 40),
		optText("second_surname", 40),
		text("id_document", 30),
		choice("gender", "Hombre", "Mujer"),
		date("date_of_birth", false),
		optText("address", 300),
		optText("mobile_phone", 20),
		optText("email", 120),
		choice("type_of_contract", "Definido", "Indefinido", "Servicios Profesionales"),
		date("employment_date", false),
		date("contract_expiration_date", true),
		date("termination_date", true),
		optText("termination_reason", 200),
		money("salary_per_payment_period", false),
		money("representation_expenses_per_payment_period", true),
		choice("payment_method", "ACH", "Cheque", "Efectivo"),
		active(),
		ref("marital_status_id", "marital_status", true),
		ref("department_id", "department", false),
		ref("position_id", "employment_position", false),
		ref("shift_id", "shift", true),
		owner(schema.OrganizationField),
	},
	Excluded:      []string{schema.OrganizationField, schema.ActiveField},
	Unique:        []schema.UniqueGroup{{Fields: []string{"id_document", schema.OrganizationField}}},
	SoftDeletable: true,
	Owner:         orgOwned,
	Children: []schema.Relation{
		{Name: "emergency_contacts", Type: "emergency_contact", ForeignKey: "employee_id"},
		{Name: "dependents", Type: "dependent", ForeignKey: "employee_id"},
		{Name: "health_permits", Type: "health_permit", ForeignKey: "employee_id"},
		{Name: "bank_accounts", Type: "bank_account", ForeignKey: "employee_id"},
		{Name: "payments", Type: "payment", ForeignKey: "employee_id"},
		{Name: "passports", Type: "passport", ForeignKey: "employee_id"},
		{Name: "uniform_requirements", Type: "uniform_requirement", ForeignKey: "employee_id"},
	},
}

// Schedule is the weekly shift plan of an organization, starting on
// start_date.
var Schedule = schema.Manifest{
	Type:   "schedule",
	Table:  "schedule",
	Plural: "schedules",
	Fields: []schema.Field{
		date("start_date", false),
		owner(schema.OrganizationField),
	},
	Excluded: []string{schema.OrganizationField},
	Unique:   []schema.UniqueGroup{{Fields: []string{"start_date", schema.OrganizationField}}},
	Owner:    orgOwned,
	Children: []schema.Relation{
		{Name: "schedule_details", Type: "schedule_detail", ForeignKey: "schedule_id"},
	},
}

// ScheduleDetail assigns an employee to a shift on one day of a schedule. A
// null shift marks a day off.
var ScheduleDetail = schema.Manifest{
	Type:   "schedule_detail",
	Table:  "schedule_detail",
	Plural: "schedule_details",
	Fields: []schema.Field{
		date("work_date", false),
		ref("employee_id", "employee", false),
		ref("shift_id", "shift", true),
		owner("schedule_id"),
	},
	Excluded: []string{"schedule_id"},
	Unique:   []schema.UniqueGroup{{Fields: []string{"work_date", "employee_id", "schedule_id"}}},
	Owner:    schema.Ownership{Field: "schedule_id", Parent: "schedule"},
}
