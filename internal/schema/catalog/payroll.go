package catalog

import "github.com/planilla-hr/planilla/internal/schema"

// Payment is one payroll disbursement to an employee.
var Payment = schema.Manifest{
	Type:   "payment",
	Table:  "payment",
	Plural: "payments",
	Fields: []schema.Field{
		date("payment_date", false),
		optText("document_number", 30),
		choice("payment_method", "ACH", "Cheque", "Efectivo"),
		owner("employee_id"),
	},
	Excluded: []string{"employee_id"},
	Owner:    employeeOwned,
	Children: []schema.Relation{
		{Name: "payment_details", Type: "payment_detail", ForeignKey: "payment_id"},
	},
}

// PaymentDetail is a line of a payment with its statutory deductions.
var PaymentDetail = schema.Manifest{
	Type:   "payment_detail",
	Table:  "payment_detail",
	Plural: "payment_details",
	Fields: []schema.Field{
		choice("payment_type",
			"Salario", "Horas Extra", "Vacaciones", "Décimo Tercer Mes",
			"Gasto de Representación", "Prima de Antigüedad", "Indemnización"),
		money("gross_payment", false),
		money("ss_deduction", true),
		money("se_deduction", true),
		money("isr_deduction", true),
		owner("payment_id"),
	},
	Excluded: []string{"payment_id"},
	Owner:    schema.Ownership{Field: "payment_id", Parent: "payment"},
}

// Deduction is a recurring amount withheld from an employee for a creditor.
var Deduction = schema.Manifest{
	Type:   "deduction",
	Table:  "deduction",
	Plural: "deductions",
	Fields: []schema.Field{
		date("start_date", false),
		date("end_date", true),
		money("deduction_per_payment_period", false),
		choice("payment_method", "ACH", "Cheque", "Efectivo"),
		flag("deduct_in_december"),
		active(),
		ref("creditor_id", "creditor", false),
		owner("employee_id"),
	},
	Excluded:      []string{"employee_id", schema.ActiveField},
	SoftDeletable: true,
	Owner:         employeeOwned,
	Children: []schema.Relation{
		{Name: "deduction_details", Type: "deduction_detail", ForeignKey: "deduction_id"},
	},
}

// DeductionDetail records one installment withheld for a deduction, with the
// payment it came out of when known.
var DeductionDetail = schema.Manifest{
	Type:   "deduction_detail",
	Table:  "deduction_detail",
	Plural: "deduction_details",
	Fields: []schema.Field{
		date("deduction_date", false),
		money("deducted_amount", false),
		ref("payment_id", "payment", true),
		owner("deduction_id"),
	},
	Excluded: []string{"deduction_id"},
	Owner:    schema.Ownership{Field: "deduction_id", Parent: "deduction"},
}
