package catalog

import "github.com/planilla-hr/planilla/internal/schema"

// Global catalogs shared by every organization.

var MaritalStatus = schema.Manifest{
	Type:   "marital_status",
	Table:  "marital_status",
	Plural: "marital_statuses",
	Fields: []schema.Field{
		text("status_feminine", 25),
		text("status_masculine", 25),
	},
	Unique:     []schema.UniqueGroup{{Fields: []string{"status_feminine"}}},
	Global:     true,
	ManageRole: schema.RoleSuper,
}

var FamilyRelation = schema.Manifest{
	Type:   "family_relation",
	Table:  "family_relation",
	Plural: "family_relations",
	Fields: []schema.Field{
		text("relation_feminine", 25),
		text("relation_masculine", 25),
	},
	Unique:     []schema.UniqueGroup{{Fields: []string{"relation_feminine"}}},
	Global:     true,
	ManageRole: schema.RoleSuper,
}

var Bank = schema.Manifest{
	Type:   "bank",
	Table:  "bank",
	Plural: "banks",
	Fields: []schema.Field{
		text("bank_name", 80),
		optText("short_name", 20),
	},
	Unique:     []schema.UniqueGroup{{Fields: []string{"bank_name"}}},
	Global:     true,
	ManageRole: schema.RoleSuper,
}

var Country = schema.Manifest{
	Type:   "country",
	Table:  "country",
	Plural: "countries",
	Fields: []schema.Field{
		text("country_name", 60),
		text("nationality", 60),
	},
	Unique:     []schema.UniqueGroup{{Fields: []string{"country_name"}}},
	Global:     true,
	ManageRole: schema.RoleSuper,
}
