package catalog

import "github.com/planilla-hr/planilla/internal/schema"

// Organization is the tenant boundary.
var Organization = schema.Manifest{
	Type:   schema.OrganizationType,
	Table:  "organization",
	Plural: "organizations",
	Fields: []schema.Field{
		text("organization_name", 80),
		active(),
	},
	Excluded:      []string{schema.ActiveField},
	Unique:        []schema.UniqueGroup{{Fields: []string{"organization_name"}}},
	SoftDeletable: true,
	Root:          true,
	ManageRole:    schema.RoleSuper,
	Children: []schema.Relation{
		{Name: "departments", Type: "department", ForeignKey: schema.OrganizationField},
	},
}

// AppUser is a login belonging to one organization.
var AppUser = schema.Manifest{
	Type:   "app_user",
	Table:  "app_user",
	Plural: "users",
	Fields: []schema.Field{
		text("username", 80),
		{Name: "password", Kind: schema.KindSecret, Column: "password_hash"},
		text("email", 120),
		{Name: "is_owner", Kind: schema.KindBoolean, Default: false, Privilege: schema.RoleOwner},
		{Name: "is_super", Kind: schema.KindBoolean, Default: false, Privilege: schema.RoleSuper},
		active(),
		owner(schema.OrganizationField),
	},
	Audit: []schema.Field{
		{Name: "created_on", Kind: schema.KindTimestamp, AutoNow: true},
		{Name: "current_login", Kind: schema.KindTimestamp, Nullable: true},
		{Name: "last_login", Kind: schema.KindTimestamp, Nullable: true},
		{Name: "login_count", Kind: schema.KindInteger, Default: int64(0)},
	},
	Excluded: []string{schema.OrganizationField, schema.ActiveField},
	Unique: []schema.UniqueGroup{
		{Fields: []string{"username"}},
		{Fields: []string{"email"}},
	},
	SoftDeletable: true,
	Owner:         schema.Ownership{Field: schema.OrganizationField, Parent: schema.OrganizationType},
	ManageRole:    schema.RoleOwner,
	SelfService:   true,
}
