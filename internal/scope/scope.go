// Package scope decides which records a caller may see and change. Every
// record resolves to one organization by following owner edges; a caller
// sees a record only when that organization is its own, unless the caller
// is a super user.
package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
)

// MaxHops bounds the owner walk from any record to its organization.
const MaxHops = 8

// ErrBrokenChain is returned when an owner walk loops or exceeds MaxHops.
var ErrBrokenChain = errors.New("ownership chain does not reach an organization")

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID             int64
	OrganizationID int64
	IsOwner        bool
	IsSuper        bool
	IsActive       bool
}

// Has reports whether the caller holds role. Super implies owner.
func (c Caller) Has(role schema.Role) bool {
	switch role {
	case schema.RoleMember:
		return true
	case schema.RoleOwner:
		return c.IsOwner || c.IsSuper
	default:
		return c.IsSuper
	}
}

// OwnerLookup reads owner edges of stored records. For root types it returns
// the id itself and for global types zero. Absent records yield an error
// matching records.ErrNotFound.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, m *schema.Manifest, id int64) (int64, error)
}

// Resolver evaluates visibility and creation rules.
type Resolver struct {
	registry *schema.Registry
}

// NewResolver creates a resolver over the given manifests.
func NewResolver(registry *schema.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Authorize returns rec when the caller may see it. Records of other tenants
// yield an OutOfScope AuthorizationError, which callers must present exactly
// like a missing record.
func (r *Resolver) Authorize(ctx context.Context, lookup OwnerLookup, rec *records.Record, caller Caller) (*records.Record, error) {
	if caller.IsSuper {
		return rec, nil
	}
	org, global, err := r.RootOrganization(ctx, lookup, rec, false)
	if err != nil {
		if denied(err) {
			return nil, outOfScope(rec)
		}
		return nil, err
	}
	if global || org == caller.OrganizationID {
		return rec, nil
	}
	return nil, outOfScope(rec)
}

// CanCreate checks that caller may insert the unsaved record rec. The rule is
// is_super OR (organization match AND (type needs no role OR caller holds it)).
func (r *Resolver) CanCreate(ctx context.Context, lookup OwnerLookup, rec *records.Record, caller Caller) error {
	m := r.registry.Describe(rec.Type)
	if !caller.Has(m.ManageRole) {
		return &records.AuthorizationError{Type: m.Type, Reason: records.InsufficientRole, Detail: "create " + m.Type}
	}
	if m.Root || m.Global {
		return nil
	}

	org, _, err := r.RootOrganization(ctx, lookup, rec, true)
	if err != nil {
		if denied(err) {
			return outOfScope(rec)
		}
		return err
	}
	if !caller.IsSuper && org != caller.OrganizationID {
		return outOfScope(rec)
	}
	return nil
}

// CanManage checks the role a change to an already visible record needs.
// SelfService types let a caller change its own record. Records holding a
// privilege the caller lacks, such as another user's is_super, are off
// limits even to callers with the type's role.
func (r *Resolver) CanManage(rec *records.Record, caller Caller) error {
	m := r.registry.Describe(rec.Type)
	if m.SelfService && rec.ID == caller.ID {
		return nil
	}
	if !caller.Has(m.ManageRole) {
		return insufficient(m, rec, "modify "+m.Type)
	}
	return r.checkOutranked(m, rec, caller, "modify")
}

// CanTransition checks the role a lifecycle transition of rec needs.
// Self-service does not extend to retiring or reactivating a record.
func (r *Resolver) CanTransition(rec *records.Record, caller Caller, action string) error {
	m := r.registry.Describe(rec.Type)
	if !caller.Has(m.ManageRole) {
		return insufficient(m, rec, action+" "+m.Type)
	}
	return r.checkOutranked(m, rec, caller, action)
}

// checkOutranked denies when rec holds a privileged field set to true whose
// role the caller does not have.
func (r *Resolver) checkOutranked(m *schema.Manifest, rec *records.Record, caller Caller, action string) error {
	for _, f := range m.Fields {
		if f.Privilege == schema.RoleMember || caller.Has(f.Privilege) {
			continue
		}
		if rec.Bool(f.StorageColumn()) {
			return insufficient(m, rec, action+" "+m.Type+" holding "+f.Name)
		}
	}
	return nil
}

// CheckPrivileged rejects changes to privileged fields the caller may not
// set. before is nil on create, in which case defaults are the baseline.
func (r *Resolver) CheckPrivileged(before, after *records.Record, caller Caller) error {
	m := r.registry.Describe(after.Type)
	for _, f := range m.Fields {
		if f.Privilege == schema.RoleMember || caller.Has(f.Privilege) {
			continue
		}
		baseline := f.Default
		if before != nil {
			baseline = before.Get(f.StorageColumn())
		}
		if after.Get(f.StorageColumn()) != baseline {
			return &records.AuthorizationError{Type: m.Type, ID: after.ID, Reason: records.InsufficientRole, Detail: "set " + f.Name}
		}
	}
	return nil
}

// CheckReferences verifies that every reference field of rec points at a
// global catalog entry or at a record of the same organization as rec.
func (r *Resolver) CheckReferences(ctx context.Context, lookup OwnerLookup, rec *records.Record) error {
	m := r.registry.Describe(rec.Type)
	var recOrg int64
	resolved := false

	verr := &records.ValidationError{Type: m.Type}
	for _, f := range m.Fields {
		if f.Ref == "" {
			continue
		}
		id, ok := rec.Int(f.StorageColumn())
		if !ok {
			continue
		}
		target := r.registry.Describe(f.Ref)
		if target.Global {
			if _, err := lookup.OwnerOf(ctx, target, id); err != nil {
				if !denied(err) {
					return err
				}
				verr.Add(f.Name, "refers to an unknown %s", f.Ref)
			}
			continue
		}

		if !resolved {
			org, _, err := r.RootOrganization(ctx, lookup, rec, false)
			if err != nil {
				return err
			}
			recOrg, resolved = org, true
		}
		refOrg, err := r.walk(ctx, lookup, target.Type, id, true)
		if err != nil && !denied(err) {
			return err
		}
		if err != nil || refOrg != recOrg {
			verr.Add(f.Name, "refers to an unknown %s", f.Ref)
		}
	}
	return verr.OrNil()
}

// RootOrganization returns the organization that owns rec. global is true for
// tenant-less catalog records. With verify set the organization row itself is
// checked for existence, which matters for records not yet stored.
func (r *Resolver) RootOrganization(ctx context.Context, lookup OwnerLookup, rec *records.Record, verify bool) (org int64, global bool, err error) {
	m := r.registry.Describe(rec.Type)
	switch {
	case m.Global:
		return 0, true, nil
	case m.Root:
		return rec.ID, false, nil
	}
	parentID, ok := rec.Int(m.Owner.Field)
	if !ok {
		return 0, false, fmt.Errorf("%s %d has no %s: %w", m.Type, rec.ID, m.Owner.Field, ErrBrokenChain)
	}
	org, err = r.walk(ctx, lookup, m.Owner.Parent, parentID, verify)
	return org, false, err
}

func (r *Resolver) walk(ctx context.Context, lookup OwnerLookup, typ string, id int64, verify bool) (int64, error) {
	seen := make(map[string]bool, MaxHops)
	for hop := 0; hop < MaxHops; hop++ {
		m := r.registry.Describe(typ)
		if m.Root {
			if verify {
				if _, err := lookup.OwnerOf(ctx, m, id); err != nil {
					return 0, err
				}
			}
			return id, nil
		}
		if m.Global {
			return 0, fmt.Errorf("%s is a global catalog: %w", typ, ErrBrokenChain)
		}
		key := fmt.Sprintf("%s#%d", typ, id)
		if seen[key] {
			return 0, fmt.Errorf("cycle at %s: %w", key, ErrBrokenChain)
		}
		seen[key] = true

		next, err := lookup.OwnerOf(ctx, m, id)
		if err != nil {
			return 0, err
		}
		typ, id = m.Owner.Parent, next
	}
	return 0, ErrBrokenChain
}

func denied(err error) bool {
	return errors.Is(err, records.ErrNotFound) || errors.Is(err, ErrBrokenChain)
}

func insufficient(m *schema.Manifest, rec *records.Record, detail string) error {
	return &records.AuthorizationError{Type: m.Type, ID: rec.ID, Reason: records.InsufficientRole, Detail: detail}
}

func outOfScope(rec *records.Record) error {
	return &records.AuthorizationError{Type: rec.Type, ID: rec.ID, Reason: records.OutOfScope}
}
