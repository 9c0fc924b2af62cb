// Package services implements the record verbs the resource layer exposes.
// RecordService composes the manifest registry, the scope resolver, the
// lifecycle engine and the update engine; every verb runs inside a unit of
// work supplied by the caller, which commits or rolls back.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/planilla-hr/planilla/internal/lifecycle"
	"github.com/planilla-hr/planilla/internal/records"
	"github.com/planilla-hr/planilla/internal/schema"
	"github.com/planilla-hr/planilla/internal/scope"
	"github.com/planilla-hr/planilla/internal/store"
	"github.com/planilla-hr/planilla/internal/telemetry"
)

// Operation names, also used as metric labels.
const (
	OpCreate   = "create"
	OpFetch    = "fetch"
	OpMutate   = "mutate"
	OpRetire   = "retire"
	OpActivate = "activate"
	OpList     = "list"
)

const userType = "app_user"

var (
	// ErrUnknownType is returned for resource names with no manifest.
	ErrUnknownType = errors.New("unknown record type")
	// ErrInvalidCredentials covers unknown usernames and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInactiveUser is returned when the user or its organization is inactive.
	ErrInactiveUser = errors.New("user is inactive")
)

// PasswordVerifier checks a plaintext against a stored secret.
type PasswordVerifier interface {
	Verify(plain, hash string) bool
}

// RecordService exposes create, fetch, mutate, retire, activate and list
// over every registered type.
type RecordService struct {
	registry *schema.Registry
	resolver *scope.Resolver
	engine   *records.Engine
	verifier PasswordVerifier
	now      func() time.Time
}

// NewRecordService creates a record service.
func NewRecordService(registry *schema.Registry, engine *records.Engine, verifier PasswordVerifier) *RecordService {
	return &RecordService{
		registry: registry,
		resolver: scope.NewResolver(registry),
		engine:   engine,
		verifier: verifier,
		now:      time.Now,
	}
}

// Manifest returns the manifest registered for typ.
func (s *RecordService) Manifest(typ string) (*schema.Manifest, error) {
	m, ok := s.registry.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return m, nil
}

// Create validates payload and inserts a new record. Organization-owned
// types default their organization to the caller's.
func (s *RecordService) Create(ctx context.Context, uow store.UnitOfWork, caller scope.Caller, typ string, payload map[string]any) (rec *records.Record, err error) {
	defer func() { observe(typ, OpCreate, err) }()

	m, err := s.Manifest(typ)
	if err != nil {
		return nil, err
	}
	if m.OwnedByOrganization() && caller.OrganizationID != 0 {
		if _, ok := payload[schema.OrganizationField]; !ok {
			withOrg := make(map[string]any, len(payload)+1)
			for k, v := range payload {
				withOrg[k] = v
			}
			withOrg[schema.OrganizationField] = caller.OrganizationID
			payload = withOrg
		}
	}

	rec, err = s.engine.Build(m, payload)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.CheckPrivileged(nil, rec, caller); err != nil {
		return nil, err
	}
	if err := s.resolver.CanCreate(ctx, uow, rec, caller); err != nil {
		return nil, err
	}
	if err := s.resolver.CheckReferences(ctx, uow, rec); err != nil {
		return nil, err
	}
	lifecycle.Initial(m, rec)

	if err := uow.Insert(ctx, m, rec); err != nil {
		return nil, records.Persistence("insert "+m.Type, err)
	}
	slog.Info("record created", "resource", m.Type, "id", rec.ID, "caller", caller.ID)
	return rec, nil
}

// Fetch returns a record the caller may see. Missing and out-of-scope
// records both fail with an error the resource layer renders as not found.
func (s *RecordService) Fetch(ctx context.Context, uow store.UnitOfWork, caller scope.Caller, typ string, id int64) (rec *records.Record, err error) {
	defer func() { observe(typ, OpFetch, err) }()
	return s.fetch(ctx, uow, caller, typ, id)
}

func (s *RecordService) fetch(ctx context.Context, uow store.UnitOfWork, caller scope.Caller, typ string, id int64) (*records.Record, error) {
	m, err := s.Manifest(typ)
	if err != nil {
		return nil, err
	}
	rec, err := uow.Get(ctx, m, id)
	if err != nil {
		return nil, records.Persistence("get "+m.Type, err)
	}
	return s.resolver.Authorize(ctx, uow, rec, caller)
}

// Mutate applies a partial update. Excluded fields in patch are ignored.
func (s *RecordService) Mutate(ctx context.Context, uow store.UnitOfWork, caller scope.Caller, typ string, id int64, patch map[string]any) (rec *records.Record, err error) {
	defer func() { observe(typ, OpMutate, err) }()

	before, err := s.fetch(ctx, uow, caller, typ, id)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.CanManage(before, caller); err != nil {
		return nil, err
	}

	m := s.registry.Describe(typ)
	after := before.Clone()
	if err := s.engine.Apply(after, patch, m); err != nil {
		return nil, err
	}
	if err := s.resolver.CheckPrivileged(before, after, caller); err != nil {
		return nil, err
	}
	if touchesReference(m, patch) {
		if err := s.resolver.CheckReferences(ctx, uow, after); err != nil {
			return nil, err
		}
	}

	if err := uow.Update(ctx, m, after); err != nil {
		return nil, records.Persistence("update "+m.Type, err)
	}
	slog.Info("record updated", "resource", m.Type, "id", id, "caller", caller.ID)
	return after, nil
}

// Retire inactivates a soft-deletable record or erases any other.
func (s *RecordService) Retire(ctx context.Context, uow store.UnitOfWork, caller scope.Caller, typ string, id int64) (outcome lifecycle.Outcome, err error) {
	defer func() { observe(typ, OpRetire, err) }()

	rec, err := s.fetch(ctx, uow, caller, typ, id)
	if err != nil {
		return 0, err
	}
	m := s.registry.Describe(typ)
	if err := s.resolver.CanTransition(rec, caller, "retire"); err != nil {
		return 0, err
	}

	outcome, err = lifecycle.Retire(ctx, uow, m, rec)
	if err != nil {
		return 0, err
	}
	telemetry.LifecycleTransitionsTotal.WithLabelValues(m.Type, outcome.String()).Inc()
	slog.Info("record retired", "resource", m.Type, "id", id, "outcome", outcome.String(), "caller", caller.ID)
	return outcome, nil
}

// Activate reactivates an inactive soft-deletable record.
func (s *RecordService) Activate(ctx context.Context, uow store.UnitOfWork, caller scope.Caller, typ string, id int64) (rec *records.Record, err error) {
	defer func() { observe(typ, OpActivate, err) }()

	rec, err = s.fetch(ctx, uow, caller, typ, id)
	if err != nil {
		return nil, err
	}
	m := s.registry.Describe(typ)
	if err := s.resolver.CanTransition(rec, caller, "activate"); err != nil {
		return nil, err
	}

	if err := lifecycle.Activate(ctx, uow, m, rec); err != nil {
		return nil, err
	}
	telemetry.LifecycleTransitionsTotal.WithLabelValues(m.Type, lifecycle.TransitionActivate).Inc()
	slog.Info("record activated", "resource", m.Type, "id", id, "caller", caller.ID)
	return rec, nil
}

// List returns the records of typ visible to the caller. Global catalogs
// list every entry. Without parentID, organization-owned types list the
// caller's organization; with it, the children of that parent are listed
// once the parent itself is visible.
func (s *RecordService) List(ctx context.Context, uow store.UnitOfWork, caller scope.Caller, typ string, parentID int64) (list []*records.Record, err error) {
	defer func() { observe(typ, OpList, err) }()

	m, err := s.Manifest(typ)
	if err != nil {
		return nil, err
	}

	switch {
	case m.Global:
		list, err = uow.All(ctx, m)
	case m.Root:
		if caller.IsSuper {
			list, err = uow.All(ctx, m)
			break
		}
		var org *records.Record
		org, err = uow.Get(ctx, m, caller.OrganizationID)
		list = []*records.Record{org}
	case parentID != 0:
		if _, err := s.fetch(ctx, uow, caller, m.Owner.Parent, parentID); err != nil {
			return nil, err
		}
		list, err = uow.List(ctx, m, m.Owner.Field, parentID)
	case m.OwnedByOrganization():
		if caller.IsSuper {
			list, err = uow.All(ctx, m)
			break
		}
		list, err = uow.List(ctx, m, m.Owner.Field, caller.OrganizationID)
	default:
		verr := &records.ValidationError{Type: m.Type}
		verr.Add("parent_id", "is required to list %s", m.Plural)
		return nil, verr
	}
	if err != nil {
		return nil, records.Persistence("list "+m.Type, err)
	}
	return list, nil
}

// Represent renders rec with its children read through uow.
func (s *RecordService) Represent(ctx context.Context, uow store.UnitOfWork, rec *records.Record) (*records.Representation, error) {
	return s.engine.Represent(ctx, uow, rec)
}

// RepresentAll renders every record of list in order.
func (s *RecordService) RepresentAll(ctx context.Context, uow store.UnitOfWork, list []*records.Record) ([]*records.Representation, error) {
	out := make([]*records.Representation, 0, len(list))
	for _, rec := range list {
		r, err := s.engine.Represent(ctx, uow, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Authenticate verifies a username and password and records the login on
// the user row.
func (s *RecordService) Authenticate(ctx context.Context, uow store.UnitOfWork, username, password string) (user *records.Record, err error) {
	defer func() { telemetry.LoginAttemptsTotal.WithLabelValues(loginOutcome(err)).Inc() }()

	m := s.registry.Describe(userType)
	found, err := uow.Find(ctx, m, "username", username)
	if err != nil {
		return nil, records.Persistence("find user", err)
	}
	if len(found) != 1 {
		return nil, ErrInvalidCredentials
	}
	user = found[0]

	secret, _ := m.Field("password")
	if !s.verifier.Verify(password, user.String(secret.StorageColumn())) {
		return nil, ErrInvalidCredentials
	}
	if err := s.checkActive(ctx, uow, user); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	count, _ := user.Int("login_count")
	next := user.Clone()
	next.Set("last_login", user.Get("current_login"))
	next.Set("current_login", now)
	next.Set("login_count", count+1)
	if err := uow.Update(ctx, m, next); err != nil {
		return nil, records.Persistence("record login", err)
	}
	return next, nil
}

// ResolveCaller loads the identity behind an authenticated user id. Users
// that are inactive, or whose organization is, are refused.
func (s *RecordService) ResolveCaller(ctx context.Context, uow store.UnitOfWork, userID int64) (scope.Caller, error) {
	user, err := uow.Get(ctx, s.registry.Describe(userType), userID)
	if err != nil {
		return scope.Caller{}, records.Persistence("load caller", err)
	}
	if err := s.checkActive(ctx, uow, user); err != nil {
		return scope.Caller{}, err
	}
	return CallerOf(user), nil
}

// CallerOf builds a caller from an app_user record.
func CallerOf(user *records.Record) scope.Caller {
	org, _ := user.Int(schema.OrganizationField)
	return scope.Caller{
		ID:             user.ID,
		OrganizationID: org,
		IsOwner:        user.Bool("is_owner"),
		IsSuper:        user.Bool("is_super"),
		IsActive:       user.Bool(schema.ActiveField),
	}
}

func (s *RecordService) checkActive(ctx context.Context, uow store.UnitOfWork, user *records.Record) error {
	if !user.Bool(schema.ActiveField) {
		return ErrInactiveUser
	}
	orgID, _ := user.Int(schema.OrganizationField)
	org, err := uow.Get(ctx, s.registry.Describe(schema.OrganizationType), orgID)
	if err != nil {
		return records.Persistence("load organization", err)
	}
	if !org.Bool(schema.ActiveField) {
		return ErrInactiveUser
	}
	return nil
}

func touchesReference(m *schema.Manifest, patch map[string]any) bool {
	for _, f := range records.Touched(m, patch) {
		if f.Ref != "" {
			return true
		}
	}
	return false
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	var (
		ae *records.AuthorizationError
		ve *records.ValidationError
		se *records.StateConflictError
		ue *records.UniquenessConflictError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, records.ErrNotFound), errors.Is(err, ErrUnknownType):
		return "not_found"
	case errors.As(err, &ae):
		if ae.Reason == records.OutOfScope {
			return "not_found"
		}
		return "forbidden"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &se), errors.As(err, &ue):
		return "conflict"
	default:
		return "error"
	}
}

func observe(typ, op string, err error) {
	if errors.Is(err, ErrUnknownType) {
		return
	}
	outcome := Outcome(err)
	telemetry.RecordOperationsTotal.WithLabelValues(typ, op, outcome).Inc()
	if outcome == "error" {
		slog.Error("record operation failed", "resource", typ, "operation", op, "error", err)
	}
}

func loginOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInactiveUser) {
		return "rejected"
	}
	return "error"
}
