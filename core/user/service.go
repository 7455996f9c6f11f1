package user

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrRoleNotFound   = errors.New("role not found")
	ErrSystemRole     = errors.New("system roles cannot be modified")
	ErrRoleTooHigh    = errors.New("cannot grant a role above your own")
	ErrDeleteYourself = errors.New("you cannot delete your own account")
)

type (
	// Repository is the remote user administration API.
	Repository interface {
		Me(ctx context.Context) (Profile, error)
		QueryUsers(ctx context.Context, filter QueryFilter) (UserList, error)
		CreateUser(ctx context.Context, nu NewUser) (User, error)
		UpdateUser(ctx context.Context, id string, uu UpdateUser) (User, error)
		DeleteUser(ctx context.Context, id string) error
		QueryRoles(ctx context.Context) ([]Role, error)
		CreateRole(ctx context.Context, nr NewRole) (Role, error)
		UpdateRole(ctx context.Context, id string, ur UpdateRole) error
		DeleteRole(ctx context.Context, id string) error
		QueryAuditLogs(ctx context.Context, filter AuditLogFilter) (AuditLogList, error)
		QueryIntegrations(ctx context.Context) ([]Integration, error)
		ConnectIntegration(ctx context.Context, ni NewIntegration) error
		DisconnectIntegration(ctx context.Context, typ string) error
		QueryIntegrationLogs(ctx context.Context, limit int) (IntegrationLogList, error)
		SystemHealth(ctx context.Context) (SystemHealth, error)
	}

	// Service checks capabilities and validates input before anything is sent.
	Service struct {
		repo     Repository
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(repo Repository, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, validate: validate, logger: logger}
}

func (svc *Service) Me(ctx context.Context) (Profile, error) {
	p, err := svc.repo.Me(ctx)
	if err != nil {
		return Profile{}, errors.Wrap(err, "getting profile")
	}
	if p.Permissions == nil {
		p.Permissions = map[string]bool{}
	}
	return p, nil
}

func (svc *Service) QueryUsers(ctx context.Context, actor access.Set, filter QueryFilter) (UserList, error) {
	if err := actor.Require(access.UsersView); err != nil {
		return UserList{}, err
	}
	filter.Clean()
	list, err := svc.repo.QueryUsers(ctx, filter)
	return list, errors.Wrap(err, "querying users")
}

func (svc *Service) CreateUser(ctx context.Context, actor access.Set, nu NewUser) (User, error) {
	if err := actor.Require(access.UsersCreate); err != nil {
		return User{}, err
	}
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if !CanGrant(actor.Role(), nu.Role) {
		return User{}, core.NewValidationError(ErrRoleTooHigh, core.FieldError{Field: "role", Error: ErrRoleTooHigh.Error()})
	}
	usr, err := svc.repo.CreateUser(ctx, nu)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.logger.Info("user created", map[string]interface{}{"id": usr.ID, "role": usr.Role})
	return usr, nil
}

func (svc *Service) UpdateUser(ctx context.Context, actor access.Set, id string, uu UpdateUser) (User, error) {
	if err := actor.Require(access.UsersEdit); err != nil {
		return User{}, err
	}
	if err := uu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if uu.Role != "" && !CanGrant(actor.Role(), uu.Role) {
		return User{}, core.NewValidationError(ErrRoleTooHigh, core.FieldError{Field: "role", Error: ErrRoleTooHigh.Error()})
	}
	usr, err := svc.repo.UpdateUser(ctx, id, uu)
	return usr, errors.Wrap(err, "updating user")
}

// DeleteUser deletes the account id. self is the signed-in user's ID.
func (svc *Service) DeleteUser(ctx context.Context, actor access.Set, self, id string) error {
	if err := actor.Require(access.UsersDelete); err != nil {
		return err
	}
	if id == self {
		return core.NewValidationError(ErrDeleteYourself, core.FieldError{Field: "id", Error: ErrDeleteYourself.Error()})
	}
	return errors.Wrap(svc.repo.DeleteUser(ctx, id), "deleting user")
}

func (svc *Service) Roles(ctx context.Context, actor access.Set) ([]Role, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	roles, err := svc.repo.QueryRoles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	for i := range roles {
		if roles[i].Permissions == nil {
			roles[i].Permissions = map[string]bool{}
		}
	}
	return roles, nil
}

// Role finds a role by ID among Roles.
func (svc *Service) Role(ctx context.Context, actor access.Set, id string) (Role, error) {
	roles, err := svc.Roles(ctx, actor)
	if err != nil {
		return Role{}, err
	}
	for _, r := range roles {
		if r.ID == id {
			return r, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

func (svc *Service) CreateRole(ctx context.Context, actor access.Set, nr NewRole) (Role, error) {
	if err := actor.RequireAdmin(); err != nil {
		return Role{}, err
	}
	if err := nr.Validate(svc.validate); err != nil {
		return Role{}, err
	}
	r, err := svc.repo.CreateRole(ctx, nr)
	return r, errors.Wrap(err, "creating role")
}

// UpdateRole updates a custom role. System roles are rejected without a request.
func (svc *Service) UpdateRole(ctx context.Context, actor access.Set, role Role, ur UpdateRole) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if role.IsSystem {
		return core.NewValidationError(ErrSystemRole, core.FieldError{Field: "role", Error: ErrSystemRole.Error()})
	}
	if err := ur.Validate(svc.validate); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.UpdateRole(ctx, role.ID, ur), "updating role")
}

// TogglePermission grants or revokes one capability on a custom role and returns the updated role.
func (svc *Service) TogglePermission(ctx context.Context, actor access.Set, role Role, c access.Capability) (Role, error) {
	if !c.Valid() {
		return Role{}, core.NewValidationError(nil, core.FieldError{Field: "permission", Error: capabilityText})
	}
	perms := make(map[string]bool, len(role.Permissions)+1)
	for p, granted := range role.Permissions {
		if granted {
			perms[p] = true
		}
	}
	if perms[string(c)] {
		delete(perms, string(c))
	} else {
		perms[string(c)] = true
	}
	if err := svc.UpdateRole(ctx, actor, role, UpdateRole{Permissions: perms}); err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (svc *Service) DeleteRole(ctx context.Context, actor access.Set, role Role) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if role.IsSystem {
		return core.NewValidationError(ErrSystemRole, core.FieldError{Field: "role", Error: ErrSystemRole.Error()})
	}
	return errors.Wrap(svc.repo.DeleteRole(ctx, role.ID), "deleting role")
}
