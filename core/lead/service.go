package lead

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

var ErrNotFound = errors.New("lead not found")

type (
	// Repository is the remote source of truth for leads.
	Repository interface {
		QueryLeads(ctx context.Context, filter QueryFilter) ([]Lead, error)
		GetLead(ctx context.Context, id string) (Lead, error)
		CreateLead(ctx context.Context, nl NewLead) (Lead, error)
		UpdateLeadStatus(ctx context.Context, id string, status Status) error
		AssignLead(ctx context.Context, id, assignee string) (Lead, error)
	}

	ServiceInterface interface {
		Query(ctx context.Context, filter QueryFilter) ([]Lead, error)
		Cached(ctx context.Context) ([]Lead, bool)
		Get(ctx context.Context, id string) (Lead, error)
		Create(ctx context.Context, nl NewLead) (Lead, error)
		UpdateStatus(ctx context.Context, id string, status Status) error
		Assign(ctx context.Context, id, assignee string) (Lead, error)
	}

	Service struct {
		repo     Repository
		cache    core.Cache
		ttl      time.Duration
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, cache core.Cache, ttl time.Duration, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		ttl:      ttl,
		validate: validate,
		logger:   logger,
	}
}

// Query fetches leads. Only the unfiltered result is written to the cache.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Lead, error) {
	filter.Clean()
	leads, err := svc.repo.QueryLeads(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying leads")
	}
	if leads == nil {
		leads = []Lead{}
	}
	if filter.IsDefault() {
		if err := svc.cache.Set(ctx, core.CacheKeyLeadList, leads, svc.ttl); err != nil {
			svc.logger.Warn("caching leads list", err)
		}
	}
	return leads, nil
}

// Cached returns the last unfiltered leads list, if any.
func (svc *Service) Cached(ctx context.Context) ([]Lead, bool) {
	var leads []Lead
	if err := svc.cache.Get(ctx, core.CacheKeyLeadList, &leads); err != nil {
		if err != core.ErrCacheMiss {
			svc.logger.Warn("reading cached leads list", err)
		}
		return nil, false
	}
	return leads, true
}

func (svc *Service) Get(ctx context.Context, id string) (Lead, error) {
	l, err := svc.repo.GetLead(ctx, id)
	return l, errors.Wrap(err, "getting lead")
}

func (svc *Service) Create(ctx context.Context, nl NewLead) (Lead, error) {
	if err := nl.Validate(svc.validate); err != nil {
		return Lead{}, err
	}
	l, err := svc.repo.CreateLead(ctx, nl)
	if err != nil {
		return Lead{}, errors.Wrap(err, "creating lead")
	}
	svc.invalidate(ctx, core.CacheKeyLeadList, core.CacheKeyPipelineColumns)
	return l, nil
}

// UpdateStatus persists a status change. The pipeline board owns the columns cache,
// so only the list is invalidated here.
func (svc *Service) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: statusText})
	}
	if err := svc.repo.UpdateLeadStatus(ctx, id, status); err != nil {
		return errors.Wrap(err, "updating lead status")
	}
	svc.invalidate(ctx, core.CacheKeyLeadList)
	return nil
}

func (svc *Service) Assign(ctx context.Context, id, assignee string) (Lead, error) {
	assignee = core.CleanString(assignee)
	if assignee == "" {
		return Lead{}, core.NewValidationError(nil, core.FieldError{Field: "assigned_to", Error: "this field is required"})
	}
	l, err := svc.repo.AssignLead(ctx, id, assignee)
	if err != nil {
		return Lead{}, errors.Wrap(err, "assigning lead")
	}
	svc.invalidate(ctx, core.CacheKeyLeadList, core.CacheKeyPipelineColumns)
	return l, nil
}

func (svc *Service) invalidate(ctx context.Context, keys ...string) {
	if err := svc.cache.Delete(ctx, keys...); err != nil {
		svc.logger.Warn("invalidating cache", err, map[string]interface{}{"keys": keys})
	}
}
