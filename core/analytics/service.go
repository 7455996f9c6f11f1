package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
)

type (
	Repository interface {
		Dashboard(ctx context.Context, filter Filter) (Dashboard, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// Dashboard fetches the analytics dashboard. Funnel stages come back in pipeline order
// and per-source and per-counselor rows by volume.
func (svc *Service) Dashboard(ctx context.Context, actor access.Set, filter Filter) (Dashboard, error) {
	if err := actor.Require(access.FinanceView); err != nil {
		return Dashboard{}, err
	}
	if err := svc.validate.Struct(filter); err != nil {
		return Dashboard{}, err
	}
	if filter.DateFrom != "" && filter.DateTo != "" {
		from, _ := time.Parse(dateLayout, filter.DateFrom)
		to, _ := time.Parse(dateLayout, filter.DateTo)
		if to.Before(from) {
			return Dashboard{}, core.NewValidationError(nil, core.FieldError{Field: "date_to", Error: "must not be before date_from"})
		}
	}

	d, err := svc.repo.Dashboard(ctx, filter)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "getting dashboard")
	}
	normalize(&d)
	return d, nil
}

func normalize(d *Dashboard) {
	rank := func(stage string) int {
		if i := lead.Status(stage).Index(); i >= 0 {
			return i
		}
		return len(lead.Statuses)
	}
	sort.SliceStable(d.Funnel, func(i, j int) bool { return rank(d.Funnel[i].Stage) < rank(d.Funnel[j].Stage) })
	sort.SliceStable(d.ConversionBySource, func(i, j int) bool {
		return d.ConversionBySource[i].TotalLeads > d.ConversionBySource[j].TotalLeads
	})
	sort.SliceStable(d.CounselorPerformance, func(i, j int) bool {
		return d.CounselorPerformance[i].TotalLeads > d.CounselorPerformance[j].TotalLeads
	})
	if d.LeadVolume == nil {
		d.LeadVolume = []VolumePoint{}
	}
	if d.Alerts == nil {
		d.Alerts = []Alert{}
	}
}
