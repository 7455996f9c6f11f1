package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
)

type repoFunc func(ctx context.Context, filter Filter) (Dashboard, error)

func (f repoFunc) Dashboard(ctx context.Context, filter Filter) (Dashboard, error) {
	return f(ctx, filter)
}

func newService(d Dashboard, calls *int) *Service {
	validate, translator := core.NewValidator()
	lead.RegisterValidators(validate, translator)
	return NewService(repoFunc(func(context.Context, Filter) (Dashboard, error) {
		*calls++
		return d, nil
	}), validate)
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()
	finance := access.NewSet("manager", map[string]bool{"finance.view": true})
	var calls int
	svc := newService(Dashboard{
		Funnel: []FunnelStage{{Stage: "enrolled", Count: 1}, {Stage: "mystery"}, {Stage: "new", Count: 5}},
		ConversionBySource: []SourceConversion{
			{Source: "walk_in", TotalLeads: 1},
			{Source: "website", TotalLeads: 4},
		},
	}, &calls)

	d, err := svc.Dashboard(ctx, finance, Filter{DateFrom: "2024-09-01", DateTo: "2024-09-30"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "enrolled", "mystery"}, []string{d.Funnel[0].Stage, d.Funnel[1].Stage, d.Funnel[2].Stage})
	assert.Equal(t, "website", d.ConversionBySource[0].Source)
	assert.NotNil(t, d.Alerts)
	assert.Equal(t, "New Lead", d.Funnel[0].StageLabel())
	assert.Equal(t, "mystery", d.Funnel[2].StageLabel())

	_, err = svc.Dashboard(ctx, access.NewSet("counselor", nil), Filter{})
	assert.True(t, core.IsForbidden(err))

	_, err = svc.Dashboard(ctx, finance, Filter{DateFrom: "2024-09-30", DateTo: "2024-09-01"})
	assert.Error(t, err)
	_, err = svc.Dashboard(ctx, finance, Filter{Status: "archived"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFilter_Values(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	q := Filter{DateFrom: "2024-09-01", DateTo: "2024-09-30", Source: "referral"}.Values(loc)
	assert.Equal(t, "2024-08-31T21:00:00Z", q.Get("date_from"))
	assert.Equal(t, "2024-09-30T20:59:59.999Z", q.Get("date_to"))
	assert.Equal(t, "referral", q.Get("source"))
	assert.Empty(t, Filter{}.Values(time.UTC))
}
