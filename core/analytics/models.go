package analytics

import (
	"net/url"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core/lead"
)

const dateLayout = "2006-01-02"

// Filter narrows the dashboard. Dates are whole days (YYYY-MM-DD).
type Filter struct {
	DateFrom   string `json:"date_from" query:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo     string `json:"date_to" query:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Source     string `json:"source" query:"source" validate:"omitempty,leadsource"`
	Status     string `json:"status" query:"status" validate:"omitempty,leadstatus"`
	AssignedTo string `json:"assigned_to" query:"assigned_to" validate:"omitempty,uuid"`
}

// Values encodes the filter the way the API expects it: date_from at the start of its day,
// date_to at the very end of its day.
func (f Filter) Values(loc *time.Location) url.Values {
	q := make(url.Values)
	if d, err := time.ParseInLocation(dateLayout, f.DateFrom, loc); err == nil {
		q.Set("date_from", d.UTC().Format(time.RFC3339Nano))
	}
	if d, err := time.ParseInLocation(dateLayout, f.DateTo, loc); err == nil {
		end := d.AddDate(0, 0, 1).Add(-time.Millisecond)
		q.Set("date_to", end.UTC().Format(time.RFC3339Nano))
	}
	if f.Source != "" {
		q.Set("source", f.Source)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.AssignedTo != "" {
		q.Set("assigned_to", f.AssignedTo)
	}
	return q
}

type (
	KPIs struct {
		TotalLeads        int                `json:"total_leads"`
		TotalEnrollments  int                `json:"total_enrollments"`
		ConversionRate    float64            `json:"conversion_rate"`
		ActivePipeline    int                `json:"active_pipeline"`
		AvgTimeToConvert  null.Float64       `json:"avg_time_to_convert"`
		TrendVsLastPeriod map[string]float64 `json:"trend_vs_last_period"`
	}

	VolumePoint struct {
		Date  string `json:"date"`
		Count int    `json:"count"`
	}

	FunnelStage struct {
		Stage       string  `json:"stage"`
		Count       int     `json:"count"`
		Percentage  float64 `json:"percentage"`
		DropOffRate float64 `json:"drop_off_rate"`
	}

	SourceConversion struct {
		Source         string  `json:"source"`
		TotalLeads     int     `json:"total_leads"`
		Enrolled       int     `json:"enrolled"`
		ConversionRate float64 `json:"conversion_rate"`
	}

	CounselorPerformance struct {
		CounselorID       string  `json:"counselor_id"`
		CounselorName     string  `json:"counselor_name"`
		TotalLeads        int     `json:"total_leads"`
		InteractionsCount int     `json:"interactions_count"`
		Enrollments       int     `json:"enrollments"`
		ConversionRate    float64 `json:"conversion_rate"`
	}

	Alert struct {
		ID          string      `json:"id"`
		Type        string      `json:"type"`
		Severity    string      `json:"severity"`
		Title       string      `json:"title"`
		Description string      `json:"description"`
		Link        null.String `json:"link"`
	}

	Dashboard struct {
		KPIs                 KPIs                   `json:"kpis"`
		LeadVolume           []VolumePoint          `json:"lead_volume"`
		Funnel               []FunnelStage          `json:"funnel"`
		ConversionBySource   []SourceConversion     `json:"conversion_by_source"`
		CounselorPerformance []CounselorPerformance `json:"counselor_performance"`
		Alerts               []Alert                `json:"alerts"`
	}
)

// StageLabel is the display label of a funnel stage.
func (fs FunnelStage) StageLabel() string {
	if s := lead.Status(fs.Stage); s.Valid() {
		return s.Label()
	}
	return fs.Stage
}
