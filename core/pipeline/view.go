package pipeline

import (
	"math"
	"time"

	"github.com/trezcool/admissions/core/lead"
)

type (
	// Card is a lead as rendered on the board. Stalled is evaluated at render time.
	Card struct {
		lead.Lead
		Stalled        bool    `json:"stalled"`
		HoursInStage   float64 `json:"hours_in_stage"`
		StudentSummary string  `json:"student_summary"`
	}

	ColumnView struct {
		Status  lead.Status `json:"status"`
		Label   string      `json:"label"`
		Count   int         `json:"count"`
		Stalled int         `json:"stalled"`
		Cards   []Card      `json:"cards"`
		Hidden  int         `json:"hidden"`
	}

	View struct {
		Columns []ColumnView `json:"columns"`
		Total   int          `json:"total"`
		Pending bool         `json:"pending"`
	}
)

func (cv ColumnView) HasMore() bool { return cv.Hidden > 0 }

// View renders the board at now: the first Visible cards of each column, in pipeline order.
func (b *Board) View(now time.Time) View {
	b.mu.Lock()
	cols := b.state.Columns().Clone()
	_, pending := b.state.(Pending)
	visible := make(map[lead.Status]int, len(b.visible))
	for s, n := range b.visible {
		visible[s] = n
	}
	b.mu.Unlock()

	v := View{Columns: make([]ColumnView, 0, len(lead.Statuses)), Total: cols.Count(), Pending: pending}
	for _, s := range lead.Statuses {
		col := cols[s]
		cv := ColumnView{Status: s, Label: s.Label(), Count: len(col), Cards: []Card{}}
		for i, l := range col {
			stalled := l.IsStalled(now)
			if stalled {
				cv.Stalled++
			}
			if i >= visible[s] {
				continue
			}
			cv.Cards = append(cv.Cards, Card{
				Lead:           l,
				Stalled:        stalled,
				HoursInStage:   math.Floor(lead.HoursInStage(l.UpdatedAt, now)),
				StudentSummary: l.StudentSummary(),
			})
		}
		cv.Hidden = len(col) - len(cv.Cards)
		v.Columns = append(v.Columns, cv)
	}
	return v
}

// Summary counts the leads currently on the board per status.
func (b *Board) Summary(now time.Time) []lead.StageSummary {
	return lead.Summarize(b.Columns().Leads(), now)
}
