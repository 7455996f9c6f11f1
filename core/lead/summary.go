package lead

import (
	"math"
	"sort"
	"time"
)

// StageSummary is the number of leads in a stage and how many of them are overdue.
type StageSummary struct {
	Status       Status `json:"status"`
	Label        string `json:"label"`
	Count        int    `json:"count"`
	OverdueCount int    `json:"overdue_count"`
}

// Summarize counts leads per status, in pipeline order. Overdue uses the last activity.
// Leads with an unknown status are skipped.
func Summarize(leads []Lead, now time.Time) []StageSummary {
	idx := make(map[Status]int, len(Statuses))
	summary := make([]StageSummary, len(Statuses))
	for i, s := range Statuses {
		idx[s] = i
		summary[i] = StageSummary{Status: s, Label: s.Label()}
	}
	for _, l := range leads {
		i, ok := idx[l.Status]
		if !ok {
			continue
		}
		summary[i].Count++
		if IsStalled(l.Status, l.LastActivity(), now) {
			summary[i].OverdueCount++
		}
	}
	return summary
}

// Overdue is a lead past its SLA.
type Overdue struct {
	ID           string  `json:"id"`
	ParentName   string  `json:"parent_name"`
	Status       Status  `json:"status"`
	StatusLabel  string  `json:"status_label"`
	HoursInStage float64 `json:"hours_in_stage"`
}

// OverdueByOwner groups overdue leads by assigned_to. Unassigned leads are dropped:
// there is nobody to notify. Each group is sorted by most overdue first.
func OverdueByOwner(leads []Lead, now time.Time) map[string][]Overdue {
	byOwner := make(map[string][]Overdue)
	for _, l := range leads {
		if !l.AssignedTo.Valid || l.AssignedTo.String == "" {
			continue
		}
		since := l.LastActivity()
		if !IsStalled(l.Status, since, now) {
			continue
		}
		byOwner[l.AssignedTo.String] = append(byOwner[l.AssignedTo.String], Overdue{
			ID:           l.ID,
			ParentName:   l.ParentName,
			Status:       l.Status,
			StatusLabel:  l.Status.Label(),
			HoursInStage: math.Floor(HoursInStage(since, now)),
		})
	}
	for owner := range byOwner {
		list := byOwner[owner]
		sort.SliceStable(list, func(i, j int) bool { return list[i].HoursInStage > list[j].HoursInStage })
	}
	return byOwner
}

// Aging returns the non-terminal leads without any activity for at least thresholdDays.
func Aging(leads []Lead, thresholdDays int, now time.Time) []Lead {
	threshold := now.Add(-time.Duration(thresholdDays) * 24 * time.Hour)
	aged := make([]Lead, 0)
	for _, l := range leads {
		if l.Status.IsTerminal() {
			continue
		}
		if l.LastActivity().Before(threshold) {
			aged = append(aged, l)
		}
	}
	return aged
}
