package pipeline

import (
	"sort"

	"github.com/trezcool/admissions/core/lead"
)

// Columns holds, per status, the leads currently believed to be in that status.
// Order within a column is display-only.
type Columns map[lead.Status][]lead.Lead

// NewColumns returns one empty column per status.
func NewColumns() Columns {
	cols := make(Columns, len(lead.Statuses))
	for _, s := range lead.Statuses {
		cols[s] = []lead.Lead{}
	}
	return cols
}

// Group buckets leads by status, most recently updated first. Leads with an unknown status are dropped.
func Group(leads []lead.Lead) Columns {
	cols := NewColumns()
	for _, l := range leads {
		if _, ok := cols[l.Status]; !ok {
			continue
		}
		cols[l.Status] = append(cols[l.Status], l.Clone())
	}
	for _, s := range lead.Statuses {
		col := cols[s]
		sort.SliceStable(col, func(i, j int) bool { return col[i].UpdatedAt.After(col[j].UpdatedAt) })
	}
	return cols
}

// Clone deep-copies the columns; mutations on the copy never reach the original.
func (c Columns) Clone() Columns {
	cp := make(Columns, len(c))
	for s, col := range c {
		leads := make([]lead.Lead, len(col))
		for i, l := range col {
			leads[i] = l.Clone()
		}
		cp[s] = leads
	}
	return cp
}

// Find locates a lead by ID.
func (c Columns) Find(id string) (lead.Status, int, bool) {
	for _, s := range lead.Statuses {
		for i, l := range c[s] {
			if l.ID == id {
				return s, i, true
			}
		}
	}
	return "", -1, false
}

// Count is the total number of leads on the board.
func (c Columns) Count() int {
	var n int
	for _, col := range c {
		n += len(col)
	}
	return n
}

// Leads flattens the board in pipeline order.
func (c Columns) Leads() []lead.Lead {
	all := make([]lead.Lead, 0, c.Count())
	for _, s := range lead.Statuses {
		all = append(all, c[s]...)
	}
	return all
}

func removeAt(col []lead.Lead, i int) []lead.Lead {
	out := make([]lead.Lead, 0, len(col)-1)
	out = append(out, col[:i]...)
	return append(out, col[i+1:]...)
}

func insertAt(col []lead.Lead, i int, l lead.Lead) []lead.Lead {
	if i < 0 {
		i = 0
	}
	if i > len(col) {
		i = len(col)
	}
	out := make([]lead.Lead, 0, len(col)+1)
	out = append(out, col[:i]...)
	out = append(out, l)
	return append(out, col[i:]...)
}
