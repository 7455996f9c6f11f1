package leadlist

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
)

var ErrUnknownSortField = errors.New("unknown sort field")

// SortFields are the columns a list can be ordered by.
var SortFields = []string{"parent_name", "email", "phone", "status", "source", "created_at", "updated_at"}

// DefaultOrdering matches the order the API returns leads in.
var DefaultOrdering = core.Ordering{Field: "updated_at", Ascending: false}

func validSortField(f string) bool {
	for _, sf := range SortFields {
		if sf == f {
			return true
		}
	}
	return false
}

// less compares a and b on field, lexicographically for text and chronologically for times.
func less(a, b lead.Lead, field string) bool {
	switch field {
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return strings.Compare(text(a, field), text(b, field)) < 0
}

func text(l lead.Lead, field string) string {
	switch field {
	case "parent_name":
		return l.ParentName
	case "email":
		return l.Email.String
	case "phone":
		return l.Phone.String
	case "status":
		return string(l.Status)
	case "source":
		return string(l.Source)
	}
	return ""
}

// Sort returns a stably sorted copy of leads. An empty field keeps the fetched order.
func Sort(leads []lead.Lead, ord core.Ordering) ([]lead.Lead, error) {
	sorted := make([]lead.Lead, len(leads))
	copy(sorted, leads)
	if ord.Field == "" {
		return sorted, nil
	}
	if !validSortField(ord.Field) {
		return nil, errors.Wrapf(ErrUnknownSortField, "%q", ord.Field)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if ord.Ascending {
			return less(sorted[i], sorted[j], ord.Field)
		}
		return less(sorted[j], sorted[i], ord.Field)
	})
	return sorted, nil
}
