package core

import "strings"

// Ordering is a sort key and its direction.
type Ordering struct {
	Field     string
	Ascending bool
}

func (ord Ordering) String() string {
	if ord.Field == "" {
		return ""
	}
	if ord.Ascending {
		return ord.Field
	}
	return "-" + ord.Field
}

// ParseOrdering parses "field" (ascending) or "-field" (descending).
func ParseOrdering(s string) Ordering {
	s = strings.TrimSpace(s)
	descending := strings.HasPrefix(s, "-")
	if descending {
		s = s[1:] // drop "-"
	}
	return Ordering{Field: s, Ascending: !descending}
}
