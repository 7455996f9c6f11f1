package report

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/lead"
)

// LeadFields are the columns WriteLeadsCSV knows how to render.
var LeadFields = []string{"parent_name", "email", "phone", "status", "source", "assigned_to", "students", "created_at", "updated_at"}

// WriteLeadsCSV writes leads as CSV with a header row. Unknown fields render empty.
func WriteLeadsCSV(w io.Writer, fields []string, leads []lead.Lead) error {
	if len(fields) == 0 {
		fields = LeadFields
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return errors.Wrap(err, "writing header")
	}
	row := make([]string, len(fields))
	for _, l := range leads {
		for i, f := range fields {
			row[i] = leadField(l, f)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing lead %s", l.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func leadField(l lead.Lead, field string) string {
	switch field {
	case "id":
		return l.ID
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
	case "assigned_to":
		return l.AssignedTo.String
	case "students":
		return l.StudentSummary()
	case "created_at":
		return l.CreatedAt.UTC().Format(time.RFC3339)
	case "updated_at":
		return l.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return ""
}
