package lead

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
)

type Student struct {
	ID               string      `json:"id,omitempty"`
	Name             string      `json:"name"`
	GradeApplyingFor null.String `json:"grade_applying_for"`
	DOB              null.String `json:"dob,omitempty"` // YYYY-MM-DD
}

type Lead struct {
	ID                string      `json:"id"`
	ParentName        string      `json:"parent_name"`
	Email             null.String `json:"email"`
	Phone             null.String `json:"phone"`
	Status            Status      `json:"status"`
	Source            Source      `json:"source,omitempty"`
	AssignedTo        null.String `json:"assigned_to"`
	LastInteractionAt null.Time   `json:"last_interaction_at"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	Students          []Student   `json:"students"`
}

// IsStalled evaluates the SLA against now. See IsStalled.
func (l Lead) IsStalled(now time.Time) bool {
	return IsStalled(l.Status, l.UpdatedAt, now)
}

// LastActivity is the last interaction when known, the last update otherwise.
func (l Lead) LastActivity() time.Time {
	if l.LastInteractionAt.Valid {
		return l.LastInteractionAt.Time
	}
	return l.UpdatedAt
}

// Matches reports whether the lead satisfies the filter the way the API applies it:
// exact status, search case-insensitively contained in name, email or phone.
func (l Lead) Matches(f QueryFilter) bool {
	if !f.AllStatuses() && string(l.Status) != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	for _, fld := range []string{l.ParentName, l.Email.String, l.Phone.String} {
		if strings.Contains(strings.ToLower(fld), term) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so views never share student slices.
func (l Lead) Clone() Lead {
	if l.Students != nil {
		students := make([]Student, len(l.Students))
		copy(students, l.Students)
		l.Students = students
	}
	return l
}

// StudentSummary renders "Name (Grade), ..." for cards.
func (l Lead) StudentSummary() string {
	parts := make([]string, 0, len(l.Students))
	for _, s := range l.Students {
		if s.GradeApplyingFor.Valid && s.GradeApplyingFor.String != "" {
			parts = append(parts, s.Name+" ("+s.GradeApplyingFor.String+")")
		} else {
			parts = append(parts, s.Name)
		}
	}
	return strings.Join(parts, ", ")
}

// QueryFilter selects leads. Status is an exact status value, or "all"/"" for every status.
// Search is matched server-side against name, email and phone.
type QueryFilter struct {
	Status string `query:"status"`
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	if qf.Status == StatusAll {
		qf.Status = ""
	}
}

func (qf QueryFilter) AllStatuses() bool {
	return qf.Status == "" || qf.Status == StatusAll
}

// IsDefault is true for the unfiltered view, the only one worth caching.
func (qf QueryFilter) IsDefault() bool {
	return qf.AllStatuses() && strings.TrimSpace(qf.Search) == ""
}

type NewStudent struct {
	Name             string `json:"name" validate:"required,max=200"`
	GradeApplyingFor string `json:"grade_applying_for,omitempty" validate:"omitempty,max=50"`
	DOB              string `json:"dob,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// NewLead contains information needed to create a new Lead (intake form).
type NewLead struct {
	ParentName string       `json:"parent_name" validate:"required,max=200"`
	Email      string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string       `json:"phone,omitempty" validate:"omitempty,phone"`
	Status     Status       `json:"status" validate:"omitempty,leadstatus"`
	Source     Source       `json:"source" validate:"omitempty,leadsource"`
	AssignedTo string       `json:"assigned_to,omitempty" validate:"omitempty,uuid"`
	Students   []NewStudent `json:"students" validate:"dive"`
}

func (nl *NewLead) Validate(validate *validator.Validate) error {
	nl.ParentName = core.CleanString(nl.ParentName)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Phone = core.CleanString(nl.Phone)
	nl.AssignedTo = core.CleanString(nl.AssignedTo)
	if nl.Status == "" {
		nl.Status = StatusNew
	}
	if nl.Source == "" {
		nl.Source = SourceWebsite
	}
	if nl.Students == nil {
		nl.Students = []NewStudent{}
	}
	for i := range nl.Students {
		nl.Students[i].Name = core.CleanString(nl.Students[i].Name)
		nl.Students[i].GradeApplyingFor = core.CleanString(nl.Students[i].GradeApplyingFor)
	}
	return validate.Struct(nl)
}
