package lead

import (
	"strings"

	"github.com/pkg/errors"
)

// Status is one stage of the admissions pipeline.
type Status string

const (
	StatusNew                  Status = "new"
	StatusAttemptedContact     Status = "attempted_contact"
	StatusConnected            Status = "connected"
	StatusVisitScheduled       Status = "visit_scheduled"
	StatusApplicationSubmitted Status = "application_submitted"
	StatusEnrolled             Status = "enrolled"
	StatusLost                 Status = "lost"
)

// StatusAll is the list filter value matching every status.
const StatusAll = "all"

var (
	// Statuses is the pipeline order, left to right.
	Statuses = []Status{
		StatusNew,
		StatusAttemptedContact,
		StatusConnected,
		StatusVisitScheduled,
		StatusApplicationSubmitted,
		StatusEnrolled,
		StatusLost,
	}

	statusLabels = map[Status]string{
		StatusNew:                  "New Lead",
		StatusAttemptedContact:     "Attempted Contact",
		StatusConnected:            "Connected",
		StatusVisitScheduled:       "Visit Scheduled",
		StatusApplicationSubmitted: "App Submitted",
		StatusEnrolled:             "Enrolled",
		StatusLost:                 "Lost",
	}

	ErrInvalidStatus = errors.New("invalid lead status")
)

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsTerminal is true for enrolled and lost: leads there never stall.
func (s Status) IsTerminal() bool {
	return s == StatusEnrolled || s == StatusLost
}

// Index is the column position of s, or -1.
func (s Status) Index() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
	return st, nil
}

// Source is where a lead came from.
type Source string

const (
	SourceWebsite  Source = "website"
	SourceWalkIn   Source = "walk_in"
	SourceReferral Source = "referral"
	SourceSocial   Source = "social"
)

var Sources = []Source{SourceWebsite, SourceWalkIn, SourceReferral, SourceSocial}

func (s Source) Valid() bool {
	for _, src := range Sources {
		if s == src {
			return true
		}
	}
	return false
}
