package lead

import "time"

// slaHours is the maximum dwell time per status. Terminal statuses have none.
var slaHours = map[Status]int{
	StatusNew:                  24,
	StatusAttemptedContact:     48,
	StatusConnected:            72,
	StatusVisitScheduled:       24 * 7,
	StatusApplicationSubmitted: 72,
}

// SLA returns the maximum dwell time for s, and false if s has none.
func SLA(s Status) (time.Duration, bool) {
	h, ok := slaHours[s]
	if !ok || h <= 0 {
		return 0, false
	}
	return time.Duration(h) * time.Hour, true
}

// HoursInStage is (now - since) expressed in hours.
func HoursInStage(since, now time.Time) float64 {
	return now.Sub(since).Hours()
}

// IsStalled reports whether a lead in status s, last updated at lastUpdated, has exceeded its SLA at now.
// It must be evaluated at render time: the result changes as now advances.
func IsStalled(s Status, lastUpdated, now time.Time) bool {
	sla, ok := SLA(s)
	if !ok {
		return false
	}
	return HoursInStage(lastUpdated, now) > sla.Hours()
}
