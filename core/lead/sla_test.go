package lead

import (
	"testing"
	"time"
)

func TestIsStalled(t *testing.T) {
	now := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) time.Time { return now.Add(-d) }

	tests := []struct {
		name   string
		status Status
		last   time.Time
		want   bool
	}{
		{"new at exactly 24h", StatusNew, ago(24 * time.Hour), false},
		{"new just past 24h", StatusNew, ago(24*time.Hour + 4*time.Second), true},
		{"new at 24.0001h", StatusNew, ago(time.Duration(24.0001 * float64(time.Hour))), true},
		{"enrolled at 24.0001h", StatusEnrolled, ago(time.Duration(24.0001 * float64(time.Hour))), false},
		{"new fresh", StatusNew, ago(time.Hour), false},
		{"attempted contact at 47h", StatusAttemptedContact, ago(47 * time.Hour), false},
		{"attempted contact at 49h", StatusAttemptedContact, ago(49 * time.Hour), true},
		{"connected at 73h", StatusConnected, ago(73 * time.Hour), true},
		{"visit scheduled at 6 days", StatusVisitScheduled, ago(6 * 24 * time.Hour), false},
		{"visit scheduled past a week", StatusVisitScheduled, ago(8 * 24 * time.Hour), true},
		{"application submitted at 80h", StatusApplicationSubmitted, ago(80 * time.Hour), true},
		{"enrolled never stalls", StatusEnrolled, ago(365 * 24 * time.Hour), false},
		{"lost never stalls", StatusLost, ago(365 * 24 * time.Hour), false},
		{"unknown status never stalls", Status("archived"), ago(365 * 24 * time.Hour), false},
		{"future update", StatusNew, now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStalled(tt.status, tt.last, now); got != tt.want {
				t.Errorf("IsStalled() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestSLA(t *testing.T) {
	tests := []struct {
		status Status
		want   time.Duration
		wantOk bool
	}{
		{StatusNew, 24 * time.Hour, true},
		{StatusAttemptedContact, 48 * time.Hour, true},
		{StatusConnected, 72 * time.Hour, true},
		{StatusVisitScheduled, 168 * time.Hour, true},
		{StatusApplicationSubmitted, 72 * time.Hour, true},
		{StatusEnrolled, 0, false},
		{StatusLost, 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got, ok := SLA(tt.status)
			if got != tt.want || ok != tt.wantOk {
				t.Errorf("SLA() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOk)
			}
		})
	}
}
