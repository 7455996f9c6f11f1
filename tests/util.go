package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
)

// Logger records every entry; it satisfies core.Logger.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Toasts records notifications; it satisfies core.Notifier.
type Toasts struct {
	mu   sync.Mutex
	list []core.Toast
}

func (ts *Toasts) Notify(t core.Toast) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.list = append(ts.list, t)
}

func (ts *Toasts) All() []core.Toast {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]core.Toast(nil), ts.list...)
}

func (ts *Toasts) Titles() []string {
	all := ts.All()
	titles := make([]string, len(all))
	for i, t := range all {
		titles[i] = t.Title
	}
	return titles
}

// StatusUpdate is a status change the repository was asked to make.
type StatusUpdate struct {
	ID     string
	Status lead.Status
}

// LeadRepository is an in-memory lead.Repository. UpdateErr, when set, fails every status update
// without touching the stored leads.
type LeadRepository struct {
	mu            sync.Mutex
	leads         map[string]lead.Lead
	Queries       []lead.QueryFilter
	Updates       int
	StatusUpdates []StatusUpdate
	UpdateErr     error
	QueryErr      error
	Now           func() time.Time
}

var _ lead.Repository = (*LeadRepository)(nil)

func NewLeadRepository(leads ...lead.Lead) *LeadRepository {
	repo := &LeadRepository{leads: make(map[string]lead.Lead), Now: time.Now}
	for _, l := range leads {
		repo.leads[l.ID] = l.Clone()
	}
	return repo
}

func (repo *LeadRepository) QueryLeads(_ context.Context, filter lead.QueryFilter) ([]lead.Lead, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.Queries = append(repo.Queries, filter)
	if repo.QueryErr != nil {
		return nil, repo.QueryErr
	}
	leads := make([]lead.Lead, 0, len(repo.leads))
	for _, l := range repo.leads {
		if l.Matches(filter) {
			leads = append(leads, l.Clone())
		}
	}
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].UpdatedAt.Equal(leads[j].UpdatedAt) {
			return leads[i].ID < leads[j].ID
		}
		return leads[i].UpdatedAt.After(leads[j].UpdatedAt)
	})
	return leads, nil
}

func (repo *LeadRepository) QueryCount() int {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return len(repo.Queries)
}

func (repo *LeadRepository) GetLead(_ context.Context, id string) (lead.Lead, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	l, ok := repo.leads[id]
	if !ok {
		return lead.Lead{}, lead.ErrNotFound
	}
	return l.Clone(), nil
}

func (repo *LeadRepository) CreateLead(_ context.Context, nl lead.NewLead) (lead.Lead, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	now := repo.Now().UTC()
	l := lead.Lead{
		ID:         uuid.NewString(),
		ParentName: nl.ParentName,
		Email:      null.NewString(nl.Email, nl.Email != ""),
		Phone:      null.NewString(nl.Phone, nl.Phone != ""),
		Status:     nl.Status,
		Source:     nl.Source,
		AssignedTo: null.NewString(nl.AssignedTo, nl.AssignedTo != ""),
		CreatedAt:  now,
		UpdatedAt:  now,
		Students:   []lead.Student{},
	}
	for _, ns := range nl.Students {
		l.Students = append(l.Students, lead.Student{
			ID:               uuid.NewString(),
			Name:             ns.Name,
			GradeApplyingFor: null.NewString(ns.GradeApplyingFor, ns.GradeApplyingFor != ""),
			DOB:              null.NewString(ns.DOB, ns.DOB != ""),
		})
	}
	repo.leads[l.ID] = l
	return l.Clone(), nil
}

func (repo *LeadRepository) UpdateLeadStatus(_ context.Context, id string, status lead.Status) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.Updates++
	repo.StatusUpdates = append(repo.StatusUpdates, StatusUpdate{ID: id, Status: status})
	if repo.UpdateErr != nil {
		return repo.UpdateErr
	}
	l, ok := repo.leads[id]
	if !ok {
		return lead.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = repo.Now().UTC()
	repo.leads[id] = l
	return nil
}

func (repo *LeadRepository) AssignLead(_ context.Context, id, assignee string) (lead.Lead, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	l, ok := repo.leads[id]
	if !ok {
		return lead.Lead{}, lead.ErrNotFound
	}
	l.AssignedTo = null.StringFrom(assignee)
	l.UpdatedAt = repo.Now().UTC()
	repo.leads[id] = l
	return l.Clone(), nil
}

// UpdateCount is the number of status updates attempted.
func (repo *LeadRepository) UpdateCount() int {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return repo.Updates
}

// NewLead builds a lead last updated hoursAgo before now.
func NewLead(t *testing.T, id, parent string, status lead.Status, now time.Time, hoursAgo float64) lead.Lead {
	t.Helper()
	if !status.Valid() {
		t.Fatalf("NewLead(): %v", fmt.Errorf("invalid status %q", status))
	}
	updated := now.Add(-time.Duration(hoursAgo * float64(time.Hour)))
	return lead.Lead{
		ID:         id,
		ParentName: parent,
		Email:      null.StringFrom(id + "@example.com"),
		Status:     status,
		Source:     lead.SourceWebsite,
		CreatedAt:  updated,
		UpdatedAt:  updated,
		Students:   []lead.Student{},
	}
}
