package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
)

type fakeRepo struct {
	list    []Notification
	filters []QueryFilter
	marked  []string
	all     int
	err     error
}

func (r *fakeRepo) QueryNotifications(_ context.Context, filter QueryFilter) ([]Notification, error) {
	r.filters = append(r.filters, filter)
	return r.list, r.err
}

func (r *fakeRepo) MarkRead(_ context.Context, id string) error {
	r.marked = append(r.marked, id)
	return r.err
}

func (r *fakeRepo) MarkAllRead(context.Context) error {
	r.all++
	return r.err
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestNotification_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		read bool
	}{
		{"read", `{"id":"1","read":true}`, true},
		{"is_read", `{"id":"1","is_read":true}`, true},
		{"unread", `{"id":"1","read":false,"is_read":false}`, false},
		{"missing", `{"id":"1"}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var n Notification
			require.NoError(t, json.Unmarshal([]byte(tc.body), &n))
			assert.Equal(t, "1", n.ID)
			assert.Equal(t, tc.read, n.Read)
		})
	}
}

func TestQueryFilter_Clean(t *testing.T) {
	tests := []struct{ in, want int }{{0, DefaultLimit}, {-3, DefaultLimit}, {20, 20}, {500, MaxLimit}}
	for _, tc := range tests {
		qf := QueryFilter{Limit: tc.in}
		qf.Clean()
		assert.Equal(t, tc.want, qf.Limit)
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{list: []Notification{{ID: "1"}, {ID: "2", Read: true}, {ID: "3"}}}
	svc := NewService(repo, nopLogger{})

	inbox, err := svc.Inbox(ctx, QueryFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, inbox.Unread)
	assert.Len(t, inbox.Notifications, 3)
	assert.Equal(t, []QueryFilter{{Limit: DefaultLimit, UnreadOnly: true}}, repo.filters)

	require.NoError(t, svc.MarkRead(ctx, " 3 "))
	assert.Equal(t, []string{"3"}, repo.marked)
	var ve *core.ValidationError
	assert.True(t, errors.As(svc.MarkRead(ctx, "  "), &ve))

	require.NoError(t, svc.MarkAllRead(ctx))
	assert.Equal(t, 1, repo.all)

	repo.err = core.ErrSessionExpired
	_, err = svc.Inbox(ctx, QueryFilter{})
	assert.True(t, core.IsSessionExpired(err))
}
