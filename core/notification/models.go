package notification

import (
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Notification struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Link      null.String `json:"link"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"created_at"`
}

// UnmarshalJSON accepts both "read" and the older "is_read".
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	aux := struct {
		*plain
		IsRead *bool `json:"is_read"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.IsRead != nil {
		n.Read = n.Read || *aux.IsRead
	}
	return nil
}

type QueryFilter struct {
	Limit      int  `query:"limit"`
	UnreadOnly bool `query:"unread_only"`
}

func (qf *QueryFilter) Clean() {
	if qf.Limit <= 0 {
		qf.Limit = DefaultLimit
	}
	if qf.Limit > MaxLimit {
		qf.Limit = MaxLimit
	}
}

// Inbox is a page of notifications and how many of them are unread.
type Inbox struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
}
