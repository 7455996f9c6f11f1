package notification

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

type (
	Repository interface {
		QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		MarkRead(ctx context.Context, id string) error
		MarkAllRead(ctx context.Context) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) Inbox(ctx context.Context, filter QueryFilter) (Inbox, error) {
	filter.Clean()
	list, err := svc.repo.QueryNotifications(ctx, filter)
	if err != nil {
		return Inbox{}, errors.Wrap(err, "querying notifications")
	}
	if list == nil {
		list = []Notification{}
	}
	return Inbox{Notifications: list, Unread: UnreadCount(list)}, nil
}

func (svc *Service) MarkRead(ctx context.Context, id string) error {
	id = core.CleanString(id)
	if id == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
	}
	return errors.Wrap(svc.repo.MarkRead(ctx, id), "marking notification read")
}

func (svc *Service) MarkAllRead(ctx context.Context) error {
	return errors.Wrap(svc.repo.MarkAllRead(ctx), "marking all notifications read")
}

func UnreadCount(list []Notification) int {
	var n int
	for _, notif := range list {
		if !notif.Read {
			n++
		}
	}
	return n
}
