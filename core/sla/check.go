// Package sla finds leads past their stage SLA and tells their owners.
package sla

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/user"
)

const TemplateName = "sla_overdue"

type (
	LeadQuerier interface {
		Query(ctx context.Context, filter lead.QueryFilter) ([]lead.Lead, error)
	}

	UserQuerier interface {
		QueryUsers(ctx context.Context, actor access.Set, filter user.QueryFilter) (user.UserList, error)
	}

	// Report is one owner's overdue leads. Owner is zero-valued but for ID when the
	// assignee is not a known user.
	Report struct {
		Owner user.User      `json:"owner"`
		Leads []lead.Overdue `json:"leads"`
	}

	// TemplateData feeds the sla_overdue email.
	TemplateData struct {
		OwnerName string
		Leads     []lead.Overdue
	}

	Checker struct {
		leads  LeadQuerier
		users  UserQuerier
		mailer core.EmailService
		logger core.Logger
		now    func() time.Time
	}
)

func NewChecker(leads LeadQuerier, users UserQuerier, mailer core.EmailService, logger core.Logger) *Checker {
	return &Checker{leads: leads, users: users, mailer: mailer, logger: logger, now: time.Now}
}

// Check returns the overdue leads per owner, most overdue owner first.
func (c *Checker) Check(ctx context.Context, actor access.Set) ([]Report, error) {
	leads, err := c.leads.Query(ctx, lead.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "loading leads")
	}
	byOwner := lead.OverdueByOwner(leads, c.now())
	if len(byOwner) == 0 {
		return []Report{}, nil
	}

	owners, err := c.owners(ctx, actor)
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(byOwner))
	for id, list := range byOwner {
		owner, ok := owners[id]
		if !ok {
			owner = user.User{ID: id}
		}
		reports = append(reports, Report{Owner: owner, Leads: list})
	}
	sort.Slice(reports, func(i, j int) bool {
		if len(reports[i].Leads) != len(reports[j].Leads) {
			return len(reports[i].Leads) > len(reports[j].Leads)
		}
		return reports[i].Owner.ID < reports[j].Owner.ID
	})
	return reports, nil
}

// Notify emails every report whose owner has an address and returns how many were sent.
func (c *Checker) Notify(ctx context.Context, reports []Report) (int, error) {
	msgs := make([]*core.EmailMessage, 0, len(reports))
	for _, r := range reports {
		if r.Owner.Email == "" {
			c.logger.Warn("sla: owner without email", map[string]interface{}{"owner": r.Owner.ID, "leads": len(r.Leads)})
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: r.Owner.FullName, Address: r.Owner.Email}},
			Subject:      "Leads past their SLA",
			TemplateName: TemplateName,
			TemplateData: TemplateData{OwnerName: r.Owner.FullName, Leads: r.Leads},
		})
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if err := c.mailer.SendMessages(ctx, msgs...); err != nil {
		return 0, errors.Wrap(err, "sending sla emails")
	}
	c.logger.Info("sla: owners notified", map[string]interface{}{"count": len(msgs)})
	return len(msgs), nil
}

// owners pages through the admin user list. Without users.view, owners stay anonymous.
func (c *Checker) owners(ctx context.Context, actor access.Set) (map[string]user.User, error) {
	owners := make(map[string]user.User)
	filter := user.QueryFilter{Status: user.StatusActive, Limit: 100}
	for {
		list, err := c.users.QueryUsers(ctx, actor, filter)
		if core.IsForbidden(err) {
			c.logger.Warn("sla: cannot list users, owners will not be notified", err)
			return owners, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "loading users")
		}
		for _, u := range list.Users {
			owners[u.ID] = u
		}
		filter.Offset += len(list.Users)
		if len(list.Users) == 0 || filter.Offset >= list.Total {
			return owners, nil
		}
	}
}
