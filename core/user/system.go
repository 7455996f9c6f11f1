package user

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
)

var ErrIntegrationNotFound = errors.New("integration not found")

// Integration statuses
const (
	IntegrationConnected    = "connected"
	IntegrationDisconnected = "disconnected"
)

// AuditLog is one recorded change made through the admin API.
type AuditLog struct {
	ID         string          `json:"id"`
	UserID     null.String     `json:"user_id"`
	UserName   string          `json:"user_name,omitempty"`
	UserEmail  null.String     `json:"user_email"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID null.String     `json:"resource_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	BeforeData json.RawMessage `json:"before_data,omitempty"`
	AfterData  json.RawMessage `json:"after_data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Actor is who made the change; entries without a user were made by the system.
func (l AuditLog) Actor() string {
	if l.UserName != "" {
		return l.UserName
	}
	if l.UserEmail.Valid && l.UserEmail.String != "" {
		return l.UserEmail.String
	}
	return "System"
}

type auditUserData struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

func decodeAuditData(raw json.RawMessage) (auditUserData, bool) {
	var d auditUserData
	if len(raw) == 0 || json.Unmarshal(raw, &d) != nil {
		return auditUserData{}, false
	}
	return d, true
}

// Summary is a one-line description of the entry.
func (l AuditLog) Summary() string {
	resource := l.Resource
	if resource != "" {
		resource = strings.ToUpper(resource[:1]) + resource[1:]
	}
	if l.Resource != "user" {
		if l.Action == "" {
			return resource
		}
		return resource + " " + l.Action
	}

	details, _ := decodeAuditData(l.Details)
	before, hasBefore := decodeAuditData(l.BeforeData)
	after, hasAfter := decodeAuditData(l.AfterData)
	target := "unknown user"
	for _, email := range []string{details.Email, after.Email, before.Email} {
		if email != "" {
			target = email
			break
		}
	}

	switch l.Action {
	case "updated":
		var changes []string
		if hasBefore && hasAfter {
			if before.Role != after.Role {
				changes = append(changes, "role: "+after.Role)
			}
			if before.Status != after.Status {
				changes = append(changes, "status: "+after.Status)
			}
		}
		if len(changes) == 0 {
			return "Updated user " + target
		}
		return "Updated user " + target + " (" + strings.Join(changes, ", ") + ")"
	case "deleted":
		return "Deleted user " + target
	default:
		return "User " + l.Action + ": " + target
	}
}

type AuditLogList struct {
	Logs  []AuditLog `json:"logs"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// AuditLogFilter selects audit entries, newest first. Dates are YYYY-MM-DD.
type AuditLogFilter struct {
	DateFrom string `json:"date_from" query:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `json:"date_to" query:"date_to" validate:"omitempty,datetime=2006-01-02"`
	UserID   string `json:"user_id" query:"user_id"`
	Action   string `json:"action" query:"action"`
	Resource string `json:"resource" query:"resource"`
	Search   string `json:"search" query:"search"`
	Limit    int    `json:"limit" query:"limit"`
	Offset   int    `json:"offset" query:"offset"`
}

func (f *AuditLogFilter) Clean() {
	f.DateFrom = core.CleanString(f.DateFrom)
	f.DateTo = core.CleanString(f.DateTo)
	f.UserID = core.CleanString(f.UserID)
	f.Action = core.CleanString(f.Action, true /* lower */)
	f.Resource = core.CleanString(f.Resource, true /* lower */)
	f.Search = core.CleanString(f.Search)
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Integration is a connected third-party service (SMTP, Google Workspace, webhooks).
type Integration struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Name         string      `json:"name"`
	Status       string      `json:"status"`
	LastSync     null.Time   `json:"last_sync"`
	ErrorMessage null.String `json:"error_message"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (i Integration) IsConnected() bool { return i.Status == IntegrationConnected }

// NewIntegration connects an integration of Type with its settings.
type NewIntegration struct {
	Type   string            `json:"type" validate:"required,max=50"`
	Name   string            `json:"name" validate:"required,max=100"`
	Config map[string]string `json:"config"`
}

func (ni *NewIntegration) Validate(validate *validator.Validate) error {
	ni.Type = core.CleanString(ni.Type, true /* lower */)
	ni.Name = core.CleanString(ni.Name)
	if ni.Name == "" {
		ni.Name = ni.Type
	}
	if ni.Config == nil {
		ni.Config = map[string]string{}
	}
	return validate.Struct(ni)
}

// IntegrationLog is one outgoing webhook delivery.
type IntegrationLog struct {
	ID             string      `json:"id"`
	EventName      string      `json:"event_name"`
	Status         string      `json:"status"`
	ResponseStatus null.Int    `json:"response_status"`
	ResponseBody   null.String `json:"response_body"`
	CreatedAt      time.Time   `json:"created_at"`
}

type IntegrationLogList struct {
	Logs  []IntegrationLog `json:"logs"`
	Count int              `json:"count"`
}

// SystemHealth is the API server's own report.
type SystemHealth struct {
	ServerStatus        string  `json:"server_status"`
	DatabaseStatus      string  `json:"database_status"`
	DatabaseConnections int     `json:"database_connections"`
	JobsQueueSize       int     `json:"jobs_queue_size"`
	CPUUsage            float64 `json:"cpu_usage"`
	MemoryUsage         float64 `json:"memory_usage"`
	DiskUsage           float64 `json:"disk_usage"`
}

func (h SystemHealth) Healthy() bool {
	return h.ServerStatus == "healthy" && h.DatabaseStatus == "healthy"
}

func (svc *Service) AuditLogs(ctx context.Context, actor access.Set, filter AuditLogFilter) (AuditLogList, error) {
	if err := actor.RequireAdmin(); err != nil {
		return AuditLogList{}, err
	}
	filter.Clean()
	if err := svc.validate.Struct(filter); err != nil {
		return AuditLogList{}, err
	}
	list, err := svc.repo.QueryAuditLogs(ctx, filter)
	if err != nil {
		return AuditLogList{}, errors.Wrap(err, "querying audit logs")
	}
	if list.Logs == nil {
		list.Logs = []AuditLog{}
	}
	return list, nil
}

func (svc *Service) Health(ctx context.Context, actor access.Set) (SystemHealth, error) {
	if err := actor.RequireAdmin(); err != nil {
		return SystemHealth{}, err
	}
	h, err := svc.repo.SystemHealth(ctx)
	return h, errors.Wrap(err, "getting system health")
}

func (svc *Service) Integrations(ctx context.Context, actor access.Set) ([]Integration, error) {
	if err := actor.Require(access.SystemIntegrations); err != nil {
		return nil, err
	}
	list, err := svc.repo.QueryIntegrations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying integrations")
	}
	if list == nil {
		list = []Integration{}
	}
	return list, nil
}

func (svc *Service) ConnectIntegration(ctx context.Context, actor access.Set, ni NewIntegration) error {
	if err := actor.Require(access.SystemIntegrations); err != nil {
		return err
	}
	if err := ni.Validate(svc.validate); err != nil {
		return err
	}
	if err := svc.repo.ConnectIntegration(ctx, ni); err != nil {
		return errors.Wrap(err, "connecting integration")
	}
	svc.logger.Info("integration connected", map[string]interface{}{"type": ni.Type})
	return nil
}

func (svc *Service) DisconnectIntegration(ctx context.Context, actor access.Set, typ string) error {
	if err := actor.Require(access.SystemIntegrations); err != nil {
		return err
	}
	typ = core.CleanString(typ, true /* lower */)
	if typ == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "type", Error: "this field is required"})
	}
	return errors.Wrap(svc.repo.DisconnectIntegration(ctx, typ), "disconnecting integration")
}

// IntegrationLogs returns the latest webhook deliveries; limit defaults to 10.
func (svc *Service) IntegrationLogs(ctx context.Context, actor access.Set, limit int) (IntegrationLogList, error) {
	if err := actor.Require(access.SystemIntegrations); err != nil {
		return IntegrationLogList{}, err
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	list, err := svc.repo.QueryIntegrationLogs(ctx, limit)
	if err != nil {
		return IntegrationLogList{}, errors.Wrap(err, "querying integration logs")
	}
	if list.Logs == nil {
		list.Logs = []IntegrationLog{}
	}
	return list, nil
}
