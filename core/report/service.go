package report

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
)

var (
	ErrNotFound      = errors.New("report not found")
	ErrUnknownFormat = errors.New("unknown export format")
)

type (
	Repository interface {
		QueryTemplates(ctx context.Context) ([]Template, error)
		ExportReport(ctx context.Context, req ExportRequest) (Export, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(repo Repository, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, validate: validate, logger: logger}
}

func (svc *Service) Templates(ctx context.Context, actor access.Set) ([]Template, error) {
	if err := actor.Require(access.ReportsView); err != nil {
		return nil, err
	}
	tmpls, err := svc.repo.QueryTemplates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying report templates")
	}
	if tmpls == nil {
		tmpls = []Template{}
	}
	return tmpls, nil
}

func (svc *Service) Export(ctx context.Context, actor access.Set, req ExportRequest) (Export, error) {
	if err := actor.Require(access.ReportsView); err != nil {
		return Export{}, err
	}
	req.ReportID = core.CleanString(req.ReportID)
	req.Format = Format(core.CleanString(string(req.Format), true /* lower */))
	if err := svc.validate.Struct(req); err != nil {
		return Export{}, err
	}
	if !req.Format.Valid() {
		return Export{}, core.NewValidationError(ErrUnknownFormat, core.FieldError{Field: "format", Error: "must be one of csv, xlsx, pdf"})
	}

	exp, err := svc.repo.ExportReport(ctx, req)
	if err != nil {
		return Export{}, errors.Wrap(err, "exporting report")
	}
	exp.Filename = exp.SafeFilename(req.Format)
	if exp.ContentType == "" {
		exp.ContentType = req.Format.ContentType()
	}
	svc.logger.Info("report exported", map[string]interface{}{
		"report_id": req.ReportID,
		"format":    req.Format,
		"bytes":     len(exp.Data),
	})
	return exp, nil
}
