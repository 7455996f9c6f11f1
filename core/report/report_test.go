package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
)

type fakeRepo struct {
	templates []Template
	export    Export
	requests  []ExportRequest
}

func (r *fakeRepo) QueryTemplates(context.Context) ([]Template, error) { return r.templates, nil }

func (r *fakeRepo) ExportReport(_ context.Context, req ExportRequest) (Export, error) {
	r.requests = append(r.requests, req)
	return r.export, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestService_Templates(t *testing.T) {
	validate, _ := core.NewValidator()
	svc := NewService(&fakeRepo{}, validate, nopLogger{})

	tmpls, err := svc.Templates(context.Background(), access.NewSet("manager", map[string]bool{"reports.view": true}))
	require.NoError(t, err)
	assert.NotNil(t, tmpls)

	_, err = svc.Templates(context.Background(), access.NewSet("counselor", map[string]bool{"leads.export": true}))
	assert.True(t, core.IsForbidden(err))
}

func TestService_Export(t *testing.T) {
	validate, _ := core.NewValidator()
	viewer := access.NewSet("manager", map[string]bool{"reports.view": true})

	tests := []struct {
		name     string
		req      ExportRequest
		export   Export
		wantErr  bool
		wantName string
		wantType string
	}{
		{
			name:     "template csv",
			req:      ExportRequest{ReportID: " leads_overview ", Format: "CSV"},
			export:   Export{Filename: "report_export.csv", ContentType: "text/csv", Data: []byte("a\n")},
			wantName: "report_export.csv",
			wantType: "text/csv",
		},
		{
			name:     "missing filename and type",
			req:      ExportRequest{ReportID: "source_analysis", Format: FormatPDF},
			wantName: "report_export.pdf",
			wantType: "application/pdf",
		},
		{
			name:     "path in filename",
			req:      ExportRequest{ReportID: "x", Format: FormatXLSX},
			export:   Export{Filename: "../../etc/out.xlsx"},
			wantName: "out.xlsx",
			wantType: FormatXLSX.ContentType(),
		},
		{
			name:     "unsaved config",
			req:      ExportRequest{Format: FormatCSV, ReportConfig: &Config{Fields: []string{"status"}}},
			wantName: "report_export.csv",
			wantType: "text/csv",
		},
		{name: "no report", req: ExportRequest{Format: FormatCSV}, wantErr: true},
		{name: "sheets", req: ExportRequest{ReportID: "x", Format: "sheets"}, wantErr: true},
		{name: "empty config", req: ExportRequest{Format: FormatCSV, ReportConfig: &Config{}}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{export: tc.export}
			svc := NewService(repo, validate, nopLogger{})
			exp, err := svc.Export(context.Background(), viewer, tc.req)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Empty(t, repo.requests)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, exp.Filename)
			assert.Equal(t, tc.wantType, exp.ContentType)
			require.Len(t, repo.requests, 1)
		})
	}
}

func TestWriteLeadsCSV(t *testing.T) {
	created := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	leads := []lead.Lead{
		{
			ID:         "1",
			ParentName: "Smith, John",
			Email:      null.StringFrom("john@example.com"),
			Status:     lead.StatusNew,
			CreatedAt:  created,
			Students:   []lead.Student{{Name: "Amy", GradeApplyingFor: null.StringFrom("Grade 3")}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteLeadsCSV(&buf, []string{"parent_name", "email", "phone", "status", "students", "created_at", "bogus"}, leads))
	assert.Equal(t,
		"parent_name,email,phone,status,students,created_at,bogus\n"+
			"\"Smith, John\",john@example.com,,new,Amy (Grade 3),2024-09-01T08:00:00Z,\n",
		buf.String(),
	)

	buf.Reset()
	require.NoError(t, WriteLeadsCSV(&buf, nil, nil))
	assert.Equal(t, "parent_name,email,phone,status,source,assigned_to,students,created_at,updated_at\n", buf.String())
}
