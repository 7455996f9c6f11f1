package report

import (
	"path"
	"strings"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var Formats = []Format{FormatCSV, FormatXLSX, FormatPDF}

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPDF:  "application/pdf",
}

func (f Format) Valid() bool {
	_, ok := contentTypes[f]
	return ok
}

func (f Format) ContentType() string { return contentTypes[f] }

// Filename is the name the API gives exports when it sends none.
func (f Format) Filename() string { return "report_export." + string(f) }

type Template struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Fields      []string          `json:"fields"`
	Filters     map[string]string `json:"filters"`
	IsSystem    bool              `json:"is_system"`
}

// Config is an unsaved report definition, exported as-is.
type Config struct {
	Name    string            `json:"name,omitempty"`
	Fields  []string          `json:"fields" validate:"required,min=1,dive,required"`
	Filters map[string]string `json:"filters,omitempty"`
}

type ExportRequest struct {
	ReportID     string  `json:"report_id,omitempty" validate:"required_without=ReportConfig"`
	Format       Format  `json:"format" validate:"required"`
	ReportConfig *Config `json:"report_config,omitempty"`
}

// Export is a downloaded report file, or a link to one.
type Export struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	DownloadURL string `json:"download_url,omitempty"`
}

// SafeFilename strips any directory part the server may have sent.
func (e Export) SafeFilename(fallback Format) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(e.Filename), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return fallback.Filename()
	}
	return name
}
