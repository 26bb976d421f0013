// Package export turns stored pages into downloadable PDF, DOCX, Markdown and HTML files.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts the format names and their common file extensions.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "pdf":
		return FormatPDF, true
	case "docx":
		return FormatDOCX, true
	case "markdown", "md":
		return FormatMarkdown, true
	case "html", "htm":
		return FormatHTML, true
	}
	return "", false
}

// Request contains parameters for an export operation
type Request struct {
	Slug     string
	Format   Format
	Revision string // empty for the current page, otherwise a revision hash or tag
}

// Page is the page content an export is built from.
type Page struct {
	Slug      string
	Title     string
	Content   json.RawMessage
	Revision  string
	UpdatedBy string
	UpdatedAt time.Time
}

// Source loads pages for export.
type Source interface {
	LoadPage(ctx context.Context, slug, revision string) (Page, error)
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates page content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrUnsupportedFormat is returned for formats other than the Format constants.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
