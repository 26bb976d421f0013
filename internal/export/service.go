package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"clubhouse/api/internal/richtext"
)

// Service provides page export functionality
type Service struct {
	source  Source
	options func() richtext.Options
	log     *zap.Logger

	sanitize func(string) string

	pdf  func(ctx context.Context, html, title string) (*Result, error)
	docx func(ctx context.Context, html, title string) (*Result, error)
}

// NewService creates an export service. options is called per export so that
// profile reloads apply without restarting.
func NewService(source Source, options func() richtext.Options, logger *zap.Logger) *Service {
	if options == nil {
		options = func() richtext.Options { return richtext.Options{} }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:  source,
		options: options,
		log:     logger.Named("export"),
		pdf:     exportPDF,
		docx:    exportDOCX,
	}
}

// WithSanitizer filters rendered page content before it is placed in any
// export, markdown included.
func (s *Service) WithSanitizer(sanitize func(string) string) *Service {
	s.sanitize = sanitize
	return s
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	switch req.Format {
	case FormatPDF, FormatDOCX, FormatMarkdown, FormatHTML:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}

	page, err := s.source.LoadPage(ctx, req.Slug, req.Revision)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}

	doc, err := richtext.ParseDocument(page.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	content, err := richtext.RenderHTML(doc, s.options())
	if err != nil {
		return nil, fmt.Errorf("render content: %w", err)
	}
	if s.sanitize != nil {
		content = s.sanitize(content)
	}

	if req.Format == FormatMarkdown {
		return markdownResult(page, content)
	}

	rendered, err := RenderPageHTML(TemplateData{
		Title:       page.Title,
		Slug:        page.Slug,
		ContentHTML: template.HTML(content),
		Author:      page.UpdatedBy,
		Revision:    page.Revision,
		UpdatedAt:   page.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var result *Result
	switch req.Format {
	case FormatPDF:
		result, err = s.pdf(ctx, rendered, page.Title)
	case FormatDOCX:
		result, err = s.docx(ctx, rendered, page.Title)
	default:
		result = &Result{
			Data:     []byte(rendered),
			Filename: exportFilename(page, ".html"),
			MimeType: "text/html; charset=utf-8",
		}
	}
	if err != nil {
		if errors.Is(err, ErrPDFDependencyMissing) || errors.Is(err, ErrDOCXDependencyMissing) {
			s.log.Warn("export dependency missing", zap.String("format", string(req.Format)), zap.Error(err))
		}
		return nil, err
	}
	if req.Format == FormatPDF || req.Format == FormatDOCX {
		result.Filename = exportFilename(page, "."+string(req.Format))
	}
	return result, nil
}

func markdownResult(page Page, content string) (*Result, error) {
	var out strings.Builder
	if page.Title != "" {
		out.WriteString("# ")
		out.WriteString(page.Title)
		out.WriteString("\n\n")
	}
	md, err := MarkdownFromHTML(content)
	if err != nil {
		return nil, err
	}
	if md != "" {
		out.WriteString(md)
		out.WriteString("\n")
	}
	return &Result{
		Data:     []byte(out.String()),
		Filename: exportFilename(page, ".md"),
		MimeType: "text/markdown; charset=utf-8",
	}, nil
}

func exportFilename(page Page, ext string) string {
	name := page.Slug
	if name == "" {
		name = sanitizeFilename(page.Title)
	}
	if page.Revision != "" {
		name += "@" + sanitizeFilename(page.Revision)
	}
	return name + ext
}

// MarkdownFromHTML converts rendered page HTML to markdown. Callers sanitize
// first; links and images carry over as they appear in src.
func MarkdownFromHTML(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parse rendered html: %w", err)
	}
	md, err := htmltomarkdown.ConvertNode(doc)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return string(bytes.TrimSpace(md)), nil
}
