package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"clubhouse/api/internal/richtext"
)

const sampleContent = `{"root":{"type":"root","direction":"ltr","children":[
	{"type":"heading","tag":"h2","children":[{"type":"text","text":"Hours","format":0}]},
	{"type":"paragraph","children":[{"type":"text","text":"Open","format":1},{"type":"text","text":" daily","format":0}]}
]}}`

type fakeSource struct {
	pages       map[string]Page
	gotRevision string
}

func (f *fakeSource) LoadPage(_ context.Context, slug, revision string) (Page, error) {
	f.gotRevision = revision
	page, ok := f.pages[slug]
	if !ok {
		return Page{}, errors.New("page not found")
	}
	page.Revision = revision
	return page, nil
}

func newTestService() (*Service, *fakeSource) {
	src := &fakeSource{pages: map[string]Page{
		"opening-hours": {
			Slug:      "opening-hours",
			Title:     "Opening Hours",
			Content:   []byte(sampleContent),
			UpdatedBy: "Avery",
			UpdatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		"broken": {Slug: "broken", Title: "Broken", Content: []byte(`[1,2`)},
	}}
	svc := NewService(src, func() richtext.Options {
		return richtext.Options{Container: richtext.Attrs{"class": "page-content"}}
	}, nil)
	return svc, src
}

func TestExportHTML(t *testing.T) {
	svc, _ := newTestService()
	result, err := svc.Export(context.Background(), Request{Slug: "opening-hours", Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := string(result.Data)
	for _, want := range []string{
		"<title>Opening Hours</title>",
		`<div class="page-content" dir="ltr"><h2>Hours</h2><p><strong>Open</strong> daily</p></div>`,
		"Avery",
		"Mar 1, 2026",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML export missing %q", want)
		}
	}
	if strings.Contains(out, "&lt;h2&gt;") {
		t.Error("page content was escaped")
	}
	if result.Filename != "opening-hours.html" {
		t.Errorf("Filename = %q", result.Filename)
	}
}

func TestExportMarkdown(t *testing.T) {
	svc, src := newTestService()
	result, err := svc.Export(context.Background(), Request{Slug: "opening-hours", Format: FormatMarkdown, Revision: "abc1234"})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := string(result.Data)
	if !strings.HasPrefix(out, "# Opening Hours\n\n") {
		t.Errorf("markdown should start with the title, got %q", out)
	}
	if !strings.Contains(out, "## Hours") || !strings.Contains(out, "**Open** daily") {
		t.Errorf("markdown body = %q", out)
	}
	if src.gotRevision != "abc1234" {
		t.Errorf("revision passed to source = %q", src.gotRevision)
	}
	if result.Filename != "opening-hours@abc1234.md" {
		t.Errorf("Filename = %q", result.Filename)
	}
	if result.MimeType != "text/markdown; charset=utf-8" {
		t.Errorf("MimeType = %q", result.MimeType)
	}
}

func TestExportPDFUsesRenderedTemplate(t *testing.T) {
	svc, _ := newTestService()
	var gotHTML string
	svc.pdf = func(_ context.Context, html, title string) (*Result, error) {
		gotHTML = html
		return &Result{Data: []byte("%PDF"), Filename: title + ".pdf", MimeType: "application/pdf"}, nil
	}
	result, err := svc.Export(context.Background(), Request{Slug: "opening-hours", Format: FormatPDF})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(gotHTML, "<h2>Hours</h2>") {
		t.Errorf("pdf input missing content: %q", gotHTML)
	}
	if result.Filename != "opening-hours.pdf" {
		t.Errorf("Filename = %q", result.Filename)
	}
}

func TestExportDependencyMissing(t *testing.T) {
	svc, _ := newTestService()
	svc.docx = func(context.Context, string, string) (*Result, error) {
		return nil, ErrDOCXDependencyMissing
	}
	_, err := svc.Export(context.Background(), Request{Slug: "opening-hours", Format: FormatDOCX})
	if !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Fatalf("Export() error = %v, want ErrDOCXDependencyMissing", err)
	}
}

func TestExportSanitizesContent(t *testing.T) {
	svc, src := newTestService()
	src.pages["links"] = Page{
		Slug:  "links",
		Title: "Links",
		Content: []byte(`{"root":{"type":"root","children":[{"type":"paragraph","children":[
			{"type":"link","fields":{"linkType":"custom","url":"javascript:alert(1)"},"children":[{"type":"text","text":"bad"}]},
			{"type":"link","fields":{"linkType":"custom","url":"https://club.test/a"},"children":[{"type":"text","text":"good"}]}
		]}]}}`),
	}
	svc.WithSanitizer(bluemonday.UGCPolicy().Sanitize)

	for _, format := range []Format{FormatMarkdown, FormatHTML} {
		result, err := svc.Export(context.Background(), Request{Slug: "links", Format: format})
		if err != nil {
			t.Fatalf("Export(%s) error = %v", format, err)
		}
		out := string(result.Data)
		if strings.Contains(out, "javascript:") {
			t.Errorf("Export(%s) kept an unsafe url: %q", format, out)
		}
		if !strings.Contains(out, "https://club.test/a") {
			t.Errorf("Export(%s) lost the safe link: %q", format, out)
		}
	}
}

func TestMarkdownFromHTML(t *testing.T) {
	md, err := MarkdownFromHTML(`<div><h2>Hours</h2><p><a href="/a">open</a></p></div>`)
	if err != nil {
		t.Fatalf("MarkdownFromHTML() error = %v", err)
	}
	if md != "## Hours\n\n[open](/a)" {
		t.Errorf("MarkdownFromHTML() = %q", md)
	}
	if md, err := MarkdownFromHTML("  "); err != nil || md != "" {
		t.Errorf("MarkdownFromHTML(blank) = %q, %v", md, err)
	}
}

func TestExportErrors(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Export(context.Background(), Request{Slug: "opening-hours", Format: "odt"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unsupported format error = %v", err)
	}
	if _, err := svc.Export(context.Background(), Request{Slug: "missing", Format: FormatHTML}); err == nil {
		t.Error("expected error for missing page")
	}
	if _, err := svc.Export(context.Background(), Request{Slug: "broken", Format: FormatHTML}); !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("malformed content error = %v, want ErrContentUnavailable", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"pdf": FormatPDF, "md": FormatMarkdown, "markdown": FormatMarkdown, "docx": FormatDOCX, "htm": FormatHTML}
	for in, want := range tests {
		got, ok := ParseFormat(in)
		if !ok || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseFormat("odt"); ok {
		t.Error("ParseFormat(odt) should fail")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"café", "caf%C3%A9"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderPageHTMLOmitsEmptyMeta(t *testing.T) {
	html, err := RenderPageHTML(TemplateData{Title: "Bare", Slug: "bare"})
	if err != nil {
		t.Fatalf("RenderPageHTML() error = %v", err)
	}
	if strings.Contains(html, "revision") {
		t.Error("revision label should be omitted without a revision")
	}
	if !strings.Contains(html, `class="page-bare"`) {
		t.Error("article class missing")
	}
}
