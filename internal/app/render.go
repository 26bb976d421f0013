package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"clubhouse/api/internal/cache"
	"clubhouse/api/internal/config"
	"clubhouse/api/internal/export"
	"clubhouse/api/internal/highlight"
	"clubhouse/api/internal/richtext"
	"clubhouse/api/internal/util"
)

const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

func parseFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "plain":
		return FormatText, nil
	}
	return "", validationError("format must be html, markdown or text", map[string]any{"format": format})
}

// ContentType returns the response content type for a render format.
func ContentType(format string) string {
	switch format {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// renderSetup is the renderer configuration derived from one profile.
type renderSetup struct {
	fingerprint string
	options     richtext.Options
	highlighter *highlight.Highlighter
}

func (s *Service) currentSetup() *renderSetup {
	profile := s.profiles.Current()
	if setup := s.setup.Load(); setup != nil && setup.fingerprint == profile.Fingerprint {
		return setup
	}
	setup := buildSetup(profile, s.cfg.MediaBaseURL)
	s.setup.Store(setup)
	s.log.Debug("render setup rebuilt", zap.String("profile", profile.Fingerprint))
	return setup
}

func buildSetup(profile config.Profile, mediaBaseURL string) *renderSetup {
	opts := profile.RenderOptions(mediaBaseURL)
	setup := &renderSetup{fingerprint: profile.Fingerprint, options: opts}
	if profile.Highlight.Enabled {
		setup.highlighter = highlight.New(profile.Highlight.Style, opts.Styles[richtext.KindCode])
		setup.options.Components = map[string]richtext.Component{"code": setup.highlighter.Component()}
	}
	return setup
}

// RenderOptions returns the options of the active render profile.
func (s *Service) RenderOptions() richtext.Options {
	return s.currentSetup().options
}

// HighlightCSS returns the stylesheet matching highlighted code blocks. It is
// empty when highlighting is disabled.
func (s *Service) HighlightCSS() (string, error) {
	setup := s.currentSetup()
	if setup.highlighter == nil {
		return "", nil
	}
	return setup.highlighter.CSS()
}

// renderStored renders already populated content through the render cache.
// Keys cover the content bytes, the profile and the format, so entries never
// need invalidation and expire by TTL.
func (s *Service) renderStored(ctx context.Context, content json.RawMessage, format string) (string, error) {
	setup := s.currentSetup()
	key := cache.Key("page", format, setup.fingerprint, s.cfg.MediaBaseURL, string(content))
	if cached, err := s.cache.Get(ctx, key); err == nil {
		return string(cached), nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("render cache read failed", zap.Error(err))
	}

	doc, err := richtext.ParseDocument(content)
	if err != nil {
		return "", domainError(http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT", "Stored content is not a document", nil)
	}
	out, err := s.renderDocument(doc, setup.options, format)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, key, []byte(out), s.cfg.RenderCacheTTL); err != nil {
		s.log.Warn("render cache write failed", zap.Error(err))
	}
	return out, nil
}

// RenderDocument renders arbitrary document JSON without storing it. References
// are resolved against the store first. mediaBaseURL overrides the profile's
// base URL when set.
func (s *Service) RenderDocument(ctx context.Context, content json.RawMessage, format, mediaBaseURL string) (string, error) {
	f, err := parseFormat(format)
	if err != nil {
		return "", err
	}
	raw, err := decodeContent(content)
	if err != nil {
		return "", err
	}
	if err := s.populate(ctx, raw); err != nil {
		return "", err
	}
	opts := s.currentSetup().options
	if base := strings.TrimSpace(mediaBaseURL); base != "" {
		opts.MediaBaseURL = base
	}
	return s.renderDocument(decodeDocument(raw), opts, f)
}

func (s *Service) renderDocument(doc *richtext.Document, opts richtext.Options, format string) (string, error) {
	if format == FormatText {
		return plainText(doc), nil
	}
	out, err := richtext.RenderHTML(doc, opts)
	if err != nil {
		return "", err
	}
	out = s.sanitizer.Sanitize(out)
	if format == FormatMarkdown {
		return export.MarkdownFromHTML(out)
	}
	return out, nil
}

// decodeContent parses a request body into a generic JSON tree. Numbers stay
// float64 so the tree decodes the same way stored content does.
func decodeContent(content json.RawMessage) (map[string]any, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, validationError("content is required", nil)
	}
	var raw map[string]any
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, validationError("content must be a JSON object", map[string]any{"error": err.Error()})
	}
	return raw, nil
}

func decodeDocument(raw map[string]any) *richtext.Document {
	return richtext.DecodeDocument(raw)
}

func plainText(doc *richtext.Document) string {
	return richtext.PlainText(doc)
}

func newPageID() string {
	return util.NewID("pg")
}

var (
	targetPattern = regexp.MustCompile(`^_blank$`)
	relPattern    = regexp.MustCompile(`^[a-z]+( [a-z]+)*$`)
)

// newSanitizer allows the markup the renderer produces on top of the UGC
// baseline. Profile attributes outside this list are stripped from served HTML.
func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("dir").OnElements("div")
	p.AllowAttrs("id").OnElements("div")
	p.AllowAttrs("data-language").OnElements("pre")
	p.AllowAttrs("start").OnElements("ol")
	p.AllowAttrs("role", "aria-checked", "value").OnElements("li")
	p.AllowAttrs("target").Matching(targetPattern).OnElements("a")
	p.AllowAttrs("rel").Matching(relPattern).OnElements("a")
	p.AllowAttrs("loading").OnElements("img")
	p.RequireNoFollowOnLinks(false)
	return p
}
