package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"clubhouse/api/internal/auth"
	"clubhouse/api/internal/authpw"
	"clubhouse/api/internal/cache"
	"clubhouse/api/internal/config"
	"clubhouse/api/internal/export"
	"clubhouse/api/internal/media"
	"clubhouse/api/internal/rbac"
	"clubhouse/api/internal/revision"
	"clubhouse/api/internal/search"
	"clubhouse/api/internal/store"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	ExpiresAt time.Time
}

type dataStore interface {
	GetAccountByEmail(context.Context, string) (store.Account, error)
	UpsertAccount(context.Context, store.Account) error
	ListPages(context.Context) ([]store.PageSummary, error)
	GetPageBySlug(context.Context, string) (store.Page, error)
	GetPagesByIDs(context.Context, []string) (map[string]store.PageRef, error)
	UpsertPage(context.Context, store.Page) (store.Page, error)
	DeletePage(context.Context, string) error
	GetMedia(context.Context, string) (store.Media, error)
	GetMediaByIDs(context.Context, []string) (map[string]store.Media, error)
	InsertMedia(context.Context, store.Media) error
	ListMedia(context.Context, int, int) ([]store.Media, error)
	Ping(context.Context) error
}

type revisionStore interface {
	Commit(pageID string, snapshot revision.Snapshot, author, message string) (revision.Info, error)
	Head(pageID string) (revision.Snapshot, revision.Info, error)
	AtRevision(pageID, rev string) (revision.Snapshot, revision.Info, error)
	History(pageID string, limit int) ([]revision.Info, error)
	Tag(pageID, rev, name string) (revision.Tag, error)
	Tags(pageID string) ([]revision.Tag, error)
}

type searchIndex interface {
	Search(search.Query) search.Response
	IndexPage(search.PageRecord)
	DeletePage(id string)
	Healthy() bool
}

type objectStore interface {
	Put(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (media.Object, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (*url.URL, error)
	KeyFromURL(objectURL string) (string, bool)
}

type profileSource interface {
	Current() config.Profile
}

type pinger interface {
	Ping(context.Context) error
}

// Dependencies are the collaborators of Service. Search, Media and Cache are
// optional.
type Dependencies struct {
	Store     dataStore
	Revisions revisionStore
	Search    searchIndex
	Media     objectStore
	Cache     cache.Cache
	Profiles  profileSource
	Logger    *zap.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	revisions revisionStore
	search    searchIndex
	media     objectStore
	cache     cache.Cache
	profiles  profileSource
	accounts  *authpw.Service
	exporter  *export.Service
	sanitizer *bluemonday.Policy
	log       *zap.Logger
	setup     atomic.Pointer[renderSetup]
	now       func() time.Time
}

func New(cfg config.Config, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := deps.Cache
	if c == nil {
		c = cache.Nop{}
	}
	profiles := deps.Profiles
	if profiles == nil {
		profiles = staticProfile(config.DefaultProfile())
	}
	s := &Service{
		cfg:       cfg,
		store:     deps.Store,
		revisions: deps.Revisions,
		search:    deps.Search,
		media:     deps.Media,
		cache:     c,
		profiles:  profiles,
		accounts:  authpw.NewService(deps.Store),
		sanitizer: newSanitizer(),
		log:       logger,
		now:       time.Now,
	}
	s.exporter = export.NewService(s, s.RenderOptions, logger).WithSanitizer(s.sanitizer.Sanitize)
	return s
}

type staticProfile config.Profile

func (p staticProfile) Current() config.Profile { return config.Profile(p) }

// Login checks an account password and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	account, err := s.accounts.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		}
		return Session{}, err
	}

	claims := auth.NewClaims(account.ID, account.DisplayName, account.Role, s.cfg.TokenTTL, s.now())
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), claims)
	if err != nil {
		return Session{}, err
	}
	s.log.Info("login", zap.String("account", account.ID), zap.String("role", account.Role))
	return Session{
		Token:     token,
		UserID:    account.ID,
		UserName:  account.DisplayName,
		Role:      account.Role,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// SessionFromToken validates a bearer token. Tokens are self-contained; role
// changes apply on the next login.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      string(rbac.Normalize(claims.Role)),
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// PageView is a page with its sanitized HTML rendering.
type PageView struct {
	ID        string          `json:"id"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	HTML      string          `json:"html"`
	Content   json.RawMessage `json:"content,omitempty"`
	Revision  string          `json:"revision,omitempty"`
	UpdatedBy string          `json:"updatedBy"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type PageListItem struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Service) ListPages(ctx context.Context) ([]PageListItem, error) {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]PageListItem, 0, len(pages))
	for _, p := range pages {
		items = append(items, PageListItem{ID: p.ID, Slug: p.Slug, Title: p.Title, UpdatedBy: p.UpdatedBy, UpdatedAt: p.UpdatedAt})
	}
	return items, nil
}

func (s *Service) getPage(ctx context.Context, slug string) (store.Page, error) {
	page, err := s.store.GetPageBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Page{}, notFoundError("page")
		}
		return store.Page{}, err
	}
	return page, nil
}

// GetPage returns a stored page rendered to HTML. includeContent adds the stored
// editor state for editors.
func (s *Service) GetPage(ctx context.Context, slug string, includeContent bool) (PageView, error) {
	page, err := s.getPage(ctx, slug)
	if err != nil {
		return PageView{}, err
	}
	rendered, err := s.renderStored(ctx, page.Content, FormatHTML)
	if err != nil {
		return PageView{}, err
	}
	view := PageView{
		ID:        page.ID,
		Slug:      page.Slug,
		Title:     page.Title,
		HTML:      rendered,
		UpdatedBy: page.UpdatedBy,
		UpdatedAt: page.UpdatedAt,
	}
	if includeContent {
		view.Content = page.Content
	}
	return view, nil
}

// RenderPage renders a stored page in format.
func (s *Service) RenderPage(ctx context.Context, slug, format string) (string, error) {
	f, err := parseFormat(format)
	if err != nil {
		return "", err
	}
	page, err := s.getPage(ctx, slug)
	if err != nil {
		return "", err
	}
	return s.renderStored(ctx, page.Content, f)
}

type SavePageInput struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
	Message string          `json:"message"`
}

type SavePageResult struct {
	Page     PageView      `json:"page"`
	Revision revision.Info `json:"revision"`
	Changed  bool          `json:"changed"`
}

// SavePage validates a document, embeds the records its references point at,
// stores it and records a revision.
func (s *Service) SavePage(ctx context.Context, slug string, input SavePageInput, session Session) (SavePageResult, error) {
	slug = strings.TrimSpace(slug)
	if !store.ValidSlug(slug) {
		return SavePageResult{}, validationError("slug must be lowercase words separated by hyphens", map[string]any{"slug": slug})
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return SavePageResult{}, validationError("title is required", nil)
	}
	raw, err := decodeContent(input.Content)
	if err != nil {
		return SavePageResult{}, err
	}
	if _, ok := raw["root"].(map[string]any); !ok {
		return SavePageResult{}, validationError("content must carry a root node", nil)
	}
	if err := s.populate(ctx, raw); err != nil {
		return SavePageResult{}, err
	}
	content, err := json.Marshal(raw)
	if err != nil {
		return SavePageResult{}, fmt.Errorf("encode content: %w", err)
	}
	doc := decodeDocument(raw)

	id := newPageID()
	if existing, err := s.store.GetPageBySlug(ctx, slug); err == nil {
		id = existing.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		return SavePageResult{}, err
	}

	saved, err := s.store.UpsertPage(ctx, store.Page{
		ID:        id,
		Slug:      slug,
		Title:     title,
		Content:   content,
		BodyText:  plainText(doc),
		UpdatedBy: session.UserName,
	})
	if err != nil {
		return SavePageResult{}, err
	}

	message := strings.TrimSpace(input.Message)
	if message == "" {
		message = "Update " + slug
	}
	changed := true
	info, err := s.revisions.Commit(saved.ID, revision.Snapshot{Slug: saved.Slug, Title: saved.Title, Content: saved.Content}, session.UserName, message)
	if errors.Is(err, revision.ErrUnchanged) {
		changed = false
	} else if err != nil {
		return SavePageResult{}, fmt.Errorf("commit revision: %w", err)
	}

	if s.search != nil {
		s.search.IndexPage(search.PageRecord{
			ID:        saved.ID,
			Slug:      saved.Slug,
			Title:     saved.Title,
			Body:      saved.BodyText,
			UpdatedAt: saved.UpdatedAt,
		})
	}

	rendered, err := s.renderStored(ctx, saved.Content, FormatHTML)
	if err != nil {
		return SavePageResult{}, err
	}
	s.log.Info("page saved",
		zap.String("page", saved.ID),
		zap.String("slug", saved.Slug),
		zap.String("revision", info.Hash),
		zap.Bool("changed", changed),
	)
	return SavePageResult{
		Page: PageView{
			ID:        saved.ID,
			Slug:      saved.Slug,
			Title:     saved.Title,
			HTML:      rendered,
			Revision:  info.Hash,
			UpdatedBy: saved.UpdatedBy,
			UpdatedAt: saved.UpdatedAt,
		},
		Revision: info,
		Changed:  changed,
	}, nil
}

// DeletePage removes a page. Its revision history stays on disk.
func (s *Service) DeletePage(ctx context.Context, slug string) error {
	page, err := s.getPage(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.store.DeletePage(ctx, slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("page")
		}
		return err
	}
	if s.search != nil {
		s.search.DeletePage(page.ID)
	}
	s.log.Info("page deleted", zap.String("page", page.ID), zap.String("slug", slug))
	return nil
}

type HistoryResult struct {
	Slug      string          `json:"slug"`
	Revisions []revision.Info `json:"revisions"`
	Tags      []revision.Tag  `json:"tags"`
}

func (s *Service) History(ctx context.Context, slug string, limit int) (HistoryResult, error) {
	page, err := s.getPage(ctx, slug)
	if err != nil {
		return HistoryResult{}, err
	}
	items, err := s.revisions.History(page.ID, limit)
	if err != nil {
		return HistoryResult{}, err
	}
	tags, err := s.revisions.Tags(page.ID)
	if err != nil {
		return HistoryResult{}, err
	}
	return HistoryResult{Slug: page.Slug, Revisions: items, Tags: tags}, nil
}

// Revision renders the page as it was at rev (a hash or tag).
func (s *Service) Revision(ctx context.Context, slug, rev string) (PageView, error) {
	page, err := s.getPage(ctx, slug)
	if err != nil {
		return PageView{}, err
	}
	snapshot, info, err := s.revisions.AtRevision(page.ID, rev)
	if err != nil {
		return PageView{}, notFoundError("revision")
	}
	rendered, err := s.renderStored(ctx, snapshot.Content, FormatHTML)
	if err != nil {
		return PageView{}, err
	}
	return PageView{
		ID:        page.ID,
		Slug:      snapshot.Slug,
		Title:     snapshot.Title,
		HTML:      rendered,
		Content:   snapshot.Content,
		Revision:  info.Hash,
		UpdatedBy: info.Author,
		UpdatedAt: info.CreatedAt,
	}, nil
}

// Publish tags the current head revision of a page.
func (s *Service) Publish(ctx context.Context, slug string, session Session) (revision.Tag, error) {
	page, err := s.getPage(ctx, slug)
	if err != nil {
		return revision.Tag{}, err
	}
	_, head, err := s.revisions.Head(page.ID)
	if err != nil {
		if errors.Is(err, revision.ErrNoHistory) {
			return revision.Tag{}, domainError(http.StatusConflict, "NO_REVISIONS", "Page has no revisions to publish", nil)
		}
		return revision.Tag{}, err
	}
	tag, err := s.revisions.Tag(page.ID, head.Hash, publishTagName(s.now()))
	if err != nil {
		return revision.Tag{}, err
	}
	s.log.Info("page published",
		zap.String("page", page.ID),
		zap.String("tag", tag.Name),
		zap.String("by", session.UserName),
	)
	return tag, nil
}

func publishTagName(at time.Time) string {
	return "published-" + at.UTC().Format("20060102-150405")
}

// LoadPage implements export.Source.
func (s *Service) LoadPage(ctx context.Context, slug, rev string) (export.Page, error) {
	page, err := s.getPage(ctx, slug)
	if err != nil {
		return export.Page{}, err
	}
	if rev == "" {
		return export.Page{
			Slug:      page.Slug,
			Title:     page.Title,
			Content:   page.Content,
			UpdatedBy: page.UpdatedBy,
			UpdatedAt: page.UpdatedAt,
		}, nil
	}
	snapshot, info, err := s.revisions.AtRevision(page.ID, rev)
	if err != nil {
		return export.Page{}, notFoundError("revision")
	}
	return export.Page{
		Slug:      snapshot.Slug,
		Title:     snapshot.Title,
		Content:   snapshot.Content,
		Revision:  info.Hash,
		UpdatedBy: info.Author,
		UpdatedAt: info.CreatedAt,
	}, nil
}

func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return s.exporter.Export(ctx, req)
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// ReadinessChecks pings every configured backend.
func (s *Service) ReadinessChecks(ctx context.Context) map[string]error {
	checks := map[string]error{"database": s.store.Ping(ctx)}
	if p, ok := s.cache.(pinger); ok {
		checks["redis"] = p.Ping(ctx)
	}
	if s.search != nil && !s.search.Healthy() {
		// reported, not fatal: search falls back to postgres
		checks["meilisearch"] = errDegraded
	} else if s.search != nil {
		checks["meilisearch"] = nil
	}
	return checks
}

var errDegraded = errors.New("degraded: serving from postgres full-text search")
