package search

import (
	"encoding/json"
	"errors"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSearcher struct {
	results []Result
	total   int
	err     error
	got     Query
}

func (f *fakeSearcher) Search(q Query) ([]Result, int, error) {
	f.got = q
	return f.results, f.total, f.err
}

func (f *fakeSearcher) Healthy() bool { return true }

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	fake := &fakeSearcher{results: []Result{{ID: "pg_1", Slug: "about"}}, total: 1}
	svc := &Service{fallback: fake, log: zap.NewNop()}

	resp := svc.Search(Query{Text: "court", Limit: 5})
	assert.Equal(t, "postgres", resp.Backend)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "court", resp.Query)
	assert.Equal(t, "about", resp.Results[0].Slug)
	assert.Equal(t, 5, fake.got.Limit)
	assert.False(t, svc.Healthy())
}

func TestServiceFallbackErrorReturnsEmpty(t *testing.T) {
	svc := &Service{fallback: &fakeSearcher{err: errors.New("boom")}, log: zap.NewNop()}
	resp := svc.Search(Query{Text: "x"})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Total)
}

func TestServiceWithoutBackends(t *testing.T) {
	svc := NewService(nil, nil, nil)
	resp := svc.Search(Query{Text: "x"})
	assert.Empty(t, resp.Results)
	// indexing without meilisearch is a no-op
	svc.IndexPage(PageRecord{ID: "pg_1"})
	svc.DeletePage("pg_1")
}

func TestQueryBounds(t *testing.T) {
	assert.Equal(t, 20, Query{}.limit())
	assert.Equal(t, 20, Query{Limit: 1000}.limit())
	assert.Equal(t, 7, Query{Limit: 7}.limit())
	assert.Equal(t, 0, Query{Offset: -3}.offset())
}

func TestHitToResultPrefersFormatted(t *testing.T) {
	hit := meili.Hit{
		"id":         json.RawMessage(`"pg_1"`),
		"slug":       json.RawMessage(`"opening-hours"`),
		"title":      json.RawMessage(`"Opening hours"`),
		"body":       json.RawMessage(`"Open daily from nine"`),
		"updatedAt":  json.RawMessage(`"2026-03-01T10:00:00Z"`),
		"_formatted": json.RawMessage(`{"title":"<mark>Opening</mark> hours","body":"","id":"pg_1"}`),
	}
	r := hitToResult(hit)
	assert.Equal(t, "pg_1", r.ID)
	assert.Equal(t, "opening-hours", r.Slug)
	assert.Equal(t, "<mark>Opening</mark> hours", r.Title)
	assert.Equal(t, "Open daily from nine", r.Snippet)
	assert.Equal(t, 2026, r.UpdatedAt.Year())
}
