package revision

import (
	"encoding/json"
	"errors"
	"testing"
)

func snapshot(title, content string) Snapshot {
	return Snapshot{Slug: "about", Title: title, Content: json.RawMessage(content)}
}

func TestCommitAndHead(t *testing.T) {
	svc := New(t.TempDir())

	if _, _, err := svc.Head("pg_1"); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("Head() before commit error = %v, want ErrNoHistory", err)
	}

	first, err := svc.Commit("pg_1", snapshot("About", `{"root":{"type":"root","children":[]}}`), "Avery Quinn", "create page")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(first.Hash) != 7 || first.Author != "Avery Quinn" || first.Message != "create page" {
		t.Fatalf("Commit() = %+v", first)
	}

	// formatting-only changes are not a new revision
	same, err := svc.Commit("pg_1", snapshot("About", `{ "root": { "children": [], "type": "root" } }`), "Avery Quinn", "noop")
	if !errors.Is(err, ErrUnchanged) {
		t.Fatalf("Commit() unchanged error = %v, want ErrUnchanged", err)
	}
	if same.Hash != first.Hash {
		t.Fatalf("Commit() unchanged hash = %s, want %s", same.Hash, first.Hash)
	}

	second, err := svc.Commit("pg_1", snapshot("About us", `{"root":{"type":"root","children":[]}}`), "Blair", "rename")
	if err != nil {
		t.Fatalf("Commit() second error = %v", err)
	}

	head, info, err := svc.Head("pg_1")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head.Title != "About us" || info.Hash != second.Hash {
		t.Fatalf("Head() = %+v, %+v", head, info)
	}

	old, _, err := svc.AtRevision("pg_1", first.Hash)
	if err != nil {
		t.Fatalf("AtRevision() error = %v", err)
	}
	if old.Title != "About" {
		t.Fatalf("AtRevision() title = %q, want About", old.Title)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())

	items, err := svc.History("pg_missing", 0)
	if err != nil || len(items) != 0 {
		t.Fatalf("History() missing page = %+v, %v", items, err)
	}

	for _, title := range []string{"one", "two", "three"} {
		if _, err := svc.Commit("pg_1", snapshot(title, `{}`), "Avery", "set "+title); err != nil {
			t.Fatalf("Commit(%s) error = %v", title, err)
		}
	}

	all, err := svc.History("pg_1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(all) != 3 || all[0].Message != "set three" {
		t.Fatalf("History() = %+v", all)
	}

	limited, err := svc.History("pg_1", 2)
	if err != nil {
		t.Fatalf("History(limit) error = %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("History(limit) len = %d, want 2", len(limited))
	}
}

func TestTagAndResolveByName(t *testing.T) {
	svc := New(t.TempDir())

	info, err := svc.Commit("pg_1", snapshot("Published", `{"root":{}}`), "Avery", "publish me")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	tag, err := svc.Tag("pg_1", info.Hash, "published-1")
	if err != nil {
		t.Fatalf("Tag() error = %v", err)
	}
	if tag.Hash != info.Hash {
		t.Fatalf("Tag() hash = %s, want %s", tag.Hash, info.Hash)
	}
	if _, err := svc.Tag("pg_1", info.Hash, "published-1"); err != nil {
		t.Fatalf("Tag() twice error = %v", err)
	}

	if _, err := svc.Commit("pg_1", snapshot("Draft", `{"root":{}}`), "Avery", "draft"); err != nil {
		t.Fatalf("Commit() draft error = %v", err)
	}

	atTag, _, err := svc.AtRevision("pg_1", "published-1")
	if err != nil {
		t.Fatalf("AtRevision(tag) error = %v", err)
	}
	if atTag.Title != "Published" {
		t.Fatalf("AtRevision(tag) title = %q", atTag.Title)
	}

	tags, err := svc.Tags("pg_1")
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "published-1" || tags[0].Hash != info.Hash {
		t.Fatalf("Tags() = %+v", tags)
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"Avery Quinn": "Avery.Quinn",
		"a_b-c":       "a.b.c",
		"!!!":         "editor",
	}
	for in, want := range cases {
		if got := sanitizeEmail(in); got != want {
			t.Fatalf("sanitizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
