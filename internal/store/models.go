package store

import (
	"encoding/json"
	"regexp"
	"time"
)

type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Page is a stored rich-text page. Content holds the editor state exactly as it
// was saved; BodyText is its plain-text extraction for full-text search.
type Page struct {
	ID        string
	Slug      string
	Title     string
	Content   json.RawMessage
	BodyText  string
	UpdatedBy string
	UpdatedAt time.Time
}

// PageSummary is a page without its content.
type PageSummary struct {
	ID        string
	Slug      string
	Title     string
	UpdatedBy string
	UpdatedAt time.Time
}

// PageRef is the minimum needed to link to a page.
type PageRef struct {
	ID   string
	Slug string
}

type Media struct {
	ID        string
	Filename  string
	URL       string
	Alt       string
	MimeType  string
	Width     int
	Height    int
	Filesize  int64
	CreatedBy string
	CreatedAt time.Time
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidSlug mirrors the pages.slug check constraint.
func ValidSlug(slug string) bool {
	return len(slug) <= 120 && slugPattern.MatchString(slug)
}
