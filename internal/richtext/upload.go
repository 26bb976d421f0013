package richtext

import (
	"regexp"
	"strings"
)

// MediaCollection is the only upload relation the renderer draws.
const MediaCollection = "media"

const (
	DefaultImageWidth  = 300
	DefaultImageHeight = 200
)

// UploadValue is either an embedded media record or an unresolved reference.
// Both fields are empty for a null value.
type UploadValue struct {
	Media *MediaRef
	ID    string
}

// MediaRef is an embedded media record.
type MediaRef struct {
	ID       string
	URL      string
	Filename string
	Alt      string
	MimeType string
	Width    int
	Height   int
	Filesize int64
}

// Valid reports whether the record identifies a file at all.
func (m *MediaRef) Valid() bool {
	return m != nil && (m.URL != "" || m.Filename != "")
}

// Image is a resolved media upload.
type Image struct {
	Src      string
	Alt      string
	Width    int
	Height   int
	MimeType string
}

// ResolveUpload returns the image to draw for an upload node, or nil when the
// upload targets another collection or its record has no usable URL.
func ResolveUpload(n *Upload, opts Options) *Image {
	if n == nil || n.RelationTo != MediaCollection {
		return nil
	}
	media := n.Value.Media
	if !media.Valid() || media.URL == "" {
		return nil
	}
	img := &Image{
		Src:      ResolveMediaURL(opts.MediaBaseURL, media.URL),
		Alt:      media.Alt,
		Width:    media.Width,
		Height:   media.Height,
		MimeType: media.MimeType,
	}
	if img.Width <= 0 {
		img.Width = DefaultImageWidth
	}
	if img.Height <= 0 {
		img.Height = DefaultImageHeight
	}
	return img
}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// IsAbsoluteURL reports whether u carries a scheme or is protocol-relative.
func IsAbsoluteURL(u string) bool {
	return strings.HasPrefix(u, "//") || schemePattern.MatchString(u)
}

// ResolveMediaURL joins a relative media path to base. Absolute URLs and an
// empty base leave u untouched.
func ResolveMediaURL(base, u string) string {
	if IsAbsoluteURL(u) || base == "" {
		return u
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(u, "/")
}
