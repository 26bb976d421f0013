package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouse/api/internal/richtext"
)

func fakeEnv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseProfile(t *testing.T) {
	src := []byte(`
media_base_url: ${CDN_URL:-https://fallback.example}
max_depth: 12
container:
  id: page
styles:
  heading:
    class: title
  upload:
    loading: lazy
highlight:
  enabled: false
`)
	profile, err := ParseProfile(src, fakeEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, "https://fallback.example", profile.MediaBaseURL)
	assert.Equal(t, 12, profile.MaxDepth)
	assert.Equal(t, "page", profile.Container["id"])
	assert.False(t, profile.Highlight.Enabled)
	assert.Equal(t, "github", profile.Highlight.Style)
	assert.NotEqual(t, "default", profile.Fingerprint)

	opts := profile.RenderOptions("https://ignored.example")
	assert.Equal(t, "https://fallback.example", opts.MediaBaseURL)
	assert.Equal(t, richtext.Attrs{"class": "title"}, opts.Styles[richtext.KindHeading])
	assert.Equal(t, richtext.Attrs{"loading": "lazy"}, opts.Styles[richtext.KindUpload])

	withEnv, err := ParseProfile(src, fakeEnv(map[string]string{"CDN_URL": "https://cdn.example"}))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example", withEnv.MediaBaseURL)
	assert.NotEqual(t, profile.Fingerprint, withEnv.Fingerprint)
}

func TestParseProfileRejectsUnknownKinds(t *testing.T) {
	_, err := ParseProfile([]byte("styles:\n  carousel:\n    class: x\n"), fakeEnv(nil))
	assert.ErrorContains(t, err, "carousel")

	_, err = ParseProfile([]byte("max_depth: -1\n"), fakeEnv(nil))
	assert.Error(t, err)

	_, err = ParseProfile([]byte("styles: [1, 2"), fakeEnv(nil))
	assert.Error(t, err)
}

func TestParseProfileRejectsStrippedAttributes(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"inline style", "styles:\n  paragraph:\n    style: \"color: red\"\n", `"style" in styles.paragraph`},
		{"event handler", "styles:\n  link:\n    onclick: x\n", `"onclick" in styles.link`},
		{"loading outside upload", "styles:\n  heading:\n    loading: lazy\n", `"loading" in styles.heading`},
		{"container style", "container:\n  style: \"margin: 0\"\n", `"style" in container`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.src), fakeEnv(nil))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := ParseProfile([]byte("container:\n  id: page\n  lang: en\nstyles:\n  quote:\n    class: q\n    title: Quote\n"), fakeEnv(nil))
	assert.NoError(t, err)
}

func TestDefaultProfileOptions(t *testing.T) {
	opts := DefaultProfile().RenderOptions("http://media.local")
	assert.Equal(t, "http://media.local", opts.MediaBaseURL)
	assert.Equal(t, richtext.DefaultMaxDepth, opts.MaxDepth)
	assert.Nil(t, opts.Styles)
}

func TestProfileWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_depth: 10\n"), 0o644))

	w, err := NewProfileWatcher(path, fakeEnv(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 10, w.Current().MaxDepth)

	var seen []int
	w.OnChange(func(p Profile) { seen = append(seen, p.MaxDepth) })

	require.NoError(t, os.WriteFile(path, []byte("max_depth: 20\n"), 0o644))
	w.Reload()
	assert.Equal(t, 20, w.Current().MaxDepth)

	// unchanged content does not notify
	w.Reload()

	// a broken file keeps the previous profile
	require.NoError(t, os.WriteFile(path, []byte("max_depth: [\n"), 0o644))
	w.Reload()
	assert.Equal(t, 20, w.Current().MaxDepth)
	assert.Equal(t, []int{20}, seen)
}

func TestProfileWatcherWithoutPath(t *testing.T) {
	w, err := NewProfileWatcher("", fakeEnv(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "default", w.Current().Fingerprint)
	require.NoError(t, w.Start(t.Context()))
}
