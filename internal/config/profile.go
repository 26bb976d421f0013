package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"clubhouse/api/internal/richtext"
)

// Profile is the render profile: presentation settings applied to every page
// render. It is read from YAML.
type Profile struct {
	MediaBaseURL string                       `yaml:"media_base_url"`
	MaxDepth     int                          `yaml:"max_depth"`
	Container    map[string]string            `yaml:"container"`
	Styles       map[string]map[string]string `yaml:"styles"`
	Highlight    HighlightProfile             `yaml:"highlight"`

	// Fingerprint identifies the profile contents; render cache keys include it.
	Fingerprint string `yaml:"-"`
}

type HighlightProfile struct {
	Enabled bool   `yaml:"enabled"`
	Style   string `yaml:"style"`
}

// DefaultProfile is used when no profile file is configured.
func DefaultProfile() Profile {
	return Profile{
		MaxDepth:    richtext.DefaultMaxDepth,
		Container:   map[string]string{"class": "page-content"},
		Highlight:   HighlightProfile{Enabled: true, Style: "github"},
		Fingerprint: "default",
	}
}

// LoadProfile reads a profile file with ${VAR} and ${VAR:-default} interpolation.
func LoadProfile(path string, getenv func(string) string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read render profile: %w", err)
	}
	return ParseProfile(data, getenv)
}

func ParseProfile(data []byte, getenv func(string) string) (Profile, error) {
	data = interpolateEnv(data, getenv)

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse render profile: %w", err)
	}
	if err := profile.validate(); err != nil {
		return Profile{}, err
	}
	sum := blake3.Sum256(data)
	profile.Fingerprint = hex.EncodeToString(sum[:8])
	return profile, nil
}

// Attributes a profile may set. Served HTML passes through the sanitizer in
// internal/app, which keeps only these on the elements the renderer emits.
var (
	globalAttributes    = []string{"class", "lang", "title"}
	kindAttributes      = map[richtext.Kind][]string{richtext.KindUpload: {"loading"}}
	containerAttributes = []string{"dir", "id"}
)

func (p Profile) validate() error {
	if p.MaxDepth < 0 {
		return fmt.Errorf("render profile: max_depth must not be negative, got %d", p.MaxDepth)
	}
	if err := checkAttributes("container", p.Container, containerAttributes); err != nil {
		return err
	}
	for _, name := range sortedKeys(p.Styles) {
		kind, ok := richtext.ParseKind(name)
		if !ok {
			return fmt.Errorf("render profile: unknown node kind %q in styles", name)
		}
		if err := checkAttributes("styles."+name, p.Styles[name], kindAttributes[kind]); err != nil {
			return err
		}
	}
	return nil
}

func checkAttributes(section string, attrs map[string]string, extra []string) error {
	for _, key := range sortedKeys(attrs) {
		if !slices.Contains(globalAttributes, key) && !slices.Contains(extra, key) {
			return fmt.Errorf("render profile: attribute %q in %s is removed from served HTML", key, section)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RenderOptions converts the profile into renderer options. fallbackBaseURL is
// used when the profile does not set its own media base URL.
func (p Profile) RenderOptions(fallbackBaseURL string) richtext.Options {
	opts := richtext.Options{
		MediaBaseURL: p.MediaBaseURL,
		MaxDepth:     p.MaxDepth,
		Container:    richtext.Attrs(p.Container),
	}
	if opts.MediaBaseURL == "" {
		opts.MediaBaseURL = fallbackBaseURL
	}
	if len(p.Styles) > 0 {
		opts.Styles = make(map[richtext.Kind]richtext.Attrs, len(p.Styles))
		for name, attrs := range p.Styles {
			kind, ok := richtext.ParseKind(name)
			if !ok {
				continue
			}
			opts.Styles[kind] = richtext.Attrs(attrs)
		}
	}
	return opts
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func interpolateEnv(data []byte, getenv func(string) string) []byte {
	if getenv == nil {
		getenv = os.Getenv
	}
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}
