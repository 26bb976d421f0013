package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier, optionally prefixed ("pg_…", "med_…").
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// IsID reports whether s looks like an identifier produced by NewID with prefix.
func IsID(prefix, s string) bool {
	if prefix != "" {
		rest, ok := strings.CutPrefix(s, prefix+"_")
		if !ok {
			return false
		}
		s = rest
	}
	if len(s) != 32 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
