package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"clubhouse/api/internal/store"
)

// pagesCollection is the relation name written into resolved internal links.
const pagesCollection = "pages"

// refCollector gathers the references of a document that carry only an id.
type refCollector struct {
	pageIDs  map[string]struct{}
	mediaIDs map[string]struct{}
	links    []map[string]any // link fields objects
	uploads  []map[string]any // upload nodes
}

// populate embeds the records that bare internal-link and upload references point
// at, so the stored tree renders without further lookups. References to missing
// records are left as they are and render through the unresolved fallback, as
// are all references when the service runs without a store.
func (s *Service) populate(ctx context.Context, raw map[string]any) error {
	if s.store == nil {
		return nil
	}
	c := &refCollector{pageIDs: map[string]struct{}{}, mediaIDs: map[string]struct{}{}}
	c.walk(raw, 0)
	if len(c.links) == 0 && len(c.uploads) == 0 {
		return nil
	}

	pages, err := s.store.GetPagesByIDs(ctx, sortedKeys(c.pageIDs))
	if err != nil {
		return fmt.Errorf("resolve page references: %w", err)
	}
	records, err := s.store.GetMediaByIDs(ctx, sortedKeys(c.mediaIDs))
	if err != nil {
		return fmt.Errorf("resolve media references: %w", err)
	}

	for _, fields := range c.links {
		id, _ := bareDocID(fields["doc"])
		if ref, ok := pages[id]; ok {
			fields["doc"] = map[string]any{
				"relationTo": pagesCollection,
				"value":      map[string]any{"id": ref.ID, "slug": ref.Slug},
			}
		}
	}
	for _, node := range c.uploads {
		id, _ := scalarID(node["value"])
		if m, ok := records[id]; ok {
			node["value"] = embedMedia(m)
		}
	}
	return nil
}

// embedMedia builds the value the JSON decoder would produce for an embedded
// media record, so numbers are float64 and unknown dimensions are left out.
func embedMedia(m store.Media) map[string]any {
	value := map[string]any{
		"id":       m.ID,
		"url":      m.URL,
		"filename": m.Filename,
		"alt":      m.Alt,
		"mimeType": m.MimeType,
		"filesize": float64(m.Filesize),
	}
	if m.Width > 0 && m.Height > 0 {
		value["width"] = float64(m.Width)
		value["height"] = float64(m.Height)
	}
	return value
}

func (c *refCollector) walk(value any, depth int) {
	if depth > 256 {
		return
	}
	switch v := value.(type) {
	case map[string]any:
		switch v["type"] {
		case "link", "autolink":
			if fields, ok := v["fields"].(map[string]any); ok && fields["linkType"] == "internal" {
				if id, ok := bareDocID(fields["doc"]); ok {
					c.pageIDs[id] = struct{}{}
					c.links = append(c.links, fields)
				}
			}
		case "upload":
			if v["relationTo"] == "media" {
				if id, ok := scalarID(v["value"]); ok {
					c.mediaIDs[id] = struct{}{}
					c.uploads = append(c.uploads, v)
				}
			}
		}
		for key, child := range v {
			if key == "children" || key == "root" {
				c.walk(child, depth+1)
			}
		}
	case []any:
		for _, child := range v {
			c.walk(child, depth+1)
		}
	}
}

// bareDocID returns the id of a document reference that has no slug: a bare id,
// or a relationship wrapper whose value is a bare id.
func bareDocID(doc any) (string, bool) {
	if id, ok := scalarID(doc); ok {
		return id, true
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return "", false
	}
	if slug, _ := obj["slug"].(string); slug != "" {
		return "", false
	}
	switch inner := obj["value"].(type) {
	case map[string]any:
		if slug, _ := inner["slug"].(string); slug != "" {
			return "", false
		}
		return scalarID(inner["id"])
	case nil:
		return scalarID(obj["id"])
	default:
		return scalarID(inner)
	}
}

func scalarID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	}
	return "", false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
