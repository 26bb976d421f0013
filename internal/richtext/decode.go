package richtext

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedDocument is returned when stored content is not JSON at all.
var ErrMalformedDocument = errors.New("malformed rich-text document")

// ParseDocument decodes serialized editor state. It accepts the editor's
// {"root": {...}} envelope as well as a bare root object. Only undecodable JSON
// is an error; shape problems surface later as absent or unknown nodes.
func ParseDocument(data []byte) (*Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedDocument)
	}
	return DecodeDocument(obj), nil
}

// DecodeDocument classifies an already decoded document value.
func DecodeDocument(raw map[string]any) *Document {
	if raw == nil {
		return nil
	}
	rootRaw, ok := raw["root"].(map[string]any)
	if !ok {
		if typ, _ := raw["type"].(string); typ != "root" {
			return &Document{}
		}
		rootRaw = raw
	}
	root := &Root{
		Meta:     decodeMeta(rootRaw),
		Children: decodeChildren(rootRaw),
	}
	root.Direction, _ = rootRaw["direction"].(string)
	root.Align, _ = rootRaw["format"].(string)
	root.Indent, _ = intField(rootRaw, "indent")
	return &Document{Root: root}
}

// Classify turns one untyped node value into its variant. Values that are not
// objects, or objects that fail every kind's field checks, become Generic when
// they expose a child array and Unknown otherwise.
func Classify(raw any) Node {
	obj, ok := raw.(map[string]any)
	if !ok {
		return &Unknown{}
	}
	if node := classifyKnown(obj); node != nil {
		return node
	}
	meta := decodeMeta(obj)
	if children, ok := obj["children"].([]any); ok {
		return &Generic{Meta: meta, Children: decodeNodes(children)}
	}
	return &Unknown{Meta: meta, Raw: obj}
}

func classifyKnown(obj map[string]any) Node {
	meta := decodeMeta(obj)
	switch meta.Type {
	case "text", "code-highlight", "tab":
		return decodeText(meta, obj)
	case "heading":
		level, ok := headingLevel(obj["tag"])
		if !ok {
			return nil
		}
		return &Heading{Meta: meta, Level: level, Children: decodeChildren(obj)}
	case "paragraph":
		return &Paragraph{Meta: meta, Children: decodeChildren(obj)}
	case "quote":
		return &Quote{Meta: meta, Children: decodeChildren(obj)}
	case "link", "autolink":
		fields, ok := obj["fields"].(map[string]any)
		if !ok {
			return nil
		}
		return &Link{Meta: meta, Fields: decodeLinkFields(fields), Children: decodeChildren(obj)}
	case "upload":
		relationTo, ok := obj["relationTo"].(string)
		if !ok {
			return nil
		}
		return &Upload{Meta: meta, RelationTo: relationTo, Value: decodeUploadValue(obj["value"])}
	case "list":
		return decodeList(meta, obj)
	case "listitem":
		item := &ListItem{Meta: meta, Children: decodeChildren(obj)}
		item.Value, _ = intField(obj, "value")
		if checked, ok := obj["checked"].(bool); ok {
			item.Checked = &checked
		}
		return item
	case "linebreak":
		return &LineBreak{Meta: meta}
	case "horizontalrule":
		return &HorizontalRule{Meta: meta}
	case "code":
		code := &Code{Meta: meta, Children: decodeChildren(obj)}
		if lang, present := obj["language"]; present && lang != nil {
			s, ok := lang.(string)
			if !ok {
				return nil
			}
			code.Language = s
		}
		return code
	}
	return nil
}

func decodeText(meta Meta, obj map[string]any) Node {
	text := &Text{Meta: meta}
	if raw, present := obj["text"]; present {
		s, ok := raw.(string)
		if !ok {
			return nil
		}
		text.Value = &s
	}
	if _, present := obj["format"]; present {
		// The editor stores an empty string for unformatted text in older revisions.
		if s, ok := obj["format"].(string); ok && s == "" {
			return text
		}
		v, ok := intField(obj, "format")
		if !ok {
			return nil
		}
		text.Format = formatFromInt(v)
	}
	return text
}

func decodeList(meta Meta, obj map[string]any) Node {
	list := &List{Meta: meta, Children: decodeChildren(obj)}
	list.ListType, _ = obj["listType"].(string)
	list.Start, _ = intField(obj, "start")
	switch tag, _ := obj["tag"].(string); tag {
	case "ol":
		list.Ordered = true
	case "ul":
		list.Ordered = false
	default:
		switch list.ListType {
		case "number":
			list.Ordered = true
		case "bullet", "check":
			list.Ordered = false
		default:
			return nil
		}
	}
	return list
}

func decodeLinkFields(obj map[string]any) LinkFields {
	fields := LinkFields{}
	if linkType, ok := obj["linkType"].(string); ok {
		fields.LinkType = LinkType(linkType)
	}
	fields.URL, _ = obj["url"].(string)
	fields.NewTab, _ = obj["newTab"].(bool)
	fields.Doc = decodeDocRef(obj["doc"])
	return fields
}

func decodeDocRef(raw any) *DocRef {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return &DocRef{BareID: v}
	case float64:
		return &DocRef{BareID: strconv.FormatFloat(v, 'f', -1, 64)}
	case map[string]any:
		ref := &DocRef{}
		ref.RelationTo, _ = v["relationTo"].(string)
		ref.Direct = decodeDocSummary(v)
		switch inner := v["value"].(type) {
		case map[string]any:
			ref.Value = decodeDocSummary(inner)
		case string:
			ref.BareID = inner
		case float64:
			ref.BareID = strconv.FormatFloat(inner, 'f', -1, 64)
		}
		return ref
	default:
		return nil
	}
}

func decodeDocSummary(obj map[string]any) *DocSummary {
	id, hasID := idField(obj["id"])
	slug, hasSlug := obj["slug"].(string)
	if !hasID && !hasSlug {
		return nil
	}
	return &DocSummary{ID: id, Slug: slug}
}

func decodeUploadValue(raw any) UploadValue {
	switch v := raw.(type) {
	case map[string]any:
		media := &MediaRef{}
		media.ID, _ = idField(v["id"])
		media.URL, _ = v["url"].(string)
		media.Filename, _ = v["filename"].(string)
		media.Alt, _ = v["alt"].(string)
		media.MimeType, _ = v["mimeType"].(string)
		media.Width, _ = intField(v, "width")
		media.Height, _ = intField(v, "height")
		if size, ok := intField(v, "filesize"); ok {
			media.Filesize = int64(size)
		}
		return UploadValue{Media: media}
	default:
		id, _ := idField(v)
		return UploadValue{ID: id}
	}
}

func decodeMeta(obj map[string]any) Meta {
	meta := Meta{}
	meta.Type, _ = obj["type"].(string)
	meta.Version, _ = intField(obj, "version")
	return meta
}

// decodeChildren keeps the distinction between an absent child list (nil) and an
// empty one.
func decodeChildren(obj map[string]any) []Node {
	children, ok := obj["children"].([]any)
	if !ok {
		return nil
	}
	return decodeNodes(children)
}

func decodeNodes(raw []any) []Node {
	nodes := make([]Node, 0, len(raw))
	for _, item := range raw {
		nodes = append(nodes, Classify(item))
	}
	return nodes
}

var headingTags = map[string]int{"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6}

func headingLevel(raw any) (int, bool) {
	tag, ok := raw.(string)
	if !ok {
		return 0, false
	}
	level, ok := headingTags[tag]
	return level, ok
}

func intField(obj map[string]any, key string) (int, bool) {
	switch v := obj[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func idField(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
