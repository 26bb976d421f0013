package richtext

type LinkType string

const (
	LinkCustom   LinkType = "custom"
	LinkInternal LinkType = "internal"
)

// LinkFields is the target of a link node.
type LinkFields struct {
	LinkType LinkType
	URL      string
	NewTab   bool
	Doc      *DocRef
}

// DocRef is a reference to another document. Stored content uses three shapes:
// a bare id string, an object carrying id and slug, and a relationship wrapper
// whose value carries id and slug. Only the last two can resolve.
type DocRef struct {
	BareID     string
	Direct     *DocSummary
	Value      *DocSummary
	RelationTo string
}

type DocSummary struct {
	ID   string
	Slug string
}

// Slug returns the slug of the referenced document, preferring the direct shape
// over the wrapper.
func (r *DocRef) Slug() (string, bool) {
	if r == nil {
		return "", false
	}
	if r.Direct != nil && r.Direct.Slug != "" {
		return r.Direct.Slug, true
	}
	if r.Value != nil && r.Value.Slug != "" {
		return r.Value.Slug, true
	}
	return "", false
}

// ID returns the id of the referenced document in whichever shape it was stored.
func (r *DocRef) ID() string {
	switch {
	case r == nil:
		return ""
	case r.Direct != nil && r.Direct.ID != "":
		return r.Direct.ID
	case r.Value != nil && r.Value.ID != "":
		return r.Value.ID
	default:
		return r.BareID
	}
}

// Destination is a resolved link target.
type Destination struct {
	Href     string
	External bool
}

// Valid reports whether the fields carry a link type together with the field that
// type requires.
func (f LinkFields) Valid() bool {
	switch f.LinkType {
	case LinkCustom:
		return f.URL != ""
	case LinkInternal:
		return f.Doc != nil
	default:
		return false
	}
}

// ResolveLink decides where a link points. It returns false when the fields are
// invalid or an internal reference carries no slug.
func ResolveLink(f LinkFields) (Destination, bool) {
	if !f.Valid() {
		return Destination{}, false
	}
	switch f.LinkType {
	case LinkCustom:
		return Destination{Href: f.URL, External: f.NewTab}, true
	case LinkInternal:
		slug, ok := f.Doc.Slug()
		if !ok {
			return Destination{}, false
		}
		return Destination{Href: "/" + slug, External: f.NewTab}, true
	}
	return Destination{}, false
}
