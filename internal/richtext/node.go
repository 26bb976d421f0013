// Package richtext converts serialized rich-text editor state into HTML node trees.
//
// Documents are classified once, when they are decoded, into a closed set of node
// variants. Rendering is then a single depth-first pass over that tree that never
// fails: malformed or unrecognised nodes degrade to nothing or to a plain span.
package richtext

// Kind identifies which variant a Node is.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindHeading
	KindParagraph
	KindLink
	KindUpload
	KindQuote
	KindList
	KindListItem
	KindLineBreak
	KindHorizontalRule
	KindCode
	KindGeneric
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindText:           "text",
	KindHeading:        "heading",
	KindParagraph:      "paragraph",
	KindLink:           "link",
	KindUpload:         "upload",
	KindQuote:          "quote",
	KindList:           "list",
	KindListItem:       "listitem",
	KindLineBreak:      "linebreak",
	KindHorizontalRule: "horizontalrule",
	KindCode:           "code",
	KindGeneric:        "generic",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a kind name back to its Kind. The second result is false for
// names that do not belong to any kind.
func ParseKind(name string) (Kind, bool) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, true
		}
	}
	return KindUnknown, false
}

// Node is one element of a document tree.
type Node interface {
	Kind() Kind
	// NodeType is the type tag exactly as stored by the editor.
	NodeType() string
	// FormatVersion is the editor's per-node format revision.
	FormatVersion() int
}

// Parent is implemented by every node that carries an ordered child list.
type Parent interface {
	Node
	ChildNodes() []Node
}

// Meta holds the fields every stored node carries.
type Meta struct {
	Type    string
	Version int
}

func (m Meta) NodeType() string   { return m.Type }
func (m Meta) FormatVersion() int { return m.Version }

// Document is the root of a stored rich-text value.
type Document struct {
	Root *Root
}

// Root holds the top-level nodes and the layout metadata of the document.
// A nil Children slice means the child list is absent.
type Root struct {
	Meta
	Children  []Node
	Direction string
	Align     string
	Indent    int
}

type Text struct {
	Meta
	// Value is nil when the stored node has no literal text at all.
	Value  *string
	Format Format
}

type Heading struct {
	Meta
	Level    int
	Children []Node
}

type Paragraph struct {
	Meta
	Children []Node
}

type Quote struct {
	Meta
	Children []Node
}

type Link struct {
	Meta
	Fields   LinkFields
	Children []Node
}

type Upload struct {
	Meta
	RelationTo string
	Value      UploadValue
}

type List struct {
	Meta
	Ordered  bool
	ListType string
	Start    int
	Children []Node
}

type ListItem struct {
	Meta
	Value    int
	Checked  *bool
	Children []Node
}

type LineBreak struct {
	Meta
}

type HorizontalRule struct {
	Meta
}

type Code struct {
	Meta
	Language string
	Children []Node
}

// Generic is a node of an unrecognised type that still exposes children.
type Generic struct {
	Meta
	Children []Node
}

// Unknown is a node that matched no kind and has no child list. Raw keeps the
// decoded value so registered components can still make use of it.
type Unknown struct {
	Meta
	Raw map[string]any
}

func (*Text) Kind() Kind           { return KindText }
func (*Heading) Kind() Kind        { return KindHeading }
func (*Paragraph) Kind() Kind      { return KindParagraph }
func (*Quote) Kind() Kind          { return KindQuote }
func (*Link) Kind() Kind           { return KindLink }
func (*Upload) Kind() Kind         { return KindUpload }
func (*List) Kind() Kind           { return KindList }
func (*ListItem) Kind() Kind       { return KindListItem }
func (*LineBreak) Kind() Kind      { return KindLineBreak }
func (*HorizontalRule) Kind() Kind { return KindHorizontalRule }
func (*Code) Kind() Kind           { return KindCode }
func (*Generic) Kind() Kind        { return KindGeneric }
func (*Unknown) Kind() Kind        { return KindUnknown }

func (n *Heading) ChildNodes() []Node   { return n.Children }
func (n *Paragraph) ChildNodes() []Node { return n.Children }
func (n *Quote) ChildNodes() []Node     { return n.Children }
func (n *Link) ChildNodes() []Node      { return n.Children }
func (n *List) ChildNodes() []Node      { return n.Children }
func (n *ListItem) ChildNodes() []Node  { return n.Children }
func (n *Code) ChildNodes() []Node      { return n.Children }
func (n *Generic) ChildNodes() []Node   { return n.Children }

// Walk visits nodes depth-first in document order. Returning false from fn skips
// the children of that node.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if !fn(node) {
			continue
		}
		if parent, ok := node.(Parent); ok {
			Walk(parent.ChildNodes(), fn)
		}
	}
}
