package richtext

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMaxDepth bounds document nesting when Options.MaxDepth is not set.
const DefaultMaxDepth = 64

// Attrs is an attribute bag copied onto a produced element. Keys are emitted in
// sorted order.
type Attrs map[string]string

// Component replaces the default rendering of every node whose type tag it is
// registered under. children holds the node's children already rendered through
// the block entry point; it is empty for leaf nodes. Returning nil drops the node.
type Component func(node Node, children []*html.Node) *html.Node

// Options are read-only for the duration of one Render call.
type Options struct {
	// Styles holds per-kind attributes applied to the outermost element produced
	// for a node of that kind.
	Styles map[Kind]Attrs
	// Container holds attributes for the element wrapping the whole document.
	Container Attrs
	// MediaBaseURL is joined to relative media URLs.
	MediaBaseURL string
	// Components maps a stored type tag (for example "upload" or "code") to an
	// override.
	Components map[string]Component
	// MaxDepth drops nodes nested deeper than this. Zero means DefaultMaxDepth.
	MaxDepth int
}

func (o Options) depthLimit() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Render converts a document into a single container element holding one
// rendered element per top-level node, in document order. It returns nil when the
// document, its root or the root's child list is absent. A present but empty child
// list yields an empty container.
func Render(doc *Document, opts Options) *html.Node {
	if doc == nil || doc.Root == nil || doc.Root.Children == nil {
		return nil
	}
	r := &renderer{opts: opts, maxDepth: opts.depthLimit()}
	container := newElement(atom.Div, nil)
	switch doc.Root.Direction {
	case "ltr", "rtl":
		setAttr(container, "dir", doc.Root.Direction)
	}
	applyAttrs(container, opts.Container)
	appendChildren(container, r.blocks(doc.Root.Children, 0))
	return container
}

// RenderNodes renders a sequence of nodes through the block entry point without a
// container. Nodes that produce nothing are omitted.
func RenderNodes(nodes []Node, opts Options) []*html.Node {
	r := &renderer{opts: opts, maxDepth: opts.depthLimit()}
	return r.blocks(nodes, 0)
}

type renderer struct {
	opts     Options
	maxDepth int
}

func (r *renderer) style(kind Kind) Attrs {
	return r.opts.Styles[kind]
}

func (r *renderer) blocks(nodes []Node, depth int) []*html.Node {
	out := make([]*html.Node, 0, len(nodes))
	for _, node := range nodes {
		if rendered := r.block(node, depth); rendered != nil {
			out = append(out, rendered)
		}
	}
	return out
}

// block is the entry point for one node. Overrides win over every built-in kind,
// including Unknown.
func (r *renderer) block(node Node, depth int) *html.Node {
	if node == nil || depth >= r.maxDepth {
		return nil
	}
	if component := r.component(node); component != nil {
		var children []*html.Node
		if parent, ok := node.(Parent); ok {
			children = r.blocks(parent.ChildNodes(), depth+1)
		}
		return component(node, children)
	}

	switch n := node.(type) {
	case *LineBreak:
		return r.lineBreak()
	case *Text:
		return r.text(n)
	case *Heading:
		return r.heading(n, depth)
	case *Paragraph:
		return r.paragraph(n, depth)
	case *Link:
		return r.link(n, depth)
	case *Upload:
		return r.upload(n)
	case *Quote:
		return r.quote(n, depth)
	case *List:
		return r.list(n, depth)
	case *ListItem:
		return r.listItem(n, depth)
	case *HorizontalRule:
		return r.horizontalRule()
	case *Code:
		return r.code(n)
	case *Generic:
		div := newElement(atom.Div, r.style(KindGeneric))
		appendChildren(div, r.blocks(n.Children, depth+1))
		return div
	default:
		return nil
	}
}

func (r *renderer) component(node Node) Component {
	if len(r.opts.Components) == 0 {
		return nil
	}
	tag := node.NodeType()
	if tag == "" {
		return nil
	}
	return r.opts.Components[tag]
}

// inline renders content nested inside another node. Only text, links and line
// breaks are meaningful here; other nodes with a child list degrade to a span
// of their children and everything else produces nothing.
func (r *renderer) inline(nodes []Node, depth int) []*html.Node {
	if len(nodes) == 0 || depth >= r.maxDepth {
		return nil
	}
	out := make([]*html.Node, 0, len(nodes))
	for _, node := range nodes {
		var rendered *html.Node
		switch n := node.(type) {
		case *Text:
			rendered = r.text(n)
		case *Link:
			rendered = r.link(n, depth)
		case *LineBreak:
			rendered = r.lineBreak()
		case Parent:
			if n.ChildNodes() == nil {
				continue
			}
			span := newElement(atom.Span, nil)
			appendChildren(span, r.inline(n.ChildNodes(), depth+1))
			rendered = span
		}
		if rendered != nil {
			out = append(out, rendered)
		}
	}
	return out
}
