package richtext

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// textWrappers is ordered innermost first.
var textWrappers = []struct {
	flag Format
	tag  atom.Atom
}{
	{FormatItalic, atom.Em},
	{FormatBold, atom.Strong},
	{FormatStrikethrough, atom.S},
	{FormatUnderline, atom.U},
}

// text renders a text node. The code bit wins over every other format bit.
func (r *renderer) text(n *Text) *html.Node {
	if n.Value == nil {
		return nil
	}
	style := r.style(KindText)
	leaf := newText(*n.Value)
	if n.Format.Has(FormatCode) {
		code := newElement(atom.Code, style)
		code.AppendChild(leaf)
		return code
	}

	out := leaf
	for _, w := range textWrappers {
		if !n.Format.Has(w.flag) {
			continue
		}
		el := newElement(w.tag, nil)
		el.AppendChild(out)
		out = el
	}
	if out == leaf {
		if len(style) == 0 {
			return leaf
		}
		span := newElement(atom.Span, style)
		span.AppendChild(leaf)
		return span
	}
	applyAttrs(out, style)
	return out
}

func (r *renderer) link(n *Link, depth int) *html.Node {
	children := r.inline(n.Children, depth+1)
	dest, ok := ResolveLink(n.Fields)
	if !ok {
		span := newElement(atom.Span, nil)
		appendChildren(span, children)
		return span
	}
	a := newElement(atom.A, nil)
	setAttr(a, "href", dest.Href)
	if dest.External {
		setAttr(a, "target", "_blank")
		setAttr(a, "rel", "noopener noreferrer")
	}
	applyAttrs(a, r.style(KindLink))
	appendChildren(a, children)
	return a
}

func (r *renderer) lineBreak() *html.Node {
	return newElement(atom.Br, r.style(KindLineBreak))
}
