package richtext

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var headingAtoms = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

// heading always renders, even without children.
func (r *renderer) heading(n *Heading, depth int) *html.Node {
	level := n.Level
	if level < 1 || level > len(headingAtoms) {
		level = 1
	}
	h := newElement(headingAtoms[level-1], r.style(KindHeading))
	appendChildren(h, r.inline(n.Children, depth+1))
	return h
}

func (r *renderer) paragraph(n *Paragraph, depth int) *html.Node {
	if len(n.Children) == 0 {
		return nil
	}
	p := newElement(atom.P, r.style(KindParagraph))
	appendChildren(p, r.inline(n.Children, depth+1))
	return p
}

func (r *renderer) quote(n *Quote, depth int) *html.Node {
	if len(n.Children) == 0 {
		return nil
	}
	q := newElement(atom.Blockquote, r.style(KindQuote))
	appendChildren(q, r.inline(n.Children, depth+1))
	return q
}

func (r *renderer) list(n *List, depth int) *html.Node {
	if len(n.Children) == 0 {
		return nil
	}
	tag := atom.Ul
	if n.Ordered {
		tag = atom.Ol
	}
	list := newElement(tag, nil)
	if n.Ordered && n.Start > 1 {
		setAttr(list, "start", strconv.Itoa(n.Start))
	}
	applyAttrs(list, r.style(KindList))
	appendChildren(list, r.blocks(n.Children, depth+1))
	return list
}

// listItem renders inline content only; nested lists degrade to spans.
func (r *renderer) listItem(n *ListItem, depth int) *html.Node {
	li := newElement(atom.Li, nil)
	if n.Checked != nil {
		setAttr(li, "role", "checkbox")
		setAttr(li, "aria-checked", strconv.FormatBool(*n.Checked))
	}
	applyAttrs(li, r.style(KindListItem))
	appendChildren(li, r.inline(n.Children, depth+1))
	return li
}

func (r *renderer) horizontalRule() *html.Node {
	return newElement(atom.Hr, r.style(KindHorizontalRule))
}

func (r *renderer) upload(n *Upload) *html.Node {
	img := ResolveUpload(n, r.opts)
	if img == nil {
		return nil
	}
	el := newElement(atom.Img, nil)
	setAttr(el, "src", img.Src)
	setAttr(el, "alt", img.Alt)
	setAttr(el, "width", strconv.Itoa(img.Width))
	setAttr(el, "height", strconv.Itoa(img.Height))
	applyAttrs(el, r.style(KindUpload))
	return el
}

func (r *renderer) code(n *Code) *html.Node {
	return CodeBlock(n, r.style(KindCode))
}

// CodeBlock is the default rendering of a code block: a pre carrying the
// language and attrs around a code element holding CodeText. Empty blocks still
// render and keep their language. Overrides use it as their fallback.
func CodeBlock(n *Code, attrs Attrs) *html.Node {
	pre := newElement(atom.Pre, nil)
	code := newElement(atom.Code, nil)
	if n.Language != "" {
		setAttr(pre, "data-language", n.Language)
		setAttr(code, "class", "language-"+n.Language)
	}
	applyAttrs(pre, attrs)
	if text := CodeText(n); text != "" {
		code.AppendChild(newText(text))
	}
	pre.AppendChild(code)
	return pre
}

// CodeText flattens every literal below a code block into one string. Format
// bits are ignored and line breaks become newlines.
func CodeText(n *Code) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	Walk(n.Children, func(node Node) bool {
		switch t := node.(type) {
		case *Text:
			if t.Value != nil {
				b.WriteString(*t.Value)
			}
		case *LineBreak:
			b.WriteByte('\n')
		}
		return true
	})
	return b.String()
}
