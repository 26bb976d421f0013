package richtext

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// RenderHTML renders doc and serializes the result. An absent document yields an
// empty string.
func RenderHTML(doc *Document, opts Options) (string, error) {
	node := Render(doc, opts)
	if node == nil {
		return "", nil
	}
	var b strings.Builder
	if err := html.Render(&b, node); err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return b.String(), nil
}

// PlainText extracts the readable text of a document, one line per block, in NFC.
// Uploads contribute their alt text.
func PlainText(doc *Document) string {
	if doc == nil || doc.Root == nil {
		return ""
	}
	var b strings.Builder
	for _, node := range doc.Root.Children {
		writePlain(&b, node)
		b.WriteByte('\n')
	}
	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return norm.NFC.String(strings.Join(kept, "\n"))
}

func writePlain(b *strings.Builder, node Node) {
	switch n := node.(type) {
	case *Text:
		if n.Value != nil {
			b.WriteString(*n.Value)
		}
	case *LineBreak:
		b.WriteByte('\n')
	case *Upload:
		if n.Value.Media != nil && n.Value.Media.Alt != "" {
			b.WriteString(n.Value.Media.Alt)
			b.WriteByte('\n')
		}
	case Parent:
		for _, child := range n.ChildNodes() {
			writePlain(b, child)
		}
		switch n.(type) {
		case *Heading, *Paragraph, *Quote, *ListItem, *Code, *List:
			b.WriteByte('\n')
		}
	}
}

func newElement(a atom.Atom, attrs Attrs) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	applyAttrs(n, attrs)
	return n
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// setAttr sets key on n, keeping the attribute list sorted by key.
func setAttr(n *html.Node, key, val string) {
	i := sort.Search(len(n.Attr), func(i int) bool { return n.Attr[i].Key >= key })
	if i < len(n.Attr) && n.Attr[i].Key == key {
		n.Attr[i].Val = val
		return
	}
	n.Attr = append(n.Attr, html.Attribute{})
	copy(n.Attr[i+1:], n.Attr[i:])
	n.Attr[i] = html.Attribute{Key: key, Val: val}
}

// applyAttrs copies a style bag onto n. Classes are appended to an existing class
// attribute; every other key replaces what the renderer set.
func applyAttrs(n *html.Node, attrs Attrs) {
	for key, val := range attrs {
		if key == "class" {
			if existing, ok := attr(n, "class"); ok && existing != "" {
				val = existing + " " + val
			}
		}
		setAttr(n, key, val)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// appendChildren skips nodes that are already attached elsewhere.
func appendChildren(parent *html.Node, children []*html.Node) {
	for _, child := range children {
		if child == nil || child.Parent != nil || child.PrevSibling != nil || child.NextSibling != nil {
			continue
		}
		parent.AppendChild(child)
	}
}
