// Package highlight provides a code block override that renders syntax
// highlighted markup with chroma.
package highlight

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"clubhouse/api/internal/richtext"
)

// Highlighter is safe for concurrent use.
type Highlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
	attrs     richtext.Attrs
}

// New returns a highlighter for a chroma style name. Unknown names use chroma's
// fallback style. attrs are applied to the produced pre element, as the code
// style of richtext.Options would be.
func New(styleName string, attrs richtext.Attrs) *Highlighter {
	return &Highlighter{
		style: styles.Get(styleName),
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
		attrs: attrs,
	}
}

// Component is registered under the "code" type tag.
func (h *Highlighter) Component() richtext.Component {
	return func(node richtext.Node, children []*html.Node) *html.Node {
		code, ok := node.(*richtext.Code)
		if !ok {
			return nil
		}
		highlighted, err := h.Highlight(code)
		if err != nil || highlighted == nil {
			return richtext.CodeBlock(code, h.attrs)
		}
		return highlighted
	}
}

// Highlight renders a code block with token classes. It returns nil when the
// language is unknown or the block is empty.
func (h *Highlighter) Highlight(n *richtext.Code) (*html.Node, error) {
	text := richtext.CodeText(n)
	if text == "" || n.Language == "" {
		return nil, nil
	}
	lexer := lexers.Get(n.Language)
	if lexer == nil {
		return nil, nil
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return nil, fmt.Errorf("tokenise %s: %w", n.Language, err)
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return nil, fmt.Errorf("format %s: %w", n.Language, err)
	}

	codeEl := &html.Node{Type: html.ElementNode, Data: "code", DataAtom: atom.Code}
	fragment, err := html.ParseFragment(&buf, codeEl)
	if err != nil {
		return nil, fmt.Errorf("parse highlighted markup: %w", err)
	}

	// same pre/code shell as the plain rendering
	pre := richtext.CodeBlock(&richtext.Code{Language: n.Language}, h.attrs)
	target := pre.FirstChild
	for _, child := range fragment {
		target.AppendChild(child)
	}
	addClass(pre, "chroma")
	return pre, nil
}

// CSS returns the stylesheet for the highlighter's style.
func (h *Highlighter) CSS() (string, error) {
	var buf bytes.Buffer
	if err := h.formatter.WriteCSS(&buf, h.style); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func addClass(n *html.Node, class string) {
	for i, a := range n.Attr {
		if a.Key == "class" {
			if !containsField(a.Val, class) {
				n.Attr[i].Val = strings.TrimSpace(a.Val + " " + class)
			}
			return
		}
	}
	// keep attributes sorted
	attr := html.Attribute{Key: "class", Val: class}
	at := len(n.Attr)
	for i, a := range n.Attr {
		if a.Key > "class" {
			at = i
			break
		}
	}
	n.Attr = append(n.Attr, html.Attribute{})
	copy(n.Attr[at+1:], n.Attr[at:])
	n.Attr[at] = attr
}

func containsField(s, field string) bool {
	for _, f := range strings.Fields(s) {
		if f == field {
			return true
		}
	}
	return false
}
