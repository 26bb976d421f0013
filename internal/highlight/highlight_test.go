package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"clubhouse/api/internal/richtext"
)

func codeNode(lang, text string) *richtext.Code {
	return &richtext.Code{
		Meta:     richtext.Meta{Type: "code"},
		Language: lang,
		Children: []richtext.Node{&richtext.Text{Meta: richtext.Meta{Type: "code-highlight"}, Value: &text}},
	}
}

func render(t *testing.T, n *html.Node) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, html.Render(&b, n))
	return b.String()
}

func TestHighlightKnownLanguage(t *testing.T) {
	h := New("github", richtext.Attrs{"class": "code"})
	node, err := h.Highlight(codeNode("go", "func main() {}"))
	require.NoError(t, err)
	require.NotNil(t, node)

	out := render(t, node)
	assert.True(t, strings.HasPrefix(out, `<pre class="code chroma" data-language="go"><code class="language-go">`), out)
	assert.Contains(t, out, `<span class="kd">func</span>`)
	assert.Contains(t, out, "main")
}

func TestHighlightFallsBack(t *testing.T) {
	h := New("github", nil)

	node, err := h.Highlight(codeNode("klingon", "qapla"))
	require.NoError(t, err)
	assert.Nil(t, node)

	node, err = h.Highlight(codeNode("go", ""))
	require.NoError(t, err)
	assert.Nil(t, node)

	component := h.Component()
	plain := component(codeNode("klingon", "qapla"), nil)
	assert.Equal(t, `<pre data-language="klingon"><code class="language-klingon">qapla</code></pre>`, render(t, plain))

	assert.Nil(t, component(&richtext.Paragraph{}, nil))
}

func TestComponentInDocument(t *testing.T) {
	doc, err := richtext.ParseDocument([]byte(`{"root":{"type":"root","children":[
		{"type":"code","language":"python","children":[{"type":"code-highlight","text":"print(1)"}]},
		{"type":"paragraph","children":[{"type":"text","text":"after","format":0}]}
	]}}`))
	require.NoError(t, err)

	h := New("monokai", nil)
	out, err := richtext.RenderHTML(doc, richtext.Options{
		Components: map[string]richtext.Component{"code": h.Component()},
	})
	require.NoError(t, err)
	assert.Contains(t, out, `<pre class="chroma" data-language="python">`)
	assert.Contains(t, out, "print")
	assert.Contains(t, out, "<p>after</p>")
}

func TestCSS(t *testing.T) {
	css, err := New("github", nil).CSS()
	require.NoError(t, err)
	assert.Contains(t, css, ".chroma")
}

func TestAddClassKeepsOrder(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "pre", Attr: []html.Attribute{{Key: "data-language", Val: "go"}}}
	addClass(n, "chroma")
	addClass(n, "chroma")
	assert.Equal(t, []html.Attribute{{Key: "class", Val: "chroma"}, {Key: "data-language", Val: "go"}}, n.Attr)
}
