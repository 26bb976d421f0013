package richtext

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func mustParse(t *testing.T, root string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(`{"root":{"type":"root","version":1,"children":[` + root + `]}}`))
	require.NoError(t, err)
	return doc
}

func renderString(t *testing.T, doc *Document, opts Options) string {
	t.Helper()
	out, err := RenderHTML(doc, opts)
	require.NoError(t, err)
	return out
}

func textJSON(s string, format int) string {
	return `{"type":"text","version":1,"text":"` + s + `","format":` + strconv.Itoa(format) + `}`
}

func TestRenderAbsentDocument(t *testing.T) {
	assert.Nil(t, Render(nil, Options{}))
	assert.Nil(t, Render(&Document{}, Options{}))

	doc, err := ParseDocument([]byte(`{"root":{"type":"root","children":null}}`))
	require.NoError(t, err)
	assert.Nil(t, Render(doc, Options{}))

	out, err := RenderHTML(doc, Options{})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestRenderEmptyDocumentKeepsContainer(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"root":{"type":"root","direction":"rtl","children":[]}}`))
	require.NoError(t, err)

	node := Render(doc, Options{Container: Attrs{"class": "prose"}})
	require.NotNil(t, node)
	assert.Nil(t, node.FirstChild)
	assert.Equal(t, `<div class="prose" dir="rtl"></div>`, renderString(t, doc, Options{Container: Attrs{"class": "prose"}}))
}

func TestRenderHeadingAndParagraph(t *testing.T) {
	doc := mustParse(t, `
		{"type":"heading","tag":"h1","children":[`+textJSON("Title", 0)+`]},
		{"type":"paragraph","children":[`+textJSON("a", 1)+`,`+textJSON(" b", 0)+`]}`)

	assert.Equal(t, `<div><h1>Title</h1><p><strong>a</strong> b</p></div>`, renderString(t, doc, Options{}))
}

func TestRenderSkipsEmptyParagraph(t *testing.T) {
	doc := mustParse(t, `
		{"type":"paragraph","children":[]},
		{"type":"heading","tag":"h2","children":[`+textJSON("Only", 0)+`]},
		{"type":"quote"}`)

	assert.Equal(t, `<div><h2>Only</h2></div>`, renderString(t, doc, Options{}))
}

func TestRenderEmptyHeading(t *testing.T) {
	doc := mustParse(t, `{"type":"heading","tag":"h4","children":[]}`)
	assert.Equal(t, `<div><h4></h4></div>`, renderString(t, doc, Options{}))
}

func TestTextFormats(t *testing.T) {
	tests := []struct {
		name   string
		format int
		want   string
	}{
		{"plain", 0, `x`},
		{"bold", 1, `<strong>x</strong>`},
		{"italic", 2, `<em>x</em>`},
		{"strikethrough", 4, `<s>x</s>`},
		{"underline", 8, `<u>x</u>`},
		{"code", 16, `<code>x</code>`},
		{"bold and underline", 1 | 8, `<u><strong>x</strong></u>`},
		{"bold and italic", 1 | 2, `<strong><em>x</em></strong>`},
		{"all but code", 1 | 2 | 4 | 8, `<u><s><strong><em>x</em></strong></s></u>`},
		// code wins and drops every other bit
		{"code with bold and italic", 16 | 1 | 2, `<code>x</code>`},
		{"code with everything", 31, `<code>x</code>`},
		{"unknown high bits", 32 | 64, `x`},
		{"subscript bit with bold", 64 | 1, `<strong>x</strong>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, `{"type":"paragraph","children":[`+textJSON("x", tt.format)+`]}`)
			assert.Equal(t, `<div><p>`+tt.want+`</p></div>`, renderString(t, doc, Options{}))
		})
	}
}

func TestTextAbsentLiteral(t *testing.T) {
	r := &renderer{maxDepth: DefaultMaxDepth}
	assert.Nil(t, r.text(&Text{Meta: Meta{Type: "text"}, Format: FormatBold}))

	empty := ""
	node := r.text(&Text{Meta: Meta{Type: "text"}, Value: &empty})
	require.NotNil(t, node)
	assert.Equal(t, html.TextNode, node.Type)
}

func TestTextStyleOnOutermostElement(t *testing.T) {
	opts := Options{Styles: map[Kind]Attrs{KindText: {"class": "t"}}}
	tests := []struct {
		format int
		want   string
	}{
		{0, `<span class="t">x</span>`},
		{1 | 8, `<u class="t"><strong>x</strong></u>`},
		{16 | 1, `<code class="t">x</code>`},
	}
	for _, tt := range tests {
		doc := mustParse(t, `{"type":"paragraph","children":[`+textJSON("x", tt.format)+`]}`)
		assert.Equal(t, `<div><p>`+tt.want+`</p></div>`, renderString(t, doc, opts))
	}
}

func TestRenderLinks(t *testing.T) {
	tests := []struct {
		name   string
		fields string
		want   string
	}{
		{
			"custom same tab",
			`{"linkType":"custom","url":"https://example.com/a","newTab":false}`,
			`<a href="https://example.com/a">go</a>`,
		},
		{
			"custom new tab",
			`{"linkType":"custom","url":"https://example.com/a","newTab":true}`,
			`<a href="https://example.com/a" rel="noopener noreferrer" target="_blank">go</a>`,
		},
		{
			"internal wrapper",
			`{"linkType":"internal","doc":{"relationTo":"pages","value":{"id":"1","slug":"x"}}}`,
			`<a href="/x">go</a>`,
		},
		{
			"internal direct",
			`{"linkType":"internal","newTab":true,"doc":{"id":"1","slug":"about"}}`,
			`<a href="/about" rel="noopener noreferrer" target="_blank">go</a>`,
		},
		{
			"internal bare id",
			`{"linkType":"internal","doc":"1"}`,
			`<span>go</span>`,
		},
		{
			"custom whitespace url",
			`{"linkType":"custom","url":"  "}`,
			`<a href="  ">go</a>`,
		},
		{
			"custom empty url",
			`{"linkType":"custom","url":""}`,
			`<span>go</span>`,
		},
		{
			"missing link type",
			`{"url":"https://example.com"}`,
			`<span>go</span>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, `{"type":"paragraph","children":[
				{"type":"link","fields":`+tt.fields+`,"children":[`+textJSON("go", 0)+`]}]}`)
			assert.Equal(t, `<div><p>`+tt.want+`</p></div>`, renderString(t, doc, Options{}))
		})
	}
}

func TestRenderTopLevelTextAndLink(t *testing.T) {
	doc := mustParse(t, textJSON("loose", 2)+`,
		{"type":"link","fields":{"linkType":"custom","url":"/a"},"children":[`+textJSON("l", 0)+`]}`)
	assert.Equal(t, `<div><em>loose</em><a href="/a">l</a></div>`, renderString(t, doc, Options{}))
}

func TestRenderUploads(t *testing.T) {
	tests := []struct {
		name string
		node string
		base string
		want string
	}{
		{
			"relative url joined to base",
			`{"type":"upload","relationTo":"media","value":{"url":"/img.png","alt":"pic","width":640,"height":480}}`,
			"https://cdn.x",
			`<img alt="pic" height="480" src="https://cdn.x/img.png" width="640"/>`,
		},
		{
			"absolute url unchanged",
			`{"type":"upload","relationTo":"media","value":{"url":"https://other/img.png"}}`,
			"https://cdn.x",
			`<img alt="" height="200" src="https://other/img.png" width="300"/>`,
		},
		{
			"other collection skipped",
			`{"type":"upload","relationTo":"documents","value":{"url":"/file.pdf"}}`,
			"https://cdn.x",
			``,
		},
		{
			"unresolved reference skipped",
			`{"type":"upload","relationTo":"media","value":"abc"}`,
			"",
			``,
		},
		{
			"filename without url skipped",
			`{"type":"upload","relationTo":"media","value":{"filename":"a.png"}}`,
			"",
			``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.node)
			assert.Equal(t, `<div>`+tt.want+`</div>`, renderString(t, doc, Options{MediaBaseURL: tt.base}))
		})
	}
}

func TestRenderLists(t *testing.T) {
	doc := mustParse(t, `
		{"type":"list","tag":"ol","listType":"number","start":3,"children":[
			{"type":"listitem","value":3,"children":[`+textJSON("one", 0)+`]},
			{"type":"listitem","value":4,"children":[`+textJSON("two", 1)+`]}
		]},
		{"type":"list","tag":"ul","children":[]},
		{"type":"list","listType":"check","children":[
			{"type":"listitem","checked":true,"children":[`+textJSON("done", 0)+`]}
		]}`)

	want := `<div>` +
		`<ol start="3"><li>one</li><li><strong>two</strong></li></ol>` +
		`<ul><li aria-checked="true" role="checkbox">done</li></ul>` +
		`</div>`
	assert.Equal(t, want, renderString(t, doc, Options{}))
}

func TestNestedListDegradesToSpan(t *testing.T) {
	doc := mustParse(t, `{"type":"list","tag":"ul","children":[
		{"type":"listitem","children":[`+textJSON("a", 0)+`,
			{"type":"list","tag":"ul","children":[{"type":"listitem","children":[`+textJSON("b", 0)+`]}]}
		]}]}`)
	assert.Equal(t, `<div><ul><li>a<span><span>b</span></span></li></ul></div>`, renderString(t, doc, Options{}))
}

func TestInlineContainerWithoutChildList(t *testing.T) {
	doc := mustParse(t, `{"type":"paragraph","children":[
		{"type":"paragraph"},
		{"type":"mention"},
		{"type":"mention","children":[]},
		`+textJSON("a", 0)+`]}`)
	assert.Equal(t, `<div><p><span></span>a</p></div>`, renderString(t, doc, Options{}))
}

func TestRenderCode(t *testing.T) {
	doc := mustParse(t, `
		{"type":"code","language":"go","children":[
			{"type":"code-highlight","text":"x := 1","format":1},
			{"type":"linebreak"},
			{"type":"code-highlight","text":"y","format":16}
		]},
		{"type":"code","language":"sql","children":[]},
		{"type":"code"}`)

	want := `<div>` +
		`<pre data-language="go"><code class="language-go">x := 1` + "\n" + `y</code></pre>` +
		`<pre data-language="sql"><code class="language-sql"></code></pre>` +
		`<pre><code></code></pre>` +
		`</div>`
	assert.Equal(t, want, renderString(t, doc, Options{}))
}

func TestRenderFixedBlocks(t *testing.T) {
	doc := mustParse(t, `{"type":"horizontalrule"},{"type":"linebreak"},
		{"type":"quote","children":[`+textJSON("q", 0)+`]}`)
	assert.Equal(t, `<div><hr/><br/><blockquote>q</blockquote></div>`, renderString(t, doc, Options{}))
}

func TestRenderGenericAndUnknown(t *testing.T) {
	doc := mustParse(t, `
		{"type":"banner","children":[{"type":"paragraph","children":[`+textJSON("inside", 0)+`]}]},
		{"type":"video","src":"x"},
		{"type":"paragraph","children":[{"type":"mention","children":[`+textJSON("@bob", 0)+`]},{"type":"emoji"}]}`)

	assert.Equal(t, `<div><div><p>inside</p></div><p><span>@bob</span></p></div>`, renderString(t, doc, Options{}))
}

func TestComponentOverrides(t *testing.T) {
	var gotChildren int
	opts := Options{Components: map[string]Component{
		"video": func(node Node, children []*html.Node) *html.Node {
			unknown, ok := node.(*Unknown)
			require.True(t, ok)
			el := newElement(atom.Video, nil)
			setAttr(el, "src", unknown.Raw["src"].(string))
			return el
		},
		"paragraph": func(node Node, children []*html.Node) *html.Node {
			gotChildren = len(children)
			section := newElement(atom.Section, nil)
			appendChildren(section, children)
			return section
		},
		"horizontalrule": func(Node, []*html.Node) *html.Node { return nil },
	}}

	doc := mustParse(t, `
		{"type":"video","src":"/v.mp4"},
		{"type":"paragraph","children":[`+textJSON("a", 1)+`,`+textJSON("b", 0)+`]},
		{"type":"horizontalrule"}`)

	assert.Equal(t, `<div><video src="/v.mp4"></video><section><strong>a</strong>b</section></div>`, renderString(t, doc, opts))
	assert.Equal(t, 2, gotChildren)
}

func TestStylesApplied(t *testing.T) {
	opts := Options{Styles: map[Kind]Attrs{
		KindHeading:   {"class": "title"},
		KindCode:      {"class": "block", "data-x": "1"},
		KindParagraph: {"style": "margin:0"},
	}}
	doc := mustParse(t, `
		{"type":"heading","tag":"h2","children":[`+textJSON("H", 0)+`]},
		{"type":"paragraph","children":[`+textJSON("p", 0)+`]},
		{"type":"code","language":"go","children":[]}`)

	want := `<div><h2 class="title">H</h2><p style="margin:0">p</p>` +
		`<pre class="block" data-language="go" data-x="1"><code class="language-go"></code></pre></div>`
	assert.Equal(t, want, renderString(t, doc, opts))
}

func TestMaxDepthDropsDeepNodes(t *testing.T) {
	nested := textJSON("deep", 0)
	for i := 0; i < 10; i++ {
		nested = `{"type":"wrapper","children":[` + nested + `]}`
	}
	doc := mustParse(t, nested)

	out := renderString(t, doc, Options{MaxDepth: 4})
	assert.NotContains(t, out, "deep")
	assert.Equal(t, 4, strings.Count(out, "<div>")-1)

	out = renderString(t, doc, Options{})
	assert.Contains(t, out, "deep")
}

func TestRenderIsDeterministic(t *testing.T) {
	doc := mustParse(t, `
		{"type":"heading","tag":"h1","children":[`+textJSON("T", 0)+`]},
		{"type":"upload","relationTo":"media","value":{"url":"a.png","alt":"a"}},
		{"type":"paragraph","children":[{"type":"link","fields":{"linkType":"custom","url":"/x","newTab":true},"children":[`+textJSON("x", 3)+`]}]}`)
	opts := Options{
		MediaBaseURL: "https://cdn.example.com/",
		Styles:       map[Kind]Attrs{KindUpload: {"loading": "lazy", "class": "img", "decoding": "async"}},
	}

	first := renderString(t, doc, opts)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, renderString(t, doc, opts))
	}
	assert.Contains(t, first, `<img alt="a" class="img" decoding="async" height="200" loading="lazy" src="https://cdn.example.com/a.png" width="300"/>`)
}

func TestRenderNodes(t *testing.T) {
	doc := mustParse(t, `{"type":"paragraph","children":[]},{"type":"horizontalrule"}`)
	nodes := RenderNodes(doc.Root.Children, Options{})
	require.Len(t, nodes, 1)
	assert.Equal(t, "hr", nodes[0].Data)
}

func TestPlainText(t *testing.T) {
	doc := mustParse(t, `
		{"type":"heading","tag":"h1","children":[`+textJSON("Café", 0)+`]},
		{"type":"paragraph","children":[`+textJSON("one", 1)+`,{"type":"linebreak"},`+textJSON("two", 0)+`]},
		{"type":"paragraph","children":[]},
		{"type":"list","tag":"ul","children":[{"type":"listitem","children":[`+textJSON("item", 0)+`]}]},
		{"type":"upload","relationTo":"media","value":{"url":"/a.png","alt":"photo"}}`)

	assert.Equal(t, "Café\none\ntwo\nitem\nphoto", PlainText(doc))
	assert.Equal(t, "", PlainText(nil))
}
