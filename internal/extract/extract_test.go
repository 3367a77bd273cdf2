package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html>
<head>
  <title> Catalog  page </title>
  <meta name="description" content="All the widgets">
  <meta property="og:title" content="Widgets">
  <meta property="og:type" content="website">
  <link rel="canonical" href="https://shop.example/catalog">
  <script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Widget"}</script>
  <script type="application/ld+json">{not json</script>
</head>
<body>
  <ul id="items">
    <li class="item"><a href="/w/1">Widget
      one</a> <span class="price">$10</span></li>
    <li class="item"><a href="/w/2">Widget two</a> <span class="price">$12</span></li>
  </ul>
  <div itemscope itemtype="https://schema.org/Offer">
    <span itemprop="name">Deal</span>
    <meta itemprop="priceCurrency" content="USD">
    <a itemprop="url" href="/deal">see</a>
    <time itemprop="validThrough" datetime="2026-12-31">Dec 31</time>
  </div>
  <table>
    <tr><th>Name</th><th>Qty</th></tr>
    <tr><td>Bolt</td><td>4</td></tr>
    <tr><td>Nut</td><td>9</td></tr>
  </table>
  <table>
    <tr><td>Key</td><td></td></tr>
    <tr><td>a</td><td>1</td></tr>
  </table>
</body>
</html>`

func newExtractor(t *testing.T) *Extractor {
	t.Helper()

	e, err := New(page)
	require.NoError(t, err)

	return e
}

func TestExtractStrategies(t *testing.T) {
	e := newExtractor(t)

	tests := []struct {
		name string
		cfg  Config
		want []any
	}{
		{
			name: "css text collapses whitespace",
			cfg:  Config{Strategy: StrategyCSS, Query: "li.item a", Multiple: true},
			want: []any{"Widget one", "Widget two"},
		},
		{
			name: "css single keeps first",
			cfg:  Config{Strategy: StrategyCSS, Query: ".price"},
			want: []any{"$10"},
		},
		{
			name: "css attribute",
			cfg:  Config{Strategy: StrategyCSS, Query: "li.item a", Attribute: "href", Multiple: true},
			want: []any{"/w/1", "/w/2"},
		},
		{
			name: "empty strategy means css",
			cfg:  Config{Query: "title"},
			want: []any{"Catalog page"},
		},
		{
			name: "xpath text",
			cfg:  Config{Strategy: StrategyXPath, Query: "//span[@class='price']", Multiple: true},
			want: []any{"$10", "$12"},
		},
		{
			name: "xpath attribute",
			cfg:  Config{Strategy: StrategyXPath, Query: "//link[@rel='canonical']", Attribute: "href"},
			want: []any{"https://shop.example/catalog"},
		},
		{
			name: "regex first group",
			cfg:  Config{Strategy: StrategyRegex, Query: `\$(\d+)`, Multiple: true},
			want: []any{"10", "12"},
		},
		{
			name: "regex whole match single",
			cfg:  Config{Strategy: StrategyRegex, Query: `/w/\d`},
			want: []any{"/w/1"},
		},
		{
			name: "regex no match",
			cfg:  Config{Strategy: StrategyRegex, Query: `nothing-here`},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractErrors(t *testing.T) {
	e := newExtractor(t)

	for _, cfg := range []Config{
		{Strategy: "soup", Query: "a"},
		{Strategy: StrategyCSS},
		{Strategy: StrategyRegex},
		{Strategy: StrategyRegex, Query: "(unclosed"},
		{Strategy: StrategyXPath, Query: "//a[@"},
	} {
		_, err := e.Extract(cfg)
		assert.Error(t, err, "strategy %q query %q", cfg.Strategy, cfg.Query)
	}
}

func TestJSONLDSkipsMalformedBlocks(t *testing.T) {
	e := newExtractor(t)

	got, err := e.Extract(Config{Strategy: StrategyJSONLD, Multiple: true})
	require.NoError(t, err)
	require.Len(t, got, 1)

	block, ok := got[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Product", block["@type"])
	assert.Equal(t, "Widget", block["name"])
}

func TestMicrodata(t *testing.T) {
	e := newExtractor(t)

	got, err := e.Extract(Config{Strategy: StrategyMicrodata, Query: "Offer"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, map[string]any{
		"@type":         "https://schema.org/Offer",
		"name":          "Deal",
		"priceCurrency": "USD",
		"url":           "/deal",
		"validThrough":  "2026-12-31",
	}, got[0])

	none, err := e.Extract(Config{Strategy: StrategyMicrodata, Query: "Recipe"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStructured(t *testing.T) {
	s := newExtractor(t).Structured()

	assert.Equal(t, "Catalog page", s.Title)
	assert.Equal(t, "All the widgets", s.Description)
	assert.Equal(t, "https://shop.example/catalog", s.Canonical)
	assert.Equal(t, map[string]string{"title": "Widgets", "type": "website"}, s.OpenGraph)
	assert.Len(t, s.JSONLD, 1)
	assert.Len(t, s.Microdata, 1)

	require.Len(t, s.Tables, 2)
	assert.Equal(t, []string{"Name", "Qty"}, s.Tables[0].Headers)
	assert.Equal(t, []map[string]string{
		{"Name": "Bolt", "Qty": "4"},
		{"Name": "Nut", "Qty": "9"},
	}, s.Tables[0].Rows)

	assert.Equal(t, []string{"Key", "column_1"}, s.Tables[1].Headers)
	assert.Equal(t, []map[string]string{{"Key": "a", "column_1": "1"}}, s.Tables[1].Rows)

	summary := s.Summary()
	assert.Contains(t, summary, "Description: All the widgets")
	assert.Contains(t, summary, "JSON-LD types: Product")
	assert.Contains(t, summary, "Microdata items: 1")
	assert.Contains(t, summary, "Table 0: 2 rows, columns Name | Qty")
}

func TestSummaryOfNilAndEmpty(t *testing.T) {
	var s *Structured
	assert.Empty(t, s.Summary())

	e, err := New("<p>plain</p>")
	require.NoError(t, err)
	assert.Empty(t, e.Structured().Summary())
}

func TestJSONLDGraphTypes(t *testing.T) {
	blocks := []any{
		map[string]any{"@graph": []any{
			map[string]any{"@type": "Article"},
			map[string]any{"@type": "Person"},
		}},
		[]any{map[string]any{"@type": "Event"}},
	}

	assert.Equal(t, []string{"Article", "Person", "Event"}, jsonLDTypes(blocks))
}

func TestPackageHelpers(t *testing.T) {
	got, err := Extract(page, Config{Strategy: StrategyCSS, Query: "#items .price", Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, []any{"$10", "$12"}, got)

	s, err := StructuredData(page)
	require.NoError(t, err)
	assert.Equal(t, "Widgets", s.OpenGraph["title"])
}
