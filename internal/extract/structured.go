package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is one HTML table keyed by its header cells.
type Table struct {
	Headers []string            `json:"headers" yaml:"headers"`
	Rows    []map[string]string `json:"rows" yaml:"rows"`
}

// Structured gathers the machine-readable parts of a page.
type Structured struct {
	Title       string            `json:"title,omitempty" yaml:"title,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Canonical   string            `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	OpenGraph   map[string]string `json:"openGraph,omitempty" yaml:"openGraph,omitempty"`
	JSONLD      []any             `json:"jsonLd,omitempty" yaml:"jsonLd,omitempty"`
	Microdata   []any             `json:"microdata,omitempty" yaml:"microdata,omitempty"`
	Tables      []Table           `json:"tables,omitempty" yaml:"tables,omitempty"`
}

func (e *Extractor) Structured() *Structured {
	s := &Structured{
		Title:     squash(e.doc.Find("title").First().Text()),
		JSONLD:    e.JSONLD(),
		Microdata: e.microdata(""),
		Tables:    e.Tables(),
	}

	s.Description, _ = e.doc.Find(`meta[name="description"]`).First().Attr("content")
	s.Canonical, _ = e.doc.Find(`link[rel="canonical"]`).First().Attr("href")

	e.doc.Find(`meta[property^="og:"]`).Each(func(_ int, m *goquery.Selection) {
		prop, _ := m.Attr("property")
		content, _ := m.Attr("content")
		if s.OpenGraph == nil {
			s.OpenGraph = map[string]string{}
		}
		s.OpenGraph[strings.TrimPrefix(prop, "og:")] = content
	})

	return s
}

// Tables reads every table. Headers come from th cells, else from the first
// row, else column_N names.
func (e *Extractor) Tables() []Table {
	var tables []Table
	e.doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		rows := t.Find("tr")
		if rows.Length() == 0 {
			return
		}

		var headers []string
		t.Find("th").Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, squash(th.Text()))
		})

		dataRows := rows
		if len(headers) == 0 {
			rows.First().Find("td").Each(func(_ int, td *goquery.Selection) {
				headers = append(headers, squash(td.Text()))
			})
			dataRows = rows.Slice(1, rows.Length())
		}

		for i, h := range headers {
			if h == "" {
				headers[i] = fmt.Sprintf("column_%d", i)
			}
		}

		table := Table{Headers: headers}
		dataRows.Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			if cells.Length() == 0 {
				return
			}

			row := map[string]string{}
			cells.Each(func(i int, td *goquery.Selection) {
				if i < len(headers) {
					row[headers[i]] = squash(td.Text())
				}
			})
			table.Rows = append(table.Rows, row)
		})

		tables = append(tables, table)
	})

	return tables
}

// Summary renders the structured data as a few prompt lines.
func (s *Structured) Summary() string {
	if s == nil {
		return ""
	}

	var b strings.Builder
	if s.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", s.Description)
	}

	if types := jsonLDTypes(s.JSONLD); len(types) > 0 {
		fmt.Fprintf(&b, "JSON-LD types: %s\n", strings.Join(types, ", "))
	}

	if len(s.Microdata) > 0 {
		fmt.Fprintf(&b, "Microdata items: %d\n", len(s.Microdata))
	}

	for i, t := range s.Tables {
		fmt.Fprintf(&b, "Table %d: %d rows, columns %s\n", i, len(t.Rows), strings.Join(t.Headers, " | "))
	}

	return b.String()
}

func jsonLDTypes(blocks []any) []string {
	var types []string
	var visit func(v any)
	visit = func(v any) {
		switch node := v.(type) {
		case map[string]any:
			if t, ok := node["@type"].(string); ok {
				types = append(types, t)
			}
			if graph, ok := node["@graph"]; ok {
				visit(graph)
			}
		case []any:
			for _, item := range node {
				visit(item)
			}
		}
	}

	for _, block := range blocks {
		visit(block)
	}

	return types
}
