// Package extract pulls data out of page HTML by CSS selector, XPath,
// regular expression or embedded structured data.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

type Strategy string

const (
	StrategyCSS       Strategy = "css"
	StrategyXPath     Strategy = "xpath"
	StrategyRegex     Strategy = "regex"
	StrategyJSONLD    Strategy = "json_ld"
	StrategyMicrodata Strategy = "microdata"
)

// Strategies lists the accepted strategy names.
var Strategies = []Strategy{StrategyCSS, StrategyXPath, StrategyRegex, StrategyJSONLD, StrategyMicrodata}

// Config selects what to extract. Query is a CSS selector, an XPath
// expression, a regular expression or, for microdata, an itemtype filter.
// Attribute picks an attribute instead of the element text.
type Config struct {
	Strategy  Strategy
	Query     string
	Attribute string
	Multiple  bool
}

// Extractor holds one parsed document.
type Extractor struct {
	raw  string
	root *html.Node
	doc  *goquery.Document
}

func New(content string) (*Extractor, error) {
	root, err := htmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return &Extractor{
		raw:  content,
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}, nil
}

// Extract returns the matched values. Without Multiple at most one value is
// returned.
func (e *Extractor) Extract(cfg Config) ([]any, error) {
	var (
		values []any
		err    error
	)

	switch cfg.Strategy {
	case StrategyCSS, "":
		values, err = e.css(cfg)
	case StrategyXPath:
		values, err = e.xpath(cfg)
	case StrategyRegex:
		values, err = e.regex(cfg)
	case StrategyJSONLD:
		values = e.JSONLD()
	case StrategyMicrodata:
		values = e.microdata(cfg.Query)
	default:
		return nil, fmt.Errorf("unsupported extraction strategy %q", cfg.Strategy)
	}

	if err != nil {
		return nil, err
	}

	if !cfg.Multiple && len(values) > 1 {
		values = values[:1]
	}

	return values, nil
}

func (e *Extractor) css(cfg Config) ([]any, error) {
	if cfg.Query == "" {
		return nil, fmt.Errorf("css extraction needs a selector")
	}

	var values []any
	e.doc.Find(cfg.Query).Each(func(_ int, s *goquery.Selection) {
		if cfg.Attribute != "" {
			if v, ok := s.Attr(cfg.Attribute); ok {
				values = append(values, v)
			}
			return
		}

		values = append(values, squash(s.Text()))
	})

	return values, nil
}

func (e *Extractor) xpath(cfg Config) ([]any, error) {
	nodes, err := htmlquery.QueryAll(e.root, cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", cfg.Query, err)
	}

	values := make([]any, 0, len(nodes))
	for _, n := range nodes {
		if cfg.Attribute != "" {
			if v := htmlquery.SelectAttr(n, cfg.Attribute); v != "" {
				values = append(values, v)
			}
			continue
		}

		values = append(values, squash(htmlquery.InnerText(n)))
	}

	return values, nil
}

// regex matches against the raw HTML; when the pattern has groups the first
// group is returned.
func (e *Extractor) regex(cfg Config) ([]any, error) {
	if cfg.Query == "" {
		return nil, fmt.Errorf("regex extraction needs a pattern")
	}

	re, err := regexp.Compile("(?s)" + cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", cfg.Query, err)
	}

	limit := 1
	if cfg.Multiple {
		limit = -1
	}

	var values []any
	for _, m := range re.FindAllStringSubmatch(e.raw, limit) {
		if len(m) > 1 {
			values = append(values, m[1])
		} else {
			values = append(values, m[0])
		}
	}

	return values, nil
}

// JSONLD decodes every application/ld+json block; malformed blocks are skipped.
func (e *Extractor) JSONLD() []any {
	var values []any
	e.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err == nil {
			values = append(values, v)
		}
	})

	return values
}

func (e *Extractor) microdata(itemType string) []any {
	var values []any
	e.doc.Find("[itemscope]").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("itemtype")
		if itemType != "" && !strings.Contains(typ, itemType) {
			return
		}

		item := map[string]any{"@type": typ}
		s.Find("[itemprop]").Each(func(_ int, p *goquery.Selection) {
			name, _ := p.Attr("itemprop")
			item[name] = propValue(p)
		})

		values = append(values, item)
	})

	return values
}

func propValue(p *goquery.Selection) string {
	attr := ""
	switch goquery.NodeName(p) {
	case "meta":
		attr = "content"
	case "img":
		attr = "src"
	case "a", "link":
		attr = "href"
	case "time":
		attr = "datetime"
	}

	if attr != "" {
		v, _ := p.Attr(attr)
		return v
	}

	return squash(p.Text())
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Extract parses content and runs one extraction.
func Extract(content string, cfg Config) ([]any, error) {
	e, err := New(content)
	if err != nil {
		return nil, err
	}

	return e.Extract(cfg)
}

// StructuredData parses content and collects its structured data.
func StructuredData(content string) (*Structured, error) {
	e, err := New(content)
	if err != nil {
		return nil, err
	}

	return e.Structured(), nil
}
