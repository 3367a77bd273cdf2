package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
	"browser-agent/internal/extract"
)

// Format represents the output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat accepts the --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatText:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Texter is implemented by values with a human readable rendering.
type Texter interface {
	Text() string
}

// Observation is the document printed by the observe command.
type Observation struct {
	URL            string              `json:"url" yaml:"url"`
	Title          string              `json:"title" yaml:"title"`
	Generation     string              `json:"generation" yaml:"generation"`
	TS             int64               `json:"ts" yaml:"ts"`
	Interactive    int                 `json:"interactive" yaml:"interactive"`
	ScreenshotPath string              `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
	Tree           *dom.Tree           `json:"tree" yaml:"tree"`
	Structured     *extract.Structured `json:"structured,omitempty" yaml:"structured,omitempty"`
	Extracted      []any               `json:"extracted,omitempty" yaml:"extracted,omitempty"`

	elements string
}

// NewObservation projects a page state onto its printable form.
func NewObservation(state *entity.PageState) *Observation {
	if state == nil {
		return &Observation{}
	}

	ts := state.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &Observation{
		URL:            state.URL,
		Title:          state.Title,
		Generation:     state.Selectors.Generation(),
		TS:             ts.Unix(),
		Interactive:    state.Selectors.Len(),
		ScreenshotPath: state.ScreenshotPath,
		Tree:           state.Tree,
		elements:       state.Elements,
	}
}

func (o *Observation) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "URL: %s\nTitle: %s\n", o.URL, o.Title)

	if o.ScreenshotPath != "" {
		fmt.Fprintf(&b, "Screenshot: %s\n", o.ScreenshotPath)
	}

	fmt.Fprintf(&b, "\nInteractive elements (%d):\n", o.Interactive)

	if o.elements == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(o.elements)
	}

	if summary := o.Structured.Summary(); summary != "" {
		fmt.Fprintf(&b, "\nPage data:\n%s\n", summary)
	}

	if len(o.Extracted) > 0 {
		fmt.Fprintf(&b, "\nExtracted (%d):\n%s", len(o.Extracted), Values(o.Extracted))
	}

	return b.String()
}

// Values renders extraction results one per line.
func Values(values []any) string {
	var b strings.Builder

	for i, v := range values {
		switch v := v.(type) {
		case string:
			fmt.Fprintf(&b, "%d. %s\n", i+1, v)
		default:
			raw, err := marshalCompact(v)
			if err != nil {
				fmt.Fprintf(&b, "%d. %v\n", i+1, v)
				continue
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, raw)
		}
	}

	return b.String()
}

// Print serializes v to w in the given format.
func Print(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		return PrintJSON(w, v, true)
	case FormatYAML:
		return PrintYAML(w, v)
	case FormatText, "":
		return PrintText(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// PrintText writes the Text rendering of v, or its default formatting.
func PrintText(w io.Writer, v any) error {
	var s string

	switch v := v.(type) {
	case Texter:
		s = v.Text()
	case []any:
		s = Values(v)
	case string:
		s = v
	default:
		s = fmt.Sprintf("%v", v)
	}

	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}

	_, err := io.WriteString(w, s)

	return err
}
