package dom

import (
	"fmt"
	"strings"
)

const maxRenderedText = 100

var renderedAttributes = []string{
	"type", "name", "role", "aria-label", "placeholder", "value", "title", "alt", "href",
}

// Render lists the interactive elements of a build, one per line, in the
// form the decision provider addresses them: [index]<tag attrs>text</tag>.
func Render(selectors *SelectorMap) string {
	if selectors.Len() == 0 {
		return ""
	}

	var b strings.Builder
	for _, entry := range selectors.Entries() {
		d := entry.Descriptor
		fmt.Fprintf(&b, "[%d]<%s", entry.Index, d.TagName)

		for _, name := range renderedAttributes {
			if v, ok := d.Attributes[name]; ok && v != "" {
				fmt.Fprintf(&b, " %s=%q", name, truncate(v, maxRenderedText))
			}
		}

		fmt.Fprintf(&b, ">%s</%s>", truncate(ownText(d), maxRenderedText), d.TagName)

		if !d.InViewport {
			b.WriteString(" (outside viewport)")
		}

		b.WriteByte('\n')
	}

	return b.String()
}

// ownText joins the text of d and its non-interactive descendants.
func ownText(d *ElementDescriptor) string {
	var parts []string

	stack := []*ElementDescriptor{d}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur != d && cur.Interactive {
			continue
		}

		if cur.Text != "" {
			parts = append(parts, cur.Text)
		}

		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}

	return strings.Join(parts, " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit]) + "..."
}
