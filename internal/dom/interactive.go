package dom

import "strings"

var interactiveTags = map[string]struct{}{
	"a":        {},
	"button":   {},
	"input":    {},
	"select":   {},
	"textarea": {},
	"details":  {},
	"audio":    {},
	"video":    {},
	"iframe":   {},
	"menuitem": {},
}

var interactiveRoles = map[string]struct{}{
	"button":   {},
	"link":     {},
	"checkbox": {},
	"menuitem": {},
	"tab":      {},
	"switch":   {},
	"radio":    {},
	"combobox": {},
	"slider":   {},
	"menu":     {},
	"menubar":  {},
}

// IsInteractive classifies an element as something a user can act on.
// Checks run cheapest first and the first match wins. Any attribute whose
// name starts with "on" counts as a handler, so attributes like "one" or
// "online" also match. Disabled state is not consulted.
func IsInteractive(n *Node) bool {
	if n == nil || n.Type != ElementNode {
		return false
	}

	if _, ok := interactiveTags[n.Tag()]; ok {
		return true
	}

	if role, ok := n.Attr("role"); ok {
		if _, ok := interactiveRoles[strings.ToLower(strings.TrimSpace(role))]; ok {
			return true
		}
	}

	for name := range n.Attributes {
		if strings.HasPrefix(strings.ToLower(name), "on") {
			return true
		}
	}

	if tabindex, ok := n.Attr("tabindex"); ok && tabindex != "-1" {
		return true
	}

	return n.Style.Cursor == "pointer"
}
