package dom

// IsVisible reports whether an element node is rendered with a non-empty box.
// The check reads only the captured computed style and rect; it never fails.
func IsVisible(n *Node) bool {
	if n == nil || n.Type != ElementNode {
		return false
	}

	switch {
	case n.Style.Display == "none":
		return false
	case n.Style.Visibility == "hidden":
		return false
	case n.Style.Opacity == "0":
		return false
	}

	return n.Rect.Width > 0 && n.Rect.Height > 0
}

// IsInExpandedViewport reports whether rect overlaps the viewport grown by
// expansion pixels on every side. A rect touching the edge counts as inside.
func IsInExpandedViewport(rect Rect, viewport Viewport, expansion float64) bool {
	top := -expansion
	left := -expansion
	bottom := viewport.Height + expansion
	right := viewport.Width + expansion

	if rect.Bottom() < top || rect.Y > bottom {
		return false
	}

	if rect.Right() < left || rect.X > right {
		return false
	}

	return true
}
