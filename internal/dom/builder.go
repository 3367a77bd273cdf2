package dom

import "strings"

const (
	DefaultViewportExpansion = 500
	DefaultMaxDepth          = 256
	NoFocus                  = -1
)

var skippedTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"meta":     {},
	"link":     {},
}

// Options tunes one build. HighlightElements and FocusIndex are consumed by
// the caller that renders overlays; the walk itself only reads the rest.
type Options struct {
	HighlightElements bool
	FocusIndex        int
	ViewportExpansion int
	MaxDepth          int
}

func DefaultOptions() Options {
	return Options{
		HighlightElements: false,
		FocusIndex:        NoFocus,
		ViewportExpansion: DefaultViewportExpansion,
		MaxDepth:          DefaultMaxDepth,
	}
}

// HasFocus reports whether a focus index was requested.
func (o Options) HasFocus() bool {
	return o.FocusIndex >= 0
}

type frame struct {
	node   *Node
	parent *ElementDescriptor
	depth  int
}

// Build walks the snapshot in pre-order and returns the retained element tree
// together with the selector map for its interactive elements.
//
// Invisible or off-viewport elements are pruned with their subtrees. Children
// of an element are kept only when at least one survives. A root that does
// not survive yields an empty tree and an empty map.
func Build(snap *Snapshot, opts Options) (*Tree, *SelectorMap) {
	if snap == nil {
		return &Tree{}, newSelectorMap("")
	}

	tree := &Tree{
		Generation: snap.Generation,
		URL:        snap.URL,
		Title:      snap.Title,
		Viewport:   snap.Viewport,
	}
	selectors := newSelectorMap(snap.Generation)

	if snap.Root == nil {
		return tree, selectors
	}

	expansion := float64(opts.ViewportExpansion)
	if opts.ViewportExpansion < 0 {
		expansion = 0
	}

	stack := []frame{{node: snap.Root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		desc, ok := describe(f.node, snap.Viewport, expansion)
		if !ok {
			continue
		}

		if desc.Interactive {
			index := selectors.add(desc)
			desc.InteractiveIndex = &index
		}

		if f.parent == nil {
			tree.Root = desc
		} else {
			f.parent.Children = append(f.parent.Children, desc)
		}

		if opts.MaxDepth > 0 && f.depth >= opts.MaxDepth {
			continue
		}

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], parent: desc, depth: f.depth + 1})
		}
	}

	return tree, selectors
}

func describe(n *Node, viewport Viewport, expansion float64) (*ElementDescriptor, bool) {
	if n == nil || n.Type != ElementNode {
		return nil, false
	}

	if !IsVisible(n) {
		return nil, false
	}

	tag := n.Tag()
	if _, skip := skippedTags[tag]; skip {
		return nil, false
	}

	if !IsInExpandedViewport(n.Rect, viewport, expansion) {
		return nil, false
	}

	desc := &ElementDescriptor{
		TagName:     tag,
		Ref:         n.Ref,
		Text:        collapseSpace(n.Text),
		BoundingBox: n.Rect,
		Interactive: IsInteractive(n),
		InViewport:  IsInExpandedViewport(n.Rect, viewport, 0),
	}

	if len(n.Attributes) > 0 {
		desc.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			desc.Attributes[k] = v
		}

		desc.ID = n.Attributes["id"]
		desc.ClassName = n.Attributes["class"]
	}

	return desc, true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
