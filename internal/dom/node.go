package dom

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NodeType mirrors the DOM nodeType values reported by the page snapshot.
type NodeType int

const (
	ElementNode  NodeType = 1
	TextNode     NodeType = 3
	CommentNode  NodeType = 8
	DocumentNode NodeType = 9
)

// Rect is a bounding box in viewport coordinates at capture time.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func (r Rect) Right() float64 {
	return r.X + r.Width
}

func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// Style holds the computed style properties the oracles consult.
type Style struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
	Opacity    string `json:"opacity"`
	Cursor     string `json:"cursor"`
}

// Node is one node of a live page snapshot. Ref is the index of the element
// in the in-page registry that produced the snapshot.
type Node struct {
	Type       NodeType          `json:"nodeType"`
	Ref        int               `json:"ref"`
	TagName    string            `json:"tagName"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Style      Style             `json:"style"`
	Rect       Rect              `json:"rect"`
	Text       string            `json:"text,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
}

// Tag returns the lowercase tag name.
func (n *Node) Tag() string {
	return strings.ToLower(n.TagName)
}

// Attr returns the attribute value and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	if n.Attributes == nil {
		return "", false
	}

	v, ok := n.Attributes[name]

	return v, ok
}

// Viewport describes the visible area of the page at capture time.
type Viewport struct {
	Width   float64 `json:"width" yaml:"width"`
	Height  float64 `json:"height" yaml:"height"`
	ScrollX float64 `json:"scrollX" yaml:"scrollX"`
	ScrollY float64 `json:"scrollY" yaml:"scrollY"`
}

// CaptureOptions bounds the in-page walk that produces a Snapshot.
type CaptureOptions struct {
	Generation string `json:"generation"`
	MaxDepth   int    `json:"maxDepth"`
	MaxNodes   int    `json:"maxNodes"`
}

// Snapshot is one capture of a page's DOM and layout. Generation identifies
// the element registry the refs point into.
type Snapshot struct {
	Generation string   `json:"generation"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Viewport   Viewport `json:"viewport"`
	Truncated  bool     `json:"truncated"`
	Root       *Node    `json:"root"`
}

// ParseSnapshot decodes the JSON produced by the in-page snapshot script.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return &snap, nil
}
