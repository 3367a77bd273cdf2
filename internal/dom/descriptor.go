package dom

// ElementDescriptor is the serializable view of one retained element.
type ElementDescriptor struct {
	TagName          string               `json:"tagName" yaml:"tagName"`
	Ref              int                  `json:"-" yaml:"-"`
	ID               string               `json:"id,omitempty" yaml:"id,omitempty"`
	ClassName        string               `json:"className,omitempty" yaml:"className,omitempty"`
	Attributes       map[string]string    `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Text             string               `json:"text,omitempty" yaml:"text,omitempty"`
	BoundingBox      Rect                 `json:"boundingBox" yaml:"boundingBox"`
	Interactive      bool                 `json:"interactive" yaml:"interactive"`
	InViewport       bool                 `json:"inViewport" yaml:"inViewport"`
	InteractiveIndex *int                 `json:"interactiveIndex,omitempty" yaml:"interactiveIndex,omitempty"`
	Children         []*ElementDescriptor `json:"children,omitempty" yaml:"children,omitempty"`
}

// Index returns the interactive index, if one was assigned.
func (d *ElementDescriptor) Index() (int, bool) {
	if d == nil || d.InteractiveIndex == nil {
		return 0, false
	}

	return *d.InteractiveIndex, true
}

// Walk visits d and its descendants in pre-order until fn returns false.
func (d *ElementDescriptor) Walk(fn func(*ElementDescriptor) bool) {
	if d == nil {
		return
	}

	stack := []*ElementDescriptor{d}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(cur) {
			return
		}

		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// Count returns the number of descriptors in the subtree rooted at d.
func (d *ElementDescriptor) Count() int {
	n := 0
	d.Walk(func(*ElementDescriptor) bool {
		n++
		return true
	})

	return n
}

// Tree is the result of one build over a snapshot.
type Tree struct {
	Generation string             `json:"generation" yaml:"generation"`
	URL        string             `json:"url" yaml:"url"`
	Title      string             `json:"title" yaml:"title"`
	Viewport   Viewport           `json:"viewport" yaml:"viewport"`
	Root       *ElementDescriptor `json:"root" yaml:"root"`
}

// Empty reports whether the build retained no elements.
func (t *Tree) Empty() bool {
	return t == nil || t.Root == nil
}
