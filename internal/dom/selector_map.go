package dom

import (
	"context"
	"fmt"
)

// Ref locates an element registered in the page by one snapshot.
type Ref struct {
	Generation string
	ID         int
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.Generation, r.ID)
}

// Handle is a driver-owned reference to a live element, valid until released.
type Handle interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	Release()
}

// Entry binds an interactive index to the element it was assigned to.
type Entry struct {
	Index      int
	Ref        Ref
	Descriptor *ElementDescriptor
}

// SelectorMap maps the interactive indices of one build to element refs.
// Indices are contiguous from zero, so entries are stored by position.
type SelectorMap struct {
	generation string
	entries    []Entry
}

func newSelectorMap(generation string) *SelectorMap {
	return &SelectorMap{generation: generation}
}

func (m *SelectorMap) add(desc *ElementDescriptor) int {
	index := len(m.entries)
	m.entries = append(m.entries, Entry{
		Index:      index,
		Ref:        Ref{Generation: m.generation, ID: desc.Ref},
		Descriptor: desc,
	})

	return index
}

// Lookup returns the entry for index.
func (m *SelectorMap) Lookup(index int) (Entry, bool) {
	if m == nil || index < 0 || index >= len(m.entries) {
		return Entry{}, false
	}

	return m.entries[index], true
}

func (m *SelectorMap) Len() int {
	if m == nil {
		return 0
	}

	return len(m.entries)
}

func (m *SelectorMap) Generation() string {
	if m == nil {
		return ""
	}

	return m.generation
}

// Entries returns the entries in index order.
func (m *SelectorMap) Entries() []Entry {
	if m == nil {
		return nil
	}

	out := make([]Entry, len(m.entries))
	copy(out, m.entries)

	return out
}
