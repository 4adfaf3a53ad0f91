// Package structure defines the directory/file tree model shared by the
// parser, validator, builder, and scanner.
package structure

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Node is one entry in a structure tree: either a directory with an ordered
// child mapping, or a file leaf. Files carry no payload in the core model.
//
// A Node is exclusively owned by at most one parent mapping, so a tree is
// acyclic by construction.
type Node struct {
	dir      bool
	children *orderedmap.OrderedMap[string, *Node]
}

// NewFile returns a file leaf.
func NewFile() *Node {
	return &Node{}
}

// NewDir returns an empty directory node.
func NewDir() *Node {
	return &Node{dir: true, children: orderedmap.New[string, *Node]()}
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.dir
}

// Len returns the number of direct children. Files always report zero.
func (n *Node) Len() int {
	if !n.dir {
		return 0
	}
	return n.children.Len()
}

// Child returns the named direct child.
func (n *Node) Child(name string) (*Node, bool) {
	if !n.dir {
		return nil, false
	}
	return n.children.Get(name)
}

// Set inserts or replaces the named child. It is a no-op on file nodes.
func (n *Node) Set(name string, child *Node) {
	if n.dir {
		n.children.Set(name, child)
	}
}

// EnsureDir returns the named child as a directory, creating it if absent.
// An existing file child is upgraded to a directory; the second result
// reports that conversion so callers can surface a warning.
func (n *Node) EnsureDir(name string) (*Node, bool) {
	if !n.dir {
		return nil, false
	}
	if existing, ok := n.children.Get(name); ok {
		if existing.dir {
			return existing, false
		}
		d := NewDir()
		n.children.Set(name, d)
		return d, true
	}
	d := NewDir()
	n.children.Set(name, d)
	return d, false
}

// EnsureFile adds a file child if the name is unused and returns the child.
// An existing child of either kind is kept as-is: directories implicitly
// created by a deeper path are never downgraded to files.
func (n *Node) EnsureFile(name string) *Node {
	if !n.dir {
		return nil
	}
	if existing, ok := n.children.Get(name); ok {
		return existing
	}
	f := NewFile()
	n.children.Set(name, f)
	return f
}

// Each calls fn for every direct child in insertion order.
func (n *Node) Each(fn func(name string, child *Node)) {
	if !n.dir {
		return
	}
	for pair := n.children.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Names returns the child names in insertion order.
func (n *Node) Names() []string {
	if !n.dir {
		return nil
	}
	out := make([]string, 0, n.children.Len())
	for pair := n.children.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Equal reports structural equality: same kinds and same child names with
// equal subtrees, ignoring child ordering.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.dir != o.dir {
		return false
	}
	if !n.dir {
		return true
	}
	if n.children.Len() != o.children.Len() {
		return false
	}
	for pair := n.children.Oldest(); pair != nil; pair = pair.Next() {
		other, ok := o.children.Get(pair.Key)
		if !ok || !pair.Value.Equal(other) {
			return false
		}
	}
	return true
}

// Count returns the total number of entries in the tree, excluding the
// receiver itself.
func (n *Node) Count() int {
	total := 0
	n.Each(func(_ string, child *Node) {
		total += 1 + child.Count()
	})
	return total
}

// MarshalJSON renders a directory as an object in insertion order and a file
// as null, matching the nested JSON input notation.
func (n *Node) MarshalJSON() ([]byte, error) {
	if !n.dir {
		return []byte("null"), nil
	}
	return json.Marshal(n.children)
}

// UnmarshalJSON is the inverse of MarshalJSON: null becomes a file, an
// object becomes a directory with children in document order.
func (n *Node) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		n.dir = false
		n.children = nil
		return nil
	}
	om := orderedmap.New[string, *Node]()
	if err := json.Unmarshal(data, &om); err != nil {
		return err
	}
	n.dir = true
	n.children = om
	return nil
}
