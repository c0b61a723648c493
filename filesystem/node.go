package filesystem

import (
	"slices"

	"github.com/brettbedarf/treefs"
)

// Node is one arena slot's payload. Nodes are owned by the [Arena] and only
// ever referenced elsewhere by id.
type Node struct {
	id       treefs.NodeID
	name     string
	kind     treefs.Kind
	content  []byte
	parent   treefs.NodeID
	children []treefs.NodeID // insertion order
}

// reset clears the node to the free-slot defaults
func (n *Node) reset() {
	n.id = treefs.InvalidID
	n.name = ""
	n.kind = treefs.KindInvalid
	n.content = nil
	n.parent = treefs.InvalidID
	n.children = nil
}

func (n *Node) ID() treefs.NodeID     { return n.id }
func (n *Node) Name() string          { return n.name }
func (n *Node) Kind() treefs.Kind     { return n.kind }
func (n *Node) Parent() treefs.NodeID { return n.parent }

// Children returns a copy of the child ids in insertion order
func (n *Node) Children() []treefs.NodeID {
	return slices.Clone(n.children)
}

// IsRoot reports whether this node is the tree root
func (n *Node) IsRoot() bool {
	return n.kind == treefs.KindRoot
}

// addChild appends id to the children list.
// Caller is responsible for the capacity and name checks.
func (n *Node) addChild(id treefs.NodeID) {
	n.children = append(n.children, id)
}

// removeChild drops id keeping the relative order of the remaining children
func (n *Node) removeChild(id treefs.NodeID) bool {
	i := slices.Index(n.children, id)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	return true
}

// entry returns the read-only view of the node
func (n *Node) entry() treefs.Entry {
	return treefs.Entry{
		ID:       n.id,
		Name:     n.name,
		Kind:     n.kind,
		Size:     len(n.content),
		Parent:   n.parent,
		Children: len(n.children),
	}
}

// record returns a deep copy of the node state
func (n *Node) record() treefs.Record {
	return treefs.Record{
		ID:       n.id,
		Name:     n.name,
		Kind:     n.kind,
		Content:  cloneOrNil(n.content),
		Parent:   n.parent,
		Children: cloneOrNil(n.children),
	}
}

// cloneOrNil copies s, returning nil for an empty slice so that records
// compare equal regardless of how the node got emptied
func cloneOrNil[S ~[]E, E any](s S) S {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}
