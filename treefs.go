// Package treefs contains core domain types and interfaces for the treefs
// namespace store
package treefs

// Store limits. These are part of the persisted format and must not change.
const (
	MaxNodes    = 100 // Arena capacity
	MaxChildren = 10  // Children per directory
	MaxNameLen  = 20  // Bytes per node name
	MaxContent  = 50  // Bytes of file content
)

// NodeID is an arena slot index. It is only meaningful while the node is live.
type NodeID int

const (
	// RootID is the well-known id of the root node
	RootID NodeID = 0
	// InvalidID marks a freed slot
	InvalidID NodeID = -2
)

// Kind is the node type. The numeric values are the kind digits of the
// persisted format.
type Kind int8

const (
	KindInvalid Kind = -1
	KindFile    Kind = 0
	KindDir     Kind = 1
	KindRoot    Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindRoot:
		return "root"
	default:
		return "invalid"
	}
}

// IsDir reports whether nodes of this kind can hold children
func (k Kind) IsDir() bool {
	return k == KindDir || k == KindRoot
}

// Entry is a read-only view of a live node as returned by listing and stat
// operations
type Entry struct {
	ID       NodeID
	Name     string
	Kind     Kind
	Size     int // len(content)
	Parent   NodeID
	Children int
}

// Record is the complete state of one live node. It is the unit exchanged
// between the store and the codec.
type Record struct {
	ID       NodeID
	Name     string
	Kind     Kind
	Content  []byte
	Parent   NodeID
	Children []NodeID
}
