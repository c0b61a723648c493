package filesystem

import (
	"fmt"
	"iter"

	"github.com/brettbedarf/treefs"
)

// Arena is a fixed pool of [treefs.MaxNodes] node slots. It is the only
// allocator of node ids: Allocate always hands out the lowest free index, so
// freed ids are reused before higher ones.
//
// NOTE: Arena is not thread-safe; [FileSystem] serializes access to it.
type Arena struct {
	slots [treefs.MaxNodes]Node
	live  [treefs.MaxNodes]bool
	gen   [treefs.MaxNodes]uint32 // bumped on every free
	count int
}

// NewArena returns an arena with every slot free
func NewArena() *Arena {
	a := &Arena{}
	a.Reset()
	return a
}

// Reset frees every slot
func (a *Arena) Reset() {
	for i := range a.slots {
		a.slots[i].reset()
		a.live[i] = false
	}
	a.count = 0
}

// Allocate marks the first free slot occupied and returns its id
func (a *Arena) Allocate() (treefs.NodeID, error) {
	for i := range a.live {
		if !a.live[i] {
			a.live[i] = true
			a.count++
			a.slots[i].reset()
			a.slots[i].id = treefs.NodeID(i)
			return treefs.NodeID(i), nil
		}
	}
	return treefs.InvalidID, treefs.ErrStoreFull
}

// Free releases the slot and clears it. Freeing a free slot is reported and
// changes nothing.
func (a *Arena) Free(id treefs.NodeID) error {
	if !a.inRange(id) {
		return fmt.Errorf("free %d: %w", id, treefs.ErrNotFound)
	}
	if !a.live[id] {
		return fmt.Errorf("free %d: %w", id, treefs.ErrDoubleFree)
	}
	a.slots[id].reset()
	a.live[id] = false
	a.gen[id]++
	a.count--
	return nil
}

// Generation returns how many times the slot at id has been freed.
// Together with the id it names one node for its whole lifetime.
func (a *Arena) Generation(id treefs.NodeID) uint32 {
	if !a.inRange(id) {
		return 0
	}
	return a.gen[id]
}

// Get returns the live node at id
func (a *Arena) Get(id treefs.NodeID) (*Node, bool) {
	if !a.Live(id) {
		return nil, false
	}
	return &a.slots[id], true
}

// Live reports whether id references an occupied slot
func (a *Arena) Live(id treefs.NodeID) bool {
	return a.inRange(id) && a.live[id]
}

// Len returns the number of occupied slots
func (a *Arena) Len() int {
	return a.count
}

// Cap returns the slot capacity
func (a *Arena) Cap() int {
	return len(a.slots)
}

// All iterates the live nodes in ascending slot order
func (a *Arena) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for i := range a.slots {
			if a.live[i] && !yield(&a.slots[i]) {
				return
			}
		}
	}
}

func (a *Arena) inRange(id treefs.NodeID) bool {
	return id >= 0 && int(id) < len(a.slots)
}
