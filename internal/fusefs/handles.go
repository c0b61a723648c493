package fusefs

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/treefs"
)

// handle is an open file or directory. gen pins it to the node that was
// opened so a reused id is never read through a stale handle.
type handle struct {
	id  treefs.NodeID
	gen uint64
}

// handleTable maps FUSE file handles to open nodes
type handleTable struct {
	handles *xsync.Map[uint64, handle]
	next    atomic.Uint64
}

func newHandleTable() *handleTable {
	return &handleTable{handles: xsync.NewMap[uint64, handle]()}
}

// open registers a handle and returns its number; 0 is never used
func (t *handleTable) open(id treefs.NodeID, gen uint64) uint64 {
	fh := t.next.Add(1)
	t.handles.Store(fh, handle{id: id, gen: gen})
	return fh
}

func (t *handleTable) get(fh uint64) (handle, bool) {
	return t.handles.Load(fh)
}

func (t *handleTable) close(fh uint64) bool {
	_, ok := t.handles.LoadAndDelete(fh)
	return ok
}

// len returns the number of open handles
func (t *handleTable) len() int {
	return t.handles.Size()
}
