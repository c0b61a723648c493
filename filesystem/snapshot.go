package filesystem

import (
	"fmt"
	"slices"

	"github.com/brettbedarf/treefs"
)

// Snapshot returns a deep copy of every live node in ascending id order
func (fs *FileSystem) Snapshot() []treefs.Record {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	records := make([]treefs.Record, 0, fs.arena.Len())
	for node := range fs.arena.All() {
		records = append(records, node.record())
	}
	return records
}

// Replace swaps the whole tree for the one described by records.
// The records are checked against every tree invariant first; on any
// violation the current tree is kept and an error wrapping
// [treefs.ErrCorruptFormat] is returned.
func (fs *FileSystem) Replace(records []treefs.Record) error {
	arena, err := buildArena(records)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.arena = arena
	fs.epoch++
	return nil
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", treefs.ErrCorruptFormat, fmt.Sprintf(format, args...))
}

// buildArena validates records and loads them into a new arena
func buildArena(records []treefs.Record) (*Arena, error) {
	if len(records) == 0 {
		return nil, corruptf("no root node")
	}
	if len(records) > treefs.MaxNodes {
		return nil, corruptf("%d nodes exceed capacity %d", len(records), treefs.MaxNodes)
	}

	byID := make(map[treefs.NodeID]*treefs.Record, len(records))
	roots := 0
	for i := range records {
		r := &records[i]
		if r.ID < 0 || int(r.ID) >= treefs.MaxNodes {
			return nil, corruptf("node id %d out of range", r.ID)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, corruptf("duplicate node id %d", r.ID)
		}
		byID[r.ID] = r

		switch r.Kind {
		case treefs.KindRoot:
			roots++
			if r.ID != treefs.RootID || r.Parent != treefs.RootID {
				return nil, corruptf("root must be node %d and its own parent", treefs.RootID)
			}
		case treefs.KindFile:
			if len(r.Children) > 0 {
				return nil, corruptf("file %d has children", r.ID)
			}
		case treefs.KindDir:
		default:
			return nil, corruptf("node %d has kind %d", r.ID, r.Kind)
		}
		if err := ValidateName(r.Name); err != nil {
			return nil, corruptf("node %d: %v", r.ID, err)
		}
		if len(r.Content) > treefs.MaxContent {
			return nil, corruptf("node %d content is %d bytes", r.ID, len(r.Content))
		}
		if len(r.Children) > treefs.MaxChildren {
			return nil, corruptf("node %d has %d children", r.ID, len(r.Children))
		}
	}
	if roots != 1 {
		return nil, corruptf("%d root nodes", roots)
	}

	listed := 0
	for _, r := range byID {
		if r.Kind != treefs.KindRoot {
			p, ok := byID[r.Parent]
			if !ok || !p.Kind.IsDir() || r.Parent == r.ID {
				return nil, corruptf("node %d has invalid parent %d", r.ID, r.Parent)
			}
		}
		names := make(map[string]struct{}, len(r.Children))
		seen := make(map[treefs.NodeID]struct{}, len(r.Children))
		for _, cid := range r.Children {
			c, ok := byID[cid]
			if !ok || c.Parent != r.ID || c.Kind == treefs.KindRoot {
				return nil, corruptf("node %d lists invalid child %d", r.ID, cid)
			}
			if _, dup := seen[cid]; dup {
				return nil, corruptf("node %d lists child %d twice", r.ID, cid)
			}
			seen[cid] = struct{}{}
			if _, dup := names[c.Name]; dup {
				return nil, corruptf("node %d has two children named %q", r.ID, c.Name)
			}
			names[c.Name] = struct{}{}
			listed++
		}
	}
	if listed != len(records)-1 {
		return nil, corruptf("%d nodes are not linked to their parent", len(records)-1-listed)
	}

	// everything must hang off the root; anything else is a cycle
	visited := 0
	stack := []treefs.NodeID{treefs.RootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++
		stack = append(stack, byID[id].Children...)
	}
	if visited != len(records) {
		return nil, corruptf("%d nodes unreachable from root", len(records)-visited)
	}

	arena := NewArena()
	for _, r := range records {
		slot := &arena.slots[r.ID]
		slot.id = r.ID
		slot.name = r.Name
		slot.kind = r.Kind
		slot.content = slices.Clone(r.Content)
		slot.parent = r.Parent
		slot.children = slices.Clone(r.Children)
		arena.live[r.ID] = true
		arena.count++
	}
	return arena, nil
}
