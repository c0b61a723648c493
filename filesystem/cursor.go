package filesystem

import (
	"fmt"

	"github.com/brettbedarf/treefs"
)

// Cursor tracks a current directory in a [FileSystem] and resolves names
// relative to it. It holds only a non-owning reference: once the directory
// is deleted (through another cursor, the FUSE mount or a restore) every call
// fails with [treefs.ErrNotFound], even if the id has since been reused.
// [Cursor.Reset] brings it back to the root.
//
// The cursor never checks store rules itself, it reports whatever the store
// returns.
//
// NOTE: Cursor is **not** thread-safe meaning references
// to it should not be shared between goroutines
type Cursor struct {
	fs      *FileSystem
	current treefs.NodeID
	gen     uint64 // generation of current when it was entered
}

// NewCursor returns a cursor positioned at the root
func NewCursor(fs *FileSystem) *Cursor {
	c := &Cursor{fs: fs}
	c.Reset()
	return c
}

// Current returns the current directory id
func (c *Cursor) Current() treefs.NodeID {
	return c.current
}

// FS returns the store the cursor walks
func (c *Cursor) FS() *FileSystem {
	return c.fs
}

// Reset moves the cursor back to the root
func (c *Cursor) Reset() {
	c.current = c.fs.Root()
	c.gen, _ = c.fs.Generation(c.current)
}

// Valid reports whether the current directory still exists
func (c *Cursor) Valid() bool {
	gen, ok := c.fs.Generation(c.current)
	return ok && gen == c.gen
}

func (c *Cursor) checkValid() error {
	if !c.Valid() {
		return fmt.Errorf("current directory %d is gone: %w", c.current, treefs.ErrNotFound)
	}
	return nil
}

func (c *Cursor) moveTo(id treefs.NodeID) error {
	gen, ok := c.fs.Generation(id)
	if !ok {
		return fmt.Errorf("node %d: %w", id, treefs.ErrNotFound)
	}
	c.current, c.gen = id, gen
	return nil
}

// EnterChild makes the child directory called name current.
// On error the cursor does not move.
func (c *Cursor) EnterChild(name string) error {
	if err := c.checkValid(); err != nil {
		return err
	}
	id, err := c.fs.Search(c.current, name)
	if err != nil {
		return err
	}
	if id, err = c.fs.Navigate(id); err != nil {
		return err
	}
	return c.moveTo(id)
}

// Ascend moves to the parent directory; at the root it stays put
func (c *Cursor) Ascend() error {
	if err := c.checkValid(); err != nil {
		return err
	}
	id, err := c.fs.Parent(c.current)
	if err != nil {
		return err
	}
	return c.moveTo(id)
}

// Stat returns the entry of the current directory
func (c *Cursor) Stat() (treefs.Entry, error) {
	if err := c.checkValid(); err != nil {
		return treefs.Entry{}, err
	}
	return c.fs.Stat(c.current)
}

// Path returns the path of the current directory below the root
func (c *Cursor) Path() (string, error) {
	if err := c.checkValid(); err != nil {
		return "", err
	}
	return c.fs.Path(c.current)
}

func (c *Cursor) Create(name string, kind treefs.Kind) (treefs.NodeID, error) {
	if err := c.checkValid(); err != nil {
		return treefs.InvalidID, err
	}
	return c.fs.Create(c.current, name, kind)
}

func (c *Cursor) List() ([]treefs.Entry, error) {
	if err := c.checkValid(); err != nil {
		return nil, err
	}
	return c.fs.List(c.current)
}

func (c *Cursor) Search(name string) (treefs.NodeID, error) {
	if err := c.checkValid(); err != nil {
		return treefs.InvalidID, err
	}
	return c.fs.Search(c.current, name)
}

// Delete removes the child called name and its subtree
func (c *Cursor) Delete(name string) error {
	id, err := c.Search(name)
	if err != nil {
		return err
	}
	return c.fs.Delete(id)
}

// ReadContent returns the content of the child file called name
func (c *Cursor) ReadContent(name string) ([]byte, error) {
	id, err := c.Search(name)
	if err != nil {
		return nil, err
	}
	return c.fs.ReadContent(id)
}

// WriteContent replaces the content of the child file called name
func (c *Cursor) WriteContent(name string, data []byte) error {
	id, err := c.Search(name)
	if err != nil {
		return err
	}
	return c.fs.WriteContent(id, data)
}
