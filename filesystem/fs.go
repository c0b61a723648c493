package filesystem

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
)

// FileSystem is the node store: the live nodes of one [Arena] arranged as a
// tree under a single root.
//
// Every exported method is atomic with respect to the others. A failed call
// leaves the tree exactly as it was.
type FileSystem struct {
	cfg   *config.Config
	arena *Arena
	epoch uint32       // bumped whenever the whole tree is replaced
	mu    sync.RWMutex // Protects the fields above and every node in the arena
}

func NewFS(cfg *config.Config) *FileSystem {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	fs := &FileSystem{cfg: cfg, arena: NewArena()}
	fs.Init()
	return fs
}

// Init discards all state and creates the root node
func (fs *FileSystem) Init() treefs.NodeID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.initLocked()
}

func (fs *FileSystem) initLocked() treefs.NodeID {
	a := fs.arena
	a.Reset()
	fs.epoch++
	id, _ := a.Allocate() // empty arena always has slot 0
	root := &a.slots[id]
	root.name = fs.cfg.RootName
	root.kind = treefs.KindRoot
	root.content = []byte(fs.cfg.WelcomeContent)
	root.parent = id
	return id
}

// Root returns the root id
func (fs *FileSystem) Root() treefs.NodeID {
	return treefs.RootID
}

// Generation returns a value that changes whenever id stops referencing the
// node it referenced before: when the slot is freed or the tree replaced.
func (fs *FileSystem) Generation(id treefs.NodeID) (uint64, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.arena.Live(id) {
		return 0, false
	}
	return fs.generationLocked(id), true
}

func (fs *FileSystem) generationLocked(id treefs.NodeID) uint64 {
	return uint64(fs.epoch)<<32 | uint64(fs.arena.Generation(id))
}

// Len returns the number of live nodes, root included
func (fs *FileSystem) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.arena.Len()
}

// Create adds a new child named name to parent and returns its id
func (fs *FileSystem) Create(parentID treefs.NodeID, name string, kind treefs.Kind) (treefs.NodeID, error) {
	logger := util.GetLogger("FS.Create")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	id, err := fs.createLocked(parentID, name, kind)
	if err != nil {
		logger.Debug().Err(err).Int("parent", int(parentID)).Str("name", name).Msg("Create failed")
		return treefs.InvalidID, err
	}
	logger.Debug().Int("id", int(id)).Int("parent", int(parentID)).Str("name", name).
		Stringer("kind", kind).Msg("Created node")
	return id, nil
}

func (fs *FileSystem) createLocked(parentID treefs.NodeID, name string, kind treefs.Kind) (treefs.NodeID, error) {
	parent, err := fs.dirLocked(parentID)
	if err != nil {
		return treefs.InvalidID, fmt.Errorf("create %q: %w", name, err)
	}
	if kind != treefs.KindFile && kind != treefs.KindDir {
		return treefs.InvalidID, fmt.Errorf("create %q as %s: %w", name, kind, treefs.ErrInvalidKind)
	}
	if err := ValidateName(name); err != nil {
		return treefs.InvalidID, err
	}
	if len(parent.children) >= treefs.MaxChildren {
		return treefs.InvalidID, fmt.Errorf("create %q in %q: %w", name, parent.name, treefs.ErrDirectoryFull)
	}
	if _, ok := fs.childLocked(parent, name); ok {
		return treefs.InvalidID, fmt.Errorf("create %q in %q: %w", name, parent.name, treefs.ErrNameCollision)
	}

	// allocation is the last step that can fail so nothing needs undoing
	id, err := fs.arena.Allocate()
	if err != nil {
		return treefs.InvalidID, fmt.Errorf("create %q: %w", name, err)
	}
	node := &fs.arena.slots[id]
	node.name = name
	node.kind = kind
	node.parent = parentID
	parent.addChild(id)
	return id, nil
}

// ValidateName checks a node name against the length rules
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", treefs.ErrInvalidName)
	}
	if len(name) > treefs.MaxNameLen {
		return fmt.Errorf("name %q longer than %d bytes: %w", name, treefs.MaxNameLen, treefs.ErrInvalidName)
	}
	return nil
}

// ValidatePathName is [ValidateName] plus the names that cannot be used as
// a path segment
func ValidatePathName(name string) error {
	if name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("name %q is reserved: %w", name, treefs.ErrInvalidName)
	}
	return ValidateName(name)
}

// List returns the children of parent in insertion order
func (fs *FileSystem) List(parentID treefs.NodeID) ([]treefs.Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	parent, ok := fs.arena.Get(parentID)
	if !ok {
		return nil, fmt.Errorf("list %d: %w", parentID, treefs.ErrNotFound)
	}
	entries := make([]treefs.Entry, 0, len(parent.children))
	for _, cid := range parent.children {
		child, _ := fs.arena.Get(cid)
		entries = append(entries, child.entry())
	}
	return entries, nil
}

// Search finds the child of parent called name
func (fs *FileSystem) Search(parentID treefs.NodeID, name string) (treefs.NodeID, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	parent, ok := fs.arena.Get(parentID)
	if !ok {
		return treefs.InvalidID, fmt.Errorf("search %q in %d: %w", name, parentID, treefs.ErrNotFound)
	}
	if child, ok := fs.childLocked(parent, name); ok {
		return child.id, nil
	}
	return treefs.InvalidID, fmt.Errorf("search %q in %q: %w", name, parent.name, treefs.ErrNotFound)
}

// Navigate validates that id is a directory that can be entered and returns it
func (fs *FileSystem) Navigate(id treefs.NodeID) (treefs.NodeID, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := fs.dirLocked(id); err != nil {
		return treefs.InvalidID, fmt.Errorf("navigate: %w", err)
	}
	return id, nil
}

// Parent returns the parent of id; the root is its own parent
func (fs *FileSystem) Parent(id treefs.NodeID) (treefs.NodeID, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, ok := fs.arena.Get(id)
	if !ok {
		return treefs.InvalidID, fmt.Errorf("parent of %d: %w", id, treefs.ErrNotFound)
	}
	return node.parent, nil
}

// Stat returns the entry for id
func (fs *FileSystem) Stat(id treefs.NodeID) (treefs.Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, ok := fs.arena.Get(id)
	if !ok {
		return treefs.Entry{}, fmt.Errorf("stat %d: %w", id, treefs.ErrNotFound)
	}
	return node.entry(), nil
}

// ReadContent returns a copy of a file's content
func (fs *FileSystem) ReadContent(id treefs.NodeID) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, err := fs.fileLocked(id)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return slices.Clone(node.content), nil
}

// WriteContent replaces a file's content. Anything past
// [treefs.MaxContent] bytes is dropped without error.
func (fs *FileSystem) WriteContent(id treefs.NodeID, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.fileLocked(id)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if len(data) > treefs.MaxContent {
		logger := util.GetLogger("FS.WriteContent")
		logger.Trace().Int("id", int(id)).Int("len", len(data)).Msg("Content truncated")
		data = data[:treefs.MaxContent]
	}
	node.content = slices.Clone(data)
	return nil
}

// openedLocked returns the node id refers to if its generation is still gen.
// A node deleted or replaced since gen was taken is reported as not found.
func (fs *FileSystem) openedLocked(id treefs.NodeID, gen uint64) (*Node, error) {
	node, ok := fs.arena.Get(id)
	if !ok || fs.generationLocked(id) != gen {
		return nil, fmt.Errorf("node %d (generation %x): %w", id, gen, treefs.ErrNotFound)
	}
	return node, nil
}

// ReadAt returns up to size bytes of the file's content starting at off.
// gen is the value [FileSystem.Generation] returned when the file was opened.
func (fs *FileSystem) ReadAt(id treefs.NodeID, gen uint64, off, size int) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := fs.openedLocked(id, gen); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	node, err := fs.fileLocked(id)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if off < 0 || off >= len(node.content) || size <= 0 {
		return nil, nil
	}
	end := min(off+size, len(node.content))
	return slices.Clone(node.content[off:end]), nil
}

// WriteAt stores data at off in the file opened at gen, zero filling any
// gap. Bytes past [treefs.MaxContent] are dropped; the count actually
// written is returned.
func (fs *FileSystem) WriteAt(id treefs.NodeID, gen uint64, off int, data []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.openedLocked(id, gen); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	node, err := fs.fileLocked(id)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	if off < 0 {
		return 0, fmt.Errorf("write %d at %d: negative offset", id, off)
	}
	if off >= treefs.MaxContent || len(data) == 0 {
		return 0, nil
	}

	n := min(len(data), treefs.MaxContent-off)
	buf := make([]byte, max(len(node.content), off+n))
	copy(buf, node.content)
	copy(buf[off:], data[:n])
	node.content = buf
	return n, nil
}

// Truncate resizes the file opened at gen to size bytes, zero filling when
// it grows. Sizes past [treefs.MaxContent] are clamped.
func (fs *FileSystem) Truncate(id treefs.NodeID, gen uint64, size int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.openedLocked(id, gen); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	node, err := fs.fileLocked(id)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	size = max(0, min(size, treefs.MaxContent))
	buf := make([]byte, size)
	copy(buf, node.content)
	node.content = buf
	return nil
}

// ListAt is [FileSystem.List] for the directory opened at gen. It also
// returns the directory's own entry.
func (fs *FileSystem) ListAt(id treefs.NodeID, gen uint64) (treefs.Entry, []treefs.Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := fs.openedLocked(id, gen); err != nil {
		return treefs.Entry{}, nil, fmt.Errorf("list: %w", err)
	}
	dir, err := fs.dirLocked(id)
	if err != nil {
		return treefs.Entry{}, nil, fmt.Errorf("list: %w", err)
	}
	entries := make([]treefs.Entry, 0, len(dir.children))
	for _, cid := range dir.children {
		child, _ := fs.arena.Get(cid)
		entries = append(entries, child.entry())
	}
	return dir.entry(), entries, nil
}

// Delete removes id and its whole subtree. The root cannot be deleted.
func (fs *FileSystem) Delete(id treefs.NodeID) error {
	logger := util.GetLogger("FS.Delete")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, ok := fs.arena.Get(id)
	if !ok {
		return fmt.Errorf("delete %d: %w", id, treefs.ErrNotFound)
	}
	if node.IsRoot() {
		return fmt.Errorf("delete %q: %w", node.name, treefs.ErrProtectedNode)
	}
	freed, err := fs.deleteLocked(id)
	if err != nil {
		// only reachable if the tree invariants were already broken
		logger.Error().Err(err).Int("id", int(id)).Msg("Failed to free subtree")
		return err
	}
	logger.Debug().Int("id", int(id)).Int("freed", freed).Msg("Deleted subtree")
	return nil
}

// deleteLocked unlinks the live non-root node id and frees its subtree
func (fs *FileSystem) deleteLocked(id treefs.NodeID) (int, error) {
	node, _ := fs.arena.Get(id)
	// children before parents
	doomed := fs.postOrderLocked(id, nil)
	parent, _ := fs.arena.Get(node.parent)
	parent.removeChild(id)
	for _, d := range doomed {
		if err := fs.arena.Free(d); err != nil {
			return 0, err
		}
	}
	return len(doomed), nil
}

// postOrderLocked appends the subtree of id to acc, descendants first
func (fs *FileSystem) postOrderLocked(id treefs.NodeID, acc []treefs.NodeID) []treefs.NodeID {
	node, _ := fs.arena.Get(id)
	for _, cid := range node.children {
		acc = fs.postOrderLocked(cid, acc)
	}
	return append(acc, id)
}

// Path returns the slash separated path of id below the root.
// The root's path is "".
func (fs *FileSystem) Path(id treefs.NodeID) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var parts []string
	for {
		node, ok := fs.arena.Get(id)
		if !ok {
			return "", fmt.Errorf("path of %d: %w", id, treefs.ErrNotFound)
		}
		if node.IsRoot() {
			break
		}
		parts = append(parts, node.name)
		id = node.parent
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/"), nil
}

// AddDirNode creates every missing directory in the request's path and
// returns the leaf. It is equivalent to `mkdir -p` and does not fail when
// the leaf already exists. On error no directory is left behind.
func (fs *FileSystem) AddDirNode(req *treefs.DirCreateRequest) (treefs.NodeID, error) {
	logger := util.GetLogger("AddDirNode")

	parts, err := splitPath(req.Path)
	if err != nil {
		return treefs.InvalidID, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	id, top, err := fs.mkdirAllLocked(parts)
	if err != nil {
		logger.Error().Err(err).Str("path", req.Path).Msg("Failed to create dir(s)")
		return treefs.InvalidID, err
	}
	if top != treefs.InvalidID {
		logger.Info().Str("path", req.Path).Int("first", int(top)).Msg("Created new dir(s)")
	}
	return id, nil
}

// AddFileNode creates a file at the request's path, adding any missing
// ancestor directories, and sets its content.
// If a node already exists at the path it returns an error and the
// directories it added are removed again.
func (fs *FileSystem) AddFileNode(req *treefs.FileCreateRequest) (treefs.NodeID, error) {
	logger := util.GetLogger("AddFileNode")

	parts, err := splitPath(req.Path)
	if err != nil {
		return treefs.InvalidID, err
	}
	if len(parts) == 0 {
		return treefs.InvalidID, fmt.Errorf("file path %q: %w", req.Path, treefs.ErrInvalidName)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentID, top, err := fs.mkdirAllLocked(parts[:len(parts)-1])
	if err != nil {
		logger.Error().Err(err).Str("path", req.Path).Msg("Failed to create file's ancestor directory(s)")
		return treefs.InvalidID, err
	}
	id, err := fs.createLocked(parentID, parts[len(parts)-1], treefs.KindFile)
	if err != nil {
		logger.Error().Err(err).Str("path", req.Path).Msg("Failed to create file")
		fs.undoLocked(top)
		return treefs.InvalidID, err
	}
	content := req.Content
	if len(content) > treefs.MaxContent {
		content = content[:treefs.MaxContent]
	}
	fs.arena.slots[id].content = slices.Clone(content)
	logger.Debug().Str("path", req.Path).Int("id", int(id)).Msg("Added new file node")
	return id, nil
}

// mkdirAllLocked walks parts from the root creating missing directories.
// It returns the leaf and the topmost directory it created, or InvalidID
// when all existed. On error the directories it created are removed.
func (fs *FileSystem) mkdirAllLocked(parts []string) (leaf, top treefs.NodeID, err error) {
	cur := treefs.RootID
	top = treefs.InvalidID
	for _, name := range parts {
		node, _ := fs.arena.Get(cur)
		if child, ok := fs.childLocked(node, name); ok {
			if !child.kind.IsDir() {
				fs.undoLocked(top)
				return treefs.InvalidID, treefs.InvalidID,
					fmt.Errorf("%q is a %s: %w", name, child.kind, treefs.ErrInvalidKind)
			}
			cur = child.id
			continue
		}
		id, err := fs.createLocked(cur, name, treefs.KindDir)
		if err != nil {
			fs.undoLocked(top)
			return treefs.InvalidID, treefs.InvalidID, err
		}
		if top == treefs.InvalidID {
			top = id
		}
		cur = id
	}
	return cur, top, nil
}

// undoLocked removes a subtree created by the failing call; InvalidID is a no-op
func (fs *FileSystem) undoLocked(top treefs.NodeID) {
	if top == treefs.InvalidID {
		return
	}
	if _, err := fs.deleteLocked(top); err != nil {
		logger := util.GetLogger("FS.undo")
		logger.Error().Err(err).Int("id", int(top)).Msg("Failed to remove partially created directories")
	}
}

// splitPath breaks a slash separated path into names. Empty and "."
// segments are skipped; any other segment must be a valid name.
func splitPath(p string) ([]string, error) {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s == "" || s == "." {
			continue
		}
		if err := ValidatePathName(s); err != nil {
			return nil, fmt.Errorf("path %q: %w", p, err)
		}
		parts = append(parts, s)
	}
	return parts, nil
}

// childLocked finds a child by exact name; first match wins
func (fs *FileSystem) childLocked(parent *Node, name string) (*Node, bool) {
	for _, cid := range parent.children {
		if child, ok := fs.arena.Get(cid); ok && child.name == name {
			return child, true
		}
	}
	return nil, false
}

// dirLocked returns the live directory or root at id
func (fs *FileSystem) dirLocked(id treefs.NodeID) (*Node, error) {
	node, ok := fs.arena.Get(id)
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, treefs.ErrNotFound)
	}
	if !node.kind.IsDir() {
		return nil, fmt.Errorf("%q is a %s: %w", node.name, node.kind, treefs.ErrInvalidKind)
	}
	return node, nil
}

// fileLocked returns the live file at id
func (fs *FileSystem) fileLocked(id treefs.NodeID) (*Node, error) {
	node, ok := fs.arena.Get(id)
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, treefs.ErrNotFound)
	}
	if node.kind != treefs.KindFile {
		return nil, fmt.Errorf("%q is a %s: %w", node.name, node.kind, treefs.ErrInvalidKind)
	}
	return node, nil
}
