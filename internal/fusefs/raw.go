// Package fusefs exposes a treefs store over the low-level FUSE wire protocol
package fusefs

import (
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
)

const (
	dirMode  = syscall.S_IFDIR | 0o755
	fileMode = syscall.S_IFREG | 0o644
)

// Store is the node store surface the bridge needs
type Store interface {
	Create(parent treefs.NodeID, name string, kind treefs.Kind) (treefs.NodeID, error)
	Search(parent treefs.NodeID, name string) (treefs.NodeID, error)
	Stat(id treefs.NodeID) (treefs.Entry, error)
	// The following act on a node opened at a generation and fail with
	// ErrNotFound once that node is gone, even if its id was reused.
	ReadAt(id treefs.NodeID, gen uint64, off, size int) ([]byte, error)
	WriteAt(id treefs.NodeID, gen uint64, off int, data []byte) (int, error)
	Truncate(id treefs.NodeID, gen uint64, size int) error
	ListAt(id treefs.NodeID, gen uint64) (treefs.Entry, []treefs.Entry, error)
	Delete(id treefs.NodeID) error
	Generation(id treefs.NodeID) (uint64, bool)
	Len() int
}

// FuseRaw implements the low-level FUSE wire protocol
// It serves as protocol adapter between the FUSE and the node store.
// FUSE node ids are store ids shifted by one so the root is FUSE_ROOT_ID.
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
type FuseRaw struct {
	fuse.RawFileSystem
	fs      Store
	handles *handleTable
	cfg     *config.Config
	server  *fuse.Server
	owner   fuse.Owner
	mounted time.Time // the store keeps no timestamps; every node reports this
}

func NewFuseRaw(fs Store, cfg *config.Config) *FuseRaw {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	return &FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:            fs,
		handles:       newHandleTable(),
		cfg:           cfg,
		owner:         fuse.Owner{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())},
		mounted:       time.Now(),
	}
}

func toNodeID(id treefs.NodeID) uint64 {
	return uint64(id) + fuse.FUSE_ROOT_ID
}

func toStoreID(nodeID uint64) treefs.NodeID {
	if nodeID < fuse.FUSE_ROOT_ID || nodeID-fuse.FUSE_ROOT_ID >= treefs.MaxNodes {
		return treefs.InvalidID
	}
	return treefs.NodeID(nodeID - fuse.FUSE_ROOT_ID)
}

func (r *FuseRaw) Init(s *fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Int("openHandles", r.handles.len()).Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "FuseRaw"
}

// Access called when the kernel wants to know if the user has permission to access the node.
// The store has no permissions so everything is allowed.
func (r *FuseRaw) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	if _, err := r.fs.Stat(toStoreID(input.NodeId)); err != nil {
		return toStatus(err, fuse.EINVAL)
	}
	return fuse.OK
}

func (r *FuseRaw) fillAttr(e treefs.Entry, out *fuse.Attr) {
	sec, nsec := uint64(r.mounted.Unix()), uint32(r.mounted.Nanosecond())
	*out = fuse.Attr{
		Ino:       toNodeID(e.ID),
		Size:      uint64(e.Size),
		Blocks:    (uint64(e.Size) + 511) / 512,
		Atime:     sec,
		Mtime:     sec,
		Ctime:     sec,
		Atimensec: nsec,
		Mtimensec: nsec,
		Ctimensec: nsec,
		Mode:      fileMode,
		Nlink:     1,
		Owner:     r.owner,
		Blksize:   treefs.MaxContent,
	}
	if e.Kind.IsDir() {
		out.Mode = dirMode
		out.Nlink = 2
	}
}

func (r *FuseRaw) fillEntry(id treefs.NodeID, out *fuse.EntryOut) fuse.Status {
	e, err := r.fs.Stat(id)
	if err != nil {
		return toStatus(err, fuse.EINVAL)
	}
	gen, _ := r.fs.Generation(id)
	out.NodeId = toNodeID(id)
	out.Generation = gen
	r.fillAttr(e, &out.Attr)
	out.SetEntryTimeout(seconds(r.cfg.EntryTimeout))
	out.SetAttrTimeout(seconds(r.cfg.AttrTimeout))
	return fuse.OK
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// Lookup is called by the kernel when the VFS wants to know
// about a file inside a directory.
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	if st := checkName(name); !st.Ok() {
		return st
	}
	id, err := r.fs.Search(toStoreID(header.NodeId), name)
	if err != nil {
		return toStatus(err, fuse.ENOTDIR)
	}
	return r.fillEntry(id, out)
}

// Forget is a no-op; node lifetime is owned by the store, not the kernel
func (r *FuseRaw) Forget(nodeid, nlookup uint64) {}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	e, err := r.fs.Stat(toStoreID(input.NodeId))
	if err != nil {
		return toStatus(err, fuse.EINVAL)
	}
	r.fillAttr(e, &out.Attr)
	out.SetTimeout(seconds(r.cfg.AttrTimeout))
	return fuse.OK
}

// SetAttr only honours size changes; everything else is accepted and ignored
func (r *FuseRaw) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	logger := util.GetLogger("Fuse.SetAttr")
	id := toStoreID(input.NodeId)

	if input.Valid&fuse.FATTR_SIZE != 0 {
		var gen uint64
		if input.Valid&fuse.FATTR_FH != 0 {
			h, ok := r.handles.get(input.Fh)
			if !ok {
				return fuse.Status(syscall.EBADF)
			}
			id, gen = h.id, h.gen
		} else if g, ok := r.fs.Generation(id); ok {
			gen = g
		} else {
			return fuse.ENOENT
		}
		if st := r.truncate(id, gen, input.Size); !st.Ok() {
			return st
		}
		logger.Debug().Int("id", int(id)).Uint64("size", input.Size).Msg("Truncated file")
	}
	return r.GetAttr(cancel, &fuse.GetAttrIn{InHeader: input.InHeader}, out)
}

func (r *FuseRaw) truncate(id treefs.NodeID, gen, size uint64) fuse.Status {
	if size > treefs.MaxContent {
		return fuse.Status(syscall.EFBIG)
	}
	return toStatus(r.fs.Truncate(id, gen, int(size)), fuse.Status(syscall.EISDIR))
}

func (r *FuseRaw) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Mkdir")

	if st := checkName(name); !st.Ok() {
		return st
	}
	id, err := r.fs.Create(toStoreID(input.NodeId), name, treefs.KindDir)
	if err != nil {
		logger.Debug().Err(err).Uint64("parent", input.NodeId).Str("name", name).Msg("Mkdir failed")
		return toStatus(err, fuse.ENOTDIR)
	}
	return r.fillEntry(id, out)
}

// Create makes a new file and opens it
func (r *FuseRaw) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	logger := util.GetLogger("Fuse.Create")

	if st := checkName(name); !st.Ok() {
		return st
	}
	id, err := r.fs.Create(toStoreID(input.NodeId), name, treefs.KindFile)
	if err != nil {
		logger.Debug().Err(err).Uint64("parent", input.NodeId).Str("name", name).Msg("Create failed")
		return toStatus(err, fuse.ENOTDIR)
	}
	if st := r.fillEntry(id, &out.EntryOut); !st.Ok() {
		return st
	}
	out.OpenOut.Fh = r.handles.open(id, out.Generation)
	return fuse.OK
}

func (r *FuseRaw) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	id, err := r.fs.Search(toStoreID(header.NodeId), name)
	if err != nil {
		return toStatus(err, fuse.ENOTDIR)
	}
	e, err := r.fs.Stat(id)
	if err != nil {
		return toStatus(err, fuse.EINVAL)
	}
	if e.Kind.IsDir() {
		return fuse.Status(syscall.EISDIR)
	}
	return toStatus(r.fs.Delete(id), fuse.EINVAL)
}

// Rmdir only removes empty directories even though the store can delete
// whole subtrees
func (r *FuseRaw) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	id, err := r.fs.Search(toStoreID(header.NodeId), name)
	if err != nil {
		return toStatus(err, fuse.ENOTDIR)
	}
	e, err := r.fs.Stat(id)
	if err != nil {
		return toStatus(err, fuse.EINVAL)
	}
	if !e.Kind.IsDir() {
		return fuse.ENOTDIR
	}
	if e.Children > 0 {
		return fuse.Status(syscall.ENOTEMPTY)
	}
	return toStatus(r.fs.Delete(id), fuse.ENOTDIR)
}

func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	id := toStoreID(input.NodeId)
	e, err := r.fs.Stat(id)
	if err != nil {
		return toStatus(err, fuse.EINVAL)
	}
	if e.Kind.IsDir() {
		return fuse.Status(syscall.EISDIR)
	}
	gen, ok := r.fs.Generation(id)
	if !ok {
		return fuse.ENOENT
	}
	if input.Flags&syscall.O_TRUNC != 0 {
		if st := r.truncate(id, gen, 0); !st.Ok() {
			return st
		}
	}
	out.Fh = r.handles.open(id, gen)
	out.OpenFlags = fuse.FOPEN_DIRECT_IO
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	h, ok := r.handles.get(input.Fh)
	if !ok {
		return nil, fuse.Status(syscall.EBADF)
	}
	if input.Offset >= treefs.MaxContent {
		return fuse.ReadResultData(nil), fuse.OK
	}
	data, err := r.fs.ReadAt(h.id, h.gen, int(input.Offset), int(input.Size))
	if err != nil {
		return nil, toStatus(err, fuse.Status(syscall.EISDIR))
	}
	return fuse.ReadResultData(data), fuse.OK
}

// Write stores data at the offset. Bytes past the content limit are not
// written and the short count is returned.
func (r *FuseRaw) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	logger := util.GetLogger("Fuse.Write")

	h, ok := r.handles.get(input.Fh)
	if !ok {
		return 0, fuse.Status(syscall.EBADF)
	}
	if len(data) > 0 && input.Offset >= treefs.MaxContent {
		return 0, fuse.Status(syscall.ENOSPC)
	}
	n, err := r.fs.WriteAt(h.id, h.gen, int(input.Offset), data)
	if err != nil {
		return 0, toStatus(err, fuse.Status(syscall.EISDIR))
	}
	logger.Trace().Int("id", int(h.id)).Uint64("offset", input.Offset).Int("written", n).Msg("Write")
	return uint32(n), fuse.OK
}

func (r *FuseRaw) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	r.handles.close(input.Fh)
}

// Flush has nothing to do since writes go straight to the store
func (r *FuseRaw) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	return fuse.OK
}

func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	id := toStoreID(input.NodeId)
	e, err := r.fs.Stat(id)
	if err != nil {
		return toStatus(err, fuse.EINVAL)
	}
	if !e.Kind.IsDir() {
		return fuse.ENOTDIR
	}
	gen, ok := r.fs.Generation(id)
	if !ok {
		return fuse.ENOENT
	}
	out.Fh = r.handles.open(id, gen)
	return fuse.OK
}

func (r *FuseRaw) ReleaseDir(input *fuse.ReleaseIn) {
	r.handles.close(input.Fh)
}

// dirEntries lists the directory opened at gen including the "." and ".."
// entries
func (r *FuseRaw) dirEntries(id treefs.NodeID, gen uint64) ([]fuse.DirEntry, fuse.Status) {
	self, children, err := r.fs.ListAt(id, gen)
	if err != nil {
		return nil, toStatus(err, fuse.ENOTDIR)
	}

	entries := make([]fuse.DirEntry, 0, len(children)+2)
	entries = append(entries,
		fuse.DirEntry{Name: ".", Mode: dirMode, Ino: toNodeID(id)},
		fuse.DirEntry{Name: "..", Mode: dirMode, Ino: toNodeID(self.Parent)},
	)
	for _, c := range children {
		mode := uint32(fileMode)
		if c.Kind.IsDir() {
			mode = dirMode
		}
		entries = append(entries, fuse.DirEntry{Name: c.Name, Mode: mode, Ino: toNodeID(c.ID)})
	}
	return entries, fuse.OK
}

func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")

	h, ok := r.handles.get(input.Fh)
	if !ok {
		return fuse.Status(syscall.EBADF)
	}
	id := h.id
	entries, st := r.dirEntries(h.id, h.gen)
	if !st.Ok() {
		return st
	}

	// Start at the provided offset
	for i := int(input.Offset); i < len(entries); i++ {
		if !out.AddDirEntry(entries[i]) {
			// The buffer is full; the kernel will call again with a new offset
			logger.Trace().Int("id", int(id)).Int("next", i).Msg("ReadDir buffer full")
			return fuse.OK
		}
	}
	return fuse.OK
}

func (r *FuseRaw) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	free := uint64(treefs.MaxNodes - r.fs.Len())
	out.Blocks = treefs.MaxNodes
	out.Bfree = free
	out.Bavail = free
	out.Files = treefs.MaxNodes
	out.Ffree = free
	out.Bsize = treefs.MaxContent
	out.Frsize = treefs.MaxContent
	out.NameLen = treefs.MaxNameLen
	return fuse.OK
}

var _ fuse.RawFileSystem = (*FuseRaw)(nil)
