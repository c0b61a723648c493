package server

import (
	"errors"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/fusefs"
	"github.com/brettbedarf/treefs/internal/util"
)

// ErrMounted is returned when serving a TreeFs that is already mounted
var ErrMounted = errors.New("filesystem already mounted")

// fuseServer is the part of [fuse.Server] TreeFs drives
type fuseServer interface {
	Serve()
	WaitMount() error
	Unmount() error
}

type mountFunc func(fs fuse.RawFileSystem, mountPoint string, opts *fuse.MountOptions) (fuseServer, error)

func mountFuse(fs fuse.RawFileSystem, mountPoint string, opts *fuse.MountOptions) (fuseServer, error) {
	return fuse.NewServer(fs, mountPoint, opts)
}

// TreeFs contains the node store with abstractions over the underlying
// FUSE wire protocol implementation
type TreeFs struct {
	*filesystem.FileSystem
	cfg    *config.Config
	server fuseServer
	mount  mountFunc
}

// New creates a TreeFs instance given your config.
func New(cfg *config.Config) *TreeFs {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	return &TreeFs{
		FileSystem: filesystem.NewFS(cfg),
		cfg:        cfg,
		mount:      mountFuse,
	}
}

// Config returns the config the store was created with
func (fs *TreeFs) Config() *config.Config {
	return fs.cfg
}

// Mounted reports whether Serve has mounted the store
func (fs *TreeFs) Mounted() bool {
	return fs.server != nil
}

// Serve mounts and serves the filesystem at the given mountPoint.
// It returns once the mount is ready; requests are served in the background.
func (fs *TreeFs) Serve(mountPoint string) error {
	if fs.server != nil {
		return ErrMounted
	}
	logger := util.GetLogger("TreeFs.Serve")

	raw := fusefs.NewFuseRaw(fs.FileSystem, fs.cfg)
	opts := fs.cfg.MountOptions
	srv, err := fs.mount(raw, mountPoint, &fuse.MountOptions{
		Name:   opts.Name,
		FsName: opts.FsName,
		Debug:  opts.Debug || fs.cfg.LogLvl == util.TraceLevel,
		Logger: util.NewLogLogger("FuseServer", util.TraceLevel),
	})
	if err != nil {
		return err
	}

	go srv.Serve()
	if err := srv.WaitMount(); err != nil {
		if uerr := srv.Unmount(); uerr != nil {
			logger.Debug().Err(uerr).Msg("Unmount after failed mount")
		}
		return err
	}
	fs.server = srv
	logger.Info().Str("mountpoint", mountPoint).Msg("Filesystem mounted")
	return nil
}

func (fs *TreeFs) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- fs.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Unmount cleanly unmounts the filesystem.
func (fs *TreeFs) Unmount() error {
	if fs.server == nil {
		return nil
	}
	if err := fs.server.Unmount(); err != nil {
		return err
	}
	fs.server = nil
	return nil
}
