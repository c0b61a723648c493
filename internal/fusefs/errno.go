package fusefs

import (
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/treefs"
)

// toStatus maps store errors to FUSE errnos. kindErr is returned for
// [treefs.ErrInvalidKind] since only the caller knows whether a directory
// or a file was expected.
func toStatus(err error, kindErr fuse.Status) fuse.Status {
	switch {
	case err == nil:
		return fuse.OK
	case errors.Is(err, treefs.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, treefs.ErrNameCollision):
		return fuse.Status(syscall.EEXIST)
	case errors.Is(err, treefs.ErrCapacity):
		return fuse.Status(syscall.ENOSPC)
	case errors.Is(err, treefs.ErrInvalidKind):
		return kindErr
	case errors.Is(err, treefs.ErrProtectedNode):
		return fuse.Status(syscall.EPERM)
	case errors.Is(err, treefs.ErrInvalidName):
		return fuse.Status(syscall.EINVAL)
	default:
		return fuse.Status(syscall.EIO)
	}
}

// checkName reports names the store would reject with the errno the kernel
// expects for them
func checkName(name string) fuse.Status {
	if len(name) > treefs.MaxNameLen {
		return fuse.Status(syscall.ENAMETOOLONG)
	}
	if name == "" {
		return fuse.Status(syscall.EINVAL)
	}
	return fuse.OK
}
