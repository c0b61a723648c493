// Package device provides [treefs.Device] implementations
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
)

// File is a [treefs.Device] backed by a single file on an afero filesystem.
type File struct {
	fs       afero.Fs
	path     string
	readSize int // 0 reads the whole file
}

// NewFile returns a device storing its buffer at path on fs.
// With readSize > 0 Restore returns exactly readSize bytes, zero-filled past
// the end of the file, the way older saves were read back.
func NewFile(fs afero.Fs, path string, readSize int) *File {
	return &File{fs: fs, path: path, readSize: readSize}
}

// NewOSFile is [NewFile] on the host filesystem
func NewOSFile(path string, readSize int) *File {
	return NewFile(afero.NewOsFs(), path, readSize)
}

// Path returns the backing file path
func (f *File) Path() string {
	return f.path
}

// Exists reports whether anything has been persisted yet
func (f *File) Exists() (bool, error) {
	return afero.Exists(f.fs, f.path)
}

// Persist replaces the file content with p
func (f *File) Persist(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	logger := util.GetLogger("Device.Persist")

	fh, err := f.fs.OpenFile(f.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.path, err)
	}
	n, err := fh.Write(p)
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", f.path, err)
	}
	logger.Trace().Str("path", f.path).Int("bytes", n).Msg("Buffer written")
	return n, nil
}

// Restore returns the file content
func (f *File) Restore(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.readSize == 0 {
		buf, err := afero.ReadFile(f.fs, f.path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.path, err)
		}
		return buf, nil
	}

	fh, err := f.fs.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fh.Close()

	buf := make([]byte, f.readSize)
	_, err = io.ReadFull(fh, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return buf, nil
}

var _ treefs.Device = (*File)(nil)
