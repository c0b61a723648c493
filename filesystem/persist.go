package filesystem

import (
	"context"
	"fmt"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/codec"
	"github.com/brettbedarf/treefs/internal/util"
)

// Persist encodes the current tree and writes it to dev.
// The tree is snapshotted first so the device write happens without holding
// the store lock.
func (fs *FileSystem) Persist(ctx context.Context, dev treefs.Device) (int, error) {
	logger := util.GetLogger("FS.Persist")

	records := fs.Snapshot()
	buf, err := codec.Encode(records)
	if err != nil {
		return 0, fmt.Errorf("encode store: %w", err)
	}
	n, err := dev.Persist(ctx, buf)
	if err != nil {
		logger.Error().Err(err).Msg("Device write failed")
		return n, fmt.Errorf("persist store: %w", err)
	}
	if n != len(buf) {
		return n, fmt.Errorf("persist store: short write %d of %d bytes", n, len(buf))
	}
	logger.Info().Int("nodes", len(records)).Int("bytes", n).Msg("Store persisted")
	return n, nil
}

// Restore reads dev and replaces the tree with its content.
// On any error the current tree is left untouched.
func (fs *FileSystem) Restore(ctx context.Context, dev treefs.Device) error {
	logger := util.GetLogger("FS.Restore")

	buf, err := dev.Restore(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Device read failed")
		return fmt.Errorf("restore store: %w", err)
	}
	records, err := codec.Decode(buf)
	if err != nil {
		logger.Warn().Err(err).Int("bytes", len(buf)).Msg("Failed to decode store")
		return fmt.Errorf("restore store: %w", err)
	}
	if err := fs.Replace(records); err != nil {
		logger.Warn().Err(err).Msg("Decoded store is not a valid tree")
		return fmt.Errorf("restore store: %w", err)
	}
	logger.Info().Int("nodes", len(records)).Int("bytes", len(buf)).Msg("Store restored")
	return nil
}
