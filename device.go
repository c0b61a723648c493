package treefs

import "context"

// Device is the byte-stream device the store is persisted to.
// Implementations must round-trip bytes exactly and return the whole
// previously persisted buffer from a single Restore call.
type Device interface {
	// Persist replaces the stored buffer with p and returns the number of
	// bytes written
	Persist(ctx context.Context, p []byte) (int, error)

	// Restore returns the stored buffer
	Restore(ctx context.Context) ([]byte, error)
}
