package treefs

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity is the parent of all capacity errors; test with errors.Is.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrStoreFull occurs when every arena slot is occupied.
	ErrStoreFull = fmt.Errorf("%w: store full", ErrCapacity)

	// ErrDirectoryFull occurs when a directory already holds MaxChildren
	// children.
	ErrDirectoryFull = fmt.Errorf("%w: directory full", ErrCapacity)

	// ErrNameCollision occurs when a sibling with the same name exists.
	ErrNameCollision = errors.New("name already exists")

	// ErrNotFound occurs when an id does not reference a live node or a name
	// does not match any child.
	ErrNotFound = errors.New("node not found")

	// ErrInvalidKind occurs when an operation is applied to the wrong node
	// kind, e.g. reading the content of a directory.
	ErrInvalidKind = errors.New("invalid node kind")

	// ErrProtectedNode occurs on an attempt to delete the root.
	ErrProtectedNode = errors.New("node is protected")

	// ErrCorruptFormat occurs when a persisted buffer cannot be decoded into a
	// valid store state.
	ErrCorruptFormat = errors.New("corrupt format")

	// ErrInvalidName occurs when a name is empty or longer than MaxNameLen.
	ErrInvalidName = errors.New("invalid name")

	// ErrDoubleFree occurs when freeing an arena slot that is already free.
	ErrDoubleFree = errors.New("slot already free")
)
