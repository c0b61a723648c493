package filesystem

import (
	"testing"

	"github.com/brettbedarf/treefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocateLowestFree(t *testing.T) {
	t.Parallel()

	a := NewArena()
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, treefs.MaxNodes, a.Cap())

	for want := range 5 {
		id, err := a.Allocate()
		require.NoError(t, err)
		assert.Equal(t, treefs.NodeID(want), id)
	}

	require.NoError(t, a.Free(3))
	require.NoError(t, a.Free(1))

	id, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, treefs.NodeID(1), id, "lowest free slot must be reused first")

	id, err = a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, treefs.NodeID(3), id)

	id, err = a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, treefs.NodeID(5), id)
	assert.Equal(t, 6, a.Len())
}

func TestArena_StoreFull(t *testing.T) {
	t.Parallel()

	a := NewArena()
	for range treefs.MaxNodes {
		_, err := a.Allocate()
		require.NoError(t, err)
	}

	id, err := a.Allocate()
	assert.ErrorIs(t, err, treefs.ErrStoreFull)
	assert.ErrorIs(t, err, treefs.ErrCapacity)
	assert.Equal(t, treefs.InvalidID, id)
	assert.Equal(t, treefs.MaxNodes, a.Len())
}

func TestArena_Free(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      treefs.NodeID
		wantErr error
	}{
		{"Live", 0, nil},
		{"AlreadyFree", 1, treefs.ErrDoubleFree},
		{"Negative", -1, treefs.ErrNotFound},
		{"PastEnd", treefs.MaxNodes, treefs.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := NewArena()
			_, err := a.Allocate()
			require.NoError(t, err)

			err = a.Free(tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 1, a.Len(), "failed free must not change the count")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, a.Len())
			assert.False(t, a.Live(tt.id))
		})
	}
}

func TestArena_FreeClearsSlot(t *testing.T) {
	t.Parallel()

	a := NewArena()
	id, err := a.Allocate()
	require.NoError(t, err)
	n, _ := a.Get(id)
	n.name = "stale"
	n.content = []byte("data")
	n.children = []treefs.NodeID{4, 5}

	gen := a.Generation(id)
	require.NoError(t, a.Free(id))
	assert.Equal(t, gen+1, a.Generation(id))

	_, ok := a.Get(id)
	assert.False(t, ok)

	id, err = a.Allocate()
	require.NoError(t, err)
	n, ok = a.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, n.ID())
	assert.Empty(t, n.Name())
	assert.Nil(t, n.content)
	assert.Empty(t, n.Children())
	assert.Equal(t, treefs.InvalidID, n.Parent())
}

func TestArena_All(t *testing.T) {
	t.Parallel()

	a := NewArena()
	for range 4 {
		_, err := a.Allocate()
		require.NoError(t, err)
	}
	require.NoError(t, a.Free(2))

	var ids []treefs.NodeID
	for n := range a.All() {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []treefs.NodeID{0, 1, 3}, ids)

	// early break
	ids = ids[:0]
	for n := range a.All() {
		ids = append(ids, n.ID())
		break
	}
	assert.Equal(t, []treefs.NodeID{0}, ids)
}

func TestArena_Reset(t *testing.T) {
	t.Parallel()

	a := NewArena()
	for range 3 {
		_, err := a.Allocate()
		require.NoError(t, err)
	}
	a.Reset()

	assert.Equal(t, 0, a.Len())
	for i := range treefs.MaxNodes {
		assert.False(t, a.Live(treefs.NodeID(i)))
	}
	id, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, treefs.RootID, id)
}

func TestNode_RemoveChildKeepsOrder(t *testing.T) {
	t.Parallel()

	n := &Node{}
	n.reset()
	for _, id := range []treefs.NodeID{3, 7, 1, 9} {
		n.addChild(id)
	}

	assert.True(t, n.removeChild(7))
	assert.Equal(t, []treefs.NodeID{3, 1, 9}, n.Children())
	assert.False(t, n.removeChild(7))

	// Children must be a copy
	c := n.Children()
	c[0] = 42
	assert.Equal(t, []treefs.NodeID{3, 1, 9}, n.Children())
}
