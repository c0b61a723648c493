package filesystem

import (
	"strings"
	"testing"

	"github.com/brettbedarf/treefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootRecord(children ...treefs.NodeID) treefs.Record {
	return treefs.Record{ID: 0, Name: "home", Kind: treefs.KindRoot, Parent: 0, Children: children}
}

func TestFileSystem_SnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()

	fs := NewFS(createTestConfig())
	buildSampleTree(t, fs)

	records := fs.Snapshot()
	require.Len(t, records, 6)
	for i, r := range records {
		assert.Equal(t, treefs.NodeID(i), r.ID, "records must be in id order")
	}

	records[0].Children[0] = 42
	records[1].Content[0] = 'X'
	fresh := fs.Snapshot()
	assert.Equal(t, treefs.NodeID(1), fresh[0].Children[0])
	assert.Equal(t, byte('r'), fresh[1].Content[0])
}

func TestFileSystem_ReplaceRoundTrip(t *testing.T) {
	t.Parallel()

	src := NewFS(createTestConfig())
	buildSampleTree(t, src)
	// leave a hole in the id space
	pics, err := src.Search(treefs.RootID, "pics")
	require.NoError(t, err)
	mustCreate(t, src, pics, "cat.png", treefs.KindFile)
	notes, err := src.Search(treefs.RootID, "notes.txt")
	require.NoError(t, err)
	require.NoError(t, src.Delete(notes))

	dst := NewFS(createTestConfig())
	require.NoError(t, dst.Replace(src.Snapshot()))
	assert.Equal(t, src.Snapshot(), dst.Snapshot())
	requireInvariants(t, dst)

	// the hole is the next id handed out
	id := mustCreate(t, dst, treefs.RootID, "new", treefs.KindFile)
	assert.Equal(t, notes, id)
}

func TestFileSystem_ReplaceRejects(t *testing.T) {
	t.Parallel()

	file := func(id, parent treefs.NodeID, name string) treefs.Record {
		return treefs.Record{ID: id, Name: name, Kind: treefs.KindFile, Parent: parent}
	}
	dir := func(id, parent treefs.NodeID, name string, children ...treefs.NodeID) treefs.Record {
		return treefs.Record{ID: id, Name: name, Kind: treefs.KindDir, Parent: parent, Children: children}
	}

	tests := []struct {
		name    string
		records []treefs.Record
	}{
		{"Empty", nil},
		{"NoRoot", []treefs.Record{dir(0, 0, "d")}},
		{"RootNotZero", []treefs.Record{{ID: 1, Name: "home", Kind: treefs.KindRoot, Parent: 1}}},
		{"RootWrongParent", []treefs.Record{{ID: 0, Name: "home", Kind: treefs.KindRoot, Parent: 3}}},
		{"TwoRoots", []treefs.Record{rootRecord(), {ID: 0, Name: "x", Kind: treefs.KindRoot}}},
		{"IDOutOfRange", []treefs.Record{rootRecord(), file(treefs.MaxNodes, 0, "f")}},
		{"DuplicateID", []treefs.Record{rootRecord(1), file(1, 0, "a"), file(1, 0, "b")}},
		{"BadKind", []treefs.Record{rootRecord(1), {ID: 1, Name: "f", Kind: 7, Parent: 0}}},
		{"EmptyName", []treefs.Record{rootRecord(1), file(1, 0, "")}},
		{"LongName", []treefs.Record{rootRecord(1), file(1, 0, strings.Repeat("n", 21))}},
		{"LongContent", []treefs.Record{rootRecord(1), {ID: 1, Name: "f", Kind: treefs.KindFile, Content: make([]byte, 51)}}},
		{"FileWithChildren", []treefs.Record{rootRecord(1), {ID: 1, Name: "f", Kind: treefs.KindFile, Children: []treefs.NodeID{2}}, file(2, 1, "g")}},
		{"TooManyChildren", []treefs.Record{rootRecord(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)}},
		{"MissingParent", []treefs.Record{rootRecord(1), file(1, 9, "f")}},
		{"ParentIsFile", []treefs.Record{rootRecord(1), file(1, 0, "f"), file(2, 1, "g")}},
		{"UnlistedChild", []treefs.Record{rootRecord(), file(1, 0, "f")}},
		{"ChildListedTwice", []treefs.Record{rootRecord(1, 1), file(1, 0, "f")}},
		{"ChildMissing", []treefs.Record{rootRecord(1, 2), file(1, 0, "f")}},
		{"ChildWrongParent", []treefs.Record{rootRecord(1, 2), dir(1, 0, "d"), file(2, 1, "f")}},
		{"SiblingNameClash", []treefs.Record{rootRecord(1, 2), file(1, 0, "f"), file(2, 0, "f")}},
		{"RootAsChild", []treefs.Record{rootRecord(1), dir(1, 0, "d", 0)}},
		{"Cycle", []treefs.Record{rootRecord(), dir(1, 2, "a", 2), dir(2, 1, "b", 1)}},
		{"SelfParent", []treefs.Record{rootRecord(), dir(1, 1, "a", 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := NewFS(createTestConfig())
			buildSampleTree(t, fs)
			before := fs.Snapshot()

			err := fs.Replace(tt.records)
			require.Error(t, err)
			assert.ErrorIs(t, err, treefs.ErrCorruptFormat)
			assert.Equal(t, before, fs.Snapshot(), "rejected replace must keep the store")
		})
	}
}
