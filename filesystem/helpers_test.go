package filesystem

import (
	"testing"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLvl = util.WarnLevel
	return cfg
}

// requireInvariants fails the test if the store no longer forms a valid tree
func requireInvariants(t *testing.T, fs *FileSystem) {
	t.Helper()
	records := fs.Snapshot()
	_, err := buildArena(records)
	require.NoError(t, err, "store invariants broken")
	require.Equal(t, len(records), fs.Len())
}

// mustCreate creates a node and fails the test on error
func mustCreate(t *testing.T, fs *FileSystem, parent treefs.NodeID, name string, kind treefs.Kind) treefs.NodeID {
	t.Helper()
	id, err := fs.Create(parent, name, kind)
	require.NoError(t, err)
	return id
}

// buildSampleTree creates
//
//	/notes.txt "remember"
//	/docs/todo.txt "milk^eggs"
//	/docs/archive/
//	/pics/
func buildSampleTree(t *testing.T, fs *FileSystem) {
	t.Helper()
	notes := mustCreate(t, fs, treefs.RootID, "notes.txt", treefs.KindFile)
	docs := mustCreate(t, fs, treefs.RootID, "docs", treefs.KindDir)
	todo := mustCreate(t, fs, docs, "todo.txt", treefs.KindFile)
	mustCreate(t, fs, docs, "archive", treefs.KindDir)
	mustCreate(t, fs, treefs.RootID, "pics", treefs.KindDir)
	require.NoError(t, fs.WriteContent(notes, []byte("remember")))
	require.NoError(t, fs.WriteContent(todo, []byte("milk^eggs")))
}
