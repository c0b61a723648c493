package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/device"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/mocks"
)

func newTestSession(t *testing.T) (*Session, *filesystem.FileSystem) {
	t.Helper()
	fs := filesystem.NewFS(nil)
	return NewSession(fs, device.NewFile(afero.NewMemMapFs(), "ss", 0)), fs
}

// exec runs line and returns its output, failing the test on error
func exec(t *testing.T, s *Session, line string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, s.Exec(context.Background(), line, &out), line)
	return out.String()
}

func execErr(t *testing.T, s *Session, line string) error {
	t.Helper()
	var out bytes.Buffer
	return s.Exec(context.Background(), line, &out)
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	s1, fs := newTestSession(t)
	s2 := NewSession(fs, nil)
	assert.NotEqual(t, uuid.Nil, s1.ID())
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, "/home:", s1.Prompt())
	assert.Equal(t, treefs.RootID, s1.Cursor().Current())
}

func TestSession_CreateAndList(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t)
	assert.Contains(t, exec(t, s, "mkf notes.txt"), "Create file notes.txt successful! (id 1)")
	assert.Contains(t, exec(t, s, "  mkdir   docs  "), "Create directory docs successful! (id 2)")
	exec(t, s, "touch todo")
	exec(t, s, "write notes.txt remember the milk")

	out := exec(t, s, "ls")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "The elements in home.", lines[0])
	assert.Equal(t, []string{"ID", "NAME", "TYPE", "SIZE"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"1", "notes.txt", "file", "17", "B"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"2", "docs", "dir", "0", "items"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"3", "todo", "file", "0", "B"}, strings.Fields(lines[4]))
	assert.Equal(t, "3 of 10 entries", lines[5])
}

func TestSession_Help(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t)
	out := exec(t, s, "help")
	assert.Equal(t, helpText, out)
	assert.True(t, strings.HasSuffix(out, "+\n"), "help must end with a single newline")
}

func TestSession_Errors(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t)
	exec(t, s, "mkf a")
	exec(t, s, "mkdir d")

	tests := []struct {
		line    string
		wantErr error
	}{
		{"mkf", ErrUsage},
		{"mkf a b", ErrUsage},
		{"frobnicate", ErrUsage},
		{"cd", ErrUsage},
		{"write", ErrUsage},
		{"mkf a", treefs.ErrNameCollision},
		{"mkdir ..", treefs.ErrInvalidName},
		{"mkdir x/y", treefs.ErrInvalidName},
		{"mkf " + strings.Repeat("n", 21), treefs.ErrInvalidName},
		{"cd a", treefs.ErrInvalidKind},
		{"cd nope", treefs.ErrNotFound},
		{"cat d", treefs.ErrInvalidKind},
		{"cat nope", treefs.ErrNotFound},
		{"write d text", treefs.ErrInvalidKind},
		{"rm nope", treefs.ErrNotFound},
		{"find nope", treefs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.ErrorIs(t, execErr(t, s, tt.line), tt.wantErr)
		})
	}

	assert.NoError(t, execErr(t, s, "   "))
	assert.ErrorIs(t, execErr(t, s, "quit"), ErrQuit)
}

func TestSession_Navigation(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t)
	exec(t, s, "mkdir docs")
	exec(t, s, "cd docs")
	assert.Equal(t, "/docs:", s.Prompt())
	exec(t, s, "mkdir archive")
	exec(t, s, "cd archive")
	assert.Equal(t, "/docs/archive\n", exec(t, s, "pwd"))

	exec(t, s, "cd ..")
	assert.Equal(t, "/docs:", s.Prompt())
	exec(t, s, "cd /")
	assert.Equal(t, "/home:", s.Prompt())
	assert.Equal(t, "/\n", exec(t, s, "pwd"))

	// the root is its own parent
	exec(t, s, "cd ..")
	assert.Equal(t, "/home:", s.Prompt())
}

func TestSession_ContentCommands(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t)
	exec(t, s, "mkf f")
	exec(t, s, "write f hello  world")
	assert.Equal(t, "hello  world\n", exec(t, s, "cat f"))

	out := exec(t, s, "write f "+strings.Repeat("x", 60))
	assert.Contains(t, out, "Only the first 50 bytes were kept.")
	assert.Equal(t, strings.Repeat("x", 50)+"\n", exec(t, s, "cat f"))

	assert.Equal(t, "name: f id: 1 type: file\n", exec(t, s, "find f"))
}

func TestSession_RemoveSubtree(t *testing.T) {
	t.Parallel()

	s, fs := newTestSession(t)
	exec(t, s, "mkdir docs")
	exec(t, s, "cd docs")
	exec(t, s, "mkf a")
	exec(t, s, "mkf b")
	exec(t, s, "cd ..")
	require.Equal(t, 4, fs.Len())

	assert.Equal(t, "Delete successfully!\n", exec(t, s, "rm docs"))
	assert.Equal(t, 1, fs.Len())
}

func TestSession_CurrentDirectoryRemovedElsewhere(t *testing.T) {
	t.Parallel()

	s, fs := newTestSession(t)
	exec(t, s, "mkdir docs")
	exec(t, s, "cd docs")

	other := NewSession(fs, nil)
	exec(t, other, "rm docs")

	assert.Equal(t, "/?:", s.Prompt())
	assert.ErrorIs(t, execErr(t, s, "ls"), treefs.ErrNotFound)
	assert.ErrorIs(t, execErr(t, s, "cd .."), treefs.ErrNotFound)
	exec(t, s, "cd /")
	assert.Equal(t, "/home:", s.Prompt())
}

func TestSession_SaveLoad(t *testing.T) {
	t.Parallel()

	s, fs := newTestSession(t)
	exec(t, s, "mkdir docs")
	exec(t, s, "cd docs")
	exec(t, s, "mkf todo")
	exec(t, s, "write todo milk^eggs")
	assert.Contains(t, exec(t, s, "sv"), "Save to disk successfully!")

	exec(t, s, "cd /")
	exec(t, s, "rm docs")
	exec(t, s, "mkf other")
	exec(t, s, "cd /")

	assert.Contains(t, exec(t, s, "ld"), "Load from disk successfully! (3 nodes)")
	assert.Equal(t, "/home:", s.Prompt())
	exec(t, s, "cd docs")
	assert.Equal(t, "milk^eggs\n", exec(t, s, "cat todo"))
	assert.Equal(t, 3, fs.Len())
}

func TestSession_LoadFailureKeepsStore(t *testing.T) {
	t.Parallel()

	dev := &mocks.MockDevice{}
	dev.On("Restore", mock.Anything).Return([]byte("not a store"), nil)
	fs := filesystem.NewFS(nil)
	s := NewSession(fs, dev)
	exec(t, s, "mkdir keep")
	exec(t, s, "cd keep")

	err := execErr(t, s, "load")
	assert.ErrorIs(t, err, treefs.ErrCorruptFormat)
	assert.Equal(t, "/keep:", s.Prompt(), "failed load must not move the cursor")
	dev.AssertExpectations(t)
}

func TestSession_Run(t *testing.T) {
	t.Parallel()

	s, fs := newTestSession(t)
	in := strings.NewReader("mkdir docs\ncd docs\nmkf a\nmkf a\nbogus\nquit\nmkf never\n")
	var out bytes.Buffer

	require.NoError(t, s.Run(context.Background(), in, &out))
	text := out.String()
	assert.Contains(t, text, "File Manager")
	assert.Contains(t, text, "/home:")
	assert.Contains(t, text, "/docs:")
	assert.Contains(t, text, "You have an element of the same name!")
	assert.Contains(t, text, `no such command "bogus"`)
	assert.Equal(t, 3, fs.Len(), "commands after quit must not run")
}

func TestSession_RunEndOfInput(t *testing.T) {
	t.Parallel()

	s, fs := newTestSession(t)
	require.NoError(t, s.Run(context.Background(), strings.NewReader("mkf a"), &bytes.Buffer{}))
	assert.Equal(t, 2, fs.Len())
}

func TestSession_RunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, fs := newTestSession(t)
	err := s.Run(ctx, strings.NewReader("mkf a\n"), &bytes.Buffer{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, fs.Len())
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Sorry you cannot add more files in this directory.", describe(treefs.ErrDirectoryFull))
	assert.Equal(t, "Sorry the file system is full.", describe(treefs.ErrStoreFull))
	assert.Equal(t, `you should add the name, like "rm XXX"`, describe(mustArgErr(t)))
	assert.True(t, strings.HasPrefix(describe(treefs.ErrNotFound), "Error: "))
}

func mustArgErr(t *testing.T) error {
	t.Helper()
	_, err := argName("rm", "")
	require.Error(t, err)
	return err
}
