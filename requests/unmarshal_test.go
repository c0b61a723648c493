package requests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/adapters"
	"github.com/brettbedarf/treefs/filesystem"
)

func TestGetNodeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    treefs.NodeCreateRequestType
		wantErr bool
	}{
		{"File", `{"type":"file","path":"a"}`, treefs.FileNodeType, false},
		{"Dir", `{"type":"dir","path":"a"}`, treefs.DirNodeType, false},
		{"Missing", `{"path":"a"}`, "", false},
		{"Invalid", `{"type":`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := GetNodeType([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalFileRequest(t *testing.T) {
	t.Parallel()

	req, err := UnmarshalFileRequest([]byte(`{"type":"file","path":"docs/todo.txt","content":"milk^eggs"}`))
	require.NoError(t, err)
	assert.Equal(t, "docs/todo.txt", req.Path)
	assert.Equal(t, treefs.FileNodeType, req.Type)
	assert.Equal(t, []byte("milk^eggs"), req.Content)

	req, err = UnmarshalFileRequest([]byte(`{"type":"file","path":"empty"}`))
	require.NoError(t, err)
	assert.Nil(t, req.Content)

	_, err = UnmarshalFileRequest([]byte(`{"type":"file"}`))
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestUnmarshalDirRequest(t *testing.T) {
	t.Parallel()

	req, err := UnmarshalDirRequest([]byte(`{"type":"dir","path":"a/b"}`))
	require.NoError(t, err)
	assert.Equal(t, "a/b", req.Path)
	assert.Equal(t, treefs.DirNodeType, req.Type)

	_, err = UnmarshalDirRequest([]byte(`{"type":"dir","path":""}`))
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestUnmarshalNodeRequests(t *testing.T) {
	t.Parallel()

	data := []byte(`[
		{"type": "dir", "path": "docs/archive"},
		{"type": "file", "path": "docs/todo.txt", "content": "milk"},
		{"type": "link", "path": "nope"},
		{"type": "file"},
		"garbage",
		{"type": "dir", "path": "pics"}
	]`)

	reqs, err := UnmarshalNodeRequests(data)
	require.NoError(t, err)
	require.Len(t, reqs.Dirs, 2)
	require.Len(t, reqs.Files, 1)
	assert.Equal(t, "docs/archive", reqs.Dirs[0].Path)
	assert.Equal(t, "pics", reqs.Dirs[1].Path)
	assert.Equal(t, "docs/todo.txt", reqs.Files[0].Path)

	_, err = UnmarshalNodeRequests([]byte(`{"type":"dir"}`))
	assert.Error(t, err)
}

func TestNodeRequests_Apply(t *testing.T) {
	t.Parallel()

	reqs, err := UnmarshalNodeRequests([]byte(`[
		{"type": "file", "path": "docs/todo.txt", "content": "milk"},
		{"type": "dir", "path": "docs/archive"},
		{"type": "dir", "path": "docs/name-longer-than-twenty-bytes"},
		{"type": "dir", "path": "up/../b"},
		{"type": "file", "path": "docs/todo.txt", "content": "eggs"}
	]`))
	require.NoError(t, err)

	fs := filesystem.NewFS(nil)
	dirs, files := reqs.Apply(context.Background(), fs)
	assert.Equal(t, 1, dirs)
	assert.Equal(t, 1, files)

	c := filesystem.NewCursor(fs)
	require.NoError(t, c.EnterChild("docs"))
	content, err := c.ReadContent("todo.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("milk"), content)
	_, err = c.Search("archive")
	assert.NoError(t, err)
	_, err = fs.Search(treefs.RootID, "up")
	assert.ErrorIs(t, err, treefs.ErrNotFound)
}

func TestUnmarshalFileRequest_Source(t *testing.T) {
	t.Parallel()
	adapters.RegisterHTTP(nil)

	req, err := UnmarshalFileRequest([]byte(`{"type":"file","path":"motd","source":{"type":"http","url":"http://localhost/motd"}}`))
	require.NoError(t, err)
	require.NotNil(t, req.Source)
	assert.Nil(t, req.Content)

	_, err = UnmarshalFileRequest([]byte(`{"type":"file","path":"motd","content":"x","source":{"type":"http","url":"http://localhost"}}`))
	assert.ErrorIs(t, err, ErrContentAndSource)

	_, err = UnmarshalFileRequest([]byte(`{"type":"file","path":"motd","source":{"type":"ftp"}}`))
	assert.Error(t, err)

	_, err = UnmarshalFileRequest([]byte(`{"type":"file","path":"motd","source":{"type":"http","url":"file:///etc/passwd"}}`))
	assert.Error(t, err)
}

func TestNodeRequests_ApplySource(t *testing.T) {
	t.Parallel()
	adapters.RegisterHTTP(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(strings.Repeat("a", 80)))
	}))
	defer srv.Close()

	reqs, err := UnmarshalNodeRequests([]byte(`[
		{"type": "file", "path": "long", "source": {"type": "http", "url": "` + srv.URL + `/long"}},
		{"type": "file", "path": "missing", "source": {"type": "http", "url": "` + srv.URL + `/missing"}}
	]`))
	require.NoError(t, err)
	require.Len(t, reqs.Files, 2)

	fs := filesystem.NewFS(nil)
	_, files := reqs.Apply(context.Background(), fs)
	assert.Equal(t, 1, files)

	c := filesystem.NewCursor(fs)
	content, err := c.ReadContent("long")
	require.NoError(t, err)
	assert.Len(t, content, treefs.MaxContent)
	_, err = c.Search("missing")
	assert.Error(t, err)
}
