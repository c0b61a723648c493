package treefs

import "context"

// NodeRequest has common fields embedded in concrete request types
type NodeRequest struct {
	Path string // slash separated, relative to root
	Type NodeCreateRequestType
}

// NodeCreateRequestType valid types are FileNodeType "file", DirNodeType "dir"
type NodeCreateRequestType string

const (
	FileNodeType NodeCreateRequestType = "file"
	DirNodeType  NodeCreateRequestType = "dir"
)

// ContentSource produces the initial content of a seeded file
type ContentSource interface {
	// Fetch returns at most MaxContent bytes
	Fetch(ctx context.Context) ([]byte, error)
}

type FileCreateRequest struct {
	NodeRequest
	Content []byte
	// Source, when set, replaces Content at the time the request is applied
	Source ContentSource
}

type DirCreateRequest struct {
	NodeRequest
}
