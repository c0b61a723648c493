package requests

import (
	"encoding/json"

	"github.com/brettbedarf/treefs"
)

// NodeRequestDTO is the JSON representation of [treefs.NodeRequest]
type NodeRequestDTO struct {
	Path string                       `json:"path"`
	Type treefs.NodeCreateRequestType `json:"type"`
}

// FileRequestDTO is the JSON representation of [treefs.FileCreateRequest]
type FileRequestDTO struct {
	NodeRequestDTO
	// Content is stored as is; anything past [treefs.MaxContent] bytes is
	// dropped when the node is created.
	Content *string `json:"content,omitempty"`
	// Source is a typed adapter definition resolved through the adapters
	// registry, e.g. {"type": "http", "url": "https://..."}
	Source json.RawMessage `json:"source,omitempty"`
}

type DirRequestDTO struct {
	NodeRequestDTO
}
