// Package requests parses node definition files used to seed a store.
//
// A definition file is a JSON array:
//
//	[
//	  {"type": "dir", "path": "docs/archive"},
//	  {"type": "file", "path": "docs/todo.txt", "content": "milk"},
//	  {"type": "file", "path": "docs/motd", "source": {"type": "http", "url": "https://example.com/motd"}}
//	]
//
// A file with a source gets its content fetched when the requests are applied.
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/adapters"
	"github.com/brettbedarf/treefs/internal/util"
)

// ErrEmptyPath is returned for a definition without a path
var ErrEmptyPath = errors.New("node request has no path")

// ErrContentAndSource is returned for a file definition carrying both
var ErrContentAndSource = errors.New("file request has both content and source")

// GetNodeType extracts the node type from JSON without full unmarshaling
func GetNodeType(data []byte) (treefs.NodeCreateRequestType, error) {
	var meta struct {
		Type treefs.NodeCreateRequestType `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Type, nil
}

// UnmarshalFileRequest handles file-specific unmarshaling with content
func UnmarshalFileRequest(data []byte) (*treefs.FileCreateRequest, error) {
	var dto FileRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	node, err := convertNodeDTO(dto.NodeRequestDTO)
	if err != nil {
		return nil, err
	}

	req := &treefs.FileCreateRequest{NodeRequest: node}
	if dto.Content != nil {
		req.Content = []byte(*dto.Content)
	}
	if len(dto.Source) > 0 {
		if dto.Content != nil {
			return nil, ErrContentAndSource
		}
		src, err := adapters.GetSource(dto.Source)
		if err != nil {
			return nil, fmt.Errorf("%s: source: %w", dto.Path, err)
		}
		req.Source = src
	}
	return req, nil
}

// UnmarshalDirRequest handles explicit directory unmarshaling (no content)
func UnmarshalDirRequest(data []byte) (*treefs.DirCreateRequest, error) {
	var dto DirRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	node, err := convertNodeDTO(dto.NodeRequestDTO)
	if err != nil {
		return nil, err
	}
	return &treefs.DirCreateRequest{NodeRequest: node}, nil
}

func convertNodeDTO(dto NodeRequestDTO) (treefs.NodeRequest, error) {
	if dto.Path == "" {
		return treefs.NodeRequest{}, ErrEmptyPath
	}
	return treefs.NodeRequest{Path: dto.Path, Type: dto.Type}, nil
}

// NodeRequests is the parsed content of a definition file
type NodeRequests struct {
	Dirs  []*treefs.DirCreateRequest
	Files []*treefs.FileCreateRequest
}

// UnmarshalNodeRequests parses a whole definition file. Entries that cannot
// be parsed or have an unknown type are logged and skipped; only a file that
// is not a JSON array is an error.
func UnmarshalNodeRequests(data []byte) (*NodeRequests, error) {
	logger := util.GetLogger("UnmarshalNodeRequests")

	var rawNodes []json.RawMessage
	if err := json.Unmarshal(data, &rawNodes); err != nil {
		return nil, fmt.Errorf("node definitions: %w", err)
	}

	reqs := &NodeRequests{}
	for i, rawNode := range rawNodes {
		nodeType, err := GetNodeType(rawNode)
		if err != nil {
			logger.Error().Err(err).Int("index", i).Msg("Failed to get node type")
			continue
		}

		switch nodeType {
		case treefs.FileNodeType:
			fileReq, err := UnmarshalFileRequest(rawNode)
			if err != nil {
				logger.Error().Err(err).Int("index", i).Msg("Failed to unmarshal file request")
				continue
			}
			reqs.Files = append(reqs.Files, fileReq)
			logger.Debug().Str("path", fileReq.Path).Msg("Processed file request")

		case treefs.DirNodeType:
			dirReq, err := UnmarshalDirRequest(rawNode)
			if err != nil {
				logger.Error().Err(err).Int("index", i).Msg("Failed to unmarshal directory request")
				continue
			}
			reqs.Dirs = append(reqs.Dirs, dirReq)
			logger.Debug().Str("path", dirReq.Path).Msg("Processed directory request")

		default:
			logger.Warn().Str("type", string(nodeType)).Int("index", i).Msg("Unknown node type")
		}
	}

	logger.Debug().
		Int("files", len(reqs.Files)).
		Int("directories", len(reqs.Dirs)).
		Msg("Successfully loaded node requests")
	return reqs, nil
}

// NodeAdder is the part of the store the requests are applied to
type NodeAdder interface {
	AddDirNode(req *treefs.DirCreateRequest) (treefs.NodeID, error)
	AddFileNode(req *treefs.FileCreateRequest) (treefs.NodeID, error)
}

// Apply adds all directories, then all files, to fs. File sources are
// fetched first. Failed requests are logged and skipped. It returns how many
// of each were added.
func (r *NodeRequests) Apply(ctx context.Context, fs NodeAdder) (dirs int, files int) {
	logger := util.GetLogger("NodeRequests.Apply")

	for _, req := range r.Dirs {
		if _, err := fs.AddDirNode(req); err != nil {
			logger.Warn().Str("path", req.Path).Err(err).Msg("Failed to add directory request")
			continue
		}
		dirs++
	}
	for _, req := range r.Files {
		if req.Source != nil {
			content, err := req.Source.Fetch(ctx)
			if err != nil {
				logger.Warn().Str("path", req.Path).Err(err).Msg("Failed to fetch file source")
				continue
			}
			req.Content = content
		}
		if _, err := fs.AddFileNode(req); err != nil {
			logger.Warn().Str("path", req.Path).Err(err).Msg("Failed to add file request")
			continue
		}
		files++
	}
	logger.Info().Int("directories", dirs).Int("files", files).Msg("Added new nodes to filesystem")
	return dirs, files
}
