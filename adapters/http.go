package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodPost HTTPMethod = "POST"
)

// HTTPClient is the part of [http.Client] the source needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource fetches file content with a single HTTP request
type HTTPSource struct {
	URL     string            `json:"url"`
	Method  *HTTPMethod       `json:"method,omitempty"` // Default is GET
	Headers map[string]string `json:"headers,omitempty"`

	client HTTPClient
}

// RegisterHTTP registers the "http" source type using client;
// nil uses http.DefaultClient
func RegisterHTTP(client HTTPClient) {
	if client == nil {
		client = http.DefaultClient
	}
	Register(HTTPAdapterType, func(raw []byte) (treefs.ContentSource, error) {
		src, err := NewHTTPSource(raw, client)
		if err != nil {
			return nil, err
		}
		return src, nil
	})
}

// NewHTTPSource parses and validates an http source definition
func NewHTTPSource(raw []byte, client HTTPClient) (*HTTPSource, error) {
	var src HTTPSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	src.URL = strings.TrimSpace(src.URL)
	if err := validateURL(src.URL); err != nil {
		return nil, err
	}
	if src.Method != nil && *src.Method != HTTPMethodGet && *src.Method != HTTPMethodPost {
		return nil, fmt.Errorf("unsupported method %q", *src.Method)
	}
	src.client = client
	return &src, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("source url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("source url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("source url %q has no host", raw)
	}
	if u.User != nil {
		return fmt.Errorf("source url %q must not contain credentials", raw)
	}
	return nil
}

func (h *HTTPSource) getMethod() HTTPMethod {
	if h.Method != nil {
		return *h.Method
	}
	return HTTPMethodGet
}

// Fetch requests the URL and returns the first [treefs.MaxContent] bytes of
// the body
func (h *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	logger := util.GetLogger("HTTPSource.Fetch")

	req, err := http.NewRequestWithContext(ctx, h.getMethod(), h.URL, nil)
	if err != nil {
		return nil, err
	}
	// Add custom headers
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %s", h.getMethod(), h.URL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, treefs.MaxContent))
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("url", h.URL).Int("bytes", len(data)).Msg("Fetched source")
	return data, nil
}

var _ treefs.ContentSource = (*HTTPSource)(nil)
