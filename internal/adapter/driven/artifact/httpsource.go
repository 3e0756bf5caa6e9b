package artifact

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

var _ driven.BinarySource = (*HTTPSource)(nil)

// HTTPSource downloads binaries from http(s) URLs, typically a build server.
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource creates an HTTPSource. A nil client uses http.DefaultClient.
func NewHTTPSource(client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{client: client}
}

// Supports reports whether location is an http or https URL.
func (s *HTTPSource) Supports(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open starts the download. The response body is streamed to the caller.
func (s *HTTPSource) Open(ctx context.Context, location string) (*driven.Binary, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, &SourceError{Source: "http", Location: location, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &SourceError{Source: "http", Location: location, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: "http", Location: location, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		var cause error
		switch resp.StatusCode {
		case http.StatusNotFound:
			cause = ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			cause = ErrAccessDenied
		default:
			cause = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil, &SourceError{Source: "http", Location: location, Err: cause}
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "binary"
	}

	return &driven.Binary{
		Filename: name,
		Size:     resp.ContentLength,
		Body:     resp.Body,
	}, nil
}
