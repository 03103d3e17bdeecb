package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrFetchFailed wraps any failure to retrieve an uploaded file's bytes.
// Fetch failures are job-fatal for the ingestion pipeline.
var ErrFetchFailed = errors.New("failed to fetch file")

// Store retrieves the raw bytes of an uploaded file by its stored URL.
type Store interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPStore fetches files from http(s) URLs, typically presigned object links.
type HTTPStore struct {
	client *http.Client
}

// NewHTTPStore creates a fetcher with a bounded request timeout.
func NewHTTPStore() *HTTPStore {
	return &HTTPStore{client: &http.Client{Timeout: 60 * time.Second}}
}

func (s *HTTPStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", ErrFetchFailed, resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return data, nil
}

// RouterStore dispatches fetches by URL scheme.
type RouterStore struct {
	object Store
	http   Store
}

// NewRouterStore routes s3:// URLs to the object store and everything else
// to the HTTP fetcher.
func NewRouterStore(object Store, httpStore Store) *RouterStore {
	return &RouterStore{object: object, http: httpStore}
}

func (s *RouterStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "s3://") {
		if s.object == nil {
			return nil, fmt.Errorf("%w: no object store configured for %s", ErrFetchFailed, url)
		}
		return s.object.Fetch(ctx, url)
	}
	return s.http.Fetch(ctx, url)
}
