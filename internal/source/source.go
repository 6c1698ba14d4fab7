// Package source retrieves the raw manifest payload from its well-known
// location: a file in the static directory, an HTTP URL or an S3 object.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// MaxManifestSize caps how much of a manifest payload is read.
const MaxManifestSize = 8 << 20

var (
	// ErrNotFound reports that the manifest does not exist at its location.
	ErrNotFound = errors.New("manifest not found")
	ErrTooLarge = fmt.Errorf("manifest exceeds %d bytes", MaxManifestSize)
)

// Fetcher performs one retrieval of the manifest payload.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	Location() string
}

type Options struct {
	StaticDir string
	Timeout   time.Duration // HTTP transport only
	S3Region  string
	Client    *http.Client
}

// New picks a fetcher from the location scheme. Relative paths are resolved
// against the static directory, the way the asset layer serves them.
func New(location string, opts Options) (Fetcher, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("empty manifest location")
	}

	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		client := opts.Client
		if client == nil {
			client = &http.Client{Timeout: opts.Timeout}
		}
		return NewHTTPFetcher(location, client), nil
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := splitS3URL(location)
		if err != nil {
			return nil, err
		}
		return NewS3Fetcher(bucket, key, opts.S3Region)
	case strings.HasPrefix(location, "file://"):
		return NewFileFetcher(strings.TrimPrefix(location, "file://")), nil
	}

	path := location
	if !filepath.IsAbs(path) && opts.StaticDir != "" {
		path = filepath.Join(opts.StaticDir, strings.TrimPrefix(path, "/"))
	}
	return NewFileFetcher(path), nil
}

func splitS3URL(location string) (string, string, error) {
	rest := strings.TrimPrefix(location, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q, want s3://bucket/key", location)
	}
	return bucket, key, nil
}

// readLimited reads r up to MaxManifestSize and fails on anything longer.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxManifestSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxManifestSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
