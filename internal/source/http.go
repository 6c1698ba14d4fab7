package source

import (
	"context"
	"fmt"
	"net/http"
)

// HTTPFetcher retrieves the manifest with a single GET and no caching.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

func NewHTTPFetcher(url string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{url: url, client: client}
}

func (f *HTTPFetcher) Location() string {
	return f.url
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, f.url)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest request returned status %d", res.StatusCode)
	}

	if res.ContentLength > MaxManifestSize {
		return nil, fmt.Errorf("%s: %w", f.url, ErrTooLarge)
	}
	payload, err := readLimited(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read manifest body: %w", err)
	}
	return payload, nil
}
