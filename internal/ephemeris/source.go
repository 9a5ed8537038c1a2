package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/signalsfoundry/leo-route-optimizer/internal/upstream"
)

const (
	// DefaultCatalogURL is the Celestrak Starlink group in TLE format.
	DefaultCatalogURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=starlink&FORMAT=tle"
	defaultUserAgent  = "leo-route-optimizer/1.0"
)

// Source yields raw TLE catalog bytes.
type Source interface {
	// Name identifies the catalog, used as its cache key.
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// Fetcher downloads a catalog over HTTP.
type Fetcher struct {
	URL    string
	Client *upstream.Client
}

// NewFetcher returns a Fetcher for url, defaulting to DefaultCatalogURL.
func NewFetcher(url string, client *upstream.Client) *Fetcher {
	if url == "" {
		url = DefaultCatalogURL
	}
	if client == nil {
		client = upstream.New(upstream.DefaultTimeout, defaultUserAgent)
	}
	return &Fetcher{URL: url, Client: client}
}

func (f *Fetcher) Name() string { return f.URL }

func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	body, err := f.Client.Get(ctx, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch tle catalog: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("fetch tle catalog: empty body")
	}
	return body, nil
}

// FileSource reads a catalog from disk.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return "file://" + f.Path }

func (f FileSource) Fetch(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read tle file: %w", err)
	}
	return data, nil
}
