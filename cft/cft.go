// Package cft provides typed access to the Chrome for Testing release
// catalogs: version ordinals, release channels, platform tags, and a small
// HTTP client for the two published catalog documents.
package cft

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultKnownGoodVersionsURL is the endpoint listing every known-good
	// version together with its per-platform downloads.
	DefaultKnownGoodVersionsURL = "https://googlechromelabs.github.io/chrome-for-testing/known-good-versions-with-downloads.json"

	// DefaultLastKnownGoodVersionsURL is the endpoint listing the current
	// version of each release channel together with its downloads.
	DefaultLastKnownGoodVersionsURL = "https://googlechromelabs.github.io/chrome-for-testing/last-known-good-versions-with-downloads.json"
)

// Channel is a named release track. Each channel is pinned to exactly one
// version at any point in time.
type Channel string

// Release channels published by the catalogs.
const (
	Stable Channel = "Stable"
	Beta   Channel = "Beta"
	Dev    Channel = "Dev"
	Canary Channel = "Canary"
)

// Download is a single downloadable artifact for one platform.
type Download struct {
	Platform Platform `json:"platform"`
	URL      string   `json:"url"`
}

// Downloads groups the artifacts published for one version. Chromedriver
// downloads are absent for versions predating its inclusion in the catalog.
type Downloads struct {
	Chrome       []Download `json:"chrome"`
	Chromedriver []Download `json:"chromedriver"`
}

// ForPlatform returns the download for p from list, if present.
func ForPlatform(list []Download, p Platform) (Download, bool) {
	for _, d := range list {
		if d.Platform == p {
			return d, true
		}
	}
	return Download{}, false
}

// VersionEntry is one entry of the known-good-versions catalog.
type VersionEntry struct {
	Version   Version   `json:"version"`
	Revision  string    `json:"revision"`
	Downloads Downloads `json:"downloads"`
}

// KnownGoodVersions is the full catalog document.
type KnownGoodVersions struct {
	Timestamp string         `json:"timestamp"`
	Versions  []VersionEntry `json:"versions"`
}

// ChannelEntry is one entry of the last-known-good-versions catalog.
type ChannelEntry struct {
	Channel   Channel   `json:"channel"`
	Version   Version   `json:"version"`
	Revision  string    `json:"revision"`
	Downloads Downloads `json:"downloads"`
}

// LastKnownGoodVersions is the per-channel catalog document.
type LastKnownGoodVersions struct {
	Timestamp string                   `json:"timestamp"`
	Channels  map[Channel]ChannelEntry `json:"channels"`
}

// Client fetches the catalog documents. The catalogs are read-only and
// unauthenticated; beyond "parseable JSON keyed by version and platform"
// their contents are an external contract.
type Client struct {
	httpClient       *http.Client
	knownGoodURL     string
	lastKnownGoodURL string
}

// Option is a catalog client option.
type Option func(*Client)

// WithHTTPClient sets the http.Client used for catalog requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithKnownGoodVersionsURL overrides the full-catalog endpoint.
func WithKnownGoodVersionsURL(url string) Option {
	return func(c *Client) { c.knownGoodURL = url }
}

// WithLastKnownGoodVersionsURL overrides the per-channel catalog endpoint.
func WithLastKnownGoodVersionsURL(url string) Option {
	return func(c *Client) { c.lastKnownGoodURL = url }
}

// NewClient creates a new catalog client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:       http.DefaultClient,
		knownGoodURL:     DefaultKnownGoodVersionsURL,
		lastKnownGoodURL: DefaultLastKnownGoodVersionsURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// doReq executes a GET against url and decodes the JSON body into v.
func (c *Client) doReq(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		return fmt.Errorf("catalog request %s: unexpected status %s", url, res.Status)
	}

	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("catalog request %s: decode: %w", url, err)
	}
	return nil
}

// KnownGoodVersions fetches the full catalog.
func (c *Client) KnownGoodVersions(ctx context.Context) (*KnownGoodVersions, error) {
	var doc KnownGoodVersions
	if err := c.doReq(ctx, c.knownGoodURL, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LastKnownGoodVersions fetches the per-channel catalog.
func (c *Client) LastKnownGoodVersions(ctx context.Context) (*LastKnownGoodVersions, error) {
	var doc LastKnownGoodVersions
	if err := c.doReq(ctx, c.lastKnownGoodURL, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
