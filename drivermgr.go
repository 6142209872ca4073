package drivermgr

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/singleflight"

	"github.com/drivermgr/drivermgr/cft"
)

// cacheDirName is the sub-directory created under the user cache root.
const cacheDirName = "drivermgr"

// Manager resolves Chrome for Testing versions and keeps their binaries
// cached on local disk. A Manager is safe for concurrent use; concurrent
// Ensure calls for the same version and platform share one download.
type Manager struct {
	catalog      *cft.Client
	httpClient   *http.Client
	cacheRoot    string
	platform     cft.Platform
	chromeLayout cft.ExecutableLayout
	driverLayout cft.ExecutableLayout
	logger       *slog.Logger

	// ensures deduplicates concurrent Ensure calls for the same
	// version/platform key so two goroutines never race the extractor
	// over one target directory.
	ensures singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and everything it starts.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCacheDir overrides the artifact cache root. The default is a
// drivermgr sub-directory of the user cache directory.
func WithCacheDir(dir string) Option {
	return func(m *Manager) { m.cacheRoot = dir }
}

// WithPlatform overrides the detected platform tag.
func WithPlatform(p cft.Platform) Option {
	return func(m *Manager) { m.platform = p }
}

// WithCatalogClient sets the catalog client used for version resolution.
func WithCatalogClient(c *cft.Client) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithHTTPClient sets the http.Client used for artifact downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Manager) { m.httpClient = hc }
}

// WithChromeLayout overrides the lookup table locating the Chrome
// executable inside an unpacked artifact tree.
func WithChromeLayout(l cft.ExecutableLayout) Option {
	return func(m *Manager) { m.chromeLayout = l }
}

// WithChromedriverLayout overrides the lookup table locating the
// chromedriver executable inside an unpacked artifact tree.
func WithChromedriverLayout(l cft.ExecutableLayout) Option {
	return func(m *Manager) { m.driverLayout = l }
}

// NewManager creates a Manager, creating the cache root if needed.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		httpClient:   http.DefaultClient,
		platform:     cft.DetectPlatform(),
		chromeLayout: cft.DefaultChromeLayout,
		driverLayout: cft.DefaultChromedriverLayout,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}

	if m.platform == "" {
		return nil, fmt.Errorf("platform %s/%s: %w", runtime.GOOS, runtime.GOARCH, ErrUnsupportedPlatform)
	}
	if m.catalog == nil {
		m.catalog = cft.NewClient(cft.WithHTTPClient(m.httpClient))
	}
	if m.cacheRoot == "" {
		root, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locate user cache directory: %w", err)
		}
		m.cacheRoot = filepath.Join(root, cacheDirName)
	}
	if err := os.MkdirAll(m.cacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", m.cacheRoot, err)
	}
	return m, nil
}

// CacheDir returns the artifact cache root.
func (m *Manager) CacheDir() string { return m.cacheRoot }

// Platform returns the platform tag artifacts are selected for.
func (m *Manager) Platform() cft.Platform { return m.platform }
