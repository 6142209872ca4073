package drivermgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivermgr/drivermgr/cft"
)

const resolveKnownGood = `{
  "timestamp": "2026-08-01T00:09:07.115Z",
  "versions": [
    {
      "version": "1.0.0.0",
      "revision": "1000",
      "downloads": {
        "chrome": [{"platform": "linux64", "url": "https://example.test/1/chrome.zip"}],
        "chromedriver": [{"platform": "linux64", "url": "https://example.test/1/chromedriver.zip"}]
      }
    },
    {
      "version": "2.3.4.5",
      "revision": "2345",
      "downloads": {
        "chrome": [{"platform": "linux64", "url": "https://example.test/2345/chrome.zip"}],
        "chromedriver": [{"platform": "linux64", "url": "https://example.test/2345/chromedriver.zip"}]
      }
    },
    {
      "version": "2.3.4.4",
      "revision": "2344",
      "downloads": {
        "chrome": [{"platform": "linux64", "url": "https://example.test/2344/chrome.zip"}],
        "chromedriver": [{"platform": "linux64", "url": "https://example.test/2344/chromedriver.zip"}]
      }
    }
  ]
}`

const resolveLastKnownGood = `{
  "timestamp": "2026-08-01T00:09:07.115Z",
  "channels": {
    "Stable": {
      "channel": "Stable",
      "version": "2.3.4.5",
      "revision": "2345",
      "downloads": {
        "chrome": [{"platform": "linux64", "url": "https://example.test/2345/chrome.zip"}],
        "chromedriver": [{"platform": "linux64", "url": "https://example.test/2345/chromedriver.zip"}]
      }
    },
    "Beta": {
      "channel": "Beta",
      "version": "3.0.1.0",
      "revision": "3010",
      "downloads": {
        "chrome": [{"platform": "mac-arm64", "url": "https://example.test/3010/chrome.zip"}],
        "chromedriver": [{"platform": "mac-arm64", "url": "https://example.test/3010/chromedriver.zip"}]
      }
    }
  }
}`

func resolveTestManager(t *testing.T) *Manager {
	t.Helper()
	return newTestManager(t, WithCatalogClient(catalogClient(t, resolveKnownGood, resolveLastKnownGood)))
}

func TestResolveFixed(t *testing.T) {
	t.Parallel()
	m := resolveTestManager(t)

	selected, err := m.Resolve(context.Background(), Fixed(mustVersion(t, "2.3.4.4")))
	require.NoError(t, err)
	assert.Equal(t, "2.3.4.4", selected.Version.String())
	assert.Equal(t, "2344", selected.Revision)
	assert.Empty(t, selected.Channel)
	assert.Equal(t, "https://example.test/2344/chromedriver.zip", selected.chromedriver.URL)
}

func TestResolveFixedNotFound(t *testing.T) {
	t.Parallel()
	m := resolveTestManager(t)

	_, err := m.Resolve(context.Background(), Fixed(mustVersion(t, "9.9.9.9")))
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestResolveLatestPicksNewestVersion(t *testing.T) {
	t.Parallel()
	m := resolveTestManager(t)

	selected, err := m.Resolve(context.Background(), Latest())
	require.NoError(t, err)
	assert.Equal(t, "2.3.4.5", selected.Version.String())
	assert.Equal(t, "2345", selected.Revision)
}

func TestResolveLatestEmptyCatalog(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, WithCatalogClient(catalogClient(t,
		`{"timestamp": "2026-08-01T00:09:07.115Z", "versions": []}`,
		`{"timestamp": "2026-08-01T00:09:07.115Z", "channels": {}}`,
	)))

	_, err := m.Resolve(context.Background(), Latest())
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestResolveChannel(t *testing.T) {
	t.Parallel()
	m := resolveTestManager(t)

	selected, err := m.Resolve(context.Background(), LatestIn(cft.Stable))
	require.NoError(t, err)
	assert.Equal(t, cft.Stable, selected.Channel)
	assert.Equal(t, "2.3.4.5", selected.Version.String())
}

func TestResolveChannelNotFound(t *testing.T) {
	t.Parallel()
	m := resolveTestManager(t)

	_, err := m.Resolve(context.Background(), LatestIn(cft.Dev))
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestResolveMissingPlatformAsset(t *testing.T) {
	t.Parallel()
	m := resolveTestManager(t)

	// The Beta entry only publishes mac-arm64 downloads.
	_, err := m.Resolve(context.Background(), LatestIn(cft.Beta))
	require.ErrorIs(t, err, ErrAssetUnavailable)
}

func TestVersionRequestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "latest", Latest().String())
	assert.Equal(t, "latest in Stable", LatestIn(cft.Stable).String())
	assert.Equal(t, "2.3.4.5", Fixed(mustVersion(t, "2.3.4.5")).String())
}
