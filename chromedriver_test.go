//go:build unix

package drivermgr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivermgr/drivermgr/cft"
	"github.com/drivermgr/drivermgr/runner"
)

// fakeDriverScript behaves like chromedriver just enough for a launch: it
// reports readiness on stdout and then idles until terminated.
const fakeDriverScript = "#!/bin/sh\n" +
	"echo \"ChromeDriver was started successfully on port 9599.\"\n" +
	"exec sleep 30\n"

// provisioningStack serves catalogs and artifacts for a single version so a
// full Run can execute against local servers only.
func provisioningStack(t *testing.T) []Option {
	t.Helper()

	chromeZip := zipArchive(t, map[string]string{
		"chrome-linux64/chrome": "#!/bin/sh\nexit 0\n",
	})
	driverZip := zipArchive(t, map[string]string{
		"chromedriver-linux64/chromedriver": fakeDriverScript,
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/chrome.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(chromeZip)
	})
	mux.HandleFunc("/chromedriver.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(driverZip)
	})
	arts := httptest.NewServer(mux)
	t.Cleanup(arts.Close)

	downloads := fmt.Sprintf(`{
		"chrome": [{"platform": "linux64", "url": %q}],
		"chromedriver": [{"platform": "linux64", "url": %q}]
	}`, arts.URL+"/chrome.zip", arts.URL+"/chromedriver.zip")

	knownGood := fmt.Sprintf(`{
		"timestamp": "2026-08-01T00:09:07.115Z",
		"versions": [{"version": "115.0.5790.170", "revision": "1148114", "downloads": %s}]
	}`, downloads)
	lastKnownGood := fmt.Sprintf(`{
		"timestamp": "2026-08-01T00:09:07.115Z",
		"channels": {
			"Stable": {"channel": "Stable", "version": "115.0.5790.170", "revision": "1148114", "downloads": %s}
		}
	}`, downloads)

	return []Option{
		WithLogger(testLogger()),
		WithPlatform(cft.Linux64),
		WithCacheDir(t.TempDir()),
		WithCatalogClient(catalogClient(t, knownGood, lastKnownGood)),
	}
}

func TestManagerRunFixedVersion(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newTestManager(t, provisioningStack(t)...)
	cd, err := m.Run(ctx, Fixed(mustVersion(t, "115.0.5790.170")), runner.AnyPort())
	require.NoError(t, err)

	assert.Equal(t, runner.Port(9599), cd.Port())
	assert.Equal(t, runner.StateRunning, cd.Process().State())
	assert.FileExists(t, cd.Package().ChromePath)
	assert.FileExists(t, cd.Package().ChromedriverPath)

	state, err := cd.Terminate()
	require.NoError(t, err)
	require.NotNil(t, state)
	select {
	case <-cd.Process().Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process still running after Terminate")
	}
}

func TestRunLatestStable(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cd, err := RunLatestStable(ctx, provisioningStack(t)...)
	require.NoError(t, err)
	defer cd.Terminate()

	assert.Equal(t, runner.Port(9599), cd.Port())
}

func TestRunUnknownVersion(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newTestManager(t, provisioningStack(t)...)
	_, err := m.Run(ctx, Fixed(mustVersion(t, "9.9.9.9")), runner.AnyPort())
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestRunRequiresCancellableContext(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, provisioningStack(t)...)
	_, err := m.Run(context.Background(), Fixed(mustVersion(t, "115.0.5790.170")), runner.AnyPort())
	require.ErrorIs(t, err, runner.ErrUnsupportedRuntime)
}

func TestContextCancelStopsChromedriver(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	m := newTestManager(t, provisioningStack(t)...)
	cd, err := m.Run(ctx, Fixed(mustVersion(t, "115.0.5790.170")), runner.AnyPort())
	require.NoError(t, err)

	cancel()
	select {
	case <-cd.Process().Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process still running after context cancellation")
	}
}
