package drivermgr

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drivermgr/drivermgr/cft"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager builds a Manager pinned to linux64 with an isolated cache
// directory. Extra options are applied on top and may override the defaults.
func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	base := []Option{
		WithLogger(testLogger()),
		WithPlatform(cft.Linux64),
		WithCacheDir(t.TempDir()),
	}
	m, err := NewManager(append(base, opts...)...)
	require.NoError(t, err)
	return m
}

// catalogClient serves the given documents from a local server and returns
// a client pointed at it.
func catalogClient(t *testing.T, knownGood, lastKnownGood string) *cft.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/known-good", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(knownGood))
	})
	mux.HandleFunc("/last-known-good", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(lastKnownGood))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return cft.NewClient(
		cft.WithKnownGoodVersionsURL(srv.URL+"/known-good"),
		cft.WithLastKnownGoodVersionsURL(srv.URL+"/last-known-good"),
	)
}

func mustVersion(t *testing.T, s string) cft.Version {
	t.Helper()
	v, err := cft.ParseVersion(s)
	require.NoError(t, err)
	return v
}

// zipArchive builds an in-memory zip with every entry marked executable,
// mirroring how the published artifact archives carry their binaries.
func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		hdr.SetMode(0o755)
		f, err := w.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}
