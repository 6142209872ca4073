// Package drivermgr provisions ephemeral Chrome for Testing fixtures for
// tests: it resolves a browser+chromedriver version from the published
// catalogs, downloads and caches the binaries, launches chromedriver as a
// subprocess, and brokers WebDriver sessions against it. The subprocess and
// every session are torn down deterministically on every exit path,
// including a panic in caller code.
//
// Most callers only need the facade:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	cd, err := drivermgr.RunLatestStable(ctx)
//	if err != nil {
//		// ...
//	}
//	defer cd.Terminate()
//
//	err = cd.WithSession(ctx, func(s *drivermgr.Session) error {
//		return s.Get("https://www.google.com")
//	})
package drivermgr
