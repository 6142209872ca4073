package drivermgr

import (
	"context"
	"fmt"

	"github.com/drivermgr/drivermgr/cft"
)

type requestKind int

const (
	requestLatest requestKind = iota
	requestLatestIn
	requestFixed
)

// VersionRequest selects which Chrome for Testing version to provision.
type VersionRequest struct {
	kind    requestKind
	channel cft.Channel
	version cft.Version
}

// Latest requests the newest known-good version. It might not be stable
// yet; prefer LatestIn(cft.Stable) for most test suites.
func Latest() VersionRequest {
	return VersionRequest{kind: requestLatest}
}

// LatestIn requests the current version of the given release channel.
func LatestIn(channel cft.Channel) VersionRequest {
	return VersionRequest{kind: requestLatestIn, channel: channel}
}

// Fixed pins a specific version.
func Fixed(v cft.Version) VersionRequest {
	return VersionRequest{kind: requestFixed, version: v}
}

// String satisfies fmt.Stringer.
func (r VersionRequest) String() string {
	switch r.kind {
	case requestLatestIn:
		return fmt.Sprintf("latest in %s", r.channel)
	case requestFixed:
		return r.version.String()
	}
	return "latest"
}

// SelectedVersion is a concrete, platform-qualified artifact selection
// produced by Resolve. It is never mutated after creation.
type SelectedVersion struct {
	// Channel is set when the selection came from a channel request.
	Channel cft.Channel

	// Version is the resolved 4-part version.
	Version cft.Version

	// Revision is the chromium revision the version was built from.
	Revision string

	chrome       cft.Download
	chromedriver cft.Download
}

// Resolve turns a version request into a concrete selection carrying the
// chrome and chromedriver downloads for the manager's platform. It returns
// ErrVersionNotFound when the requested version or channel is absent, and
// ErrAssetUnavailable when the catalog entry lacks a download for the
// platform.
func (m *Manager) Resolve(ctx context.Context, request VersionRequest) (SelectedVersion, error) {
	switch request.kind {
	case requestLatestIn:
		doc, err := m.catalog.LastKnownGoodVersions(ctx)
		if err != nil {
			return SelectedVersion{}, fmt.Errorf("resolve %s: %w", request, err)
		}
		entry, ok := doc.Channels[request.channel]
		if !ok {
			return SelectedVersion{}, fmt.Errorf("channel %s: %w", request.channel, ErrVersionNotFound)
		}
		return m.selectVersion(request.channel, entry.Version, entry.Revision, entry.Downloads)

	case requestFixed:
		doc, err := m.catalog.KnownGoodVersions(ctx)
		if err != nil {
			return SelectedVersion{}, fmt.Errorf("resolve %s: %w", request, err)
		}
		for _, entry := range doc.Versions {
			if entry.Version.Compare(request.version) == 0 {
				return m.selectVersion("", entry.Version, entry.Revision, entry.Downloads)
			}
		}
		return SelectedVersion{}, fmt.Errorf("version %s: %w", request.version, ErrVersionNotFound)

	default:
		doc, err := m.catalog.KnownGoodVersions(ctx)
		if err != nil {
			return SelectedVersion{}, fmt.Errorf("resolve %s: %w", request, err)
		}
		if len(doc.Versions) == 0 {
			return SelectedVersion{}, fmt.Errorf("empty catalog: %w", ErrVersionNotFound)
		}
		// Strict comparison: on duplicate maximal versions the first
		// entry encountered wins.
		best := doc.Versions[0]
		for _, entry := range doc.Versions[1:] {
			if entry.Version.After(best.Version) {
				best = entry
			}
		}
		return m.selectVersion("", best.Version, best.Revision, best.Downloads)
	}
}

// selectVersion captures the per-platform downloads for a catalog entry,
// refusing to produce a partially-populated selection.
func (m *Manager) selectVersion(channel cft.Channel, version cft.Version, revision string, downloads cft.Downloads) (SelectedVersion, error) {
	chromeDL, ok := cft.ForPlatform(downloads.Chrome, m.platform)
	if !ok {
		return SelectedVersion{}, fmt.Errorf("chrome %s on %s: %w", version, m.platform, ErrAssetUnavailable)
	}
	driverDL, ok := cft.ForPlatform(downloads.Chromedriver, m.platform)
	if !ok {
		return SelectedVersion{}, fmt.Errorf("chromedriver %s on %s: %w", version, m.platform, ErrAssetUnavailable)
	}
	return SelectedVersion{
		Channel:      channel,
		Version:      version,
		Revision:     revision,
		chrome:       chromeDL,
		chromedriver: driverDL,
	}, nil
}
