package cft

import (
	"path"
	"runtime"
)

// Platform is a Chrome for Testing platform tag, as used in catalog download
// entries and in the names of the unpacked artifact directories.
type Platform string

// Platform tags published by the Chrome for Testing catalogs.
const (
	Linux64  Platform = "linux64"
	MacArm64 Platform = "mac-arm64"
	MacX64   Platform = "mac-x64"
	Win32    Platform = "win32"
	Win64    Platform = "win64"
)

// DetectPlatform returns the platform tag for the current process. The zero
// value is returned for OS/arch combinations the catalogs do not publish.
func DetectPlatform() Platform {
	switch runtime.GOOS {
	case "linux":
		return Linux64
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return MacArm64
		}
		return MacX64
	case "windows":
		if runtime.GOARCH == "386" {
			return Win32
		}
		return Win64
	}
	return ""
}

// ExecutableLayout maps a platform tag to the slash-separated path of an
// executable relative to the directory the artifact archive unpacks into.
// The layout is data rather than code so that callers (and tests) can
// substitute their own without touching the cache or launcher logic.
type ExecutableLayout map[Platform]string

// DefaultChromeLayout locates the Chrome binary inside an unpacked
// chrome-<platform> tree.
var DefaultChromeLayout = ExecutableLayout{
	Linux64:  "chrome-linux64/chrome",
	MacX64:   "chrome-mac-x64/chrome",
	MacArm64: "chrome-mac-arm64/Google Chrome for Testing.app/Contents/MacOS/Google Chrome for Testing",
	Win32:    "chrome-win32/chrome.exe",
	Win64:    "chrome-win64/chrome.exe",
}

// DefaultChromedriverLayout locates the chromedriver binary inside an
// unpacked chromedriver-<platform> tree.
var DefaultChromedriverLayout = ExecutableLayout{
	Linux64:  "chromedriver-linux64/chromedriver",
	MacX64:   "chromedriver-mac-x64/chromedriver",
	MacArm64: "chromedriver-mac-arm64/chromedriver",
	Win32:    "chromedriver-win32/chromedriver.exe",
	Win64:    "chromedriver-win64/chromedriver.exe",
}

// Path returns the relative executable path for p, and whether the layout
// knows about p at all.
func (l ExecutableLayout) Path(p Platform) (string, bool) {
	rel, ok := l[p]
	if !ok {
		return "", false
	}
	return path.Clean(rel), true
}
