package drivermgr

import (
	"errors"
	"fmt"
)

// Error values.
var (
	// ErrVersionNotFound is the error returned when the requested version
	// or channel is absent from the catalog.
	ErrVersionNotFound = errors.New("version not found in catalog")

	// ErrAssetUnavailable is the error returned when the catalog entry for
	// a version does not publish a chrome or chromedriver download for the
	// detected platform.
	ErrAssetUnavailable = errors.New("no download available for platform")

	// ErrUnsupportedPlatform is the error returned by NewManager when the
	// catalogs publish no downloads at all for the current OS/arch.
	ErrUnsupportedPlatform = errors.New("no chrome for testing downloads for this OS/arch")
)

// SessionPanicError reports that a caller-supplied session function
// panicked. The session was quit before the error was returned.
type SessionPanicError struct {
	// Value is the value recovered from the panic.
	Value interface{}
}

// Error satisfies the error interface.
func (e *SessionPanicError) Error() string {
	return fmt.Sprintf("session function panicked: %v", e.Value)
}
