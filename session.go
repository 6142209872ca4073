package drivermgr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

// SessionHandle identifies a session owned by a Chromedriver instance.
// Handles are ULIDs: globally unique and time-ordered.
type SessionHandle ulid.ULID

// String satisfies fmt.Stringer.
func (h SessionHandle) String() string { return ulid.ULID(h).String() }

// Session owns a live WebDriver connection. It embeds selenium.WebDriver,
// so the full client API is available directly on a session. Sessions are
// owned by the Chromedriver that opened them: release them through Quit,
// QuitAll or Terminate instead of holding them past the process's lifetime.
type Session struct {
	selenium.WebDriver
}

// SessionConfig adjusts the Chrome capabilities before a session connects,
// e.g. to disable headless mode or add switches.
type SessionConfig func(*chrome.Capabilities) error

// Windowed is a SessionConfig that removes the default headless switch so
// the browser window is visible.
func Windowed(caps *chrome.Capabilities) error {
	kept := caps.Args[:0]
	for _, arg := range caps.Args {
		if arg == "--headless" || strings.HasPrefix(arg, "--headless=") {
			continue
		}
		kept = append(kept, arg)
	}
	caps.Args = kept
	return nil
}

// NewSession opens a headless session against the running chromedriver and
// registers it under a fresh handle.
func (c *Chromedriver) NewSession(ctx context.Context) (SessionHandle, *Session, error) {
	return c.NewCustomSession(ctx, nil)
}

// NewCustomSession is NewSession with a caller-supplied capability
// configuration, applied before the connection is made.
func (c *Chromedriver) NewCustomSession(ctx context.Context, configure SessionConfig) (SessionHandle, *Session, error) {
	caps := selenium.Capabilities{"browserName": "chrome"}
	chromeCaps := chrome.Capabilities{
		Path: c.loaded.ChromePath,
		Args: []string{"--headless"},
	}
	if configure != nil {
		if err := configure(&chromeCaps); err != nil {
			return SessionHandle{}, nil, fmt.Errorf("configure chrome capabilities: %w", err)
		}
	}
	caps.AddChrome(chromeCaps)

	driver, err := c.dial(ctx, caps)
	if err != nil {
		return SessionHandle{}, nil, err
	}

	session := &Session{WebDriver: driver}
	handle := SessionHandle(ulid.Make())
	c.mu.Lock()
	c.sessions[handle] = session
	c.mu.Unlock()

	c.logger.Info("session opened", "handle", handle, "port", c.port)
	return handle, session, nil
}

// dial connects to the chromedriver endpoint, honoring ctx. The WebDriver
// client itself has no context support, so a dial that completes after
// cancellation is quit in the background rather than leaked.
func (c *Chromedriver) dial(ctx context.Context, caps selenium.Capabilities) (selenium.WebDriver, error) {
	type dialResult struct {
		driver selenium.WebDriver
		err    error
	}
	results := make(chan dialResult, 1)
	go func() {
		driver, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d", c.port))
		results <- dialResult{driver, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-results; r.driver != nil {
				r.driver.Quit()
			}
		}()
		return nil, ctx.Err()
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("connect to chromedriver on port %d: %w", c.port, r.err)
		}
		return r.driver, nil
	}
}

// Session returns the session registered under handle, if any. Ownership
// stays with the Chromedriver.
func (c *Chromedriver) Session(handle SessionHandle) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[handle]
	return session, ok
}

// Quit removes the session registered under handle and quits it. Quitting
// an unknown or already-quit handle is a successful no-op.
func (c *Chromedriver) Quit(handle SessionHandle) error {
	c.mu.Lock()
	session, ok := c.sessions[handle]
	if ok {
		delete(c.sessions, handle)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := session.WebDriver.Quit(); err != nil {
		return fmt.Errorf("quit session %s: %w", handle, err)
	}
	c.logger.Info("session quit", "handle", handle)
	return nil
}

// QuitAll quits every remaining session. Individual failures are logged and
// collected; teardown always visits every session.
func (c *Chromedriver) QuitAll() error {
	c.mu.Lock()
	remaining := c.sessions
	c.sessions = make(map[SessionHandle]*Session)
	c.mu.Unlock()

	var errs []error
	for handle, session := range remaining {
		if err := session.WebDriver.Quit(); err != nil {
			c.logger.Warn("session quit failed during teardown", "handle", handle, "error", err)
			errs = append(errs, fmt.Errorf("session %s: %w", handle, err))
		}
	}
	return errors.Join(errs...)
}

// WithSession opens a session, passes it to fn, and quits it on every exit
// path. A panic inside fn is recovered, converted to a *SessionPanicError,
// and returned after the session has been quit.
func (c *Chromedriver) WithSession(ctx context.Context, fn func(*Session) error) error {
	return c.WithCustomSession(ctx, nil, fn)
}

// WithCustomSession is WithSession with a caller-supplied capability
// configuration.
func (c *Chromedriver) WithCustomSession(ctx context.Context, configure SessionConfig, fn func(*Session) error) error {
	handle, session, err := c.NewCustomSession(ctx, configure)
	if err != nil {
		return err
	}

	fnErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &SessionPanicError{Value: r}
			}
		}()
		return fn(session)
	}()

	if quitErr := c.Quit(handle); quitErr != nil {
		return errors.Join(fnErr, quitErr)
	}
	return fnErr
}
