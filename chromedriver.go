package drivermgr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/drivermgr/drivermgr/cft"
	"github.com/drivermgr/drivermgr/runner"
)

// Chromedriver is a running chromedriver process together with the sessions
// opened against it. Keep it alive until the test is complete, then call
// Terminate; sessions are always closed before the process is stopped, so
// the process outlives every session it spawned.
type Chromedriver struct {
	mgr     *Manager
	loaded  LoadedPackage
	process *runner.Process
	port    runner.Port
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[SessionHandle]*Session
}

// Run resolves the requested version, ensures its binaries are cached, and
// launches chromedriver on the requested port. The context governs the
// whole lifecycle: it must be cancellable (see runner.Spawn), and
// cancelling it reaps the process even if Terminate is never called.
func Run(ctx context.Context, version VersionRequest, port runner.PortRequest, opts ...Option) (*Chromedriver, error) {
	mgr, err := NewManager(opts...)
	if err != nil {
		return nil, err
	}
	return mgr.Run(ctx, version, port)
}

// RunLatestStable runs the current Stable channel version on any free port.
func RunLatestStable(ctx context.Context, opts ...Option) (*Chromedriver, error) {
	return Run(ctx, LatestIn(cft.Stable), runner.AnyPort(), opts...)
}

// RunLatestBeta runs the current Beta channel version on any free port.
func RunLatestBeta(ctx context.Context, opts ...Option) (*Chromedriver, error) {
	return Run(ctx, LatestIn(cft.Beta), runner.AnyPort(), opts...)
}

// RunLatestDev runs the current Dev channel version on any free port.
func RunLatestDev(ctx context.Context, opts ...Option) (*Chromedriver, error) {
	return Run(ctx, LatestIn(cft.Dev), runner.AnyPort(), opts...)
}

// RunLatestCanary runs the current Canary channel version on any free port.
func RunLatestCanary(ctx context.Context, opts ...Option) (*Chromedriver, error) {
	return Run(ctx, LatestIn(cft.Canary), runner.AnyPort(), opts...)
}

// Run is the method form of the package-level Run, reusing the manager's
// cache and catalog client.
func (m *Manager) Run(ctx context.Context, version VersionRequest, port runner.PortRequest) (*Chromedriver, error) {
	selected, err := m.Resolve(ctx, version)
	if err != nil {
		return nil, err
	}
	loaded, err := m.Ensure(ctx, selected)
	if err != nil {
		return nil, err
	}
	process, bound, err := runner.Spawn(ctx, loaded.ChromedriverPath, port, runner.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("launch chromedriver %s: %w", selected.Version, err)
	}
	return &Chromedriver{
		mgr:      m,
		loaded:   loaded,
		process:  process,
		port:     bound,
		logger:   m.logger,
		sessions: make(map[SessionHandle]*Session),
	}, nil
}

// Port returns the port chromedriver is listening on.
func (c *Chromedriver) Port() runner.Port { return c.port }

// Package returns the cached binaries backing this instance.
func (c *Chromedriver) Package() LoadedPackage { return c.loaded }

// Process returns the underlying process handle.
func (c *Chromedriver) Process() *runner.Process { return c.process }

// Terminate quits any remaining sessions, then stops the chromedriver
// process with the default phase timeouts, returning its exit status.
func (c *Chromedriver) Terminate() (*os.ProcessState, error) {
	return c.TerminateWithTimeouts(runner.DefaultInterruptTimeout, runner.DefaultTerminateTimeout)
}

// TerminateWithTimeouts is Terminate with explicit per-phase deadlines. It
// waits only for its own two-phase shutdown; callers with in-flight session
// usage in other goroutines must quiesce it first or those calls will
// observe a severed connection.
func (c *Chromedriver) TerminateWithTimeouts(interruptTimeout, terminateTimeout time.Duration) (*os.ProcessState, error) {
	// Sessions must never outlive the process that spawned them.
	if err := c.QuitAll(); err != nil {
		c.logger.Warn("failed to quit sessions before terminate", "error", err)
	}
	return c.process.Terminate(interruptTimeout, terminateTimeout)
}
