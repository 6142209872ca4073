// Package runner spawns chromedriver processes, detects when they are ready
// to accept connections, and terminates them within bounded deadlines.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Default deadlines for readiness detection and the two termination phases.
const (
	DefaultReadinessTimeout = 10 * time.Second
	DefaultInterruptTimeout = 3 * time.Second
	DefaultTerminateTimeout = 3 * time.Second
)

// readyMarker is the stdout line fragment chromedriver prints once it is
// listening. The bound port is the last whitespace-delimited token of that
// line.
const readyMarker = "started successfully on port"

// Error values.
var (
	// ErrUnsupportedRuntime is returned by Spawn when the supplied context
	// can never be cancelled. The launcher relies on context cancellation
	// to reap processes whose handles are abandoned without an explicit
	// Terminate; with an uncancellable context that cleanup would never
	// run and the subprocess would leak.
	ErrUnsupportedRuntime = errors.New("context is not cancellable; abandoned processes could never be cleaned up")

	// ErrReadinessTimeout is returned by Spawn when chromedriver does not
	// report readiness within the configured deadline. The half-started
	// process has already been terminated when this error is returned.
	ErrReadinessTimeout = errors.New("timed out waiting for chromedriver to report readiness")

	// ErrTerminationFailed is returned by Terminate when the process is
	// still running after both the interrupt and the kill phase.
	ErrTerminationFailed = errors.New("process still running after interrupt and kill")
)

// Port is a TCP port chromedriver listens on.
type Port uint16

// PortRequest selects how the chromedriver port is chosen.
type PortRequest struct {
	port  Port
	fixed bool
}

// AnyPort lets chromedriver choose its own port; the bound port is
// discovered from the readiness line.
func AnyPort() PortRequest { return PortRequest{} }

// FixedPort requests a specific port via the --port flag.
func FixedPort(p Port) PortRequest { return PortRequest{port: p, fixed: true} }

// LogLevel is a chromedriver --log-level value.
type LogLevel string

// Log levels understood by chromedriver.
const (
	LogLevelAll     LogLevel = "ALL"
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelSevere  LogLevel = "SEVERE"
	LogLevelOff     LogLevel = "OFF"
)

// State is a phase of the process lifecycle. A Process moves through the
// chain Running → Interrupting → Terminating → Terminated or
// TerminationFailed exactly once; it is never reset or reused.
type State int

// Lifecycle states.
const (
	StateRunning State = iota
	StateInterrupting
	StateTerminating
	StateTerminated
	StateTerminationFailed
)

// String satisfies fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateInterrupting:
		return "interrupting"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	case StateTerminationFailed:
		return "termination-failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type config struct {
	logger           *slog.Logger
	logLevel         LogLevel
	readinessTimeout time.Duration
}

// Option configures Spawn.
type Option func(*config)

// WithLogger sets the logger that output lines and lifecycle events are
// sent to.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithLogLevel sets the --log-level flag passed to chromedriver.
func WithLogLevel(level LogLevel) Option {
	return func(c *config) { c.logLevel = level }
}

// WithReadinessTimeout bounds how long Spawn waits for the readiness line.
func WithReadinessTimeout(d time.Duration) Option {
	return func(c *config) { c.readinessTimeout = d }
}

// errInterruptUnsupported is returned by interrupt on platforms without a
// graceful stop signal; Terminate then skips straight to the kill phase.
var errInterruptUnsupported = errors.New("graceful interrupt unsupported")

// interruptFunc is indirected for tests.
var interruptFunc = interrupt

// Process is a live chromedriver subprocess together with its termination
// controller. Obtain one via Spawn.
type Process struct {
	cmd    *exec.Cmd
	logger *slog.Logger

	// exited is closed as soon as cmd.Wait has reaped the process, at
	// which point cmd.ProcessState is valid. Exit is tracked separately
	// from output drain: a grandchild that inherited the pipes can hold
	// them open long after chromedriver itself is gone.
	exited chan struct{}

	// waitCh is closed once the process has exited and both output
	// streams are drained.
	waitCh chan struct{}

	mu    sync.Mutex
	state State
}

// Spawn launches the chromedriver executable and waits until it reports
// readiness on stdout, returning the process handle and the bound port.
//
// The context must be cancellable: when it ends before an explicit
// Terminate, the process is reaped with the default termination timeouts.
// Spawn returns ErrUnsupportedRuntime for a context that can never be
// cancelled. On a readiness timeout the half-started process is terminated
// before ErrReadinessTimeout is returned.
func Spawn(ctx context.Context, executable string, port PortRequest, opts ...Option) (*Process, Port, error) {
	if ctx.Done() == nil {
		return nil, 0, fmt.Errorf("spawn %s: %w", executable, ErrUnsupportedRuntime)
	}

	cfg := config{
		logger:           slog.Default(),
		logLevel:         LogLevelInfo,
		readinessTimeout: DefaultReadinessTimeout,
	}
	for _, o := range opts {
		o(&cfg)
	}

	var args []string
	if port.fixed {
		args = append(args, fmt.Sprintf("--port=%d", port.port))
	}
	args = append(args, fmt.Sprintf("--log-level=%s", cfg.logLevel))

	cmd := exec.Command(executable, args...)
	applySysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, 0, fmt.Errorf("spawn %s: %w", executable, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, 0, fmt.Errorf("spawn %s: %w", executable, err)
	}

	cfg.logger.Info("launching chromedriver", "executable", executable, "args", args)
	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("spawn %s: %w", executable, err)
	}

	p := &Process{
		cmd:    cmd,
		logger: cfg.logger,
		exited: make(chan struct{}),
		waitCh: make(chan struct{}),
		state:  StateRunning,
	}

	readyCh := make(chan Port, 1)
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			p.logger.Debug("chromedriver stdout", "line", line)
			if !strings.Contains(line, readyMarker) {
				continue
			}
			bound, err := parseBoundPort(line)
			if err != nil {
				p.logger.Warn("unparseable readiness line", "line", line, "error", err)
				continue
			}
			select {
			case readyCh <- bound:
			default:
			}
		}
	}()
	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			p.logger.Debug("chromedriver stderr", "line", scanner.Text())
		}
	}()

	go func() {
		// Wait returns once the direct child exits and then closes the
		// parent's pipe ends, which unblocks the scanners even when a
		// grandchild inherited stdout or stderr.
		cmd.Wait()
		close(p.exited)
		readers.Wait()
		close(p.waitCh)
	}()

	// Reap the process if the surrounding context ends while the handle is
	// still alive. This is what makes an abandoned handle safe.
	go func() {
		select {
		case <-ctx.Done():
			p.Terminate(DefaultInterruptTimeout, DefaultTerminateTimeout)
		case <-p.exited:
		}
	}()

	select {
	case bound := <-readyCh:
		p.logger.Info("chromedriver started", "pid", cmd.Process.Pid, "port", bound)
		return p, bound, nil
	case <-p.exited:
		return nil, 0, fmt.Errorf("chromedriver exited before readiness: %v", cmd.ProcessState)
	case <-time.After(cfg.readinessTimeout):
		p.logger.Warn("chromedriver readiness timeout, terminating",
			"pid", cmd.Process.Pid,
			"timeout", cfg.readinessTimeout,
		)
		if _, terr := p.Terminate(DefaultInterruptTimeout, DefaultTerminateTimeout); terr != nil {
			return nil, 0, fmt.Errorf("%w (cleanup failed: %v)", ErrReadinessTimeout, terr)
		}
		return nil, 0, ErrReadinessTimeout
	case <-ctx.Done():
		p.Terminate(DefaultInterruptTimeout, DefaultTerminateTimeout)
		return nil, 0, ctx.Err()
	}
}

// Terminate stops the process in two bounded phases: a graceful interrupt
// followed, if the process is still alive after interruptTimeout, by a
// forced kill. Platforms without a graceful interrupt (Windows) skip the
// first phase and kill immediately. If the process survives both phases the handle enters
// StateTerminationFailed and ErrTerminationFailed is returned instead of
// blocking further. On success the captured exit status is returned.
//
// Terminate on an already-terminated handle returns the original outcome.
func (p *Process) Terminate(interruptTimeout, terminateTimeout time.Duration) (*os.ProcessState, error) {
	p.mu.Lock()
	switch p.state {
	case StateRunning:
		p.state = StateInterrupting
		p.mu.Unlock()
	case StateTerminated:
		p.mu.Unlock()
		return p.cmd.ProcessState, nil
	case StateTerminationFailed:
		p.mu.Unlock()
		return nil, fmt.Errorf("pid %d: %w", p.cmd.Process.Pid, ErrTerminationFailed)
	default:
		state := p.state
		p.mu.Unlock()
		return nil, fmt.Errorf("pid %d: termination already in progress (%s)", p.cmd.Process.Pid, state)
	}

	pid := p.cmd.Process.Pid

	p.logger.Debug("interrupting chromedriver", "pid", pid, "timeout", interruptTimeout)
	switch err := interruptFunc(p.cmd.Process); {
	case errors.Is(err, errInterruptUnsupported):
		p.logger.Debug("graceful interrupt unavailable, killing directly", "pid", pid)
	default:
		if err != nil {
			p.logger.Debug("graceful interrupt failed", "pid", pid, "error", err)
		}
		select {
		case <-p.exited:
			p.setState(StateTerminated)
			p.logger.Info("chromedriver terminated", "pid", pid, "status", p.cmd.ProcessState)
			return p.cmd.ProcessState, nil
		case <-time.After(interruptTimeout):
		}
	}

	p.setState(StateTerminating)
	p.logger.Debug("killing chromedriver", "pid", pid, "timeout", terminateTimeout)
	if err := p.cmd.Process.Kill(); err != nil {
		p.logger.Debug("kill failed", "pid", pid, "error", err)
	}
	select {
	case <-p.exited:
		p.setState(StateTerminated)
		p.logger.Info("chromedriver terminated", "pid", pid, "status", p.cmd.ProcessState)
		return p.cmd.ProcessState, nil
	case <-time.After(terminateTimeout):
		p.setState(StateTerminationFailed)
		p.logger.Error("chromedriver did not exit", "pid", pid)
		return nil, fmt.Errorf("pid %d: %w", pid, ErrTerminationFailed)
	}
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done returns a channel closed once the process has exited and its output
// streams are drained.
func (p *Process) Done() <-chan struct{} { return p.waitCh }

// ExitState returns the captured exit status. It is only valid once the
// process has exited: after Terminate returned a status or Done is closed.
func (p *Process) ExitState() *os.ProcessState { return p.cmd.ProcessState }

// Pid returns the operating system process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// parseBoundPort extracts the port number from a readiness line such as
//
//	ChromeDriver was started successfully on port 9222.
//
// The line is trimmed of surrounding quotes and trailing punctuation, then
// the last whitespace-delimited token is parsed as a 16-bit port.
func parseBoundPort(line string) (Port, error) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.Trim(trimmed, `"`)
	trimmed = strings.TrimRight(trimmed, ".")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no port token in %q", line)
	}
	token := strings.Trim(fields[len(fields)-1], `".,`)
	n, err := strconv.ParseUint(token, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("port token %q in %q: %w", token, line, err)
	}
	return Port(n), nil
}
