// Package supervisor owns the lifecycle of the two backend child processes:
// the REST evaluation API and the MCP wrapper. It launches them in order
// (the wrapper targets the REST backend, so the REST backend must be ready
// first), tracks a typed handle per role, and tears both down in reverse
// order on shutdown.
//
// A crash of either child is not restarted here; the hosting platform is the
// recovery mechanism. The supervisor only records the exit it observes.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/evaltools/evalgate/internal/audit"
)

const defaultGracePeriod = 10 * time.Second

// Config holds the construction parameters for a Supervisor.
type Config struct {
	Launcher  Launcher
	Readiness ReadinessChecker // Blocks between the two launches.
	Logger    *slog.Logger     // Optional, defaults to slog.Default().
	Audit     *audit.Logger    // Optional lifecycle event log.

	RESTPort    int
	WrapperPort int

	RESTCommand    []string
	WrapperCommand []string

	// GracePeriod bounds the wait after SIGTERM before escalating to a
	// forceful kill.
	GracePeriod time.Duration
}

// Supervisor starts, tracks, and terminates the two backend processes.
type Supervisor struct {
	launcher  Launcher
	readiness ReadinessChecker
	logger    *slog.Logger
	audit     *audit.Logger

	restPort       int
	wrapperPort    int
	restCommand    []string
	wrapperCommand []string
	gracePeriod    time.Duration

	mu       sync.Mutex
	handles  []*Handle // In launch order.
	launched bool
}

// New creates a Supervisor. It does not start any processes.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if cfg.Readiness == nil {
		return nil, fmt.Errorf("readiness checker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := cfg.GracePeriod
	if grace == 0 {
		grace = defaultGracePeriod
	}
	return &Supervisor{
		launcher:       cfg.Launcher,
		readiness:      cfg.Readiness,
		logger:         logger.With("component", "Supervisor"),
		audit:          cfg.Audit,
		restPort:       cfg.RESTPort,
		wrapperPort:    cfg.WrapperPort,
		restCommand:    cfg.RESTCommand,
		wrapperCommand: cfg.WrapperCommand,
		gracePeriod:    grace,
	}, nil
}

// Launch starts the REST backend, waits for it to become ready, then starts
// the wrapper backend pointed at the REST backend's loopback address. A spawn
// failure of either process is fatal and propagates to the caller.
func (s *Supervisor) Launch(ctx context.Context) error {
	s.mu.Lock()
	if s.launched {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already launched")
	}
	s.launched = true
	s.mu.Unlock()

	restArgv := append(append([]string{}, s.restCommand...),
		"--port", strconv.Itoa(s.restPort),
		"--host", "127.0.0.1",
	)
	if err := s.startBackend(ctx, RoleREST, s.restPort, restArgv); err != nil {
		return err
	}

	restBase := fmt.Sprintf("http://127.0.0.1:%d", s.restPort)
	s.logger.Info("Waiting for REST backend to become ready", "url", restBase)
	if err := s.readiness.WaitReady(ctx, restBase); err != nil {
		return fmt.Errorf("REST backend readiness wait failed: %w", err)
	}
	s.recordAudit(audit.EventReady, RoleREST, s.handlePID(RoleREST), restBase)

	wrapperArgv := append(append([]string{}, s.wrapperCommand...),
		"--rest-url", restBase,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(s.wrapperPort),
	)
	if err := s.startBackend(ctx, RoleWrapper, s.wrapperPort, wrapperArgv); err != nil {
		return err
	}

	s.logger.Info("Both backends launched",
		"restPort", s.restPort, "wrapperPort", s.wrapperPort)
	return nil
}

func (s *Supervisor) startBackend(ctx context.Context, role Role, port int, argv []string) error {
	s.logger.Info("Starting backend", "role", role, "port", port, "command", argv)
	handle := newHandle(role, port, argv)

	proc, err := s.launcher.Launch(ctx, role, argv)
	if err != nil {
		return fmt.Errorf("failed to launch %s backend: %w", role, err)
	}
	handle.attach(proc)

	s.mu.Lock()
	s.handles = append(s.handles, handle)
	s.mu.Unlock()

	s.logger.Info("Backend started", "role", role, "pid", handle.PID(), "port", port)
	s.recordAudit(audit.EventLaunch, role, handle.PID(), fmt.Sprintf("port %d", port))

	// Observe unexpected exits so the handle state and audit log stay
	// truthful even without a restart policy.
	go func() {
		<-proc.Done()
		if handle.State() == StateRunning {
			s.logger.Warn("Backend exited unexpectedly",
				"role", role, "pid", handle.PID(), "error", proc.ExitErr())
			handle.markExited()
			s.recordAudit(audit.EventExit, role, handle.PID(), errString(proc.ExitErr()))
		}
	}()
	return nil
}

// Shutdown terminates the tracked processes in reverse launch order: SIGTERM,
// a bounded wait for exit, then SIGKILL if the grace period elapses. It is
// idempotent; calling it with no tracked processes, or a second time, is a
// no-op.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	handles := make([]*Handle, len(s.handles))
	copy(handles, s.handles)
	s.mu.Unlock()

	var firstErr error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := s.stopBackend(ctx, handles[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Supervisor) stopBackend(ctx context.Context, handle *Handle) error {
	if !handle.markTerminating() {
		// Already exited, terminating elsewhere, or never started.
		return nil
	}
	proc := handle.process()
	if proc == nil {
		handle.markExited()
		return nil
	}

	s.logger.Info("Stopping backend", "role", handle.Role, "pid", handle.PID())
	s.recordAudit(audit.EventTerminate, handle.Role, handle.PID(), "")

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// The process may have exited between the state check and the
		// signal; the bounded wait below resolves either way.
		s.logger.Warn("Failed to signal backend", "role", handle.Role, "pid", handle.PID(), "error", err)
	}

	graceTimer := time.NewTimer(s.gracePeriod)
	defer graceTimer.Stop()

	select {
	case <-proc.Done():
		s.logger.Info("Backend exited after SIGTERM",
			"role", handle.Role, "pid", handle.PID(), "error", proc.ExitErr())
	case <-graceTimer.C:
		s.logger.Warn("Backend did not exit within grace period, sending SIGKILL",
			"role", handle.Role, "pid", handle.PID(), "grace", s.gracePeriod)
		s.recordAudit(audit.EventKill, handle.Role, handle.PID(), "grace period exceeded")
		if err := proc.Kill(); err != nil {
			handle.setState(StateFailed)
			return fmt.Errorf("failed to kill %s backend (pid %d): %w", handle.Role, handle.PID(), err)
		}
		<-proc.Done()
	case <-ctx.Done():
		proc.Kill()
		handle.setState(StateFailed)
		return ctx.Err()
	}

	handle.markExited()
	s.recordAudit(audit.EventExit, handle.Role, handle.PID(), errString(proc.ExitErr()))
	return nil
}

// Handles returns the tracked handles in launch order.
func (s *Supervisor) Handles() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handle, len(s.handles))
	copy(out, s.handles)
	return out
}

func (s *Supervisor) handlePID(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.handles {
		if h.Role == role {
			return h.PID()
		}
	}
	return 0
}

// recordAudit writes a lifecycle event if the audit log is enabled. Audit
// failures are logged and never affect supervision.
func (s *Supervisor) recordAudit(event audit.EventType, role Role, pid int, detail string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(event, string(role), pid, detail); err != nil {
		s.logger.Warn("Failed to record audit event", "event", event, "role", role, "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
