package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// Process is a running backend subprocess as seen by the supervisor. It
// abstracts os/exec so tests can substitute a fake that records signals and
// controls exit timing.
type Process interface {
	// PID returns the OS process ID.
	PID() int
	// Signal delivers sig to the process. Signaling an already-exited
	// process returns an error, which callers treat as a no-op.
	Signal(sig os.Signal) error
	// Kill forcefully terminates the process.
	Kill() error
	// Done returns a channel that is closed once the process has exited
	// and been waited on.
	Done() <-chan struct{}
	// ExitErr returns the error from waiting on the process. Only valid
	// after Done is closed.
	ExitErr() error
}

// Launcher starts backend subprocesses. The production implementation shells
// out via os/exec; tests use a fake that records launch order and timing.
type Launcher interface {
	Launch(ctx context.Context, role Role, argv []string) (Process, error)
}

// ExecLauncher launches real OS processes. Child stdout/stderr pass through
// to the supervisor's own streams.
type ExecLauncher struct {
	// Dir is the working directory for launched processes. Empty means
	// inherit the supervisor's.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// NewExecLauncher returns a Launcher backed by os/exec.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Launch starts argv[0] with the remaining arguments. The returned Process
// is already started; a spawn failure (e.g. executable not found) is returned
// as an error and is fatal to the caller.
func (l *ExecLauncher) Launch(ctx context.Context, role Role, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command for %s backend", role)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = l.Dir
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s backend (%s): %w", role, cmd.String(), err)
	}

	p := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// execProcess wraps an exec.Cmd so that multiple goroutines can observe its
// exit; exec.Cmd.Wait may only be called once.
type execProcess struct {
	cmd     *exec.Cmd
	done    chan struct{}
	exitErr error

	killOnce sync.Once
	killErr  error
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	p.killOnce.Do(func() {
		p.killErr = p.cmd.Process.Kill()
	})
	return p.killErr
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) ExitErr() error {
	<-p.done
	return p.exitErr
}
