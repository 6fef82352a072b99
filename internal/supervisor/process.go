package supervisor

import "sync"

// Role identifies which of the two supervised backends a handle refers to.
type Role string

const (
	// RoleREST is the REST evaluation API backend.
	RoleREST Role = "rest"
	// RoleWrapper is the MCP protocol-translation wrapper backend.
	RoleWrapper Role = "wrapper"
)

// State represents the lifecycle state of a supervised backend process.
type State int

const (
	// StateNotStarted means the process has not been launched yet.
	StateNotStarted State = iota
	// StateRunning means the process has been launched and not yet signaled.
	StateRunning
	// StateTerminating means a terminate signal has been sent and the
	// supervisor is waiting for the process to exit.
	StateTerminating
	// StateExited means the process has exited and been waited on.
	StateExited
	// StateFailed means the process could not be stopped cleanly.
	StateFailed
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateExited:
		return "Exited"
	case StateFailed:
		return "Failed"
	default:
		return "InvalidState"
	}
}

// Handle tracks one supervised backend process. It is created by the
// supervisor on launch and owned exclusively by it; at most one handle exists
// per role at any time.
type Handle struct {
	Role    Role
	Port    int
	Command []string

	mu    sync.Mutex
	state State
	proc  Process
	pid   int
}

func newHandle(role Role, port int, command []string) *Handle {
	return &Handle{
		Role:    role,
		Port:    port,
		Command: command,
		state:   StateNotStarted,
	}
}

func (h *Handle) attach(proc Process) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.proc = proc
	h.pid = proc.PID()
	h.state = StateRunning
}

// State returns the current lifecycle state thread-safely.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// PID returns the OS process ID, or 0 if the process never started.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

// markTerminating transitions Running -> Terminating. It reports whether the
// transition happened; a false return means the process already exited (or
// was never started) and terminate-then-wait must be a no-op.
func (h *Handle) markTerminating() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateRunning {
		return false
	}
	h.state = StateTerminating
	return true
}

// markExited transitions to Exited unless the handle already reached a
// terminal state.
func (h *Handle) markExited() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateExited || h.state == StateFailed {
		return
	}
	h.state = StateExited
}

func (h *Handle) process() Process {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proc
}
