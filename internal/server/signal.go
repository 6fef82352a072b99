package server

import (
	"os"
	"os/signal"
	"syscall"
)

// SignalCoordinator intercepts termination signals so the server can stop
// accepting connections and tear down the supervised processes before the
// process exits.
type SignalCoordinator struct {
	ch chan os.Signal
}

// NewSignalCoordinator installs handlers for SIGINT and SIGTERM.
func NewSignalCoordinator() *SignalCoordinator {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return &SignalCoordinator{ch: ch}
}

// C returns the channel on which intercepted signals are delivered.
func (sc *SignalCoordinator) C() <-chan os.Signal {
	return sc.ch
}

// Stop uninstalls the signal handlers.
func (sc *SignalCoordinator) Stop() {
	signal.Stop(sc.ch)
}
