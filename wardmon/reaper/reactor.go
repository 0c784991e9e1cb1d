package reaper

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// ErrInterrupted is delivered by a reactor when a stop signal arrives during a
// blocking call.
var ErrInterrupted = errors.New("interrupted by signal")

// Handler is a signal disposition. A nil Handler means the signal is ignored.
type Handler func(sig os.Signal)

// Exit is the result of reaping one child process.
type Exit struct {
	PID  int
	Code int // -1 if ended by a signal
}

// Process is a handle to a spawned child.
type Process interface {
	PID() int
	// Poll reports whether the process has exited, without blocking, and its
	// exit code once it has.
	Poll() (code int, exited bool)
	// Terminate asks the process to exit (SIGTERM). It is called at most once
	// per process.
	Terminate() error
	// Kill forcibly ends the process (SIGKILL). It is called at most once per
	// process.
	Kill() error
}

// Reactor bundles every outside capability the reaper needs, so that tests
// can substitute a deterministic implementation for the operating system.
type Reactor interface {
	// Args returns the argv the reactor was started with. Args()[1:] is the
	// command to supervise.
	Args() []string
	// Install sets the disposition for a signal and returns the previous one.
	Install(sig os.Signal, h Handler) Handler
	// Run spawns the given argv and returns a handle to it.
	Run(argv []string) (Process, error)
	// Sleep pauses for the duration. A pending or arriving interruption cuts
	// the pause short and is returned.
	Sleep(d time.Duration) error
	// Wait blocks until any child process has been reaped. A pending or
	// arriving interruption cuts the wait short and is returned.
	Wait() (Exit, error)
	// Interrupt delivers err to the current, or else the next, blocking Sleep
	// or Wait. Only one interruption is held pending at a time.
	Interrupt(err error)
}
