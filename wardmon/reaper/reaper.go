// Package reaper runs a single command the way an init process would: it
// adopts and reaps orphaned descendants while the command runs, and it winds
// the command down with an escalating terminate-then-kill sequence when a
// stop signal arrives. It is the machinery behind "wardmon reap", which
// exists so that a monitored process tree can be wrapped in a well-behaved
// PID 1, for example inside a container.
package reaper

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

const (
	// termRetries is how many times the child is polled after Terminate
	// before it is killed.
	termRetries = 30
	// termDelay is the pause between polls.
	termDelay = time.Second
)

// stopSignals are the signals that wind the supervised process down.
var stopSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGALRM}

// Reap consumes reaped children until the one with the given PID exits. Exits
// of adopted orphans are discarded along the way.
func Reap(r Reactor, pid int) error {
	for {
		exit, err := r.Wait()
		if err != nil {
			return err
		}

		if exit.PID == pid {
			return nil
		}
	}
}

// InstallSignals arms the stop signals with a shared one-shot handler. The
// first delivery flips all of them back to ignored before interrupting the
// reactor, so a second signal cannot cut into the shutdown that follows.
func InstallSignals(r Reactor) {
	h := func(os.Signal) {
		for _, sig := range stopSignals {
			r.Install(sig, nil)
		}

		r.Interrupt(ErrInterrupted)
	}

	for _, sig := range stopSignals {
		r.Install(sig, h)
	}
}

// Run spawns the command in r.Args()[1:] and reaps until it exits. A stop
// signal, or an unexpected reaping failure, moves on to winding the child
// down instead. Run returns an error only if the command could not be
// spawned.
func Run(r Reactor) error {
	InstallSignals(r)

	args := r.Args()
	if len(args) < 2 {
		return errors.New("no command to supervise")
	}

	p, err := r.Run(args[1:])
	if err != nil {
		return errors.Wrapf(err, "failed to spawn %q", args[1])
	}

	switch err := Reap(r, p.PID()); {
	case err == nil:
		// The child exited on its own; nothing left to wind down.
		return nil

	case errors.Is(err, ErrInterrupted):
		// Orderly shutdown.

	default:
		log.Printf("%+v", errors.WithStack(err))
	}

	shutdown(r, p)
	return nil
}

// shutdown asks the child to exit, polls it for up to termRetries delays, and
// kills it if it is still running at the end. Terminate and Kill each happen
// at most once.
func shutdown(r Reactor, p Process) {
	p.Terminate()

	for i := 0; i < termRetries; i++ {
		if _, exited := p.Poll(); exited {
			return
		}

		r.Sleep(termDelay)
	}

	p.Kill()
}
