package wardmon

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"wardmon.dev/wardmon/internal/exec"
)

// ProcessWaitTimeout is the time to wait for a process to gracefully exit until
// forcefully terminating (and finally SIGKILLing) it.
var ProcessWaitTimeout = time.Minute

// ProcessRetryBackoff is a list of backoff durations when a process fails to
// start. The last duration is used repetitively.
var ProcessRetryBackoff = []time.Duration{
	0,
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
}

// Process monitors an individual process. It is capable of self-monitoring the
// process, so any commanding operation simply cannot fail but only be delayed.
type Process struct {
	WaitTimeout  time.Duration
	RetryBackoff []time.Duration

	j Journaler

	ctx    context.Context
	cancel context.CancelFunc

	name      string
	startProc func() (exec.Process, error)

	evCh chan func()
	dead chan struct{}
	done chan error

	// states
	proc exec.Process
}

// NewProcess creates a new process and a background monitor that respawns it
// whenever it dies. Stop must be called exactly once to terminate the process
// and wait for the background routine to exit.
func NewProcess(ctx context.Context, name string, spec ProcessSpec, j Journaler) *Process {
	ctx, cancel := context.WithCancel(ctx)

	p := &Process{
		WaitTimeout:  ProcessWaitTimeout,
		RetryBackoff: ProcessRetryBackoff,

		ctx:    ctx,
		cancel: cancel,

		j:    j,
		name: name,
		evCh: make(chan func()),
		dead: make(chan struct{}, 1),
		done: make(chan error, 1),

		startProc: func() (exec.Process, error) {
			return exec.StartProcess(spec.Args, exec.Options{
				Env: spec.Env,
				UID: spec.UID,
				GID: spec.GID,
			})
		},
	}

	go p.startMonitor()

	return p
}

// Start starts a new process.
func (proc *Process) Start() {
	select {
	case proc.evCh <- proc.start:
	case <-proc.ctx.Done():
	}
}

func (proc *Process) start() {
	p, err := proc.startProc()
	if err != nil {
		proc.j.Write(&EventProcessSpawnError{
			Name:   proc.name,
			Reason: err.Error(),
		})

		// Report that the process is dead so the monitor routine can restart
		// it.
		proc.dead <- struct{}{}
		return
	}

	proc.proc = p
	proc.startWaiting()
}

// startWaiting reports the PID to the journal and starts a waiting routine.
func (proc *Process) startWaiting() {
	proc.j.Write(&EventProcessSpawned{
		Name: proc.name,
		PID:  proc.proc.PID(),
	})

	// Spawn a monitoring goroutine to report to proc.dead.
	go func() {
		status := proc.proc.Wait()

		ev := EventProcessExited{
			Name:     proc.name,
			PID:      status.PID,
			ExitCode: status.Code,
		}

		if status.Error != nil {
			ev.Error = status.Error.Error()
		}

		// Write to the journal before signaling that the process is dead to
		// ensure that the journal entry gets written.
		proc.j.Write(&ev)

		proc.dead <- struct{}{}
	}()
}

// Restart asks the current incarnation of the process to exit. The monitor
// routine then respawns it through the usual backoff path, so a restart
// request cannot race a concurrent death into spawning twice.
func (proc *Process) Restart() {
	select {
	case proc.evCh <- proc.restart:
	case <-proc.ctx.Done():
	}
}

func (proc *Process) restart() {
	if proc.proc == nil {
		// Not running; a respawn is already pending.
		return
	}

	if err := proc.proc.Signal(os.Interrupt); err != nil {
		proc.proc.Kill()
	}
}

// Stop stops the process and waits for the monitor routine to exit. An error
// is returned if the process doesn't exit in time and has to be SIGKILLed.
func (proc *Process) Stop() error {
	proc.cancel()
	return <-proc.done
}

func (proc *Process) stop() error {
	if proc.proc == nil {
		// already stopped
		return nil
	}

	if err := proc.proc.Signal(os.Interrupt); err != nil {
		// Try to SIGKILL if we can't SIGINT (looking at you, Windows).
		proc.proc.Kill()
	}

	after := time.NewTimer(proc.WaitTimeout)
	defer after.Stop()

	for {
		select {
		case <-after.C:
			// Timeout reached and the program still hasn't exited yet. Send
			// SIGKILL and bail, since there's not much we can do here.
			proc.proc.Kill()

			// Wait until the process routine exits.
			<-proc.dead

			return errors.New("timed out waiting for program to exit")

		case <-proc.dead:
			return nil
		}
	}
}

// startMonitor starts a monitoring routine that's in charge of restarting the
// process and handling incoming commands.
func (proc *Process) startMonitor() {
	var start <-chan time.Time // start backoff
	var timer *time.Timer
	var resetTime time.Time // deadline to consider app successfully started

	backoff := -1 // backoff counter

	cleanupTimer := func() {
		if timer == nil {
			return
		}

		timer.Stop()
		timer = nil
		start = nil
	}

	for {
		select {
		case <-proc.ctx.Done():
			proc.done <- proc.stop()
			cleanupTimer()
			return

		case <-start:
			proc.start()
			cleanupTimer()

		case <-proc.dead:
			proc.proc = nil
			cleanupTimer()

			now := time.Now()

			// Check if we're past reset. If yes, then that means the process
			// has started successfully, so we can reset the backoff. If not,
			// then increment backoff and keep trying.
			if now.After(resetTime) {
				backoff = -1
			}

			startDura, resetDura := nextBackoff(proc.RetryBackoff, &backoff)
			resetTime = now.Add(resetDura)
			timer = time.NewTimer(startDura)
			start = timer.C

		case fn := <-proc.evCh:
			fn()
		}
	}
}

func nextBackoff(backoffs []time.Duration, ix *int) (start, reset time.Duration) {
	startIx := *ix
	resetIx := startIx

	if startIx < len(backoffs)-1 {
		startIx++
		resetIx++

		*ix = startIx

		if resetIx < len(backoffs)-2 {
			resetIx++
		}
	}

	return backoffs[startIx], backoffs[resetIx]
}
