package reaper

import (
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// unixReactor implements Reactor on the host operating system. A single pump
// goroutine owns every wait4 call; an exit is recorded in the exits table
// before it is handed to Wait, so that a Poll never misses an exit the pump
// has already reaped.
type unixReactor struct {
	args []string

	mu       sync.Mutex
	handlers map[os.Signal]Handler
	exits    map[int]int

	sigCh   chan os.Signal
	waitCh  chan waitResult
	intCh   chan error
	spawned chan struct{}

	pumpOnce sync.Once
}

type waitResult struct {
	exit Exit
	err  error
}

// NewReactor creates a reactor over the given argv.
func NewReactor(args []string) Reactor {
	r := &unixReactor{
		args:     args,
		handlers: map[os.Signal]Handler{},
		exits:    map[int]int{},
		sigCh:    make(chan os.Signal, 8),
		waitCh:   make(chan waitResult),
		intCh:    make(chan error, 1),
		spawned:  make(chan struct{}, 1),
	}

	go r.dispatchSignals()

	return r
}

func (r *unixReactor) Args() []string { return r.args }

func (r *unixReactor) Install(sig os.Signal, h Handler) Handler {
	r.mu.Lock()
	prev := r.handlers[sig]
	r.handlers[sig] = h
	r.mu.Unlock()

	signal.Notify(r.sigCh, sig)
	return prev
}

// dispatchSignals runs every delivered signal through its current handler. A
// nil handler discards the signal, which is as close to SIG_IGN as a Go
// program gets once Notify has claimed the signal.
func (r *unixReactor) dispatchSignals() {
	for sig := range r.sigCh {
		r.mu.Lock()
		h := r.handlers[sig]
		r.mu.Unlock()

		if h != nil {
			h(sig)
		}
	}
}

func (r *unixReactor) Interrupt(err error) {
	select {
	case r.intCh <- err:
	default:
		// One pending interruption is enough.
	}
}

// Run spawns the given argv with stdio inherited. The calling process is
// marked a child subreaper first, so that orphaned grandchildren reparent
// here and flow through Wait instead of leaking as zombies.
func (r *unixReactor) Run(argv []string) (Process, error) {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return nil, errors.Wrap(err, "failed to set subreaper")
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, err
	}

	p, err := os.StartProcess(path, argv, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		return nil, err
	}

	r.pumpOnce.Do(func() { go r.pump() })

	select {
	case r.spawned <- struct{}{}:
	default:
	}

	return &unixProcess{r: r, pid: p.Pid}, nil
}

func (r *unixReactor) Sleep(d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case err := <-r.intCh:
		return err
	}
}

func (r *unixReactor) Wait() (Exit, error) {
	select {
	case res := <-r.waitCh:
		return res.exit, res.err
	case err := <-r.intCh:
		return Exit{}, err
	}
}

// pump reaps children one at a time. Each result is parked in the exits table
// first and then offered to Wait; nobody has to be listening for the table to
// stay correct.
func (r *unixReactor) pump() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, 0, nil)

		switch {
		case err == unix.EINTR:
			continue

		case err == unix.ECHILD:
			// No children right now; block until the next spawn.
			<-r.spawned
			continue

		case err != nil:
			r.waitCh <- waitResult{err: errors.Wrap(err, "wait4")}
			continue
		}

		var code int
		switch {
		case ws.Exited():
			code = ws.ExitStatus()
		case ws.Signaled():
			code = -1
		default:
			// A stop or a continue, not an exit.
			continue
		}

		r.mu.Lock()
		r.exits[pid] = code
		r.mu.Unlock()

		r.waitCh <- waitResult{exit: Exit{PID: pid, Code: code}}
	}
}

type unixProcess struct {
	r   *unixReactor
	pid int
}

func (p *unixProcess) PID() int { return p.pid }

// Poll consults the reactor's exits table rather than the kernel, since the
// pump owns the only wait4 loop and may have reaped the exit already.
func (p *unixProcess) Poll() (int, bool) {
	p.r.mu.Lock()
	code, ok := p.r.exits[p.pid]
	p.r.mu.Unlock()

	return code, ok
}

func (p *unixProcess) Terminate() error {
	return unix.Kill(p.pid, unix.SIGTERM)
}

func (p *unixProcess) Kill() error {
	return unix.Kill(p.pid, unix.SIGKILL)
}
