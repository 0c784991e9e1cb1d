package wardmon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"wardmon.dev/wardmon/internal/exec"
)

// ErrUnknownProcess is returned when an operation names a process that is not
// being monitored.
var ErrUnknownProcess = errors.New("unknown process")

// Monitor supervises the set of monitored processes. It implements
// ProcessMonitor; the receiver and the serve loop drive it.
type Monitor struct {
	j      Journaler
	ctx    context.Context
	places Places

	mu     sync.Mutex
	procs  map[string]*Process
	closed bool

	// spawn overrides how process incarnations are started. Tests use it to
	// substitute fake processes.
	spawn func(name string, spec ProcessSpec) (exec.Process, error)
}

// NewMonitor creates a monitor and starts every process described in the
// config directory. A spec file that cannot be read or parsed is skipped with
// a warning in the journal; a missing config directory is an error.
func NewMonitor(ctx context.Context, places Places, j Journaler) (*Monitor, error) {
	m := &Monitor{
		j:      j,
		ctx:    ctx,
		places: places,
		procs:  map[string]*Process{},
	}

	if err := m.scan(); err != nil {
		return nil, err
	}

	return m, nil
}

// scan reads the config directory and starts or replaces a process for every
// spec file in it.
func (m *Monitor) scan() error {
	entries, err := os.ReadDir(m.places.Config)
	if err != nil {
		return errors.Wrap(err, "failed to read config directory")
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.places.Config, name))
		if err != nil {
			m.warn("failed to read spec %q: %v", name, err)
			continue
		}

		spec, err := ParseProcessSpec(data)
		if err != nil {
			m.warn("skipping spec %q: %v", name, err)
			continue
		}

		m.AddProcess(name, spec.Args, spec.UID, spec.GID, spec.Env)
	}

	return nil
}

func (m *Monitor) warn(f string, v ...interface{}) {
	m.j.Write(&EventWarning{
		Component: "monitor",
		Error:     fmt.Sprintf(f, v...),
	})
}

// AddProcess starts monitoring a process under the given name. A process
// already monitored under the name is stopped first and replaced, so
// rewriting a spec file restarts the process with the new spec.
func (m *Monitor) AddProcess(name string, args []string, uid, gid *int, env map[string]string) error {
	if len(args) == 0 {
		return errors.Wrap(ErrInvalidSpec, "missing args")
	}

	spec := ProcessSpec{
		Args: args,
		Env:  env,
		UID:  uid,
		GID:  gid,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("monitor is stopped")
	}
	old := m.procs[name]
	delete(m.procs, name)
	m.mu.Unlock()

	op := ProcessListAdd
	if old != nil {
		op = ProcessListUpdate
		old.Stop()
	}

	p := m.newProcess(name, spec)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		p.Stop()
		return errors.New("monitor is stopped")
	}
	m.procs[name] = p
	m.mu.Unlock()

	p.Start()

	m.j.Write(&EventProcessListModify{Op: op, Name: name})
	return nil
}

func (m *Monitor) newProcess(name string, spec ProcessSpec) *Process {
	p := NewProcess(m.ctx, name, spec, m.j)

	if m.spawn != nil {
		p.startProc = func() (exec.Process, error) {
			return m.spawn(name, spec)
		}
	}

	return p
}

// RemoveProcess stops the named process and forgets about it. Removing a name
// that isn't monitored does nothing, so that a config file deleted twice over
// doesn't fail the second delivery.
func (m *Monitor) RemoveProcess(name string) error {
	m.mu.Lock()
	p := m.procs[name]
	delete(m.procs, name)
	m.mu.Unlock()

	if p == nil {
		return nil
	}

	err := p.Stop()

	m.j.Write(&EventProcessListModify{Op: ProcessListRemove, Name: name})
	return err
}

// StopProcess stops the named process' current incarnation. The process stays
// monitored, so it is respawned right after; a stop is therefore a restart end
// to end.
func (m *Monitor) StopProcess(name string) error {
	m.mu.Lock()
	p := m.procs[name]
	m.mu.Unlock()

	if p == nil {
		return errors.Wrapf(ErrUnknownProcess, "%q", name)
	}

	p.Restart()
	return nil
}

// RestartAll does StopProcess over every monitored process.
func (m *Monitor) RestartAll() error {
	m.mu.Lock()
	procs := make([]*Process, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.mu.Unlock()

	for _, p := range procs {
		p.Restart()
	}

	return nil
}

// Stop stops every monitored process and waits for their monitor routines to
// exit. The monitor cannot be used afterwards.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	m.closed = true
	procs := m.procs
	m.procs = nil
	m.mu.Unlock()

	var firstErr error
	for _, p := range procs {
		if err := p.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
