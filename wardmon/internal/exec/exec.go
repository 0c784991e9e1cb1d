// Package exec provides an abstraction around package os' Process
// implementation for easier testing.
package exec

import (
	"os"
	"runtime"
	"sort"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Process describes a command process.
type Process interface {
	PID() int
	Signal(os.Signal) error
	Kill() error
	Wait() ExitStatus
}

// ExitStatus is a process' exit status.
type ExitStatus struct {
	PID   int
	Code  int // -1 for interrupt
	Error error
}

// Options control how a process is spawned.
type Options struct {
	// Dir is the working directory. Empty means to inherit.
	Dir string
	// Env holds variables layered on top of the current environment.
	Env map[string]string
	// UID and GID, if non-nil, are the credentials to run the process with.
	UID *int
	GID *int
}

type process struct {
	*os.Process
}

var _ Process = process{}

// StartProcess creates a new command process on the system.
func StartProcess(argv []string, opts Options) (Process, error) {
	// Lock this goroutine to the OS thread for Pdeathsig.
	// See https://github.com/golang/go/issues/27505.
	runtime.LockOSThread()

	// Linux-only: we need to set the current PID as the subreaper to prevent
	// the processes we're spawning from disowning itself, because we might
	// accidentally spawn multiple instances of it while thinking it's dead.
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return nil, errors.Wrap(err, "failed to set subreaper")
	}

	sys := syscall.SysProcAttr{
		// Linux-only: we need the child to die when we do, because it's the
		// next best thing we can do that doesn't involve reparenting orphaned
		// children magic.
		Pdeathsig: syscall.SIGTERM,
	}

	if opts.UID != nil || opts.GID != nil {
		cred := syscall.Credential{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		}
		if opts.UID != nil {
			cred.Uid = uint32(*opts.UID)
		}
		if opts.GID != nil {
			cred.Gid = uint32(*opts.GID)
		}
		sys.Credential = &cred
	}

	p, err := os.StartProcess(argv[0], argv, &os.ProcAttr{
		Dir:   opts.Dir,
		Env:   overlayEnviron(opts.Env),
		Files: []*os.File{nil, os.Stdout, os.Stderr},
		Sys:   &sys,
	})
	if err != nil {
		return nil, err
	}

	return process{p}, nil
}

// overlayEnviron layers the given variables over the current environment. The
// overlay is appended in sorted order; later entries win on duplicate keys.
func overlayEnviron(env map[string]string) []string {
	environ := os.Environ()
	if len(env) == 0 {
		return environ
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		environ = append(environ, k+"="+env[k])
	}

	return environ
}

func (proc process) PID() int {
	return proc.Pid
}

// Wait waits for the process to exit. It must be called on the same goroutine
// as StartProcess.
func (proc process) Wait() ExitStatus {
	s, err := proc.Process.Wait()
	runtime.UnlockOSThread()

	status := ExitStatus{
		PID:   proc.Pid,
		Code:  -1,
		Error: err,
	}
	if s != nil {
		status.Code = s.ExitCode()
	}

	return status
}
