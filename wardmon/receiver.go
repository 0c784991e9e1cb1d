package wardmon

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ProcessMonitor is the surface of the supervisor that the receiver drives.
// Monitor implements it; tests substitute their own.
type ProcessMonitor interface {
	// AddProcess starts monitoring a process under the given name, replacing
	// any process already monitored under it. A nil uid or gid means to keep
	// the current credential; env holds environment overrides and is never
	// nil.
	AddProcess(name string, args []string, uid, gid *int, env map[string]string) error
	// RemoveProcess stops and forgets the named process. Removing an unknown
	// name is not an error.
	RemoveProcess(name string) error
	// StopProcess stops the named process' current incarnation. The monitor
	// restarts it, which makes a stop request a restart end to end.
	StopProcess(name string) error
	// RestartAll does StopProcess for every monitored process.
	RestartAll() error
}

// Receiver turns raw control file contents into ProcessMonitor calls. It holds
// no state of its own, so the caller decides when a file counts as delivered.
type Receiver struct {
	mon ProcessMonitor
	j   Journaler
	log *zap.SugaredLogger
}

// NewReceiver creates a receiver that dispatches onto mon, journals consumed
// control messages into j and logs its actions through log. A nil log
// discards.
func NewReceiver(mon ProcessMonitor, j Journaler, log *zap.SugaredLogger) *Receiver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Receiver{
		mon: mon,
		j:   j,
		log: log,
	}
}

// Add handles a created or rewritten file in the config directory. The data is
// the file's contents; name is the file's name and becomes the process name.
func (r *Receiver) Add(name string, data []byte) error {
	spec, err := ParseProcessSpec(data)
	if err != nil {
		return err
	}

	env := spec.Env
	if env == nil {
		env = map[string]string{}
	}

	if err := r.mon.AddProcess(name, spec.Args, spec.UID, spec.GID, env); err != nil {
		return errors.Wrapf(err, "failed to add process %q", name)
	}

	r.log.Infof("Added monitored process: %s", name)
	return nil
}

// Remove handles a deleted file in the config directory.
func (r *Receiver) Remove(name string) error {
	if err := r.mon.RemoveProcess(name); err != nil {
		return errors.Wrapf(err, "failed to remove process %q", name)
	}

	r.log.Infof("Removed monitored process: %s", name)
	return nil
}

// Message handles the contents of a single file from the messages directory.
// A malformed or unknown message is rejected without touching the monitor.
func (r *Receiver) Message(data []byte) error {
	msg, err := ParseControlMessage(data)
	if err != nil {
		return err
	}

	switch msg.Type {
	case MessageRestart:
		if err := r.mon.StopProcess(msg.Name); err != nil {
			return errors.Wrapf(err, "failed to restart process %q", msg.Name)
		}
		r.log.Infof("Restarting monitored process: %s", msg.Name)

	case MessageRestartAll:
		if err := r.mon.RestartAll(); err != nil {
			return errors.Wrap(err, "failed to restart all processes")
		}
		r.log.Infof("Restarting all monitored processes")
	}

	if r.j != nil {
		r.j.Write(&EventControlMessage{
			MessageType: msg.Type,
			Name:        msg.Name,
		})
	}

	return nil
}
