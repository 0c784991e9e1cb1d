// Package ctl writes the control files that drive a wardmon instance: process
// specs into the config directory and one-shot messages into the messages
// directory. It is the library behind "wardmon ctl", but any program that can
// write files can produce the same effects without it.
package ctl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"wardmon.dev/wardmon"
)

// Op enumerates the control operations.
type Op string

const (
	OpAdd        Op = "add"
	OpRemove     Op = "remove"
	OpRestart    Op = "restart"
	OpRestartAll Op = "restart-all"
)

// Command is one control operation with its arguments. Fields beyond Op and
// Places are consulted only by the operations that need them.
type Command struct {
	Places wardmon.Places
	Op     Op

	Name string
	Cmd  string
	Args []string
	Env  []string // KEY=VALUE pairs
	UID  *int
	GID  *int
}

// Call performs the command.
func Call(cmd Command) error {
	switch cmd.Op {
	case OpAdd:
		return Add(cmd.Places, cmd.Name, cmd.Cmd, cmd.Args, cmd.Env, cmd.UID, cmd.GID)
	case OpRemove:
		return Remove(cmd.Places, cmd.Name)
	case OpRestart:
		return Restart(cmd.Places, cmd.Name)
	case OpRestartAll:
		return RestartAll(cmd.Places)
	default:
		return errors.Errorf("unknown op %q", cmd.Op)
	}
}

// Add writes the spec file for a process, overwriting any previous one under
// the same name. The spawned argv is cmd followed by args; env is given as
// KEY=VALUE pairs. The running monitor picks the file up and (re)starts the
// process.
func Add(places wardmon.Places, name, cmd string, args, env []string, uid, gid *int) error {
	if err := validName(name); err != nil {
		return err
	}

	environ, err := parseEnv(env)
	if err != nil {
		return err
	}

	spec := wardmon.ProcessSpec{
		Args: append([]string{cmd}, args...),
		Env:  environ,
		UID:  uid,
		GID:  gid,
	}

	data, err := json.Marshal(spec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal spec")
	}

	return writeFileAtomic(places.Config, name, data)
}

// Remove deletes the spec file for a process. The running monitor picks the
// deletion up and stops the process.
func Remove(places wardmon.Places, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(places.Config, name)); err != nil {
		return errors.Wrap(err, "failed to remove spec")
	}

	return nil
}

// Restart asks the running monitor to restart one process.
func Restart(places wardmon.Places, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	return writeMessage(places, wardmon.ControlMessage{
		Type: wardmon.MessageRestart,
		Name: name,
	})
}

// RestartAll asks the running monitor to restart every monitored process.
func RestartAll(places wardmon.Places) error {
	return writeMessage(places, wardmon.ControlMessage{
		Type: wardmon.MessageRestartAll,
	})
}

// validName rejects names that wouldn't survive as plain file names in a
// control directory.
func validName(name string) error {
	switch {
	case name == "":
		return errors.New("empty process name")
	case strings.ContainsRune(name, os.PathSeparator):
		return errors.Errorf("process name %q contains a path separator", name)
	case strings.HasPrefix(name, "."):
		return errors.Errorf("process name %q is dot-prefixed", name)
	}

	return nil
}

// parseEnv parses KEY=VALUE pairs into a map. Nil is returned for no pairs so
// that the encoded spec omits the env field entirely.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("malformed environment pair %q", pair)
		}
		env[k] = v
	}

	return env, nil
}

// writeMessage drops the message into the mailbox under a fresh name. The
// name carries the writer's PID for forensics and a UUID for uniqueness.
func writeMessage(places wardmon.Places, msg wardmon.ControlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	name := fmt.Sprintf("%d.%s", os.Getpid(), uuid.NewString())
	return writeFileAtomic(places.Messages, name, data)
}

// writeFileAtomic writes data into dir under a dot-prefixed temporary name
// and renames it into place, so that watchers never observe a partial file.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp := filepath.Join(dir, "."+name+".tmp")

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write temporary file")
	}

	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to rename into place")
	}

	return nil
}
