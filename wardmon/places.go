package wardmon

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Places holds the two control directories that drive a wardmon instance. The
// supervisor creates them on startup; the control writer does not, so a write
// into a mistyped path fails loudly rather than parking files where no
// supervisor will ever look.
type Places struct {
	// Config is the directory of per-process spec files.
	Config string `json:"config"`
	// Messages is the directory of transient control messages.
	Messages string `json:"messages"`
}

// Dirs returns both directory paths for bulk setup or cleanup by the caller.
func (p Places) Dirs() []string {
	return []string{p.Config, p.Messages}
}

// ProcessSpec describes how to spawn a monitored process. It is the JSON body
// of a file in the config directory, named after the process.
type ProcessSpec struct {
	// Args is the argv of the process. It must not be empty.
	Args []string `json:"args"`
	// Env holds environment overrides. An empty map is omitted when encoding.
	Env map[string]string `json:"env,omitempty"`
	// UID and GID, if non-nil, are the credentials to run the process with.
	// Zero is a valid value for either, hence the pointers.
	UID *int `json:"uid,omitempty"`
	GID *int `json:"gid,omitempty"`
}

// ErrInvalidSpec is returned when a process spec fails to parse or misses
// required fields.
var ErrInvalidSpec = errors.New("invalid process spec")

// ParseProcessSpec decodes a process spec from its file contents. Unknown
// fields are ignored so that specs can carry extra annotations for other
// tools.
func ParseProcessSpec(data []byte) (*ProcessSpec, error) {
	var spec ProcessSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(ErrInvalidSpec, err.Error())
	}

	if len(spec.Args) == 0 {
		return nil, errors.Wrap(ErrInvalidSpec, "missing args")
	}

	return &spec, nil
}

// Control message types understood by the receiver.
const (
	// MessageRestart restarts the single process named by the message.
	MessageRestart = "RESTART"
	// MessageRestartAll restarts every monitored process.
	MessageRestartAll = "RESTART-ALL"
)

// ControlMessage is the JSON body of a file in the messages directory. The
// file name itself carries no meaning beyond uniqueness.
type ControlMessage struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// ErrUnknownMessage is returned when a control message fails to parse, names
// an unknown type, or misses a required field.
var ErrUnknownMessage = errors.New("unknown control message")

// ParseControlMessage decodes a control message and validates it against the
// known message types.
func ParseControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(ErrUnknownMessage, err.Error())
	}

	switch msg.Type {
	case MessageRestart:
		if msg.Name == "" {
			return nil, errors.Wrap(ErrUnknownMessage, "RESTART without a name")
		}
	case MessageRestartAll:
		// No further fields.
	default:
		return nil, errors.Wrapf(ErrUnknownMessage, "type %q", msg.Type)
	}

	return &msg, nil
}
