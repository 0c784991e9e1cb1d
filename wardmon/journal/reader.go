package journal

import (
	"encoding/json"
	"io"
	"time"

	"github.com/diamondburned/backwardio"
	"github.com/pkg/errors"
	"wardmon.dev/wardmon"
)

// Reader implements a primitive reader that parses journals written by Writer
// from the bottom of the file up, newest event first.
type Reader struct {
	b *backwardio.Scanner
}

// NewReader creates a new journal reader.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{backwardio.NewScanner(r)}
}

// Read reads a single entry, starting from the bottom of the file. An EOF
// error is returned once the file has been fully consumed.
func (r *Reader) Read() (wardmon.Event, time.Time, error) {
	var line []byte
	var err error

	for {
		line, err = r.b.ReadUntil('\n')
		if err != nil {
			return nil, time.Time{}, err
		}
		if len(line) > 0 {
			break
		}
	}

	var rawEvent struct {
		Time time.Time       `json:"time"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(line, &rawEvent); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to decode JSON")
	}

	event := wardmon.NewEvent(rawEvent.Type)
	if event == nil {
		return nil, time.Time{}, errors.Errorf("unknown event %q", rawEvent.Type)
	}

	if err := json.Unmarshal(rawEvent.Data, event); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to decode event data")
	}

	return event, rawEvent.Time, nil
}
