package wardmon

import (
	"reflect"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// recordedCall is a single call made onto recordingMonitor.
type recordedCall struct {
	op   string
	name string
	args []string
	uid  *int
	gid  *int
	env  map[string]string
}

// recordingMonitor is a ProcessMonitor that only records its calls. It is
// safe for concurrent use, since the watcher tests dispatch onto it from the
// inotify goroutine.
type recordingMonitor struct {
	mutex sync.Mutex
	calls []recordedCall
	err   error
}

var _ ProcessMonitor = (*recordingMonitor)(nil)

func (m *recordingMonitor) record(c recordedCall) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls = append(m.calls, c)
	return m.err
}

// Calls returns a snapshot of the recorded calls.
func (m *recordingMonitor) Calls() []recordedCall {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]recordedCall(nil), m.calls...)
}

func (m *recordingMonitor) AddProcess(name string, args []string, uid, gid *int, env map[string]string) error {
	return m.record(recordedCall{"add", name, args, uid, gid, env})
}

func (m *recordingMonitor) RemoveProcess(name string) error {
	return m.record(recordedCall{op: "remove", name: name})
}

func (m *recordingMonitor) StopProcess(name string) error {
	return m.record(recordedCall{op: "stop", name: name})
}

func (m *recordingMonitor) RestartAll() error {
	return m.record(recordedCall{op: "restart-all"})
}

func newTestReceiver(j Journaler) (*Receiver, *recordingMonitor, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	mon := &recordingMonitor{}
	return NewReceiver(mon, j, zap.New(core).Sugar()), mon, logs
}

func assertLogged(t *testing.T, logs *observer.ObservedLogs, msg string) {
	t.Helper()

	if logs.FilterMessage(msg).Len() != 1 {
		t.Errorf("expected log line %q, got %v", msg, logs.All())
	}
}

func TestReceiverAdd(t *testing.T) {
	t.Run("minimal spec", func(t *testing.T) {
		r, mon, logs := newTestReceiver(nil)

		// Unknown keys are ignored; a config written by a newer version must
		// still load.
		err := r.Add("hello", []byte(`{"args": ["/bin/cat"], "junk": 1}`))
		if err != nil {
			t.Fatal("failed to add:", err)
		}

		expect := []recordedCall{
			{op: "add", name: "hello", args: []string{"/bin/cat"}, env: map[string]string{}},
		}
		if !reflect.DeepEqual(mon.Calls(), expect) {
			t.Fatalf("unexpected calls, got %#v, expected %#v", mon.Calls(), expect)
		}

		assertLogged(t, logs, "Added monitored process: hello")
	})

	t.Run("full spec", func(t *testing.T) {
		r, mon, _ := newTestReceiver(nil)

		data := []byte(`{
			"args": ["/bin/sleep", "100"],
			"env": {"world": "616"},
			"uid": 0,
			"gid": 50
		}`)
		if err := r.Add("sleepy", data); err != nil {
			t.Fatal("failed to add:", err)
		}

		uid, gid := 0, 50
		expect := []recordedCall{{
			op:   "add",
			name: "sleepy",
			args: []string{"/bin/sleep", "100"},
			uid:  &uid,
			gid:  &gid,
			env:  map[string]string{"world": "616"},
		}}
		if !reflect.DeepEqual(mon.Calls(), expect) {
			t.Fatalf("unexpected calls, got %#v, expected %#v", mon.Calls(), expect)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		r, mon, _ := newTestReceiver(nil)

		if err := r.Add("bad", []byte(`{]`)); !errors.Is(err, ErrInvalidSpec) {
			t.Fatal("unexpected error adding malformed spec:", err)
		}
		if err := r.Add("bad", []byte(`{"env": {"a": "b"}}`)); !errors.Is(err, ErrInvalidSpec) {
			t.Fatal("unexpected error adding spec without args:", err)
		}

		if len(mon.Calls()) > 0 {
			t.Fatalf("monitor was called for a rejected spec: %#v", mon.Calls())
		}
	})

	t.Run("monitor error", func(t *testing.T) {
		r, mon, logs := newTestReceiver(nil)
		mon.err = errors.New("out of processes")

		if err := r.Add("hello", []byte(`{"args": ["/bin/cat"]}`)); err == nil {
			t.Fatal("expected error from monitor")
		}

		if logs.Len() > 0 {
			t.Fatalf("logged despite monitor error: %v", logs.All())
		}
	})
}

func TestReceiverRemove(t *testing.T) {
	r, mon, logs := newTestReceiver(nil)

	if err := r.Remove("hello"); err != nil {
		t.Fatal("failed to remove:", err)
	}

	expect := []recordedCall{{op: "remove", name: "hello"}}
	if !reflect.DeepEqual(mon.Calls(), expect) {
		t.Fatalf("unexpected calls, got %#v, expected %#v", mon.Calls(), expect)
	}

	assertLogged(t, logs, "Removed monitored process: hello")
}

func TestReceiverMessage(t *testing.T) {
	t.Run("restart", func(t *testing.T) {
		j := mockJournal{}
		r, mon, logs := newTestReceiver(&j)

		err := r.Message([]byte(`{"type": "RESTART", "name": "hello"}`))
		if err != nil {
			t.Fatal("failed to dispatch:", err)
		}

		expect := []recordedCall{{op: "stop", name: "hello"}}
		if !reflect.DeepEqual(mon.Calls(), expect) {
			t.Fatalf("unexpected calls, got %#v, expected %#v", mon.Calls(), expect)
		}

		assertLogged(t, logs, "Restarting monitored process: hello")

		j.Verify(t, true, []Event{
			&EventControlMessage{MessageType: "RESTART", Name: "hello"},
		})
	})

	t.Run("restart all", func(t *testing.T) {
		j := mockJournal{}
		r, mon, logs := newTestReceiver(&j)

		if err := r.Message([]byte(`{"type": "RESTART-ALL"}`)); err != nil {
			t.Fatal("failed to dispatch:", err)
		}

		expect := []recordedCall{{op: "restart-all"}}
		if !reflect.DeepEqual(mon.Calls(), expect) {
			t.Fatalf("unexpected calls, got %#v, expected %#v", mon.Calls(), expect)
		}

		assertLogged(t, logs, "Restarting all monitored processes")

		j.Verify(t, true, []Event{
			&EventControlMessage{MessageType: "RESTART-ALL"},
		})
	})

	t.Run("rejected", func(t *testing.T) {
		j := mockJournal{}
		r, mon, _ := newTestReceiver(&j)

		err := r.Message([]byte(`{"type": "LALALA"}`))
		if !errors.Is(err, ErrUnknownMessage) {
			t.Fatal("unexpected error for unknown type:", err)
		}

		// RESTART carries a target; without one there is nothing to restart.
		if err := r.Message([]byte(`{"type": "RESTART"}`)); err == nil {
			t.Fatal("expected error for RESTART without a name")
		}

		if err := r.Message([]byte(`gibberish`)); err == nil {
			t.Fatal("expected error for malformed message")
		}

		if len(mon.Calls()) > 0 {
			t.Fatalf("monitor was called for a rejected message: %#v", mon.Calls())
		}

		j.Verify(t, true, []Event{})
	})
}
