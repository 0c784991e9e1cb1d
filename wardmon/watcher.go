package wardmon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher watches the control directories and feeds their changes into a
// receiver. Config files are delivered as add/remove calls; message files are
// consumed, that is, delivered once and then deleted.
type Watcher struct {
	w      *fsnotify.Watcher
	j      Journaler
	recv   *Receiver
	places Places
}

// TryWatch attempts to watch the control directories asynchronously, but it
// will log into the journaler if, for some reason, it fails to watch them.
func TryWatch(ctx context.Context, places Places, recv *Receiver, j Journaler) *Watcher {
	w := newWatcher(places, recv, j)

	go func() {
		if err := w.init(); err != nil {
			j.Write(&EventWarning{
				Component: "watcher",
				Error:     fmt.Sprintf("not watching because: %v", err),
			})
			return
		}

		w.watch(ctx)
	}()

	return w
}

// NewWatcher watches the control directories and dispatches changes into the
// receiver. The watcher is stopped once the given context is canceled.
func NewWatcher(ctx context.Context, places Places, recv *Receiver, j Journaler) (*Watcher, error) {
	w := newWatcher(places, recv, j)
	if err := w.init(); err != nil {
		return nil, err
	}

	go w.watch(ctx)
	return w, nil
}

func newWatcher(places Places, recv *Receiver, j Journaler) *Watcher {
	return &Watcher{
		w:      nil,
		j:      j,
		recv:   recv,
		places: places,
	}
}

func (w *Watcher) init() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	for _, dir := range w.places.Dirs() {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return errors.Wrapf(err, "failed to watch %q", dir)
		}
	}

	w.w = watcher
	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.w.Close()

	// Deliver the message backlog first: messages written while no monitor was
	// running must still fire exactly once.
	w.replayMessages()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-w.w.Errors:
			w.warn("inotify error: %v", err)

		case evt := <-w.w.Events:
			w.handle(evt)
		}
	}
}

func (w *Watcher) warn(f string, v ...interface{}) {
	w.j.Write(&EventWarning{
		Component: "watcher",
		Error:     fmt.Sprintf(f, v...),
	})
}

// replayMessages consumes every message already sitting in the messages
// directory.
func (w *Watcher) replayMessages() {
	entries, err := os.ReadDir(w.places.Messages)
	if err != nil {
		w.warn("failed to read messages directory: %v", err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		w.consumeMessage(name)
	}
}

func (w *Watcher) handle(evt fsnotify.Event) {
	dir, name := filepath.Split(evt.Name)
	dir = filepath.Clean(dir)

	// Dot-prefixed files are in-flight atomic writes.
	if name == "" || strings.HasPrefix(name, ".") {
		return
	}

	switch dir {
	case filepath.Clean(w.places.Config):
		switch {
		case evt.Op&(fsnotify.Create|fsnotify.Write) != 0:
			w.addConfig(name)
		case evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
			// A rename is treated as a remove; fsnotify does not report where
			// the file went.
			// See: https://github.com/fsnotify/fsnotify/issues/26
			if err := w.recv.Remove(name); err != nil {
				w.warn("failed to remove %q: %v", name, err)
			}
		}

	case filepath.Clean(w.places.Messages):
		if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 {
			w.consumeMessage(name)
		}
	}
}

// addConfig reads a config file and delivers it as an add. A file that's
// already gone again is skipped silently; anything else that fails becomes a
// warning.
func (w *Watcher) addConfig(name string) {
	data, err := os.ReadFile(filepath.Join(w.places.Config, name))
	if err != nil {
		if !os.IsNotExist(err) {
			w.warn("failed to read spec %q: %v", name, err)
		}
		return
	}

	if err := w.recv.Add(name, data); err != nil {
		w.warn("failed to add %q: %v", name, err)
	}
}

// consumeMessage delivers a message file and deletes it. The file is deleted
// even when the message is rejected, so a bad message cannot wedge the
// mailbox.
func (w *Watcher) consumeMessage(name string) {
	path := filepath.Join(w.places.Messages, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.warn("failed to read message %q: %v", name, err)
		}
		return
	}

	if err := w.recv.Message(data); err != nil {
		w.warn("rejected message %q: %v", name, err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.warn("failed to delete message %q: %v", name, err)
	}
}
