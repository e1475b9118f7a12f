// Package eventbus layers a typed in-process event channel over
// filesystem watches. The filesystem stays the persistence medium; the
// bus exists so the scheduler and bridge react to new artifacts instead
// of polling. One fsnotify watcher per directory, fanned out to
// subscriber channels.
package eventbus

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventKind mirrors the fsnotify operations callers care about.
type EventKind string

const (
	Created  EventKind = "created"
	Modified EventKind = "modified"
	Removed  EventKind = "removed"
)

// Event is one filesystem change, translated from an fsnotify.Event.
type Event struct {
	Path string
	Kind EventKind
}

// Bus maintains exactly one fsnotify watcher per directory and fans its
// events out to any number of subscribers.
type Bus struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watchedDirs map[string]bool
	subscribers map[uint64]chan Event
	nextSubID   uint64
	closed      bool
}

// New creates a Bus with its own fsnotify watcher and starts its
// dispatch loop.
func New() (*Bus, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("eventbus: new watcher: %w", err)
	}
	b := &Bus{
		watcher:     w,
		watchedDirs: map[string]bool{},
		subscribers: map[uint64]chan Event{},
	}
	go b.loop()
	return b, nil
}

// WatchDir adds dir to the single shared watcher if it isn't already
// watched.
func (b *Bus) WatchDir(dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("eventbus: abs path: %w", err)
	}
	if b.watchedDirs[abs] {
		return nil
	}
	if err := b.watcher.Add(abs); err != nil {
		return fmt.Errorf("eventbus: watch %s: %w", abs, err)
	}
	b.watchedDirs[abs] = true
	return nil
}

// Subscribe returns a channel of events and an unsubscribe function.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 128)
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = ch
	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
	}
	return ch, unsub
}

func (b *Bus) loop() {
	for {
		select {
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.dispatch(translate(ev))
		case _, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are diagnostic only; subscribers read the
			// filesystem as ground truth and simply miss a wakeup.
		}
	}
}

func translate(ev fsnotify.Event) Event {
	kind := Modified
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = Created
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		kind = Removed
	}
	return Event{Path: ev.Name, Kind: kind}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than block the watcher loop.
		}
	}
}

// Close stops the underlying watcher and closes all subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	return b.watcher.Close()
}
