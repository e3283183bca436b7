// Package sessions tracks open live connections so shutdown can notify and
// drain them.
package sessions

import (
	"context"
	"sync"
)

// Handle exposes the controls a live connection registers with the tracker.
// Notify sends a server-side warning frame; Cancel tears the connection down.
type Handle struct {
	Cancel func()
	Notify func(code, message string) error
}

type Tracker struct {
	mu   sync.Mutex
	open map[string]*tracked
	wg   sync.WaitGroup
}

type tracked struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{open: make(map[string]*tracked)}
}

// Register adds a connection under sessionID and returns its unregister
// function. A second registration for the same session replaces the first.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &tracked{handle: h}

	t.mu.Lock()
	if t.open == nil {
		t.open = make(map[string]*tracked)
	}
	prev := t.open[sessionID]
	t.open[sessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if prev != nil {
		t.drop(sessionID, prev)
	}

	return func() { t.drop(sessionID, entry) }
}

func (t *Tracker) drop(sessionID string, entry *tracked) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.open != nil && t.open[sessionID] == entry {
			delete(t.open, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// NotifyAll sends a warning to every open connection. Used when the server
// starts draining.
func (t *Tracker) NotifyAll(code, message string) (sent int) {
	if t == nil {
		return 0
	}

	var notifies []func(code, message string) error
	t.mu.Lock()
	for _, entry := range t.open {
		if entry == nil || entry.handle.Notify == nil {
			continue
		}
		notifies = append(notifies, entry.handle.Notify)
	}
	t.mu.Unlock()

	for _, notify := range notifies {
		_ = notify(code, message)
		sent++
	}
	return sent
}

func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.open {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered connection has unregistered, or ctx
// expires. It reports whether the tracker fully drained.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
