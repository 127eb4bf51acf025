// Package events allows for the registering and receiving of events.
// Event messages are plain strings whose leading word names the source,
// as in "state: ..." or "viewer: block: ...". Receivers can restrict the
// messages they get to a set of sources.
package events

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// messageBuffer is the number of messages held for a receiver that is not
// ready. A message is dropped when the buffer is full.
const messageBuffer = 100

type receiver struct {
	ch      chan string
	sources []string
}

func (r receiver) wants(msg string) bool {
	if len(r.sources) == 0 {
		return true
	}

	for _, src := range r.sources {
		if strings.HasPrefix(msg, src+":") {
			return true
		}
	}

	return false
}

// Events maintains a mapping of unique id and receivers so goroutines
// can register and receive events.
type Events struct {
	mu      sync.RWMutex
	m       map[string]receiver
	dropped atomic.Uint64
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]receiver),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, r := range evt.m {
		delete(evt.m, id)
		close(r.ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used to
// receive events. When sources are provided only messages from those
// sources are delivered. Acquiring an existing id returns its channel.
func (evt *Events) Acquire(id string, sources ...string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if r, exists := evt.m[id]; exists {
		return r.ch
	}

	r := receiver{
		ch:      make(chan string, messageBuffer),
		sources: sources,
	}
	evt.m[id] = r

	return r.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	r, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(r.ch)

	return nil
}

// Count returns the number of registered receivers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Dropped returns the number of messages not delivered because a receiver
// buffer was full.
func (evt *Events) Dropped() uint64 {
	return evt.dropped.Load()
}

// Send delivers the message to every receiver that wants it. Send never
// blocks on a slow receiver.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, r := range evt.m {
		if !r.wants(s) {
			continue
		}

		select {
		case r.ch <- s:
		default:
			evt.dropped.Add(1)
		}
	}
}
