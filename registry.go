package xcubus

import (
	"errors"
	"sync"
)

// ChannelKey names one simulated bus. Any comparable value works:
// strings, integers, or opaque tokens. nil is the default bus.
type ChannelKey any

// ErrNotRegistered is returned when deregistering a queue that is not
// present under the given key.
var ErrNotRegistered = errors.New("xcubus: queue not registered on channel")

// Registry maps channel keys to the delivery queues of the bus
// endpoints currently attached to that simulated bus. It is the only
// shared mutable state in the package; one mutex serializes all
// lookups and mutations and is never held across queue or socket
// operations.
type Registry struct {
	mu       sync.Mutex
	channels map[ChannelKey][]*Queue
}

// NewRegistry creates an empty registry. Most callers share
// DefaultRegistry instead; a private registry isolates tests.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[ChannelKey][]*Queue)}
}

var defaultRegistry = sync.OnceValue(NewRegistry)

// DefaultRegistry returns the process-wide registry. It is created on
// first use and lives for the remainder of the process.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Register attaches q to the channel named by key, creating the
// channel entry if absent. The entry is visible to concurrent
// enumeration as soon as Register returns.
func (r *Registry) Register(key ChannelKey, q *Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[key] = append(r.channels[key], q)
}

// Deregister detaches q from the channel named by key, removing the
// key entirely when its last queue goes. Deregistering a queue that
// is not attached fails with ErrNotRegistered.
func (r *Registry) Deregister(key ChannelKey, q *Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	queues, ok := r.channels[key]
	if !ok {
		return ErrNotRegistered
	}
	for i, cur := range queues {
		if cur == q {
			queues = append(queues[:i], queues[i+1:]...)
			if len(queues) == 0 {
				delete(r.channels, key)
			} else {
				r.channels[key] = queues
			}
			return nil
		}
	}
	return ErrNotRegistered
}

// Keys returns a snapshot of the currently active channel keys.
func (r *Registry) Keys() []ChannelKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]ChannelKey, 0, len(r.channels))
	for k := range r.channels {
		keys = append(keys, k)
	}
	return keys
}

// QueueCount reports how many queues are attached to key.
func (r *Registry) QueueCount(key ChannelKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels[key])
}

// PickUnusedKey draws candidates from gen until one is not an active
// key. Best-effort only: a concurrent Register can take the key
// between the check and the caller's use of it.
func (r *Registry) PickUnusedKey(gen func() ChannelKey) ChannelKey {
	for {
		key := gen()
		r.mu.Lock()
		_, used := r.channels[key]
		r.mu.Unlock()
		if !used {
			return key
		}
	}
}

// Dispatch delivers f to every queue attached to key and returns the
// number of queues that accepted it. Delivery is non-blocking: a full
// queue drops the frame rather than stalling the rest of the channel.
// The queue list is snapshotted under the lock; the enqueues happen
// outside it.
func (r *Registry) Dispatch(key ChannelKey, f Frame) int {
	r.mu.Lock()
	targets := append([]*Queue(nil), r.channels[key]...)
	r.mu.Unlock()

	delivered := 0
	for _, q := range targets {
		if err := q.Put(f, 0); err == nil {
			delivered++
		}
	}
	return delivered
}
