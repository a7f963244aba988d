package xcubus

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_RegisterDeregister(t *testing.T) {
	reg := NewRegistry()
	const n = 4
	queues := make([]*Queue, n)
	for i := range queues {
		queues[i] = NewQueue(0)
		reg.Register("A", queues[i])
	}
	if got := reg.QueueCount("A"); got != n {
		t.Fatalf("QueueCount = %d, want %d", got, n)
	}

	// Removing all but one leaves the key with exactly one queue.
	for i := 0; i < n-1; i++ {
		if err := reg.Deregister("A", queues[i]); err != nil {
			t.Fatalf("Deregister(%d) error = %v", i, err)
		}
	}
	if got := reg.QueueCount("A"); got != 1 {
		t.Fatalf("QueueCount = %d, want 1", got)
	}
	if keys := reg.Keys(); len(keys) != 1 || keys[0] != ChannelKey("A") {
		t.Fatalf("Keys = %v, want [A]", keys)
	}

	// Removing the last queue removes the key entirely.
	if err := reg.Deregister("A", queues[n-1]); err != nil {
		t.Fatalf("last Deregister error = %v", err)
	}
	if keys := reg.Keys(); len(keys) != 0 {
		t.Fatalf("Keys = %v, want empty", keys)
	}
}

func TestRegistry_DeregisterAbsent(t *testing.T) {
	reg := NewRegistry()
	q := NewQueue(0)
	if err := reg.Deregister("A", q); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("unknown key: error = %v, want ErrNotRegistered", err)
	}
	reg.Register("A", NewQueue(0))
	if err := reg.Deregister("A", q); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("unknown queue: error = %v, want ErrNotRegistered", err)
	}
}

func TestRegistry_PickUnusedKey(t *testing.T) {
	reg := NewRegistry()
	reg.Register("channel-0", NewQueue(0))
	reg.Register("channel-1", NewQueue(0))

	// The generator walks through used keys before offering a free one.
	i := 0
	key := reg.PickUnusedKey(func() ChannelKey {
		k := fmt.Sprintf("channel-%d", i)
		i++
		return k
	})
	if key != ChannelKey("channel-2") {
		t.Fatalf("PickUnusedKey = %v, want channel-2", key)
	}
	for _, k := range reg.Keys() {
		if k == key {
			t.Fatalf("PickUnusedKey returned an active key %v", k)
		}
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	reg := NewRegistry()
	a := NewQueue(0)
	b := NewQueue(1)
	reg.Register("A", a)
	reg.Register("A", b)
	reg.Register("B", NewQueue(0))

	f := MustFrame(0x10, []byte{0xFF})
	if got := reg.Dispatch("A", f); got != 2 {
		t.Fatalf("Dispatch = %d, want 2", got)
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("queue lengths = %d, %d, want 1, 1", a.Len(), b.Len())
	}

	// A full bounded queue drops instead of stalling the channel.
	if got := reg.Dispatch("A", f); got != 1 {
		t.Fatalf("Dispatch with b full = %d, want 1", got)
	}
	if got := reg.Dispatch("missing", f); got != 0 {
		t.Fatalf("Dispatch on missing key = %d, want 0", got)
	}
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("chan-%d", i%4)
			for j := 0; j < 50; j++ {
				q := NewQueue(4)
				reg.Register(key, q)
				reg.Dispatch(key, MustFrame(uint32(j), nil))
				_ = reg.Keys()
				if err := reg.Deregister(key, q); err != nil {
					t.Errorf("Deregister error = %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	if keys := reg.Keys(); len(keys) != 0 {
		t.Fatalf("Keys after teardown = %v, want empty", keys)
	}
}
