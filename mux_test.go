package xcubus

import (
	"testing"
	"time"
)

func TestFilters_Basics(t *testing.T) {
	f1 := MustFrame(0x100, []byte{1})
	f2 := MustFrame(0x101, []byte{2})
	fd := Frame{ID: 0x200, DLC: 9, FD: true, Channel: 4, Data: make([]byte, 12)}

	if !ByID(0x100)(f1) || ByID(0x100)(f2) {
		t.Fatalf("ByID failure")
	}
	if !ByIDs(0x100, 0x102)(f1) || ByIDs(0x100, 0x102)(f2) {
		t.Fatalf("ByIDs failure")
	}
	if !ByRange(0x100, 0x1FF)(f2) || ByRange(0x200, 0x2FF)(f2) {
		t.Fatalf("ByRange failure")
	}
	if !ByMask(0x100, 0x7FF)(f1) || ByMask(0x100, 0x7FF)(f2) {
		t.Fatalf("ByMask failure")
	}
	if !ByChannel(4)(fd) || ByChannel(4)(f1) {
		t.Fatalf("ByChannel failure")
	}
	if !FDOnly()(fd) || FDOnly()(f1) {
		t.Fatalf("FDOnly failure")
	}
	if !ClassicOnly()(f1) || ClassicOnly()(fd) {
		t.Fatalf("ClassicOnly failure")
	}
	if !LenAtMost(1)(f1) || LenAtMost(1)(fd) {
		t.Fatalf("LenAtMost failure")
	}
	if !LenExactly(12)(fd) || LenExactly(12)(f1) {
		t.Fatalf("LenExactly failure")
	}
	if !And(ByID(0x100), ClassicOnly())(f1) || And(ByID(0x100), FDOnly())(f1) {
		t.Fatalf("And failure")
	}
	if !Or(ByID(0x100), ByID(0x999))(f1) || Or(ByID(0x998), ByID(0x999))(f1) {
		t.Fatalf("Or failure")
	}
	if Not(ByID(0x100))(f1) || !Not(ByID(0x999))(f1) {
		t.Fatalf("Not failure")
	}
}

func TestMux_SubscribeFilteringAndClose(t *testing.T) {
	_, addr := newTestListener(t)
	reg := NewRegistry()
	b := openTestBus(t, reg, "A", addr)
	defer b.Close()

	m := NewMux(b)
	defer m.Close()

	chA, cancelA := m.Subscribe(ByID(0x100), 1)
	chB, cancelB := m.Subscribe(ByRange(0x200, 0x2FF), 2)
	defer cancelB()

	send := func(id uint32) { reg.Dispatch("A", MustFrame(id, []byte{1, 2, 3})) }

	send(0x100) // should go to A
	send(0x210) // should go to B
	send(0x105) // should go to no one

	select {
	case f := <-chA:
		if f.ID != 0x100 {
			t.Fatalf("A got %03X", f.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for A")
	}
	select {
	case f := <-chB:
		if f.ID != 0x210 {
			t.Fatalf("B got %03X", f.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for B")
	}
	select {
	case f := <-chA:
		t.Fatalf("A should be empty, got %03X", f.ID)
	case <-time.After(100 * time.Millisecond):
	}

	// Cancel subscriber A; its channel closes and stays closed.
	cancelA()
	send(0x100)
	select {
	case _, ok := <-chA:
		if ok {
			t.Fatalf("A should be closed")
		}
	case <-time.After(200 * time.Millisecond):
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-chB; ok {
		t.Fatalf("B should be closed after mux close")
	}
}

func TestMux_ClosesSubsWhenBusCloses(t *testing.T) {
	_, addr := newTestListener(t)
	reg := NewRegistry()
	b := openTestBus(t, reg, "A", addr)

	m := NewMux(b)
	defer m.Close()
	ch, cancel := m.Subscribe(nil, 1)
	defer cancel()

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("subscriber should observe closure")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber not closed after bus close")
	}
}
