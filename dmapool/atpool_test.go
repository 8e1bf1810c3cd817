package dmapool

import "testing"

func TestATPoolAllocExhaustion(t *testing.T) {
	p := NewATPool(2, 0x1000, 0x2000, 64)

	b1 := p.Alloc()
	b2 := p.Alloc()
	if b1 == nil || b2 == nil {
		t.Fatal("Alloc returned nil before the pool was exhausted")
	}
	if p.Alloc() != nil {
		t.Fatal("Alloc did not return nil once the pool was exhausted")
	}
}

func TestATPoolPayloadSlotIsPerBuffer(t *testing.T) {
	p := NewATPool(2, 0x1000, 0x2000, 64)

	b1 := p.Alloc()
	addr1, slice1 := p.PayloadSlot(b1)

	b2 := p.Alloc()
	addr2, slice2 := p.PayloadSlot(b2)

	if addr1 == addr2 {
		t.Fatalf("two buffers share the same payload address %#x", addr1)
	}
	if len(slice1) != 64 || len(slice2) != 64 {
		t.Fatalf("payload slot length = %d/%d, want 64", len(slice1), len(slice2))
	}

	slice1[0] = 0xaa
	if slice2[0] == 0xaa {
		t.Fatal("payload slots alias each other")
	}
}

func TestATPoolInFlightToCompletedToFree(t *testing.T) {
	p := NewATPool(1, 0x1000, 0x2000, 64)

	b := p.Alloc()
	p.SetTail(b)
	p.MarkInFlight(b)

	indices := p.InFlightIndices()
	if len(indices) != 1 {
		t.Fatalf("InFlightIndices = %v, want one entry", indices)
	}

	var scanned int
	p.ScanInFlight(func(*ATBuffer) bool {
		scanned++
		return true
	})
	if scanned != 1 {
		t.Fatalf("ScanInFlight visited %d buffers, want 1", scanned)
	}

	var drained int
	p.DrainCompleted(func(*ATBuffer) { drained++ })
	if drained != 1 {
		t.Fatalf("DrainCompleted invoked fn %d times, want 1", drained)
	}

	// b is still pinned as the chain tail, so it must not have been
	// returned to the free list.
	if p.Alloc() != nil {
		t.Fatal("Alloc succeeded though the only buffer is pinned as tail")
	}

	p.SetTail(nil)
	if p.Alloc() == nil {
		t.Fatal("Alloc failed after the tail pin was released")
	}
}

func TestATPoolMoveAndRemoveInFlight(t *testing.T) {
	p := NewATPool(2, 0x1000, 0x2000, 64)

	b0 := p.Alloc()
	b1 := p.Alloc()
	p.MarkInFlight(b0)
	p.MarkInFlight(b1)

	idx0 := p.index(b0)
	p.MoveInFlightToCompleted(idx0)

	remaining := p.InFlightIndices()
	if len(remaining) != 1 || remaining[0] != p.index(b1) {
		t.Fatalf("InFlightIndices after move = %v, want only %d", remaining, p.index(b1))
	}

	p.RemoveFromInFlight(p.index(b1))
	if len(p.InFlightIndices()) != 0 {
		t.Fatal("RemoveFromInFlight did not remove the entry")
	}
}
