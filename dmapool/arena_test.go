package dmapool

import "testing"

func TestArenaAllocSequentialAndAligned(t *testing.T) {
	a := NewArena(0x1000, 0x100)

	addr1 := a.Alloc(5, 16)
	if addr1 != 0x1000 {
		t.Fatalf("first alloc = %#x, want %#x", addr1, 0x1000)
	}

	addr2 := a.Alloc(4, 16)
	if addr2 != 0x1010 {
		t.Fatalf("second alloc = %#x, want %#x (16-byte aligned after a 5-byte alloc)", addr2, 0x1010)
	}
}

func TestArenaAllocDefaultQuadletAlignment(t *testing.T) {
	a := NewArena(0, 0x100)

	a.Alloc(1, 0)
	addr := a.Alloc(4, 0)

	if addr%4 != 0 {
		t.Errorf("alloc with align=0 not quadlet-aligned: %#x", addr)
	}
}

func TestArenaAllocPanicsWhenExhausted(t *testing.T) {
	a := NewArena(0, 16)

	defer func() {
		if recover() == nil {
			t.Fatal("Alloc did not panic when the arena was exhausted")
		}
	}()

	a.Alloc(32, 4)
}
