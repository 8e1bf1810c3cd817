package regio

import (
	"testing"
	"time"
)

func TestReadWrite32LittleEndian(t *testing.T) {
	w := Wrap(make([]byte, 16), false)

	w.Write32(4, 0x01020304)
	if got := w.Read32(4); got != 0x01020304 {
		t.Errorf("Read32 = %#x, want %#x", got, 0x01020304)
	}
}

func TestReadWrite32BigEndianHostSwapsBusBytes(t *testing.T) {
	le := Wrap(make([]byte, 16), false)
	be := Wrap(make([]byte, 16), true)

	le.Write32(0, 0xdeadbeef)
	be.Write32(0, 0xdeadbeef)

	if got := le.Read32(0); got != 0xdeadbeef {
		t.Fatalf("little-endian window Read32 = %#x", got)
	}
	if got := be.Read32(0); got != 0xdeadbeef {
		t.Fatalf("big-endian window Read32 = %#x", got)
	}

	// The little-endian window stores the value least significant byte
	// first in the raw buffer.
	leBuf := make([]byte, 16)
	copy(leBuf, le.buf)
	if leBuf[0] != 0xef || leBuf[3] != 0xde {
		t.Errorf("little-endian window did not write bus-endian bytes: %x", leBuf[:4])
	}
}

func TestBigEndianWindowActuallySwapsRawBytes(t *testing.T) {
	le := Wrap(make([]byte, 4), false)
	be := Wrap(make([]byte, 4), true)

	le.Write32(0, 0x01020304)
	be.Write32(0, 0x01020304)

	if le.buf[0] == be.buf[0] && le.buf[3] == be.buf[3] {
		t.Errorf("bigEndian flag had no effect on raw byte layout: le=%x be=%x", le.buf, be.buf)
	}
	if be.buf[0] != 0x01 || be.buf[3] != 0x04 {
		t.Errorf("big-endian window did not write MSB-first bytes: %x", be.buf)
	}
}

func TestGetSetField(t *testing.T) {
	w := Wrap(make([]byte, 4), false)

	w.SetField(0, 8, 0xff, 0xab)
	if got := w.Get(0, 8, 0xff); got != 0xab {
		t.Errorf("Get after SetField = %#x, want 0xab", got)
	}

	w.Set(0, 0)
	if w.Get(0, 0, 1) != 1 {
		t.Error("Set did not set bit 0")
	}

	w.Clear(0, 0)
	if w.Get(0, 0, 1) != 0 {
		t.Error("Clear did not clear bit 0")
	}

	w.SetTo(0, 1, true)
	if w.Get(0, 1, 1) != 1 {
		t.Error("SetTo(true) did not set bit 1")
	}
	w.SetTo(0, 1, false)
	if w.Get(0, 1, 1) != 0 {
		t.Error("SetTo(false) did not clear bit 1")
	}
}

func TestWaitSucceedsOnceConditionHolds(t *testing.T) {
	w := Wrap(make([]byte, 4), false)
	w.Set(0, 3)

	if !w.Wait(0, 3, 1, 1, time.Microsecond, 1) {
		t.Error("Wait returned false though the field already matched")
	}
}

func TestWaitTimesOut(t *testing.T) {
	w := Wrap(make([]byte, 4), false)

	if w.Wait(0, 3, 1, 1, time.Microsecond, 3) {
		t.Error("Wait returned true though the field never matched")
	}
}
