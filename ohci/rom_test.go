package ohci

import (
	"encoding/binary"
	"testing"
)

func TestProgramROMLockedCopiesQuadletsIntoDMABufferAndProgramsMap(t *testing.T) {
	u := newTestUnit()
	u.romData = make([]byte, maxConfigROMQuadlets*4)
	u.romAddr = 0x20000

	rom := []uint32{0x04012345, 0xdeadbeef, 0xc0ffee00}
	u.rom.current = rom

	u.lock.Lock()
	u.programROMLocked()
	u.lock.Unlock()

	if got := u.reg.Read32(regConfigROMhdr); got != rom[0] {
		t.Errorf("ConfigROMhdr = %#x, want %#x", got, rom[0])
	}
	if got := u.reg.Read32(regConfigROMmap); got != u.romAddr {
		t.Errorf("ConfigROMmap = %#x, want %#x", got, u.romAddr)
	}
	for i, want := range rom {
		got := binary.LittleEndian.Uint32(u.romData[i*4:])
		if got != want {
			t.Errorf("romData[%d] = %#x, want %#x", i, got, want)
		}
	}
}

func TestProgramROMLockedZeroesStaleQuadletsOnShrink(t *testing.T) {
	u := newTestUnit()
	u.romData = make([]byte, maxConfigROMQuadlets*4)
	u.romAddr = 0x20000

	u.rom.current = []uint32{0x1, 0x2, 0x3}
	u.lock.Lock()
	u.programROMLocked()
	u.lock.Unlock()

	u.rom.current = []uint32{0x4}
	u.lock.Lock()
	u.programROMLocked()
	u.lock.Unlock()

	if got := binary.LittleEndian.Uint32(u.romData[4:]); got != 0 {
		t.Errorf("romData[1] = %#x, want 0 after shrinking the ROM image", got)
	}
}
