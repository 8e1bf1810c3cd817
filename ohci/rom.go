package ohci

import "crypto/rand"

// romState tracks the current Config-ROM image and any queued next-ROM
// update (spec.md §4.5 step 4, §6 "set_rom").
type romState struct {
	current []uint32
	pending []uint32
	hasPending bool

	// free is invoked once the hardware's shadow has loaded the
	// previously-current ROM and it can be returned to the caller
	// (spec.md §6 "Persistent state").
	free func([]uint32)
}

// SetROM queues a new Config-ROM image to be adopted at the next
// bus-reset (spec.md §6 "set_rom"). Ownership of data transfers to the
// Unit; it is handed back through the free hook once superseded.
func (u *Unit) SetROM(data []uint32, free func([]uint32)) error {
	u.lock.Lock()
	defer u.lock.Unlock()

	if u.rom.hasPending {
		return ErrROMUpdatePending
	}

	u.rom.pending = data
	u.rom.hasPending = true
	u.rom.free = free

	return nil
}

// commitROM adopts the pending ROM (called with the unit lock held
// exclusively, from the bus-reset worker). Returns the previous ROM image
// so the caller can invoke the free hook after the hardware's shadow has
// loaded the new one.
func (u *Unit) commitROM() (previous []uint32, freeFn func([]uint32), committed bool) {
	if !u.rom.hasPending {
		return nil, nil, false
	}

	previous = u.rom.current
	freeFn = u.rom.free

	u.rom.current = u.rom.pending
	u.rom.pending = nil
	u.rom.hasPending = false
	u.rom.free = nil

	return previous, freeFn, true
}

// readROM answers a local Config-ROM read (spec.md §4.6). offset is
// relative to ConfigROMBase.
func (u *Unit) readROM(offsetQuadlets int) (uint32, bool) {
	u.lock.RLock()
	defer u.lock.RUnlock()

	if offsetQuadlets < 0 || offsetQuadlets >= len(u.rom.current) {
		return 0, false
	}
	return u.rom.current[offsetQuadlets], true
}

func randomGUID() uint64 {
	var b [8]byte
	rand.Read(b[:])
	// flag as locally administered, matching the teacher's MAC
	// generation convention (enet.Init).
	b[0] &= 0xfe
	b[0] |= 0x02

	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
