// Package regio implements the OHCI-1394 register gateway: byte-swapped
// access to the controller's memory-mapped register window, bit-field
// helpers, and bounded polling of a register field.
//
// The controller presents its registers little-endian on the host bus. On
// a big-endian host every access is byte-swapped; the swap is performed
// explicitly with encoding/binary rather than through a typed pointer, so
// host endianness never leaks into the bit-field helpers above it.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.
package regio

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Window is a mapped register window of fixed size. It adds no
// synchronization of its own; callers needing read-modify-write atomicity
// across several register accesses must hold their own lock (the
// unit-wide or per-context lock, per the concurrency model).
type Window struct {
	buf       []byte
	bigEndian bool

	// closer releases the underlying mapping, nil for windows built over
	// a plain byte slice (tests, simulators).
	closer func() error
}

// Map mmaps size bytes at the given physical offset of fd (typically a
// /dev/mem-style file descriptor, or a PCI BAR resource file) and returns
// a Window over it. bigEndian selects whether accesses are byte-swapped
// to compensate for a big-endian host observing a little-endian bus.
func Map(fd int, base int64, size int, bigEndian bool) (*Window, error) {
	buf, err := unix.Mmap(fd, base, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("regio: mmap: %w", err)
	}

	w := &Window{
		buf:       buf,
		bigEndian: bigEndian,
		closer:    func() error { return unix.Munmap(buf) },
	}

	return w, nil
}

// Wrap builds a Window directly over an existing byte slice, with no
// backing mmap. Used by tests and by software simulation of the
// controller.
func Wrap(buf []byte, bigEndian bool) *Window {
	return &Window{buf: buf, bigEndian: bigEndian}
}

// Close releases the mapping, if any.
func (w *Window) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer()
}

func (w *Window) order() binary.ByteOrder {
	if w.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Read32 reads the 32-bit bus-endian value at offset, swapping on a
// big-endian host.
func (w *Window) Read32(offset uint32) uint32 {
	return w.order().Uint32(w.buf[offset : offset+4])
}

// Write32 writes a 32-bit value to offset in the window's byte order:
// most significant byte first when bigEndian is set, least significant
// byte first otherwise.
func (w *Window) Write32(offset uint32, val uint32) {
	w.order().PutUint32(w.buf[offset:offset+4], val)
}

// Get returns the mask-wide field at bit position pos.
func (w *Window) Get(offset uint32, pos int, mask uint32) uint32 {
	return (w.Read32(offset) >> uint(pos)) & mask
}

// SetField writes val into the mask-wide field at bit position pos,
// leaving the rest of the register untouched.
func (w *Window) SetField(offset uint32, pos int, mask uint32, val uint32) {
	cur := w.Read32(offset)
	cur = (cur &^ (mask << uint(pos))) | ((val & mask) << uint(pos))
	w.Write32(offset, cur)
}

// Set sets a single bit.
func (w *Window) Set(offset uint32, bit int) {
	w.Write32(offset, w.Read32(offset)|(1<<uint(bit)))
}

// Clear clears a single bit.
func (w *Window) Clear(offset uint32, bit int) {
	w.Write32(offset, w.Read32(offset)&^(1<<uint(bit)))
}

// SetTo sets or clears a single bit depending on val.
func (w *Window) SetTo(offset uint32, bit int, val bool) {
	if val {
		w.Set(offset, bit)
	} else {
		w.Clear(offset, bit)
	}
}

// Wait polls offset, sleeping interval between reads, until the mask-wide
// field at pos equals val or the deadline (interval*iterations) elapses.
// It returns false on timeout. Each sleep is performed with
// unix.Nanosleep so the poll yields the OS scheduler rather than
// busy-spinning.
func (w *Window) Wait(offset uint32, pos int, mask uint32, val uint32, interval time.Duration, iterations int) bool {
	for i := 0; i < iterations; i++ {
		if w.Get(offset, pos, mask) == val {
			return true
		}
		sleep(interval)
	}
	return w.Get(offset, pos, mask) == val
}

func sleep(d time.Duration) {
	ts := unix.NsecToTimespec(d.Nanoseconds())
	for {
		rem := &unix.Timespec{}
		if err := unix.Nanosleep(&ts, rem); err == nil {
			return
		}
		ts = *rem
	}
}
