package dmapool

import (
	"gvisor.dev/gvisor/pkg/buffer"

	"github.com/ohci1394/driver/desc"
)

// PacketLink is the bidirectional, nullable cell shared by an ATBuffer and
// its owning upper-layer packet (design note "bidirectional buffer/packet
// link"). Cancel nulls PacketData under the owning AT context's lock to
// denote "orphaned"; the completion path checks PacketData and suppresses
// the ack callback when it finds nil.
type PacketLink struct {
	Buf        *ATBuffer
	PacketData any
}

// ATBuffer groups the three DMA-visible 16-byte slots of one AT send
// (header descriptor, its immediate header quadlets, payload pointer)
// with the back-pointer to the packet that owns them.
//
//   Raw[0:16]  header control descriptor
//   Raw[16:32] header immediate-data quadlets (up to 16 bytes / 4 quadlets)
//   Raw[32:48] payload-pointer descriptor (present only when Z == 3)
type ATBuffer struct {
	Raw      [3 * desc.Size]byte
	PhysAddr uint32
	Z        uint32

	Payload *buffer.View

	Link *PacketLink

	node
}

// ATPool is the fixed pool of AT buffers for one AT context, sized
// AT_DMA_BUFFER_SIZE / sizeof(buffer) at init as spec.md §3 requires.
type ATPool struct {
	bufs []ATBuffer

	free      *ring
	inflight  *ring
	completed *ring

	// tail is the index of the buffer currently serving as the live DMA
	// chain's terminator, or -1 when the context is idle. It is pinned:
	// DrainCompleted never returns it to the free list while it holds this
	// role, and SetTail frees it once it loses the role.
	tail int

	// tailDrained records that DrainCompleted withheld the pinned tail
	// from the free list.
	tailDrained bool

	// payload is one contiguous DMA region sized n*maxPayload, sliced
	// per buffer index exactly as the teacher's bufferDescriptorRing.init
	// slices a single dma.Reserve allocation per descriptor (one
	// allocation avoids excessive DMA region fragmentation).
	payload     []byte
	payloadBase uint32
	maxPayload  int
}

// NewATPool allocates n buffers and wires their physical addresses from
// base (a DMA-addressable region of n*3*desc.Size bytes, 16-byte aligned),
// plus a per-buffer payload slot of maxPayload bytes backed by
// payloadBase.
func NewATPool(n int, base uint32, payloadBase uint32, maxPayload int) *ATPool {
	p := &ATPool{
		bufs:        make([]ATBuffer, n),
		free:        newRing(n),
		inflight:    newRing(n),
		completed:   newRing(n),
		tail:        -1,
		payload:     make([]byte, n*maxPayload),
		payloadBase: payloadBase,
		maxPayload:  maxPayload,
	}

	for i := range p.bufs {
		p.bufs[i].PhysAddr = base + uint32(i*3*desc.Size)
		p.free.pushBack(i)
	}

	return p
}

// PayloadSlot returns the physical address and backing slice of b's
// payload slot.
func (p *ATPool) PayloadSlot(b *ATBuffer) (addr uint32, slice []byte) {
	i := p.index(b)
	off := i * p.maxPayload
	return p.payloadBase + uint32(off), p.payload[off : off+p.maxPayload]
}

// Alloc removes and returns a free buffer, or nil if the pool is
// exhausted (spec.md §4.3: callers surface ErrUnitBusy in that case).
func (p *ATPool) Alloc() *ATBuffer {
	i := p.free.popFront()
	if i == -1 {
		return nil
	}
	return &p.bufs[i]
}

func (p *ATPool) index(b *ATBuffer) int {
	return int((b.PhysAddr - p.bufs[0].PhysAddr) / (3 * desc.Size))
}

// MarkInFlight splices b onto the in-flight list; it is now owned by the
// DMA engine.
func (p *ATPool) MarkInFlight(b *ATBuffer) {
	p.inflight.pushBack(p.index(b))
}

// SetTail records b as the chain's terminator, pinning it against release.
// A previous tail that DrainCompleted withheld goes back to the free list.
func (p *ATPool) SetTail(b *ATBuffer) {
	if p.tailDrained {
		p.free.pushBack(p.tail)
		p.tailDrained = false
	}
	if b == nil {
		p.tail = -1
		return
	}
	p.tail = p.index(b)
}

// Tail returns the current chain terminator, or nil if the context is
// idle.
func (p *ATPool) Tail() *ATBuffer {
	if p.tail == -1 {
		return nil
	}
	return &p.bufs[p.tail]
}

// ScanInFlight walks the in-flight list head-first, invoking fn on each
// buffer. fn returns true to move that buffer to the completed list, or
// false to leave it and stop the scan (the remaining in-flight entries
// were all submitted after it).
func (p *ATPool) ScanInFlight(fn func(b *ATBuffer) bool) {
	var done []int

	p.inflight.forEach(func(i int) bool {
		if !fn(&p.bufs[i]) {
			return false
		}
		done = append(done, i)
		return true
	})

	for _, i := range done {
		p.inflight.remove(i)
		p.completed.pushBack(i)
	}
}

// DrainCompleted removes every buffer from the completed list, invoking
// fn on each before returning it to the free list (unless it is pinned as
// the current tail).
func (p *ATPool) DrainCompleted(fn func(b *ATBuffer)) {
	for {
		i := p.completed.popFront()
		if i == -1 {
			return
		}

		b := &p.bufs[i]
		fn(b)

		if i != p.tail {
			p.free.pushBack(i)
		} else {
			p.tailDrained = true
		}
	}
}

// InFlightIndices returns the in-flight list in head-first order, used by
// the DEAD-context recovery path which must walk it against the
// hardware's reported CommandPtr.
func (p *ATPool) InFlightIndices() []int {
	var out []int
	p.inflight.forEach(func(i int) bool {
		out = append(out, i)
		return true
	})
	return out
}

// MoveInFlightToCompleted moves a specific in-flight buffer (by index, as
// returned by InFlightIndices) to the completed list. Used by DEAD
// recovery, which needs to stop partway through the in-flight list rather
// than scan to a hardware-status-derived stopping point.
func (p *ATPool) MoveInFlightToCompleted(i int) {
	p.inflight.remove(i)
	p.completed.pushBack(i)
}

// RemoveFromInFlight splices i out of the in-flight list without moving
// it anywhere, used when the remaining buffer becomes the new chain head
// during DEAD recovery.
func (p *ATPool) RemoveFromInFlight(i int) {
	p.inflight.remove(i)
}

func (p *ATPool) BufferAt(i int) *ATBuffer {
	return &p.bufs[i]
}
