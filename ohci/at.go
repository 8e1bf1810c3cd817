package ohci

import (
	"sync"

	"gvisor.dev/gvisor/pkg/buffer"

	"github.com/ohci1394/driver/desc"
	"github.com/ohci1394/driver/dmapool"
	"github.com/ohci1394/driver/tl"
)

// ATContext is one asynchronous-transmit context (AT-request or
// AT-response), spec.md §4.3.
type ATContext struct {
	// lock is the per-context lock protecting the descriptor chain and
	// buffer pool (spec.md §5). Acquired only after the unit lock, if
	// both are needed.
	lock sync.Mutex

	unit *Unit
	pool *dmapool.ATPool

	isResponse bool

	ctrlSet   uint32
	ctrlClear uint32
	cmdPtr    uint32

	running bool
}

// maxATPayload bounds one AT send's payload: enough for a max-size S400
// block write/lock (2048 bytes) rounded up.
const maxATPayload = 2048

func newATContext(u *Unit, base, payloadBase uint32, n int, isResponse bool) *ATContext {
	ctx := &ATContext{
		unit:       u,
		pool:       dmapool.NewATPool(n, base, payloadBase, maxATPayload),
		isResponse: isResponse,
	}

	if isResponse {
		ctx.ctrlSet, ctx.ctrlClear, ctx.cmdPtr = regATResponseCtxCtrlSet, regATResponseCtxCtrlClear, regATResponseCmdPtr
	} else {
		ctx.ctrlSet, ctx.ctrlClear, ctx.cmdPtr = regATRequestCtxCtrlSet, regATRequestCtxCtrlClear, regATRequestCmdPtr
	}

	return ctx
}

// Send is spec.md §6's send() operation.
func (ctx *ATContext) Send(generation uint8, header []uint32, payload *buffer.View, packetData any, tlabel uint8, hasTlabel bool, timestamp uint16, hasTimestamp bool) error {
	u := ctx.unit

	u.lock.RLock()
	genMismatch := generation != u.generation
	busResetPending := len(u.signals.selfIDComplete) > 0
	u.lock.RUnlock()

	if genMismatch || busResetPending {
		// Simulate a post-reset flush: answer immediately rather than
		// attempting the send (spec.md §4.3).
		u.tl.Finish(u, packetData, tl.RCodeGeneration)
		return nil
	}

	if len(header) == 0 {
		return ErrBadTcode
	}

	if isBroadcastDestination(header[0]) {
		// Broadcast writes are not a core deliverable (spec.md §1
		// Non-goals, SPEC_FULL.md §5).
		return ErrUnimplemented
	}

	tcode := uint8((header[0] >> 4) & 0xf)

	info, ok := tcodeTable[tcode]
	if !ok {
		return ErrBadTcode
	}

	ctx.lock.Lock()
	buf := ctx.pool.Alloc()
	if buf == nil {
		ctx.lock.Unlock()
		return ErrUnitBusy
	}

	buf.Link = &dmapool.PacketLink{Buf: buf, PacketData: packetData}
	buf.Z = info.z

	if hasTlabel && splicesTlabel(tcode) {
		header[0] = spliceTlabel(header[0], tlabel)
	}

	ctx.buildProgram(buf, info, header, payload, hasTimestamp, timestamp)
	ctx.appendToChain(buf)
	ctx.lock.Unlock()

	return nil
}

// buildProgram lays out the header-immediate descriptor (and the payload
// descriptor, if needed) into buf.Raw, per spec.md §4.3.
func (ctx *ATContext) buildProgram(buf *dmapool.ATBuffer, info tcodeInfo, header []uint32, payload *buffer.View, hasTimestamp bool, timestamp uint16) {
	hdrDesc := desc.Descriptor{
		Control:  desc.KeyImmediate,
		ReqCount: uint16(info.headerLen),
	}
	if ctx.isResponse && hasTimestamp {
		hdrDesc.TimeStamp = timestamp
	}

	immediate := make([]byte, desc.Size)
	for i := 0; i*4 < info.headerLen && i < len(header); i++ {
		immediate[i*4] = byte(header[i] >> 24)
		immediate[i*4+1] = byte(header[i] >> 16)
		immediate[i*4+2] = byte(header[i] >> 8)
		immediate[i*4+3] = byte(header[i])
	}

	if info.needsPayload && payload != nil {
		buf.Payload = payload

		addr, slot := ctx.pool.PayloadSlot(buf)
		n := copy(slot, payload.AsSlice())

		// hdrDesc.Control keeps its CmdOutputMore (zero-value) command
		// bits: the payload descriptor, not this one, carries OUTPUT_LAST.
		payloadDesc := desc.Descriptor{
			Control:     desc.CmdOutputLast | desc.IrqAlways | desc.BranchAlways,
			ReqCount:    uint16(n),
			DataAddress: addr,
		}
		copy(buf.Raw[2*desc.Size:3*desc.Size], payloadDesc.Bytes())
	} else {
		hdrDesc.Control |= desc.CmdOutputLast | desc.IrqAlways | desc.BranchAlways
	}

	copy(buf.Raw[0:desc.Size], hdrDesc.Bytes())
	copy(buf.Raw[desc.Size:2*desc.Size], immediate)
}

// appendToChain implements spec.md §4.3's chaining algorithm. CommandPtr
// may only be written while both RUN and ACTIVE are clear.
func (ctx *ATContext) appendToChain(buf *dmapool.ATBuffer) {
	u := ctx.unit

	tail := ctx.pool.Tail()
	if tail != nil {
		setBranch(tail, buf.PhysAddr, buf.Z)
		ctx.pool.MarkInFlight(tail)
	}

	ctx.pool.SetTail(buf)

	cmdPtr := u.reg.Read32(ctx.cmdPtr)
	if cmdPtr == 0 {
		u.reg.Write32(ctx.cmdPtr, buf.PhysAddr|buf.Z)
		u.reg.Set(ctx.ctrlSet, ctxCtrlRun)
		ctx.running = true
	}

	u.reg.Set(ctx.ctrlSet, ctxCtrlWake)
}

// isBroadcastDestination reports whether header[0]'s destination field
// addresses node number 0x3f, the IEEE 1394 broadcast node ID, regardless
// of bus number.
func isBroadcastDestination(header0 uint32) bool {
	dest := uint16(header0 >> 16)
	return dest&nodeIDNodeNumberMask == nodeIDNodeNumberMask
}

// SetBranch on an ATBuffer packs the control descriptor's branch address
// without re-marshaling the whole 16-byte record.
func setBranch(buf *dmapool.ATBuffer, phys uint32, z uint32) {
	d := desc.Parse(buf.Raw[:desc.Size])
	d.SetBranch(phys, z)
	copy(buf.Raw[0:desc.Size], d.Bytes())
}

// Reconcile drains completed descriptors, translating each into an ack
// callback (spec.md §4.3 "Completion reconciliation").
func (ctx *ATContext) Reconcile() {
	u := ctx.unit

	ctx.lock.Lock()
	defer ctx.lock.Unlock()

	ctx.pool.ScanInFlight(func(b *dmapool.ATBuffer) bool {
		status := lastDescriptorStatus(b)
		return status != 0
	})

	if u.reg.Get(ctx.ctrlSet, ctxCtrlDead, 1) == 1 {
		ctx.recoverDead()
	}

	ctx.pool.DrainCompleted(func(b *dmapool.ATBuffer) {
		ctx.finishBuffer(b)
	})
}

// lastDescriptorStatus reads transferStatus off whichever descriptor is
// last in the buffer's program: the payload descriptor when present
// (Z==3), otherwise the header descriptor.
func lastDescriptorStatus(b *dmapool.ATBuffer) uint16 {
	off := 0
	if b.Z == 3 {
		off = 2 * desc.Size
	}
	return desc.Parse(b.Raw[off : off+desc.Size]).TransferStatus
}

// recoverDead implements the DEAD-context recovery path of spec.md §4.3:
// stamp MISSING_ACK on every in-flight buffer up to and including the
// last one the hardware fetched, restart from the remainder.
func (ctx *ATContext) recoverDead() {
	u := ctx.unit

	hwCmdPtr := u.reg.Read32(ctx.cmdPtr)
	lastFetchedAddr := hwCmdPtr &^ 0xf

	indices := ctx.pool.InFlightIndices()

	for _, i := range indices {
		b := ctx.pool.BufferAt(i)
		stampMissingAck(b)
		ctx.pool.MoveInFlightToCompleted(i)

		if b.PhysAddr == lastFetchedAddr {
			break
		}
	}

	// Whatever remains in flight becomes the new chain head.
	remaining := ctx.pool.InFlightIndices()
	u.reg.Write32(ctx.ctrlClear, 0xffffffff)

	if len(remaining) > 0 {
		head := ctx.pool.BufferAt(remaining[0])
		u.reg.Write32(ctx.cmdPtr, head.PhysAddr|head.Z)
	} else {
		u.reg.Write32(ctx.cmdPtr, 0)
	}

	u.reg.Set(ctx.ctrlSet, ctxCtrlRun)
}

func stampMissingAck(b *dmapool.ATBuffer) {
	off := 0
	if b.Z == 3 {
		off = 2 * desc.Size
	}
	desc.PutTransferStatus(b.Raw[off:off+desc.Size], evCodeMissingAck)
}

// finishBuffer invokes the TL ack callback (unless the buffer has been
// orphaned by cancel()) and releases it, per spec.md §4.3.
func (ctx *ATContext) finishBuffer(b *dmapool.ATBuffer) {
	u := ctx.unit
	status := lastDescriptorStatus(b)

	link := b.Link
	b.Link = nil

	if link == nil || link.PacketData == nil {
		// Orphaned by cancel(): suppress the callback without
		// disturbing the completion accounting.
		return
	}

	ack, rcode, isAck := evToStatus(status)

	if isAck {
		u.tl.Finish(u, link.PacketData, ackToRCode(ack))
		return
	}

	switch rcode {
	case tl.RCodeMissingAck:
		u.Stats.MissingAcks.Add(1)
	case tl.RCodeGeneration:
		u.Stats.FlushedPackets.Add(1)
	}

	u.tl.Finish(u, link.PacketData, rcode)
}

// evToStatus implements spec.md §4.3's event→ack translation table.
func evToStatus(ev uint16) (ack uint8, rcode tl.RCode, isAck bool) {
	switch ev {
	case evCodeMissingAck:
		return 0, tl.RCodeMissingAck, false
	case evCodeFlushed:
		return 0, tl.RCodeGeneration, false
	case evCodeTimeout:
		return 0, tl.RCodeCancelled, false
	default:
		if ev >= evCodeAckBase && ev <= evCodeAckMax {
			return uint8(ev - evCodeAckBase), 0, true
		}
		return 0, tl.RCodeSendError, false
	}
}

// ackToRCode maps a bare ack code that is not itself a failure into the
// nominal "complete" rcode family; ACK_COMPLETE/ACK_PENDING both indicate
// the packet reached the wire, leaving split-transaction completion to
// the TL.
func ackToRCode(ack uint8) tl.RCode {
	switch ack {
	case tl.AckComplete, tl.AckPending:
		return tl.RCodeComplete
	case tl.AckDataError:
		return tl.RCodeDataError
	case tl.AckTypeError:
		return tl.RCodeTypeError
	default:
		return tl.RCodeBusyRetryLimit
	}
}

// Cancel implements spec.md §6's cancel(): null the bidirectional link
// under the context lock so the completion path suppresses the callback.
// Every in-flight buffer and the chain's tail buffer are checked.
func (ctx *ATContext) Cancel(packetData any) {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()

	orphan := func(b *dmapool.ATBuffer) {
		if b != nil && b.Link != nil && b.Link.PacketData == packetData {
			b.Link.PacketData = nil
		}
	}
	for _, i := range ctx.pool.InFlightIndices() {
		orphan(ctx.pool.BufferAt(i))
	}
	orphan(ctx.pool.Tail())
}
