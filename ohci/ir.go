package ohci

import (
	"sync"

	"github.com/ohci1394/driver/dmapool"
	"github.com/ohci1394/driver/tl"
)

// IRCallback delivers one isochronous-receive block: header and payload
// slices valid only for the duration of the call, plus the completion
// event code (spec.md §4.7). An empty header with a non-"clean" event
// signals the context stopped.
type IRCallback func(header, payload []byte, event uint16)

// IRContext is one isochronous-receive context, allocated by index out of
// Config.MaxIsoReceiveCtx slots (spec.md §4.7).
type IRContext struct {
	lock sync.Mutex

	unit  *Unit
	index int
	ring  *dmapool.IRRing

	dropEmpty bool
	callback  IRCallback

	// wake is this context's single-slot notification channel, which the
	// IRQ dispatcher signals directly by index (design note "IRQ→task
	// dispatch"): one slot per worker, never shared, so a signal for
	// context 3 can never be stolen by context 5's drain worker.
	wake chan struct{}

	// done is closed by ReleaseIR to stop this context's drain worker
	// without waiting for the whole unit to tear down via Term.
	done chan struct{}

	stopped bool
}

func newIRContext(u *Unit, index int, ring *dmapool.IRRing, dropEmpty bool, cb IRCallback) *IRContext {
	return &IRContext{unit: u, index: index, ring: ring, dropEmpty: dropEmpty, callback: cb, wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (ctx *IRContext) ctrlSet() uint32   { return regIRCtxCtrlSetBase + uint32(ctx.index)*irCtxStride }
func (ctx *IRContext) ctrlClear() uint32 { return regIRCtxCtrlClearBase + uint32(ctx.index)*irCtxStride }
func (ctx *IRContext) cmdPtr() uint32    { return regIRCmdPtrBase + uint32(ctx.index)*irCtxStride }

// Start programs CommandPtr with Z=2 (two descriptors per block) and sets
// RUN.
func (ctx *IRContext) Start() {
	u := ctx.unit
	u.reg.Write32(ctx.ctrlClear(), 0xffffffff)
	u.reg.Write32(ctx.cmdPtr(), ctx.ring.Blocks[0].HeaderAddr|2)
	u.reg.Set(ctx.ctrlSet(), ctxCtrlRun)
}

// Drain implements spec.md §4.7's drain loop.
func (ctx *IRContext) Drain() {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()

	if ctx.stopped {
		return
	}

	r := ctx.ring
	n := len(r.Blocks)
	start := r.FirstDMABuffer

	advanced := 0
	i := start

	for {
		b := &r.Blocks[i]
		status := b.Header.TransferStatus | b.Payload.TransferStatus

		if status == 0 {
			break
		}

		event := status & 0x1f
		active := ctx.unit.reg.Get(ctx.ctrlSet(), ctxCtrlActive, 1) == 1

		if (event != evCodeAckBase+tl.AckComplete && event != evCodeLongPacket) || !active {
			ctx.callback(nil, nil, status)
			ctx.stopped = true
			ctx.unit.stopContext(ctx.ctrlClear(), ctx.ctrlSet())
			return
		}

		headerLen := int(b.Header.ReqCount) - int(b.Header.ResCount)
		payloadLen := int(b.Payload.ReqCount) - int(b.Payload.ResCount)

		header := b.Page[:headerLen]
		payload := b.Page[b.PayloadPad : b.PayloadPad+payloadLen]

		b.Header.ResCount = b.Header.ReqCount
		b.Header.TransferStatus = 0
		b.Payload.ResCount = b.Payload.ReqCount
		b.Payload.TransferStatus = 0

		if payloadLen > 0 || !ctx.dropEmpty {
			ctx.callback(header, payload, status)
		}

		advanced++
		i = (i + 1) % n

		if i == start {
			// Walked the whole ring without hitting an empty
			// descriptor: exhausted, the caller's reset path restarts
			// it.
			break
		}
	}

	if advanced > 0 {
		oldLast := (start + n - 1) % n
		newLast := (i + n - 1) % n
		r.SwapRing(oldLast, newLast)
		r.FirstDMABuffer = i
		ctx.unit.reg.Set(ctx.ctrlSet(), ctxCtrlWake)
	}
}
