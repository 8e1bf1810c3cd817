package ohci

import (
	"encoding/binary"
	"sync"

	"gvisor.dev/gvisor/pkg/buffer"

	"github.com/ohci1394/driver/dmapool"
	"github.com/ohci1394/driver/tl"
)

// ARContext is one asynchronous-receive context (AR-request or
// AR-response), spec.md §4.4.
type ARContext struct {
	lock sync.Mutex

	unit *Unit
	ring *dmapool.ARRing

	isResponse bool

	ctrlSet   uint32
	ctrlClear uint32
	cmdPtr    uint32
}

func newARContext(u *Unit, ring *dmapool.ARRing, isResponse bool) *ARContext {
	ctx := &ARContext{unit: u, ring: ring, isResponse: isResponse}

	if isResponse {
		ctx.ctrlSet, ctx.ctrlClear, ctx.cmdPtr = regARResponseCtxCtrlSet, regARResponseCtxCtrlClear, regARResponseCmdPtr
	} else {
		ctx.ctrlSet, ctx.ctrlClear, ctx.cmdPtr = regARRequestCtxCtrlSet, regARRequestCtxCtrlClear, regARRequestCmdPtr
	}

	return ctx
}

// Start programs CommandPtr with Z=1 and sets RUN, per spec.md §4.4.
func (ctx *ARContext) Start() {
	u := ctx.unit
	u.reg.Write32(ctx.ctrlClear, 0xffffffff)
	u.reg.Write32(ctx.cmdPtr, ctx.ring.FirstDescAddr()|1)
	u.reg.Set(ctx.ctrlSet, ctxCtrlRun)
}

// Drain implements spec.md §4.4's packet-drain loop: repeatedly consume
// whatever has landed in the ring until the head descriptor reports no
// further bytes available.
func (ctx *ARContext) Drain() {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()

	for ctx.drainOnce() {
	}
}

// drainOnce consumes one step of the ring: either the remainder of the
// current page, or — once the current page is fully spent — the
// successor page (stitching the two together first if a packet straddles
// the boundary, since every AR page is an independently allocated DMA
// region in this pool). Returns whether it made progress.
func (ctx *ARContext) drainOnce() bool {
	r := ctx.ring
	page := &r.Pages[r.FirstBuffer]

	if page.Desc.ResCount > 0 {
		available := dmapool.ARPageSize - int(page.Desc.ResCount) - r.FirstQuadlet
		if available <= 0 {
			return false
		}

		consumed := ctx.parseStream(page.Data[r.FirstQuadlet : r.FirstQuadlet+available])
		r.FirstQuadlet += consumed
		return consumed > 0
	}

	freedIdx := r.FirstBuffer
	tail := append([]byte(nil), page.Data[r.FirstQuadlet:dmapool.ARPageSize]...)

	r.Advance()

	next := &r.Pages[r.FirstBuffer]
	nextAvail := dmapool.ARPageSize - int(next.Desc.ResCount)
	if nextAvail < 0 {
		nextAvail = 0
	}

	switch {
	case len(tail) > 0 && nextAvail > 0:
		staging := append(tail, next.Data[:nextAvail]...)
		consumed := ctx.parseStream(staging)
		r.FirstQuadlet = consumed - len(tail)
		if r.FirstQuadlet < 0 {
			r.FirstQuadlet = 0
		}
	case nextAvail > 0:
		r.FirstQuadlet = ctx.parseStream(next.Data[:nextAvail])
	}

	r.Relink(freedIdx)
	ctx.unit.reg.Set(ctx.ctrlSet, ctxCtrlWake)

	return true
}

// parseStream parses as many complete packets as fit in data, dispatching
// each, and returns how many leading bytes it consumed (always a multiple
// of 4; a trailing partial packet is left for the next call).
func (ctx *ARContext) parseStream(data []byte) int {
	off := 0

	for off+12 <= len(data) {
		h0 := binary.BigEndian.Uint32(data[off:])
		tcode := uint8((h0 >> 4) & 0xf)

		info, ok := tcodeTable[tcode]
		if !ok {
			// Can't size this record; nothing to resynchronize on, so
			// stop rather than misparse the rest of the stream.
			break
		}

		if off+info.headerLen > len(data) {
			break
		}

		header := make([]uint32, info.headerLen/4)
		for i := range header {
			header[i] = binary.BigEndian.Uint32(data[off+i*4:])
		}

		payloadLen := 0
		if info.needsPayload {
			payloadLen = int(header[len(header)-1] >> 16)
		}
		padded := (payloadLen + 3) &^ 3

		trailerOff := off + info.headerLen + padded
		if trailerOff+4 > len(data) {
			break
		}

		payload := data[off+info.headerLen : off+info.headerLen+payloadLen]
		trailer := binary.BigEndian.Uint32(data[trailerOff:])

		ctx.dispatch(header, payload, trailer)

		off = trailerOff + 4
	}

	return off
}

// dispatch implements spec.md §4.4's "Parse" step: classify the trailer's
// event, apply the generation-drop check, and split by direction to the
// TL.
func (ctx *ARContext) dispatch(header []uint32, payload []byte, trailer uint32) {
	u := ctx.unit

	tcode := uint8((header[0] >> 4) & 0xf)
	event := uint16((trailer >> 16) & 0x1f)
	speed := uint8((trailer >> 21) & 0x7)
	timestamp := uint16(trailer)

	if event == evCodeBusReset {
		// A packet that crossed the reset boundary; the generation it
		// would be tagged with is already stale, so there is nothing
		// else useful in this trailer.
		return
	}

	generation := u.Generation()

	pkt := &tl.Packet{
		TCode:       tcode,
		Destination: uint16(header[0] >> 16),
		HeaderLen:   len(header) * 4,
		Timestamp:   timestamp,
		Speed:       speed,
		Generation:  generation,
	}
	copy(pkt.Header[:], header)

	if len(header) > 1 {
		pkt.Source = uint16(header[1] >> 16)
	}

	if len(payload) > 0 {
		pkt.Payload = buffer.NewViewWithData(append([]byte(nil), payload...))
	}

	if tcode == tl.TCodePHY {
		u.tl.HandleRequest(u, pkt, generation)
		return
	}

	if generation != u.Generation() {
		// Raced a bus-reset between capture and handoff.
		return
	}

	if ctx.isResponse {
		u.tl.HandleResponse(u, pkt)
		return
	}

	if offset, ok := localOffset(header); ok && offset >= CSRBaseLo && offset <= CSRBaseHi {
		tlabel := uint8((header[0] >> 10) & 0x3f)
		ctx.respondLocal(pkt, tlabel, tcode, offset)
		return
	}

	u.tl.HandleRequest(u, pkt, generation)
}

// localOffset reassembles the 48-bit destination offset carried by
// header[1] (offset_high, low 16 bits) and header[2] (offset_low), the
// addressing shape every tcode but PHY and STREAM_DATA uses.
func localOffset(header []uint32) (uint64, bool) {
	if len(header) < 3 {
		return 0, false
	}
	return uint64(header[1]&0xffff)<<32 | uint64(header[2]), true
}

// responseTimestampOffset is spec.md §4.6's fixed response deadline: 4000
// cycles past the request's timestamp.
const responseTimestampOffset = 4000

// respondLocal answers a request addressed to this node's own CSR/Config
// ROM space (spec.md §4.6) directly out of the AR-request context,
// without involving the TL: it resolves the rcode (and response data)
// against the unit's ROM/CSR state, then transmits the response itself
// through the AT-response context.
func (ctx *ARContext) respondLocal(pkt *tl.Packet, tlabel uint8, tcode uint8, offset uint64) {
	u := ctx.unit

	var (
		rcode tl.RCode
		data  uint32
	)
	if tcode == tl.TCodeLockReq {
		var compare, write uint32
		if pkt.Payload != nil {
			raw := pkt.Payload.AsSlice()
			if len(raw) >= 8 {
				compare = binary.BigEndian.Uint32(raw[0:4])
				write = binary.BigEndian.Uint32(raw[4:8])
			}
		}
		rcode, data = u.HandleLocalLock(offset-CSRBaseLo, compare, write)
	} else {
		rcode, data = u.HandleLocalRequest(tcode, offset)
	}

	respTCode, header, payload := buildLocalResponse(tcode, pkt.Source, tlabel, rcode, data)
	timestamp := ComputeResponseTimestamp(pkt.Timestamp, responseTimestampOffset)

	if err := u.atResp.Send(u.Generation(), header, payload, nil, tlabel, false, timestamp, true); err != nil {
		u.log.Printf("ohci: local CSR/ROM response (tcode %#x): %v", respTCode, err)
	}
}

// buildLocalResponse assembles the response header (and, for a block
// read, its single-quadlet payload) for a local CSR/ROM answer, mirroring
// the requester as destination and carrying its tlabel back unchanged.
func buildLocalResponse(reqTCode uint8, destination uint16, tlabel uint8, rcode tl.RCode, data uint32) (uint8, []uint32, *buffer.View) {
	var respTCode uint8
	switch reqTCode {
	case tl.TCodeReadQuadletReq:
		respTCode = tl.TCodeReadQuadletResp
	case tl.TCodeReadBlockReq:
		respTCode = tl.TCodeReadBlockResp
	case tl.TCodeLockReq:
		respTCode = tl.TCodeLockResp
	default:
		respTCode = tl.TCodeWriteResponse
	}

	header0 := uint32(destination)<<16 | uint32(tlabel&0x3f)<<10 | uint32(respTCode)<<4
	header1 := uint32(rcode) << 12

	switch respTCode {
	case tl.TCodeReadQuadletResp:
		return respTCode, []uint32{header0, header1, 0, data}, nil
	case tl.TCodeReadBlockResp, tl.TCodeLockResp:
		payload := make([]byte, 4)
		binary.BigEndian.PutUint32(payload, data)
		return respTCode, []uint32{header0, header1, 0, 4 << 16}, buffer.NewViewWithData(payload)
	default:
		return respTCode, []uint32{header0, header1, 0}, nil
	}
}
