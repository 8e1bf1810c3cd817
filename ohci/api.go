package ohci

import "gvisor.dev/gvisor/pkg/buffer"

// ContextKind selects which of the two AT contexts a send/cancel targets
// (spec.md §6's send/cancel both take "ctx" as their first argument).
type ContextKind int

const (
	// ContextATRequest submits an outbound request (read/write/lock
	// request, or a PHY packet).
	ContextATRequest ContextKind = iota
	// ContextATResponse submits an outbound response to a request this
	// node received.
	ContextATResponse
)

func (u *Unit) atContext(kind ContextKind) *ATContext {
	if kind == ContextATResponse {
		return u.atResp
	}
	return u.atReq
}

// Send is spec.md §6's send() operation: submit header/payload for
// transmission on the chosen AT context under generation, optionally
// splicing tlabel into the header and timestamp into the response
// descriptor. packetData is an opaque handle the TL gets back unchanged
// through Finish or a cancel().
func (u *Unit) Send(kind ContextKind, generation uint8, header []uint32, payload *buffer.View, packetData any, tlabel uint8, hasTlabel bool, timestamp uint16, hasTimestamp bool) error {
	return u.atContext(kind).Send(generation, header, payload, packetData, tlabel, hasTlabel, timestamp, hasTimestamp)
}

// Cancel is spec.md §6's cancel(): null packetData's link on whichever AT
// context still holds it, suppressing its eventual ack callback.
func (u *Unit) Cancel(packetData any) {
	u.atReq.Cancel(packetData)
	u.atResp.Cancel(packetData)
}

// RaiseBusReset is spec.md §6's raise_bus_reset(short?): short issues PHY
// register 5's IBR bit; a long (full) reset issues register 1's IBR
// alongside a forced gap-count/PHY reinitialization by also setting RHB.
// Returns whether the PHY write handshake completed.
func (u *Unit) RaiseBusReset(short bool) bool {
	var err error
	if short {
		err = u.raiseShortBusReset()
	} else {
		err = u.raiseLongBusReset()
	}
	return err == nil
}
