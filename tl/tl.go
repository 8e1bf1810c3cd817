// Package tl defines the boundary contract between the OHCI-1394 DMA core
// and the external transaction/topology layer (spec.md §6): the packet
// shape crossing that boundary, the ack/rcode/tcode vocabulary both sides
// share, and the inward callback interface the core invokes. No
// transaction matching, tlabel allocation, or topology logic lives here —
// per spec.md §1 those remain external collaborators.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.
package tl

import "gvisor.dev/gvisor/pkg/buffer"

// TCode values (IEEE 1394 table 6.19 / OHCI 1.1 §3).
const (
	TCodeWriteQuadletReq    = 0x0
	TCodeWriteBlockReq      = 0x1
	TCodeWriteResponse      = 0x2
	TCodeReadQuadletReq     = 0x4
	TCodeReadBlockReq       = 0x5
	TCodeReadQuadletResp    = 0x6
	TCodeReadBlockResp      = 0x7
	TCodeCycleStart         = 0x8
	TCodeLockReq            = 0x9
	TCodeStreamData         = 0xa
	TCodeLockResp           = 0xb
	TCodePHY                = 0xe
)

// Ack codes (OHCI 1.1 §3, table 3-4 evCode 0x10..0x1e map here as
// evCode-0x10).
const (
	AckComplete  = 0x1
	AckPending   = 0x2
	AckBusyX     = 0x4
	AckBusyA     = 0x5
	AckBusyB     = 0x6
	AckDataError = 0xd
	AckTypeError = 0xe
)

// RCode is the response/completion code delivered to the TL via an ack
// callback or a WRITE_RESPONSE/READ_*_RESPONSE packet.
type RCode uint8

const (
	RCodeComplete RCode = iota
	RCodeConflictError
	RCodeDataError
	RCodeTypeError
	RCodeAddressError
	RCodeSendError
	RCodeCancelled
	RCodeBusyRetryLimit
	RCodeGeneration
	RCodeMissingAck
)

// Packet is the abstract packet shape crossing the TL boundary
// (spec.md §3).
type Packet struct {
	Destination uint16
	Source      uint16
	TLabel      uint8
	TCode       uint8

	// Header holds 2 to 4 quadlets depending on TCode; HeaderLen is the
	// header's encoded length in bytes (8, 12 or 16).
	Header    [4]uint32
	HeaderLen int

	Payload *buffer.View

	Timestamp uint16
	Speed     uint8

	Ack   uint8
	RCode RCode

	// Generation is the bus generation captured at receipt (AR) or at
	// submission (AT); used to drop or bounce stale packets.
	Generation uint8
}

// Handle is the minimal unit-facing surface exposed to the transaction
// layer so it can be notified without the tl package importing the core
// ohci package. *ohci.Unit implements it.
type Handle interface {
	GUID() uint64
	NodeID() uint16
	Generation() uint8
}

// TransactionLayer is the set of inward callbacks the core invokes
// (spec.md §6 "Inward callbacks the TL must provide").
type TransactionLayer interface {
	// HandleRequest delivers an inbound request packet (AR-request
	// context) addressed to somewhere other than this node's local CSR
	// space.
	HandleRequest(u Handle, pkt *Packet, generation uint8)

	// HandleResponse delivers an inbound response packet (AR-response
	// context), to be matched against a pending split transaction by
	// tlabel.
	HandleResponse(u Handle, pkt *Packet)

	// FlushAll is invoked during bus-reset handling, after the BusReset
	// interrupt event bit has been cleared and the new generation
	// adopted, so the TL can fail every transaction still pending from
	// the old generation.
	FlushAll(u Handle)

	// Finish reports the final disposition of an outbound transaction.
	// transaction is whatever opaque handle the TL passed as
	// packetData to Send.
	Finish(u Handle, transaction any, rcode RCode)
}
