package ohci

import (
	"time"

	"github.com/ohci1394/driver/tl"
)

const (
	csrPollInterval  = 5 * time.Millisecond
	csrPollIterations = 100

	csrControlDoneBit = 31
)

// HandleLocalRequest answers a request addressed to this node's own
// CSR/Config-ROM space (spec.md §4.6), returning the rcode and — for
// quadlet reads — the response data quadlet.
func (u *Unit) HandleLocalRequest(tcode uint8, offset uint64) (rcode tl.RCode, data uint32) {
	switch {
	case offset >= ConfigROMBase && offset < ConfigROMEnd:
		return u.handleROMRead(tcode, offset)
	case offset-CSRBaseLo == CSROffBusManagerID,
		offset-CSRBaseLo == CSROffBandwidthAvailable,
		offset-CSRBaseLo == CSROffChannelsAvailableHi,
		offset-CSRBaseLo == CSROffChannelsAvailableLo:
		return u.handleCSRLock(tcode, offset-CSRBaseLo, 0, 0)
	default:
		return tl.RCodeAddressError, 0
	}
}

// HandleLocalLock answers a compare-swap request against one of the
// lockable CSR registers (spec.md §4.6). offset is relative to CSRBaseLo
// (one of the CSROff* constants).
func (u *Unit) HandleLocalLock(offset uint64, compare, write uint32) (rcode tl.RCode, old uint32) {
	return u.handleCSRLock(tl.TCodeLockReq, offset, compare, write)
}

func (u *Unit) handleROMRead(tcode uint8, offset uint64) (tl.RCode, uint32) {
	if tcode != tl.TCodeReadQuadletReq && tcode != tl.TCodeReadBlockReq {
		return tl.RCodeTypeError, 0
	}

	quadletOff := int((offset - ConfigROMBase) / 4)
	val, ok := u.readROM(quadletOff)
	if !ok {
		return tl.RCodeAddressError, 0
	}
	return tl.RCodeComplete, val
}

// handleCSRLock drives the hardware compare-and-swap registers for one
// of the four lockable local-bus CSR offsets (spec.md §4.6).
func (u *Unit) handleCSRLock(tcode uint8, offset uint64, compare, write uint32) (tl.RCode, uint32) {
	if tcode != tl.TCodeLockReq && tcode != tl.TCodeReadQuadletReq {
		return tl.RCodeTypeError, 0
	}

	regSel := uint32(offset-CSROffBusManagerID) / 4

	u.reg.Write32(regCSRData, write)
	u.reg.Write32(regCSRCompare, compare)
	u.reg.Write32(regCSRControl, regSel)

	if !u.reg.Wait(regCSRControl, csrControlDoneBit, 1, 1, csrPollInterval, csrPollIterations) {
		return tl.RCodeSendError, 0
	}

	return tl.RCodeComplete, u.reg.Read32(regCSRData)
}
