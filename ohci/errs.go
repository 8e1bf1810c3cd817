package ohci

import "errors"

// Sentinel errors (spec.md §7 "Error handling design").
var (
	ErrPhyBusy         = errors.New("ohci: phy busy")
	ErrPhyReadTimeout   = errors.New("ohci: phy read timeout")
	ErrPhyAddrMismatch  = errors.New("ohci: phy address mismatch")
	ErrPhyWriteTimeout  = errors.New("ohci: phy write timeout")

	ErrUnitBusy      = errors.New("ohci: unit busy, no free AT buffer")
	ErrNoMem         = errors.New("ohci: no memory for DMA allocation")
	ErrUnrecoverable = errors.New("ohci: unrecoverable hardware error")
	ErrUnimplemented = errors.New("ohci: unimplemented")
	ErrROMUpdatePending = errors.New("ohci: config-ROM update already pending")
	ErrBadTcode      = errors.New("ohci: unrecognized tcode")
)
