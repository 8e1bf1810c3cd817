package ohci

import "github.com/ohci1394/driver/tl"

// tcodeInfo describes the DMA program shape for one tcode (spec.md §4.3
// tcode table): header length in bytes, whether a payload descriptor is
// needed, and the resulting descriptor count (Z).
type tcodeInfo struct {
	headerLen    int
	needsPayload bool
	z            uint32
}

var tcodeTable = map[uint8]tcodeInfo{
	tl.TCodeReadQuadletReq:  {headerLen: 12, needsPayload: false, z: 2},
	tl.TCodeWriteQuadletReq: {headerLen: 16, needsPayload: false, z: 2},
	tl.TCodePHY:             {headerLen: 12, needsPayload: false, z: 2},
	tl.TCodeReadBlockReq:    {headerLen: 16, needsPayload: false, z: 2},
	tl.TCodeWriteBlockReq:   {headerLen: 16, needsPayload: true, z: 3},
	tl.TCodeLockReq:         {headerLen: 16, needsPayload: true, z: 3},
	tl.TCodeStreamData:      {headerLen: 8, needsPayload: true, z: 3},
	tl.TCodeWriteResponse:   {headerLen: 12, needsPayload: false, z: 2},
	tl.TCodeReadQuadletResp: {headerLen: 16, needsPayload: false, z: 2},
	tl.TCodeReadBlockResp:   {headerLen: 16, needsPayload: true, z: 3},
	tl.TCodeLockResp:        {headerLen: 16, needsPayload: true, z: 3},
}

// splicesTlabel reports whether tcode is a request packet that takes a
// caller-supplied tlabel spliced into header[0] (spec.md §4.3: "except
// STREAM/PHY").
func splicesTlabel(tcode uint8) bool {
	switch tcode {
	case tl.TCodeStreamData, tl.TCodePHY:
		return false
	case tl.TCodeWriteResponse, tl.TCodeReadQuadletResp, tl.TCodeReadBlockResp, tl.TCodeLockResp:
		return false
	default:
		return true
	}
}

const (
	tlabelShift = 10
	tlabelMask  = 0x3f
)

func spliceTlabel(header0 uint32, tlabel uint8) uint32 {
	return (header0 &^ (tlabelMask << tlabelShift)) | (uint32(tlabel) & tlabelMask << tlabelShift)
}
