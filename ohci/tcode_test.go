package ohci

import (
	"testing"

	"github.com/ohci1394/driver/tl"
)

func TestSplicesTlabelByTCode(t *testing.T) {
	cases := []struct {
		tcode uint8
		want  bool
	}{
		{tl.TCodeReadQuadletReq, true},
		{tl.TCodeWriteBlockReq, true},
		{tl.TCodeLockReq, true},
		{tl.TCodeStreamData, false},
		{tl.TCodePHY, false},
		{tl.TCodeWriteResponse, false},
		{tl.TCodeReadQuadletResp, false},
		{tl.TCodeReadBlockResp, false},
		{tl.TCodeLockResp, false},
	}

	for _, c := range cases {
		if got := splicesTlabel(c.tcode); got != c.want {
			t.Errorf("splicesTlabel(%#x) = %v, want %v", c.tcode, got, c.want)
		}
	}
}

func TestSpliceTlabelPreservesOtherBits(t *testing.T) {
	header0 := uint32(0xabcd0000) | uint32(0x3f)<<10 | 0x4<<4

	got := spliceTlabel(header0, 0x15)

	wantTlabel := uint32(0x15)
	if (got>>tlabelShift)&tlabelMask != wantTlabel {
		t.Errorf("spliced tlabel = %#x, want %#x", (got>>tlabelShift)&tlabelMask, wantTlabel)
	}
	if got&^(tlabelMask<<tlabelShift) != header0&^(tlabelMask<<tlabelShift) {
		t.Error("spliceTlabel disturbed bits outside the tlabel field")
	}
}

func TestTcodeTableCoversEveryDefinedTCode(t *testing.T) {
	for _, tcode := range []uint8{
		tl.TCodeReadQuadletReq, tl.TCodeWriteQuadletReq, tl.TCodePHY,
		tl.TCodeReadBlockReq, tl.TCodeWriteBlockReq, tl.TCodeLockReq,
		tl.TCodeStreamData, tl.TCodeWriteResponse, tl.TCodeReadQuadletResp,
		tl.TCodeReadBlockResp, tl.TCodeLockResp,
	} {
		info, ok := tcodeTable[tcode]
		if !ok {
			t.Errorf("tcodeTable missing entry for tcode %#x", tcode)
			continue
		}
		if info.headerLen != 8 && info.headerLen != 12 && info.headerLen != 16 {
			t.Errorf("tcode %#x has implausible headerLen %d", tcode, info.headerLen)
		}
	}
}
