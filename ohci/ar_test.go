package ohci

import (
	"encoding/binary"
	"testing"

	"github.com/ohci1394/driver/tl"
)

func TestLocalOffsetReassemblesFromHeader(t *testing.T) {
	header := []uint32{0, uint32(0x0001)<<16 | 0x1234, 0xbeef0000}

	offset, ok := localOffset(header)
	if !ok {
		t.Fatal("localOffset reported false for a 3-quadlet header")
	}

	want := uint64(0x1234)<<32 | uint64(0xbeef0000)
	if offset != want {
		t.Errorf("localOffset = %#x, want %#x", offset, want)
	}
}

func TestLocalOffsetRejectsShortHeader(t *testing.T) {
	if _, ok := localOffset([]uint32{0, 1}); ok {
		t.Error("localOffset accepted a header too short to carry an offset")
	}
}

func TestBuildLocalResponseReadQuadlet(t *testing.T) {
	respTCode, header, payload := buildLocalResponse(tl.TCodeReadQuadletReq, 0x00ff, 0x15, tl.RCodeComplete, 0xcafebabe)

	if respTCode != tl.TCodeReadQuadletResp {
		t.Errorf("respTCode = %#x, want READ_QUADLET_RESP", respTCode)
	}
	if payload != nil {
		t.Error("quadlet response must not carry a separate payload view")
	}
	if len(header) != 4 {
		t.Fatalf("header has %d quadlets, want 4", len(header))
	}

	dest := uint16(header[0] >> 16)
	if dest != 0x00ff {
		t.Errorf("destination = %#x, want %#x", dest, 0x00ff)
	}
	gotTlabel := uint8((header[0] >> 10) & 0x3f)
	if gotTlabel != 0x15 {
		t.Errorf("tlabel = %#x, want %#x", gotTlabel, 0x15)
	}
	if header[3] != 0xcafebabe {
		t.Errorf("data quadlet = %#x, want %#x", header[3], 0xcafebabe)
	}
}

func TestBuildLocalResponseBlockReadCarriesPayload(t *testing.T) {
	_, _, payload := buildLocalResponse(tl.TCodeReadBlockReq, 0x1, 0x2, tl.RCodeComplete, 0x11223344)

	if payload == nil {
		t.Fatal("block-read response did not attach a payload view")
	}
	if binary.BigEndian.Uint32(payload.AsSlice()) != 0x11223344 {
		t.Errorf("payload = %x, want 11223344", payload.AsSlice())
	}
}

func TestBuildLocalResponseWriteRequestGetsWriteResponse(t *testing.T) {
	respTCode, header, _ := buildLocalResponse(tl.TCodeWriteQuadletReq, 0x1, 0x2, tl.RCodeAddressError, 0)

	if respTCode != tl.TCodeWriteResponse {
		t.Errorf("respTCode = %#x, want WRITE_RESPONSE", respTCode)
	}
	if len(header) != 3 {
		t.Fatalf("write response header has %d quadlets, want 3", len(header))
	}
	gotRCode := tl.RCode((header[1] >> 12) & 0xf)
	if gotRCode != tl.RCodeAddressError {
		t.Errorf("rcode = %v, want %v", gotRCode, tl.RCodeAddressError)
	}
}
