package ohci

import (
	"testing"

	"github.com/ohci1394/driver/tl"
)

func TestHandleLocalRequestROMRead(t *testing.T) {
	u := newTestUnit()
	u.rom.current = []uint32{0x04012345, 0xdeadbeef}

	rcode, data := u.HandleLocalRequest(tl.TCodeReadQuadletReq, ConfigROMBase+4)
	if rcode != tl.RCodeComplete {
		t.Fatalf("rcode = %v, want RCodeComplete", rcode)
	}
	if data != 0xdeadbeef {
		t.Errorf("data = %#x, want %#x", data, 0xdeadbeef)
	}
}

func TestHandleLocalRequestROMOutOfRange(t *testing.T) {
	u := newTestUnit()
	u.rom.current = []uint32{0x04012345}

	rcode, _ := u.HandleLocalRequest(tl.TCodeReadQuadletReq, ConfigROMBase+64)
	if rcode != tl.RCodeAddressError {
		t.Errorf("rcode = %v, want RCodeAddressError", rcode)
	}
}

func TestHandleLocalRequestROMWrongTCode(t *testing.T) {
	u := newTestUnit()
	u.rom.current = []uint32{0x04012345}

	rcode, _ := u.HandleLocalRequest(tl.TCodeWriteQuadletReq, ConfigROMBase)
	if rcode != tl.RCodeTypeError {
		t.Errorf("rcode = %v, want RCodeTypeError", rcode)
	}
}

func TestHandleLocalRequestUnknownOffset(t *testing.T) {
	u := newTestUnit()

	rcode, _ := u.HandleLocalRequest(tl.TCodeReadQuadletReq, CSRBaseLo)
	if rcode != tl.RCodeAddressError {
		t.Errorf("rcode = %v, want RCodeAddressError", rcode)
	}
}

func TestHandleLocalLockDrivesCompareAndSwapRegisters(t *testing.T) {
	u := newTestUnit()

	const wantSelector = 3 // CHANNELS_AVAILABLE_LO is the 4th lockable offset

	go func() {
		for u.reg.Read32(regCSRControl) != wantSelector {
		}
		u.reg.Write32(regCSRData, 0x42)
		u.reg.Set(regCSRControl, csrControlDoneBit)
	}()

	rcode, old := u.HandleLocalLock(CSROffChannelsAvailableLo, 0, 0x7)
	if rcode != tl.RCodeComplete {
		t.Fatalf("rcode = %v, want RCodeComplete", rcode)
	}
	if old != 0x42 {
		t.Errorf("old = %#x, want 0x42", old)
	}

	if got := u.reg.Read32(regCSRControl) &^ (1 << csrControlDoneBit); got != wantSelector {
		t.Errorf("CSR_CONTROL selector = %#x, want %#x", got, wantSelector)
	}
}
