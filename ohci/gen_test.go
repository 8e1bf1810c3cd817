package ohci

import "testing"

func TestComputeResponseTimestampNoOverflow(t *testing.T) {
	got := ComputeResponseTimestamp(0x0010, 100)
	want := uint16(0x0010 + 100)
	if got != want {
		t.Errorf("ComputeResponseTimestamp = %#x, want %#x", got, want)
	}
}

func TestComputeResponseTimestampCycleOverflowCarriesSeconds(t *testing.T) {
	// cycle field is 13 bits (0..8191); pushing it past the boundary must
	// carry into the 3-bit seconds portion rather than silently wrap.
	reqTS := uint16(8190)
	got := ComputeResponseTimestamp(reqTS, 4)

	wantCycle := uint16(2) // (8190+4) mod 8192
	wantSeconds := uint16(1)
	want := wantSeconds<<13 | wantCycle

	if got != want {
		t.Errorf("ComputeResponseTimestamp = %#x, want %#x", got, want)
	}
}

func TestComputeResponseTimestampAssociative(t *testing.T) {
	reqTS := uint16(12345)

	sequential := ComputeResponseTimestamp(ComputeResponseTimestamp(reqTS, 1000), 3000)
	combined := ComputeResponseTimestamp(reqTS, 4000)

	if sequential != combined {
		t.Errorf("applying offsets sequentially (%#x) does not match applying their sum (%#x)", sequential, combined)
	}
}

func TestComputeResponseTimestampSecondsWrapsModulo8(t *testing.T) {
	// seconds portion is only 3 bits; a request already at the top of
	// that range overflows it, matching the hardware's own timestamp
	// field width rather than growing unbounded.
	reqTS := uint16(7<<13 | 8191)
	got := ComputeResponseTimestamp(reqTS, 1)

	want := uint16(0<<13 | 0)
	if got != want {
		t.Errorf("ComputeResponseTimestamp = %#x, want %#x", got, want)
	}
}
