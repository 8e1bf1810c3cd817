package ohci

import "testing"

func TestValidateSelfIDPairsAccepts(t *testing.T) {
	buf := []uint32{
		0x00000000, // generation header, not a pair
		0x00000001, ^uint32(0x00000001),
		0xdeadbeef, ^uint32(0xdeadbeef),
	}

	if !validateSelfIDPairs(buf) {
		t.Error("validateSelfIDPairs rejected a well-formed complement-pair stream")
	}
}

func TestValidateSelfIDPairsRejectsMismatch(t *testing.T) {
	buf := []uint32{
		0x00000000,
		0x00000001, 0x00000002, // not a complement pair
	}

	if validateSelfIDPairs(buf) {
		t.Error("validateSelfIDPairs accepted a mismatched pair")
	}
}

func TestValidateSelfIDPairsRejectsOddTrailingLength(t *testing.T) {
	buf := []uint32{0x00000000, 0x00000001, ^uint32(0x00000001), 0x5}

	if validateSelfIDPairs(buf) {
		t.Error("validateSelfIDPairs accepted a stream with a dangling unpaired quadlet")
	}
}

func TestValidateSelfIDPairsAcceptsHeaderOnly(t *testing.T) {
	if !validateSelfIDPairs([]uint32{0x00000000}) {
		t.Error("validateSelfIDPairs rejected a header-only (no nodes) stream")
	}
}
