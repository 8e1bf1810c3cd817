package desc

import "testing"

func TestBytesParseRoundTrip(t *testing.T) {
	d := Descriptor{
		Control:     CmdOutputLast | IrqAlways | BranchAlways,
		ReqCount:    16,
		DataAddress: 0x1000,
	}
	d.SetBranch(0x2000, 2)

	buf := d.Bytes()
	if len(buf) != Size {
		t.Fatalf("Bytes() length = %d, want %d", len(buf), Size)
	}

	got := Parse(buf)
	if got.Control != d.Control {
		t.Errorf("Control = %#x, want %#x", got.Control, d.Control)
	}
	if got.ReqCount != d.ReqCount {
		t.Errorf("ReqCount = %d, want %d", got.ReqCount, d.ReqCount)
	}
	if got.DataAddress != d.DataAddress {
		t.Errorf("DataAddress = %#x, want %#x", got.DataAddress, d.DataAddress)
	}
	if got.BranchAddress != d.BranchAddress {
		t.Errorf("BranchAddress = %#x, want %#x", got.BranchAddress, d.BranchAddress)
	}
	if got.Z() != 2 {
		t.Errorf("Z() = %d, want 2", got.Z())
	}
}

func TestSetBranchMasksZ(t *testing.T) {
	var d Descriptor
	d.SetBranch(0xdeadbeef, 7)

	if d.BranchAddress&0xf != 7 {
		t.Errorf("SetBranch did not mask Z into low nibble: got %#x", d.BranchAddress&0xf)
	}
	if d.BranchAddress&^0xf != 0xdeadbee0 {
		t.Errorf("SetBranch corrupted the address bits: got %#x", d.BranchAddress&^0xf)
	}
}

func TestBytesMarshalsTimeStamp(t *testing.T) {
	d := Descriptor{Control: KeyImmediate, ReqCount: 12, TimeStamp: 0x1234}
	buf := d.Bytes()

	got := Parse(buf)
	if got.TransferStatus != 0x1234 {
		t.Errorf("marshaled timestamp = %#x, want 0x1234", got.TransferStatus)
	}
}

func TestPutTransferStatus(t *testing.T) {
	d := Descriptor{Control: KeyImmediate, ReqCount: 12}
	buf := d.Bytes()

	PutTransferStatus(buf, 0x1f)

	got := Parse(buf)
	if got.TransferStatus != 0x1f {
		t.Errorf("TransferStatus = %#x, want 0x1f", got.TransferStatus)
	}
	// PutTransferStatus must not disturb the other fields.
	if got.Control != d.Control || got.ReqCount != d.ReqCount {
		t.Errorf("PutTransferStatus disturbed unrelated fields: %+v", got)
	}
}
