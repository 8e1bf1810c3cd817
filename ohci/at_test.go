package ohci

import (
	"testing"

	"github.com/ohci1394/driver/tl"
)

func TestEvToStatusAckCodes(t *testing.T) {
	ack, _, isAck := evToStatus(evCodeAckBase + tl.AckComplete)
	if !isAck || ack != tl.AckComplete {
		t.Errorf("evToStatus(ACK_COMPLETE) = (%d, isAck=%v), want (%d, true)", ack, isAck, tl.AckComplete)
	}

	ack, _, isAck = evToStatus(evCodeAckBase + tl.AckBusyX)
	if !isAck || ack != tl.AckBusyX {
		t.Errorf("evToStatus(ACK_BUSY_X) = (%d, isAck=%v), want (%d, true)", ack, isAck, tl.AckBusyX)
	}
}

func TestEvToStatusSpecialEvents(t *testing.T) {
	cases := []struct {
		ev    uint16
		rcode tl.RCode
	}{
		{evCodeMissingAck, tl.RCodeMissingAck},
		{evCodeFlushed, tl.RCodeGeneration},
		{evCodeTimeout, tl.RCodeCancelled},
		{0x7f, tl.RCodeSendError}, // unrecognized event
	}

	for _, c := range cases {
		_, rcode, isAck := evToStatus(c.ev)
		if isAck {
			t.Errorf("evToStatus(%#x) reported isAck=true, want false", c.ev)
		}
		if rcode != c.rcode {
			t.Errorf("evToStatus(%#x) rcode = %v, want %v", c.ev, rcode, c.rcode)
		}
	}
}

func TestIsBroadcastDestination(t *testing.T) {
	cases := []struct {
		name    string
		header0 uint32
		want    bool
	}{
		{"broadcast node number on local bus", uint32(0x3f)<<16, true},
		{"broadcast node number on a remote bus", uint32(0xfc3f)<<16, true},
		{"ordinary node", uint32(0x01)<<16, false},
	}
	for _, c := range cases {
		if got := isBroadcastDestination(c.header0); got != c.want {
			t.Errorf("%s: isBroadcastDestination(%#x) = %v, want %v", c.name, c.header0, got, c.want)
		}
	}
}

func TestSendRejectsBroadcastDestination(t *testing.T) {
	u := newInittableUnit(t)

	header := []uint32{uint32(0x3f)<<16 | tl.TCodeWriteQuadletReq<<4, 0, 0, 0}
	err := u.atReq.Send(u.Generation(), header, nil, nil, 0, false, 0, false)
	if err != ErrUnimplemented {
		t.Errorf("Send to broadcast destination = %v, want ErrUnimplemented", err)
	}
}

func TestAckToRCode(t *testing.T) {
	cases := []struct {
		ack   uint8
		rcode tl.RCode
	}{
		{tl.AckComplete, tl.RCodeComplete},
		{tl.AckPending, tl.RCodeComplete},
		{tl.AckDataError, tl.RCodeDataError},
		{tl.AckTypeError, tl.RCodeTypeError},
		{tl.AckBusyX, tl.RCodeBusyRetryLimit},
	}

	for _, c := range cases {
		if got := ackToRCode(c.ack); got != c.rcode {
			t.Errorf("ackToRCode(%#x) = %v, want %v", c.ack, got, c.rcode)
		}
	}
}
