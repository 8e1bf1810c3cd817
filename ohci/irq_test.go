package ohci

import "testing"

func TestHandleErrorBitsCycleTooLongRearmsCycleMaster(t *testing.T) {
	u := newTestUnit()

	u.handleErrorBits(1 << evtCycleTooLong)

	if u.reg.Get(regLinkControlSet, linkControlCycleMaster, 1) != 1 {
		t.Error("handleErrorBits did not rearm LinkControl.CycleMaster after CycleTooLong")
	}
}

func TestHandleErrorBitsCycle64SecondsIncrementsWhenMSBClear(t *testing.T) {
	u := newTestUnit()
	u.reg.Write32(regIsochronousCycleTimer, 0) // bit 31 clear

	u.handleErrorBits(1 << evtCycle64Seconds)

	if got := u.Stats.BusSeconds.Load(); got != 1 {
		t.Errorf("BusSeconds = %d, want 1", got)
	}
	if got := u.Stats.Cycle64Wraps.Load(); got != 1 {
		t.Errorf("Cycle64Wraps = %d, want 1", got)
	}
}

func TestHandleErrorBitsCycle64SecondsSkipsWhenMSBSet(t *testing.T) {
	u := newTestUnit()
	u.reg.Write32(regIsochronousCycleTimer, 1<<31)

	u.handleErrorBits(1 << evtCycle64Seconds)

	if got := u.Stats.BusSeconds.Load(); got != 0 {
		t.Errorf("BusSeconds = %d, want 0 (MSB set, already accounted)", got)
	}
}
