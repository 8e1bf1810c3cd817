package ohci

import "time"

const (
	contextStopInterval   = 25 * time.Millisecond
	contextStopIterations = 2
)

// stopContext implements spec.md §4.8's generic context-stop sequence:
// clear RUN, then poll ACTIVE for up to ~50ms. Timeout is logged but not
// treated as fatal — the context may simply be mid-descriptor-fetch.
func (u *Unit) stopContext(ctrlClear, ctrlSet uint32) {
	u.reg.Write32(ctrlClear, 1<<ctxCtrlRun)

	if !u.reg.Wait(ctrlSet, ctxCtrlActive, 1, 0, contextStopInterval, contextStopIterations) {
		u.log.Printf("ohci: context at 0x%03x did not quiesce within %v", ctrlSet, contextStopInterval*contextStopIterations)
	}
}
