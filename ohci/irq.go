package ohci

// HandleInterrupt is the IRQ dispatcher's top half (spec.md §4.2). It runs
// on whatever goroutine the platform's interrupt source delivers on — a
// uio fd read, a GPIO edge callback, a polling loop — wiring that source
// to this method is out of scope here, matching the teacher's
// soc/nxp/usb poll-driven IRQ handling, which likewise never owns the
// interrupt line itself. The dispatcher's only job is to read the
// latched, masked event bits, clear what it has consumed, and wake the
// worker that owns each bit; every bit's actual handling happens on that
// worker's own goroutine.
func (u *Unit) HandleInterrupt() {
	event := u.reg.Read32(regIntEventSet) & u.reg.Read32(regIntMaskSet)

	if event == 0 || event == 0xffffffff {
		// Shared line firing for another device, or a register read
		// during hot-unplug.
		return
	}

	// BusReset stays latched until the bus-reset worker has finished
	// adopting the new generation and clears it itself (spec.md §4.5):
	// clearing it here would let a second reset's SelfIDComplete race
	// the first reset's self-ID processing.
	ack := event &^ (1 << evtBusReset)
	if ack != 0 {
		u.reg.Write32(regIntEventClear, ack)
	}

	if event&(1<<evtSelfIDComplete) != 0 {
		notify(u.signals.selfIDComplete)
	}
	if event&(1<<evtReqTxComplete) != 0 {
		notify(u.signals.atReqComplete)
	}
	if event&(1<<evtRespTxComplete) != 0 {
		notify(u.signals.atRespComplete)
	}
	if event&(1<<evtRQPkt) != 0 {
		notify(u.signals.arReqData)
	}
	if event&(1<<evtRSPkt) != 0 {
		notify(u.signals.arRespData)
	}
	if event&(1<<evtIsochRx) != 0 {
		u.dispatchIsoRecv()
	}

	u.handleErrorBits(event)
}

// dispatchIsoRecv reads IsoRecvIntEventSet and wakes each set context's
// worker by index (spec.md §4.2); the register is cleared immediately
// since, unlike BusReset, no ordering constraint depends on it staying
// latched.
func (u *Unit) dispatchIsoRecv() {
	set := u.reg.Read32(regIsoRecvIntEventSet)
	u.reg.Write32(regIsoRecvIntEventClear, set)

	u.irLock.RLock()
	defer u.irLock.RUnlock()

	for i, ctx := range u.ir {
		if set&(1<<uint(i)) == 0 {
			continue
		}
		notify(ctx.wake)
	}
}

// handleErrorBits logs or records the event bits that spec.md §4.2
// classifies as anomalies rather than work to dispatch.
func (u *Unit) handleErrorBits(event uint32) {
	if event&(1<<evtRegAccessFail) != 0 {
		u.log.Printf("ohci: register access failure")
	}

	if event&(1<<evtPostedWriteErr) != 0 {
		u.log.Printf("ohci: posted write error")
	}

	if event&(1<<evtUnrecoverableError) != 0 {
		u.lock.Lock()
		u.flags.unrecoverable = true
		u.lock.Unlock()
		u.log.Printf("ohci: unrecoverable hardware error reported")
	}

	if event&(1<<evtCycleTooLong) != 0 {
		u.log.Printf("ohci: cycle too long, cycle master disabled by hardware")
		u.reg.Set(regLinkControlSet, linkControlCycleMaster)
	}

	if event&(1<<evtCycleLost) != 0 {
		u.log.Printf("ohci: cycle lost")
	}

	if event&(1<<evtCycle64Seconds) != 0 {
		// The 7-bit seconds field in ISOCHRONOUS_CYCLE_TIMER wrapped.
		// Bit 31 (the field's own MSB) is still clear immediately after
		// the wrap and only sets again once the next 64-second period is
		// half elapsed; incrementing the software counter only while it
		// reads clear keeps a delayed interrupt from being counted twice
		// against the same hardware wrap.
		if u.reg.Get(regIsochronousCycleTimer, 31, 1) == 0 {
			u.Stats.Cycle64Wraps.Add(1)
			u.Stats.BusSeconds.Add(1)
		}
	}
}
