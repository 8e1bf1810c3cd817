package ohci

import (
	"context"
	"encoding/binary"

	"github.com/ohci1394/driver/tl"
)

// MaxBadTopo is the number of consecutive topology-update failures
// tolerated before the unit disables itself (spec.md §4.5 step 6).
const MaxBadTopo = 10

// busResetWorker runs the procedure of spec.md §4.5 each time the IRQ
// dispatcher wakes it on SelfIDComplete, until the unit is torn down.
func (u *Unit) busResetWorker() {
	defer u.workers.wg.Done()

	for {
		select {
		case <-u.workers.stop:
			return
		case <-u.signals.selfIDComplete:
			u.handleBusReset()
		}
	}
}

// handleBusReset implements spec.md §4.5 steps 1-6.
func (u *Unit) handleBusReset() {
	nodeID := u.reg.Read32(regNodeID)
	if nodeID&(1<<nodeIDIDValid) == 0 || nodeID&nodeIDNodeNumberMask == 0x3f {
		return
	}

	selfIDCount := u.reg.Read32(regSelfIDCount)
	if selfIDCount&(1<<selfIDCountErrorBit) != 0 {
		u.Stats.SelfIDRejections.Add(1)
		return
	}

	quadletCount := int((selfIDCount >> selfIDCountSizeShift) & selfIDCountSizeMask)
	if quadletCount == 0 {
		return
	}

	buf := u.readSelfIDBuffer(quadletCount)

	streamGeneration := uint8((buf[0] >> selfIDCountGenerationShift) & selfIDCountGenerationMask)

	if !validateSelfIDPairs(buf) {
		u.Stats.SelfIDRejections.Add(1)
		u.retrySelfIDValidation()
		return
	}

	// Re-read SelfIDCount.Generation after validating the snapshot; only
	// accept it if the register still reports the same generation
	// (OHCI 11.3's ordering requirement).
	confirm := u.reg.Read32(regSelfIDCount)
	registerGeneration := uint8((confirm >> selfIDCountGenerationShift) & selfIDCountGenerationMask)
	if registerGeneration != streamGeneration {
		u.Stats.SelfIDRejections.Add(1)
		u.retrySelfIDValidation()
		return
	}

	u.adoptGeneration(streamGeneration, uint16(nodeID), buf)
}

// readSelfIDBuffer copies the self-ID DMA buffer's quadlets out in the
// order the ordering requirement demands: buf[0] (which carries the
// embedded generation) is read first, ahead of the remaining quadlets.
func (u *Unit) readSelfIDBuffer(count int) []uint32 {
	if count > len(u.selfIDData)/4 {
		count = len(u.selfIDData) / 4
	}

	buf := make([]uint32, count)
	for i := 0; i < count; i++ {
		buf[i] = binary.LittleEndian.Uint32(u.selfIDData[i*4:])
	}
	return buf
}

// validateSelfIDPairs implements spec.md §3's self-ID-validity invariant:
// each quadlet at odd index i must equal the bitwise-NOT of the quadlet
// at i+1, for every packet pair starting at index 1 (index 0 carries the
// generation header, not a self-ID pair).
func validateSelfIDPairs(buf []uint32) bool {
	if (len(buf)-1)%2 != 0 {
		return false
	}
	for i := 1; i+1 < len(buf); i += 2 {
		if buf[i] != ^buf[i+1] {
			return false
		}
	}
	return true
}

// adoptGeneration implements spec.md §4.5 step 4 under the exclusive
// unit lock, then steps 5-6 outside it.
func (u *Unit) adoptGeneration(newGeneration uint8, nodeID uint16, selfIDs []uint32) {
	u.lock.Lock()

	prevGeneration := u.generation

	u.haltATContextsLocked()

	u.generation = newGeneration
	u.lastGeneration = newGeneration
	u.nodeID = (nodeID & nodeIDNodeNumberMask) | (LocalBusID << nodeIDBusNumberShift)

	u.reg.Write32(regIntEventClear, 1<<evtBusReset)

	var (
		previousROM []uint32
		romFree     func([]uint32)
		romCommitted bool
	)
	if prev, free, ok := u.commitROM(); ok {
		previousROM, romFree, romCommitted = prev, free, ok
		u.programROMLocked()
	}

	u.reg.Write32(regPhyReqFilterHiSet, 0xffffffff)
	u.reg.Write32(regPhyReqFilterLoSet, 0xffffffff)

	u.lock.Unlock()

	u.tl.FlushAll(u)
	u.Stats.BusResets.Add(1)

	if romCommitted && romFree != nil {
		romFree(previousROM)
	}

	if newGeneration != prevGeneration+1 {
		u.Stats.BadTopologyStreak.Add(1)
	}

	if ok := u.dispatchSelfIDs(selfIDs); !ok {
		u.onTopologyFailure()
		return
	}

	u.Stats.BadTopologyStreak.Store(0)
}

// haltATContextsLocked stops both AT contexts before BusReset is cleared,
// as required by spec.md §4.5 step 4: generation updates must become
// visible to AT before new sends under the old generation become
// possible.
func (u *Unit) haltATContextsLocked() {
	if u.atReq != nil {
		u.stopContext(u.atReq.ctrlClear, u.atReq.ctrlSet)
	}
	if u.atResp != nil {
		u.stopContext(u.atResp.ctrlClear, u.atResp.ctrlSet)
	}
}

// programROMLocked writes CONFIG_ROM_HDR, BUS_OPTIONS, and CONFIG_ROM_MAP
// from the just-committed ROM image (spec.md §4.5 step 4). Quadlet 0 is
// mirrored into ConfigROMhdr directly; quadlets beyond it are copied into
// the DMA-visible romData buffer ConfigROMmap already points at, since
// that is the only memory the controller itself reads to answer a local
// Config-ROM request for any offset past the header quadlet. Called with
// the unit lock held.
func (u *Unit) programROMLocked() {
	if len(u.rom.current) == 0 {
		return
	}

	for i := range u.romData {
		u.romData[i] = 0
	}
	for i, q := range u.rom.current {
		if i*4+4 > len(u.romData) {
			break
		}
		binary.LittleEndian.PutUint32(u.romData[i*4:], q)
	}

	u.reg.Write32(regConfigROMhdr, u.rom.current[0])
	u.reg.Write32(regBusOptions, u.busOptions)
	u.reg.Write32(regConfigROMmap, u.romAddr)
}

// dispatchSelfIDs hands the validated self-ID stream to the TL's topology
// builder. The core has no topology logic of its own (spec.md §1); a
// nil TL, or one that declines HandleRequest-style topology hand-off, is
// treated as a no-op success since there is nothing further for this
// unit to validate.
func (u *Unit) dispatchSelfIDs(selfIDs []uint32) bool {
	if u.tl == nil {
		return true
	}
	if td, ok := u.tl.(interface{ Topology(tl.Handle, []uint32) bool }); ok {
		return td.Topology(u, selfIDs)
	}
	return true
}

// onTopologyFailure implements spec.md §4.5 step 6: force a short bus
// reset, disabling the unit after MaxBadTopo consecutive failures.
func (u *Unit) onTopologyFailure() {
	streak := u.Stats.BadTopologyStreak.Add(1)

	if streak >= MaxBadTopo {
		u.lock.Lock()
		u.flags.unrecoverable = true
		u.lock.Unlock()
		u.log.Printf("ohci: %d consecutive bad topology updates, disabling unit", streak)
		u.Disable()
		return
	}

	u.resetLimiter.Wait(context.Background())

	if err := u.raiseShortBusReset(); err != nil {
		u.log.Printf("ohci: short bus reset after topology failure: %v", err)
	}
}

// retrySelfIDValidation implements spec.md §4.5's self-ID-integrity
// failure path: one retry via short reset, else unrecoverable.
func (u *Unit) retrySelfIDValidation() {
	u.resetLimiter.Wait(context.Background())

	if err := u.raiseShortBusReset(); err != nil {
		u.lock.Lock()
		u.flags.unrecoverable = true
		u.lock.Unlock()
		u.log.Printf("ohci: self-ID validation failed and short reset failed: %v", err)
	}
}
