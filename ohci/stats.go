package ohci

import "sync/atomic"

// Stats accumulates the counters the diag package renders, modeled on the
// teacher's per-device Stats block (e.g. enet.Stats) that tracks dropped
// frames rather than panicking or silently discarding them.
type Stats struct {
	BusResets        atomic.Uint64
	SelfIDRejections atomic.Uint64
	BadTopologyStreak atomic.Uint64
	MissingAcks      atomic.Uint64
	FlushedPackets   atomic.Uint64
	Cycle64Wraps     atomic.Uint64
	BusSeconds       atomic.Uint64
}

// Snapshot is a point-in-time, non-atomic copy suitable for rendering.
type Snapshot struct {
	BusResets         uint64
	SelfIDRejections  uint64
	BadTopologyStreak uint64
	MissingAcks       uint64
	FlushedPackets    uint64
	Cycle64Wraps      uint64
	BusSeconds        uint64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		BusResets:         s.BusResets.Load(),
		SelfIDRejections:  s.SelfIDRejections.Load(),
		BadTopologyStreak: s.BadTopologyStreak.Load(),
		MissingAcks:       s.MissingAcks.Load(),
		FlushedPackets:    s.FlushedPackets.Load(),
		Cycle64Wraps:      s.Cycle64Wraps.Load(),
		BusSeconds:        s.BusSeconds.Load(),
	}
}
