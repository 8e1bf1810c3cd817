package ohci

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ohci1394/driver/dmapool"
	"github.com/ohci1394/driver/regio"
	"github.com/ohci1394/driver/tl"
)

// Config configures one Unit before Init, following the teacher's
// plain-struct-fields convention (e.g. enet.ENET{Base, CCGR, Clock, ...})
// rather than a file or flag-based configuration format (spec.md §2.3).
type Config struct {
	// Register is the mapped 2 KiB register window.
	Register *regio.Window

	// GUID is this node's 64-bit EUI-64; if zero, New generates one from
	// crypto/rand with the locally-administered bit set.
	GUID uint64

	// BusOptions is the initial BUS_OPTIONS quadlet to present until the
	// caller supplies a Config-ROM with SetROM.
	BusOptions uint32

	// ATBufferCount sizes each AT context's buffer pool.
	ATBufferCount int

	// MaxIsoReceiveCtx bounds how many IR contexts can be allocated.
	MaxIsoReceiveCtx int

	// DMABase and DMASize describe the DMA-addressable region Init carves
	// the AT/AR descriptor pools, AT payload arenas, AR pages, the
	// self-ID buffer, and subsequent AllocateIR calls out of.
	DMABase uint32
	DMASize uint32

	// TL is the upper-layer transaction/topology collaborator.
	TL tl.TransactionLayer

	// Logger receives recoverable-anomaly log lines; defaults to
	// log.Default().
	Logger *log.Logger

	// Stats, if non-nil, is used instead of allocating a fresh one
	// (lets callers share a Stats across test fixtures).
	Stats *Stats
}

// flags bits, guarded by Unit.lock.
type flags struct {
	enabled     bool
	initialized bool
	unrecoverable bool
}

// Unit is the process-wide handle for one controller (spec.md §3). A
// single Unit binds to exactly one OHCI host controller.
type Unit struct {
	// lock is the unit-wide shared/exclusive lock protecting
	// generation, node ID, ROM pointers, context lists, and filter
	// registers (spec.md §5). Locking order is unit before context.
	lock sync.RWMutex

	reg *regio.Window
	tl  tl.TransactionLayer
	log *log.Logger

	guid       uint64
	busOptions uint32

	generation     uint8
	lastGeneration uint8
	nodeID         uint16

	flags flags

	rom        *romState
	maxIsoCtx  int
	atBufCount int

	dma *dmapool.Arena

	// selfIDData is the DMA-visible buffer the controller fills with the
	// self-ID quadlet stream; its physical address is programmed into
	// SelfIDBuffer at Init.
	selfIDData []byte

	// romData is the DMA-visible buffer holding the Config-ROM image
	// beyond quadlet 0: the controller answers local-bus reads to
	// ConfigROMBase+4 and up directly from this memory via ConfigROMmap,
	// never involving software (spec.md §4.5 step 4). Quadlet 0 alone is
	// mirrored into ConfigROMhdr. Its physical address is fixed for the
	// Unit's lifetime; programROMLocked rewrites its contents in place on
	// every commit.
	romData []byte
	romAddr uint32

	atReq  *ATContext
	atResp *ATContext
	arReq  *ARContext
	arResp *ARContext

	irLock sync.RWMutex
	ir     map[int]*IRContext
	irFree map[int]bool

	signals signals

	workers workerSet

	timeouts *timeoutQueue

	// resetLimiter throttles short-bus-reset retries (spec.md §4.5 step
	// 6, §4.5 self-ID retry) so a fast-repeating failure can't spin the
	// PHY write loop.
	resetLimiter *rate.Limiter

	Stats *Stats
}

// signals models the IRQ-to-task dispatch as single-slot, non-blocking
// notification channels, one per worker (design note "IRQ→task
// dispatch"): a full channel means a wakeup is already pending, so the
// IRQ top half never blocks and spurious wakeups are harmless.
type signals struct {
	selfIDComplete chan struct{}
	atReqComplete  chan struct{}
	atRespComplete chan struct{}
	arReqData      chan struct{}
	arRespData     chan struct{}
}

func newSignals() signals {
	return signals{
		selfIDComplete: make(chan struct{}, 1),
		atReqComplete:  make(chan struct{}, 1),
		atRespComplete: make(chan struct{}, 1),
		arReqData:      make(chan struct{}, 1),
		arRespData:     make(chan struct{}, 1),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// workerSet holds the kill mailboxes for every worker goroutine so Term
// can ask each to exit and wait for the reply, per spec.md §5
// "Cancellation".
type workerSet struct {
	wg   sync.WaitGroup
	stop chan struct{}
}

// New allocates a Unit bound to the given Config. It does not touch
// hardware; call Init to perform the soft reset and register-window
// bring-up.
func New(cfg Config) *Unit {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	stats := cfg.Stats
	if stats == nil {
		stats = &Stats{}
	}

	atBufCount := cfg.ATBufferCount
	if atBufCount == 0 {
		atBufCount = 32
	}

	u := &Unit{
		reg:        cfg.Register,
		tl:         cfg.TL,
		log:        logger,
		guid:       cfg.GUID,
		busOptions: cfg.BusOptions,
		maxIsoCtx:  cfg.MaxIsoReceiveCtx,
		atBufCount: atBufCount,
		ir:         make(map[int]*IRContext),
		irFree:     make(map[int]bool),
		signals:    newSignals(),
		Stats:      stats,
		rom:        &romState{},
		dma:          dmapool.NewArena(cfg.DMABase, cfg.DMASize),
		timeouts:     newTimeoutQueue(),
		resetLimiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}

	for i := 0; i < u.maxIsoCtx; i++ {
		u.irFree[i] = true
	}

	if u.guid == 0 {
		u.guid = randomGUID()
	}

	return u
}

// GUID implements tl.Handle.
func (u *Unit) GUID() uint64 {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.guid
}

// NodeID implements tl.Handle. Returns the 16-bit node ID with the top 10
// bits forced to the local bus (spec.md §3).
func (u *Unit) NodeID() uint16 {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.nodeID
}

// Generation implements tl.Handle.
func (u *Unit) Generation() uint8 {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.generation
}
