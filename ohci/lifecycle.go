package ohci

import (
	"time"

	"github.com/ohci1394/driver/desc"
	"github.com/ohci1394/driver/dmapool"
)

const (
	softResetInterval   = 1 * time.Millisecond
	softResetIterations = 100

	lpsPollInterval   = 5 * time.Millisecond
	lpsPollIterations = 200

	maxSelfIDQuadlets = 256

	// maxConfigROMQuadlets covers the full local-bus Config-ROM window
	// (ConfigROMEnd - ConfigROMBase, inclusive, spec.md §6 GLOSSARY).
	maxConfigROMQuadlets = 256

	defaultIRBlocks = 16
)

// defaultIntMask enables every event bit this driver acts on
// (spec.md §4.2); IsoXmit is left out since isochronous transmit is not
// a core deliverable.
const defaultIntMask = 1<<evtReqTxComplete | 1<<evtRespTxComplete |
	1<<evtRQPkt | 1<<evtRSPkt | 1<<evtIsochRx |
	1<<evtPostedWriteErr | 1<<evtSelfIDComplete | 1<<evtBusReset |
	1<<evtRegAccessFail | 1<<evtCycleTooLong | 1<<evtCycle64Seconds |
	1<<evtUnrecoverableError | 1<<evtMasterIntEnable

// Init brings up the controller: soft reset, GUID/BusOptions programming,
// LPS handshake, IRQ mask, self-ID buffer, and the fixed AT/AR context
// pools (spec.md §2 "Lifecycle").
func (u *Unit) Init() error {
	u.lock.Lock()
	defer u.lock.Unlock()

	if u.flags.initialized {
		return nil
	}

	u.reg.Set(regHCControlSet, hcControlSoftReset)
	if !u.reg.Wait(regHCControlSet, hcControlSoftReset, 1, 0, softResetInterval, softResetIterations) {
		return ErrUnrecoverable
	}

	u.reg.Write32(regGUIDHi, uint32(u.guid>>32))
	u.reg.Write32(regGUIDLo, uint32(u.guid))
	u.reg.Write32(regBusOptions, u.busOptions)

	u.reg.Set(regHCControlSet, hcControlProgramPhyEnable)
	u.reg.Set(regHCControlSet, hcControlLPS)
	if !u.reg.Wait(regHCControlSet, hcControlLPS, 1, 1, lpsPollInterval, lpsPollIterations) {
		return ErrUnrecoverable
	}

	u.reg.Write32(regIntMaskClear, 0xffffffff)
	u.reg.Write32(regIntMaskSet, defaultIntMask)

	u.reg.Set(regLinkControlSet, linkControlRcvSelfID)
	u.reg.Set(regLinkControlSet, linkControlRcvPhyPkt)

	u.selfIDData = make([]byte, maxSelfIDQuadlets*4)
	selfIDAddr := u.dma.Alloc(uint32(len(u.selfIDData)), 0x800)
	u.reg.Write32(regSelfIDBuffer, selfIDAddr)

	u.romData = make([]byte, maxConfigROMQuadlets*4)
	u.romAddr = u.dma.Alloc(uint32(len(u.romData)), 0x800)
	u.reg.Write32(regConfigROMmap, u.romAddr)

	u.setupAsyncContextsLocked()

	u.flags.initialized = true

	return nil
}

// setupAsyncContextsLocked carves the AT/AR descriptor pools and payload
// arenas out of the DMA region and wires them into the Unit. Called with
// the unit lock held, from Init.
func (u *Unit) setupAsyncContextsLocked() {
	n := u.atBufCount

	atReqBase := u.dma.Alloc(uint32(n*3*desc.Size), 16)
	atReqPayload := u.dma.Alloc(uint32(n*maxATPayload), 4)
	u.atReq = newATContext(u, atReqBase, atReqPayload, n, false)

	atRespBase := u.dma.Alloc(uint32(n*3*desc.Size), 16)
	atRespPayload := u.dma.Alloc(uint32(n*maxATPayload), 4)
	u.atResp = newATContext(u, atRespBase, atRespPayload, n, true)

	u.arReq = newARContext(u, u.allocateARRing(), false)
	u.arResp = newARContext(u, u.allocateARRing(), true)
}

// allocateARRing carves dmapool.ARPageCount descriptor+data pages out of
// the DMA region for one AR context.
func (u *Unit) allocateARRing() *dmapool.ARRing {
	var dataAddrs, descAddrs [dmapool.ARPageCount]uint32
	var data [dmapool.ARPageCount][]byte

	for i := 0; i < dmapool.ARPageCount; i++ {
		descAddrs[i] = u.dma.Alloc(desc.Size, 16)
		dataAddrs[i] = u.dma.Alloc(dmapool.ARPageSize, 4)
		data[i] = make([]byte, dmapool.ARPageSize)
	}

	return dmapool.NewARRing(dataAddrs, descAddrs, data)
}

// Enable starts the AR contexts and enables the link (spec.md §2
// "Lifecycle"), making the unit ready to send and receive. Each AT
// context is started by the first Send that finds it idle.
func (u *Unit) Enable() error {
	u.lock.Lock()

	if !u.flags.initialized {
		u.lock.Unlock()
		return ErrUnimplemented
	}
	if u.flags.enabled {
		u.lock.Unlock()
		return nil
	}

	u.reg.Set(regHCControlSet, hcControlLinkEnable)

	u.arReq.Start()
	u.arResp.Start()

	u.flags.enabled = true
	u.lock.Unlock()

	u.startWorkers()

	return nil
}

// startWorkers launches one goroutine per worker the concurrency model
// calls for (spec.md §5): bus-reset, AT-req/AT-resp completion, AR-req/
// AR-resp drain, split-timeout. IR workers are started individually by
// AllocateIR.
func (u *Unit) startWorkers() {
	u.workers.stop = make(chan struct{})

	workers := []func(){
		u.busResetWorker,
		func() { u.atReconcileWorker(u.atReq, u.signals.atReqComplete) },
		func() { u.atReconcileWorker(u.atResp, u.signals.atRespComplete) },
		func() { u.arDrainWorker(u.arReq, u.signals.arReqData) },
		func() { u.arDrainWorker(u.arResp, u.signals.arRespData) },
		u.timeoutWorker,
	}

	for _, w := range workers {
		u.workers.wg.Add(1)
		go w()
	}
}

func (u *Unit) atReconcileWorker(ctx *ATContext, signal chan struct{}) {
	defer u.workers.wg.Done()
	for {
		select {
		case <-u.workers.stop:
			return
		case <-signal:
			ctx.Reconcile()
		}
	}
}

func (u *Unit) arDrainWorker(ctx *ARContext, signal chan struct{}) {
	defer u.workers.wg.Done()
	for {
		select {
		case <-u.workers.stop:
			return
		case <-signal:
			ctx.Drain()
		}
	}
}

// Disable stops every context and the link, without releasing the DMA
// pools (Enable may be called again).
func (u *Unit) Disable() {
	u.lock.Lock()
	defer u.lock.Unlock()

	if !u.flags.enabled {
		return
	}

	u.stopContext(u.atReq.ctrlClear, u.atReq.ctrlSet)
	u.stopContext(u.atResp.ctrlClear, u.atResp.ctrlSet)
	u.stopContext(u.arReq.ctrlClear, u.arReq.ctrlSet)
	u.stopContext(u.arResp.ctrlClear, u.arResp.ctrlSet)

	u.irLock.RLock()
	for _, ir := range u.ir {
		u.stopContext(ir.ctrlClear(), ir.ctrlSet())
	}
	u.irLock.RUnlock()

	u.reg.Write32(regHCControlClear, 1<<hcControlLinkEnable)

	u.flags.enabled = false
}

// Term disables the unit (if still enabled) and stops every worker
// goroutine, per spec.md §5 "Cancellation": each worker's kill mailbox is
// closed and Term waits for every worker to acknowledge.
func (u *Unit) Term() {
	u.Disable()

	u.lock.Lock()
	initialized := u.flags.initialized
	u.flags.initialized = false
	u.lock.Unlock()

	if !initialized || u.workers.stop == nil {
		return
	}

	close(u.workers.stop)
	u.workers.wg.Wait()
}

// AllocateIR allocates one isochronous-receive context out of
// Config.MaxIsoReceiveCtx slots (spec.md §4.7), builds its block ring,
// starts it, and launches its drain worker. blocks sizes the ring;
// payloadPad pads the header region so payload lands caller-aligned.
func (u *Unit) AllocateIR(blocks, payloadPad int, dropEmpty bool, cb IRCallback) (*IRContext, error) {
	u.lock.RLock()
	enabled := u.flags.enabled
	u.lock.RUnlock()
	if !enabled {
		return nil, ErrUnimplemented
	}

	if blocks <= 0 {
		blocks = defaultIRBlocks
	}

	u.irLock.Lock()
	index := -1
	for i, free := range u.irFree {
		if free {
			index = i
			break
		}
	}
	if index == -1 {
		u.irLock.Unlock()
		return nil, ErrNoMem
	}
	u.irFree[index] = false
	u.irLock.Unlock()

	pageSize := payloadPad + maxATPayload

	headerAddrs := make([]uint32, blocks)
	payloadAddrs := make([]uint32, blocks)
	pages := make([][]byte, blocks)

	u.lock.Lock()
	for i := 0; i < blocks; i++ {
		// Header and payload descriptors of one block share a single
		// page; the payload descriptor's data address starts payloadPad
		// bytes in, so the caller's alignment request lands on the
		// payload rather than the header.
		pageAddr := u.dma.Alloc(uint32(pageSize), 16)
		headerAddrs[i] = pageAddr
		payloadAddrs[i] = pageAddr + uint32(payloadPad)
		pages[i] = make([]byte, pageSize)
	}
	u.lock.Unlock()

	ring := dmapool.NewIRRing(blocks, headerAddrs, payloadAddrs, pages, payloadPad)

	ctx := newIRContext(u, index, ring, dropEmpty, cb)

	u.irLock.Lock()
	u.ir[index] = ctx
	u.irLock.Unlock()

	ctx.Start()

	u.workers.wg.Add(1)
	go u.irDrainWorker(ctx)

	return ctx, nil
}

func (u *Unit) irDrainWorker(ctx *IRContext) {
	defer u.workers.wg.Done()
	for {
		select {
		case <-u.workers.stop:
			return
		case <-ctx.done:
			return
		case <-ctx.wake:
			ctx.Drain()
		}
	}
}

// ReleaseIR stops an IR context, stops its drain worker, and returns its
// slot to the free pool.
func (u *Unit) ReleaseIR(ctx *IRContext) {
	u.stopContext(ctx.ctrlClear(), ctx.ctrlSet())
	close(ctx.done)

	u.irLock.Lock()
	delete(u.ir, ctx.index)
	u.irFree[ctx.index] = true
	u.irLock.Unlock()
}
