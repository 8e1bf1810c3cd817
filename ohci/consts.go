// Package ohci implements the OHCI-1394 core: the DMA context engine and
// bus-reset state machine mediating between an upper-layer transaction
// layer (tl.TransactionLayer) and an OHCI 1.1 host controller.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.
package ohci

// Register offsets within the 2 KiB OHCI register window (OHCI 1.1 §5).
const (
	regVersion     = 0x000
	regGUIDROM     = 0x004
	regATRetries   = 0x008
	regCSRData     = 0x00c
	regCSRCompare  = 0x010
	regCSRControl  = 0x014
	regConfigROMhdr = 0x018
	regBusID       = 0x01c
	regBusOptions  = 0x020
	regGUIDHi      = 0x024
	regGUIDLo      = 0x028
	regConfigROMmap = 0x034

	regHCControlSet   = 0x050
	regHCControlClear = 0x054

	regSelfIDBuffer = 0x064
	regSelfIDCount  = 0x068

	regIRChannelMaskHiSet   = 0x070
	regIRChannelMaskHiClear = 0x074
	regIRChannelMaskLoSet   = 0x078
	regIRChannelMaskLoClear = 0x07c

	regIntEventSet   = 0x080
	regIntEventClear = 0x084
	regIntMaskSet    = 0x088
	regIntMaskClear  = 0x08c

	regIsoXmitIntEventSet   = 0x090
	regIsoXmitIntEventClear = 0x094
	regIsoXmitIntMaskSet    = 0x098
	regIsoXmitIntMaskClear  = 0x09c

	regIsoRecvIntEventSet   = 0x0a0
	regIsoRecvIntEventClear = 0x0a4
	regIsoRecvIntMaskSet    = 0x0a8
	regIsoRecvIntMaskClear  = 0x0ac

	regLinkControlSet   = 0x0e0
	regLinkControlClear = 0x0e4
	regNodeID           = 0x0e8
	regPhyControl       = 0x0ec
	regIsochronousCycleTimer = 0x0f0

	regAsReqFilterHiSet    = 0x100
	regAsReqFilterHiClear  = 0x104
	regAsReqFilterLoSet    = 0x108
	regAsReqFilterLoClear  = 0x10c
	regPhyReqFilterHiSet   = 0x110
	regPhyReqFilterHiClear = 0x114
	regPhyReqFilterLoSet   = 0x118
	regPhyReqFilterLoClear = 0x11c

	regPhysicalUpperBound = 0x120

	// Context control blocks (OHCI 1.1 §6, §8, §9).
	regATRequestCtxCtrlSet     = 0x180
	regATRequestCtxCtrlClear   = 0x184
	regATRequestCmdPtr         = 0x18c
	regATResponseCtxCtrlSet    = 0x1a0
	regATResponseCtxCtrlClear  = 0x1a4
	regATResponseCmdPtr        = 0x1ac
	regARRequestCtxCtrlSet     = 0x1c0
	regARRequestCtxCtrlClear   = 0x1c4
	regARRequestCmdPtr         = 0x1cc
	regARResponseCtxCtrlSet    = 0x1e0
	regARResponseCtxCtrlClear  = 0x1e4
	regARResponseCmdPtr        = 0x1ec

	// Isochronous contexts start at 0x200 and step by 0x20 per context.
	regIRCtxCtrlSetBase   = 0x200
	regIRCtxCtrlClearBase = 0x204
	regIRCmdPtrBase       = 0x20c
	irCtxStride           = 0x20
)

// HCControl bits.
const (
	hcControlSoftReset   = 16
	hcControlLinkEnable  = 17
	hcControlBIBImageValid = 18
	hcControlLPS         = 19
	hcControlNoByteSwapData = 20
	hcControlProgramPhyEnable = 23
)

// LinkControl bits.
const (
	linkControlRcvSelfID   = 9
	linkControlRcvPhyPkt   = 10
	linkControlCycleTimerEnable = 20
	linkControlCycleMaster = 21
	linkControlCycleSource = 22
)

// Interrupt event bits (OHCI 1.1 §6, shared by IntEvent{Set,Clear} and
// IntMask{Set,Clear}).
const (
	evtReqTxComplete      = 0
	evtRespTxComplete     = 1
	evtRQPkt              = 2
	evtRSPkt              = 3
	evtIsochTx            = 4
	evtIsochRx            = 5
	evtPostedWriteErr     = 6
	evtLockRespErr        = 7
	evtSelfIDComplete2    = 15
	evtSelfIDComplete     = 16
	evtBusReset           = 17
	evtRegAccessFail      = 18
	evtPhy                = 20
	evtCycleSynch         = 21
	evtCycle64Seconds     = 22
	evtCycleLost          = 23
	evtCycleTooLong       = 24
	evtMasterIntEnable    = 31
	evtUnrecoverableError = 25
	evtVendorSpecific     = 30
)

// NodeID register fields.
const (
	nodeIDNodeNumberMask = 0x3f
	nodeIDBusNumberShift = 6
	nodeIDBusNumberMask  = 0x3ff
	nodeIDCPSBit         = 27
	nodeIDIDValid        = 31
)

// SelfIDCount register fields.
const (
	selfIDCountGenerationShift = 16
	selfIDCountGenerationMask  = 0xff
	selfIDCountSizeShift       = 2
	selfIDCountSizeMask        = 0x1ff // size in quadlets
	selfIDCountErrorBit        = 31
)

// PhyControl register fields (spec.md §4.1).
const (
	phyControlRdReg  = 15
	phyControlRdData = 16 // 8 bits
	phyControlRdAddr = 24 // 4 bits
	phyControlWrReg  = 14
	phyControlWrData = 0 // 8 bits
	phyControlWrAddr = 8 // 4 bits
)

// Generic context control bits (OHCI 1.1 §3, used by every context).
const (
	ctxCtrlRun    = 15
	ctxCtrlWake   = 12
	ctxCtrlDead   = 11
	ctxCtrlActive = 10
	ctxCtrlSpd0   = 16
)

// Local bus/CSR constants (spec.md §4.6, §6 GLOSSARY).
const (
	LocalBusID  = 0x3ff
	CSRBaseLo   = 0xfffff0000000
	CSRBaseHi   = 0xffffffffffff
	ConfigROMBase = 0xfffff0000400
	ConfigROMEnd  = 0xfffff00007fc

	CSROffBusManagerID          = 0x21c
	CSROffBandwidthAvailable    = 0x220
	CSROffChannelsAvailableHi   = 0x224
	CSROffChannelsAvailableLo   = 0x228
)

// DMA event codes (OHCI 1.1 table 3-2, the low byte of transferStatus).
// Values in [evCodeAckBase, evCodeAckBase+0xe] are the bare ack codes
// (event - evCodeAckBase); everything below that is named here.
const (
	evCodeNoStatus       = 0x00
	evCodeLongPacket     = 0x02
	evCodeMissingAck     = 0x03
	evCodeUnderrun       = 0x04
	evCodeOverrun        = 0x05
	evCodeDescriptorRead = 0x06
	evCodeDataRead       = 0x07
	evCodeDataWrite      = 0x08
	evCodeBusReset       = 0x09
	evCodeTimeout        = 0x0a
	evCodeTCodeErr       = 0x0b
	evCodeUnknown        = 0x0e
	evCodeFlushed        = 0x0f

	evCodeAckBase = 0x10
	evCodeAckMax  = 0x1e
)
