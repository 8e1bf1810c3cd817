// Package desc implements the OHCI-1394 hardware DMA descriptor: the
// 16-byte record the controller reads to drive every asynchronous and
// isochronous context, and the control-word bit constants that shape it.
//
// All multi-byte fields are bus-endian (little-endian); the quadlets
// returned by Bytes and consumed by Parse are ready to be placed directly
// into a DMA-visible buffer without further conversion, mirroring the
// descriptor layout in the OHCI 1.1 specification (§3).
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.
package desc

import "encoding/binary"

// Size is the size, in bytes, of one hardware descriptor.
const Size = 16

// Control-word command/key/branch/interrupt bits (OHCI 1.1 Table 3-1..3-3).
const (
	CmdOutputMore  = 0x0000
	CmdOutputLast  = 0x1000
	CmdInputMore   = 0x2800
	CmdInputLast   = 0x2c00
	KeyImmediate   = 0x0200
	BranchAlways   = 0x0030
	IrqAlways      = 0x000c
	IrqNever       = 0x0000
	StatusBit      = 0x0800
)

// Descriptor is the in-memory representation of one 16-byte hardware
// descriptor. The immediate-data region of an AT header descriptor is not
// part of this record; it directly follows the 16-byte record in the DMA
// buffer.
type Descriptor struct {
	Control        uint16
	ReqCount       uint16
	DataAddress    uint32
	BranchAddress  uint32 // low 4 bits = Z
	ResCount       uint16
	TransferStatus uint16
	TimeStamp      uint16
}

// Z returns the chain-count field of BranchAddress (0 = chain terminator).
func (d *Descriptor) Z() uint32 { return d.BranchAddress & 0xf }

// SetBranch packs a physical address and Z count into BranchAddress.
func (d *Descriptor) SetBranch(phys uint32, z uint32) {
	d.BranchAddress = (phys &^ 0xf) | (z & 0xf)
}

// Bytes marshals the descriptor into its 16-byte bus-endian wire form.
// TransferStatus and TimeStamp share the last quadlet's low half: a
// descriptor has at most one of the two meaningful when it is marshaled
// (TransferStatus is hardware-written after completion, so it is still
// zero at build time; TimeStamp is software-written before transmission
// on an AT-response header descriptor), so OR-ing them together is safe.
func (d *Descriptor) Bytes() []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint16(buf[0:2], d.Control)
	binary.LittleEndian.PutUint16(buf[2:4], d.ReqCount)
	binary.LittleEndian.PutUint32(buf[4:8], d.DataAddress)
	binary.LittleEndian.PutUint32(buf[8:12], d.BranchAddress)
	binary.LittleEndian.PutUint16(buf[12:14], d.ResCount)
	binary.LittleEndian.PutUint16(buf[14:16], d.TransferStatus|d.TimeStamp)
	return buf
}

// Parse unmarshals a 16-byte bus-endian descriptor record. The time-stamp
// field shares storage with TransferStatus in some descriptor kinds
// (AT header descriptors); callers interpret it as appropriate.
func Parse(buf []byte) Descriptor {
	var d Descriptor
	d.Control = binary.LittleEndian.Uint16(buf[0:2])
	d.ReqCount = binary.LittleEndian.Uint16(buf[2:4])
	d.DataAddress = binary.LittleEndian.Uint32(buf[4:8])
	d.BranchAddress = binary.LittleEndian.Uint32(buf[8:12])
	d.ResCount = binary.LittleEndian.Uint16(buf[12:14])
	d.TransferStatus = binary.LittleEndian.Uint16(buf[14:16])
	return d
}

// PutTransferStatus overwrites only the transferStatus quadlet half of an
// already-marshaled descriptor buffer, used by the reconciliation path to
// stamp MISSING_ACK without re-encoding the whole record.
func PutTransferStatus(buf []byte, status uint16) {
	binary.LittleEndian.PutUint16(buf[14:16], status)
}
