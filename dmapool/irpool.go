package dmapool

import "github.com/ohci1394/driver/desc"

// IRBlock is one isochronous-receive DMA block: a header descriptor and a
// payload descriptor sharing one page, with the header region padded so
// the payload lands at the caller-chosen alignment (spec.md §3, §4.7).
type IRBlock struct {
	Header  desc.Descriptor
	Payload desc.Descriptor

	HeaderAddr  uint32
	PayloadAddr uint32

	// Page is the backing storage; Payload.DataAddress points PayloadPad
	// bytes into it.
	Page       []byte
	PayloadPad int
}

// IRRing is the block ring for one isochronous-receive context.
type IRRing struct {
	Blocks []IRBlock

	// FirstDMABuffer is the index the drain loop starts walking from.
	FirstDMABuffer int
}

// NewIRRing builds a ring of n blocks with branch addresses linked into a
// closed loop (tail Z=0, others Z=2 — two descriptors per block).
func NewIRRing(n int, headerAddrs, payloadAddrs []uint32, pages [][]byte, payloadPad int) *IRRing {
	r := &IRRing{Blocks: make([]IRBlock, n)}

	for i := 0; i < n; i++ {
		b := &r.Blocks[i]
		b.HeaderAddr = headerAddrs[i]
		b.PayloadAddr = payloadAddrs[i]
		b.Page = pages[i]
		b.PayloadPad = payloadPad

		b.Header = desc.Descriptor{
			Control:     desc.CmdInputMore,
			DataAddress: b.HeaderAddr,
		}
		b.Payload = desc.Descriptor{
			Control:     desc.CmdInputLast | desc.IrqAlways | desc.BranchAlways,
			DataAddress: b.PayloadAddr,
		}
	}

	for i := 0; i < n; i++ {
		next := (i + 1) % n
		z := uint32(2)
		if i == n-1 {
			z = 0
		}
		r.Blocks[i].Payload.SetBranch(r.Blocks[next].HeaderAddr, z)
	}

	return r
}

// SwapRing is invoked after a drain pass that advanced at least one
// block: the old last block's Z is set to 2 (it is now a regular link,
// since the blocks just drained are being recycled onto the end of the
// chain) and the new last block's Z is cleared to 0, making it the
// terminator the hardware stops at.
func (r *IRRing) SwapRing(oldLast, newLast int) {
	r.Blocks[oldLast].Payload.BranchAddress = (r.Blocks[oldLast].Payload.BranchAddress &^ 0xf) | 2
	r.Blocks[newLast].Payload.BranchAddress = r.Blocks[newLast].Payload.BranchAddress &^ 0xf
}
