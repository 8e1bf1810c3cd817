package dmapool

import "github.com/ohci1394/driver/desc"

// ARPageSize is the size of one AR ring page: 4-byte aligned, big enough
// for a max-size S400 packet (spec.md §3: "≥2068 to fit a max-size S400
// packet", capped at the hardware's 16-bit resCount width).
const ARPageSize = 65532

// ARPageCount is the number of pages arranged in the AR ring.
const ARPageCount = 10

// ARPage is one descriptor plus its backing data page.
type ARPage struct {
	Desc     desc.Descriptor
	DescAddr uint32 // physical address of Desc's 16-byte record
	Data     []byte // ARPageSize bytes, DMA-addressable
	DataAddr uint32
}

// ARRing is the ten-page ring one AR context drains packets from.
type ARRing struct {
	Pages [ARPageCount]ARPage

	// FirstBuffer: oldest not-yet-drained page index.
	FirstBuffer int
	// FirstQuadlet: byte offset of the first unread byte within
	// Pages[FirstBuffer].Data.
	FirstQuadlet int
	// LastBuffer: index of the page currently serving as the chain
	// terminator (Z == 0); every other page has Z == 1.
	LastBuffer int
}

// NewARRing builds a ring over pre-allocated, contiguous page buffers
// (descAddrs/dataAddrs are the physical addresses of each page's
// descriptor record and data region respectively) and links their branch
// addresses into a closed loop with the tail's Z cleared to 0.
func NewARRing(dataAddrs, descAddrs [ARPageCount]uint32, data [ARPageCount][]byte) *ARRing {
	r := &ARRing{LastBuffer: ARPageCount - 1}

	for i := 0; i < ARPageCount; i++ {
		p := &r.Pages[i]
		p.DataAddr = dataAddrs[i]
		p.DescAddr = descAddrs[i]
		p.Data = data[i]

		p.Desc = desc.Descriptor{
			Control:     desc.CmdInputMore,
			ReqCount:    ARPageSize,
			DataAddress: p.DataAddr,
			ResCount:    ARPageSize,
		}
	}

	for i := 0; i < ARPageCount; i++ {
		next := (i + 1) % ARPageCount
		z := uint32(1)
		if i == r.LastBuffer {
			z = 0
		}
		r.Pages[i].Desc.SetBranch(r.Pages[next].DescAddr, z)
	}

	return r
}

// FirstDescAddr returns the physical address CommandPtr must be loaded
// with to start the context (Z == 1, per spec.md §4.4).
func (r *ARRing) FirstDescAddr() uint32 {
	return r.Pages[0].DescAddr
}

// Advance moves FirstBuffer to its ring successor, resetting the just
// fully-drained page's descriptor for reuse.
func (r *ARRing) Advance() {
	p := &r.Pages[r.FirstBuffer]
	p.Desc.ResCount = ARPageSize
	p.Desc.TransferStatus = 0

	r.FirstBuffer = (r.FirstBuffer + 1) % ARPageCount
	r.FirstQuadlet = 0
}

// Successor returns the page index after FirstBuffer without advancing.
func (r *ARRing) Successor() int {
	return (r.FirstBuffer + 1) % ARPageCount
}

// Relink extends the chain by one page: the old LastBuffer gets Z=1 (no
// longer the terminator), the just-consumed page (at index i) becomes the
// new LastBuffer with Z=0.
func (r *ARRing) Relink(i int) {
	old := &r.Pages[r.LastBuffer]
	old.Desc.BranchAddress = (old.Desc.BranchAddress &^ 0xf) | 1

	newLast := &r.Pages[i]
	newLast.Desc.BranchAddress = newLast.Desc.BranchAddress &^ 0xf

	r.LastBuffer = i
}
