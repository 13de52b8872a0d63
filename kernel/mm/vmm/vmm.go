// Package vmm manages the ARM short-descriptor translation tables. The lower
// half of the address space (TTBR0) belongs to the kernel and is shared by all
// cores; the upper half (TTBR1) holds one application address space per
// process, tagged with an ASID so switching processes does not require a full
// TLB flush.
package vmm

import (
	"gopherberry/kernel"
	"gopherberry/kernel/mm"
	"gopherberry/kernel/mm/pmm"
)

var (
	// TraceKernelHeap enables logging of kernel heap and stack page changes.
	TraceKernelHeap = false

	// TraceAppPages enables logging of application page changes.
	TraceAppPages = false

	errInvalidCore = &kernel.Error{Module: "vmm", Message: "core id outside of supported range"}
	errNoASID      = &kernel.Error{Module: "vmm", Message: "no address space identifier available"}
)

// MMU exposes the system control operations needed to manage translation
// tables. Every hardware side effect of this package goes through it.
type MMU interface {
	// CoreID returns the index of the executing core.
	CoreID() uint8

	// DisableTranslation turns off the MMU, the caches, branch prediction,
	// TEX remap and the access flag.
	DisableTranslation()

	// EnableTranslation turns on the MMU, the caches, branch prediction,
	// SWP instructions and alignment checking.
	EnableTranslation()

	InvalidateInstructionCache()
	InvalidateBranchPredictor()

	// InvalidateTLB drops every TLB entry.
	InvalidateTLB()

	// InvalidateTLBEntry drops the entries of vaddr for every ASID.
	InvalidateTLBEntry(vaddr uintptr)

	// InvalidateTLBASID drops every non-global entry tagged with asid.
	InvalidateTLBASID(asid uint8)

	// InvalidateTLBASIDEntry drops the entry of vaddr tagged with asid.
	InvalidateTLBASIDEntry(asid uint8, vaddr uintptr)

	DataSyncBarrier()
	InstructionSyncBarrier()

	SetTranslationControl(value uint32)
	SetKernelTableBase(value uint32)
	SetApplicationTableBase(value uint32)
	SetDomainAccess(value uint32)
	SetContextID(value uint32)
}

// Context holds the state shared by every address space: the frame
// allocator backing tables and pages, the physical memory the tables live
// in, the MMU and the ASID bookkeeping.
type Context struct {
	Frames *pmm.FrameAllocator
	Phys   mm.Memory
	MMU    MMU

	asids asidPool
}

// asidPool hands out ASIDs round-robin and tracks the application space
// resident on each core.
type asidPool struct {
	owners   [asidCount]*ApplicationSpace
	next     uint8
	resident [MaxCores]*ApplicationSpace
}

// assign gives space a fresh ASID. An ASID that is still owned by another
// space is reclaimed: its owner loses it and its TLB entries are dropped.
// ASIDs of spaces that are resident on a core are never reclaimed.
func (p *asidPool) assign(mmu MMU, space *ApplicationSpace) {
	for tries := 0; tries < asidCount; tries++ {
		asid := p.next
		p.next++

		prev := p.owners[asid]
		if prev != nil && p.isResident(prev) {
			continue
		}

		if prev != nil {
			prev.hasASID = false
			mmu.InvalidateTLBASID(asid)
		}

		p.owners[asid] = space
		space.asid, space.hasASID = asid, true
		return
	}

	panic(errNoASID)
}

// release drops the ASID of space, if any.
func (p *asidPool) release(space *ApplicationSpace) {
	if space.hasASID && p.owners[space.asid] == space {
		p.owners[space.asid] = nil
	}
	space.hasASID = false
}

func (p *asidPool) isResident(space *ApplicationSpace) bool {
	for _, resident := range p.resident {
		if resident == space {
			return true
		}
	}
	return false
}

// coreID returns the index of the executing core after validating it.
func (ctx *Context) coreID() uint8 {
	core := ctx.MMU.CoreID()
	if core >= MaxCores {
		panic(errInvalidCore)
	}
	return core
}
