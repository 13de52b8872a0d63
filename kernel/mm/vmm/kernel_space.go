package vmm

import (
	"gopherberry/kernel"
	"gopherberry/kernel/kfmt"
	"gopherberry/kernel/mm"
	"gopherberry/kernel/sync"
)

var (
	// ErrKernelHeapFull is returned when the kernel heap reaches the
	// supervisor stack area.
	ErrKernelHeapFull = &kernel.Error{Module: "vmm", Message: "kernel heap exceeded its maximum size"}

	// ErrKernelHeapEmpty is returned when freeing more pages than the kernel
	// heap holds.
	ErrKernelHeapEmpty = &kernel.Error{Module: "vmm", Message: "cannot free pages of an empty kernel heap"}

	// ErrPageAlreadyUnmapped is returned when a heap page that should be
	// mapped has no backing frame.
	ErrPageAlreadyUnmapped = &kernel.Error{Module: "vmm", Message: "heap page already deallocated"}

	// ErrStackLimitReached is returned when a stack cannot grow any further.
	ErrStackLimitReached = &kernel.Error{Module: "vmm", Message: "stack exceeded its maximum size"}

	// ErrStackGrowthTooLarge is returned when a single stack fault requires
	// more than MaxStackGrowth pages.
	ErrStackGrowthTooLarge = &kernel.Error{Module: "vmm", Message: "too many stack pages requested at once"}

	errInvalidKernelLayout = &kernel.Error{Module: "vmm", Message: "invalid kernel image layout"}
	errInvalidRAMSize      = &kernel.Error{Module: "vmm", Message: "RAM size does not fit the identity mapping"}
)

// KernelLayout describes the physical placement of the kernel image inside
// the first region. All addresses must be page aligned. The first page holds
// the exception vectors and the pages up to TextStart hold the boot stacks.
type KernelLayout struct {
	TextStart   uintptr
	RodataStart uintptr
	DataStart   uintptr
}

// KernelSpace is the kernel half of the address space. It identity maps RAM
// and peripherals and owns the kernel heap and the supervisor stack:
//
//	0x0000_0000 - 0x400F_FFFF: identity mapping
//	0x5000_0000 - 0x6FFF_FFFF: kernel heap, growing up
//	0x7000_0000 - 0x7FFF_FFFF: supervisor stack, growing down
type KernelSpace struct {
	ctx   *Context
	table RegionTable

	lastHeapPage  mm.Page
	lastStackPage mm.Page

	activation sync.Spinlock
}

// Init builds the kernel region table. memSize is the amount of RAM reported
// by the firmware; the regions above it, up to the end of the peripheral
// block, are mapped as device memory.
func (ks *KernelSpace) Init(ctx *Context, layout KernelLayout, memSize uintptr) *kernel.Error {
	if !layout.valid() {
		return errInvalidKernelLayout
	}

	ramRegions := memSize >> mm.RegionShift
	if ramRegions == 0 || ramRegions > KernelIdentityRegions {
		return errInvalidRAMSize
	}

	ks.ctx = ctx
	if err := ks.table.initKernel(ctx.Frames, ctx.Phys); err != nil {
		return err
	}

	if err := ks.mapKernelImage(layout); err != nil {
		return err
	}

	for r := uintptr(1); r < ramRegions; r++ {
		ks.table.RegisterRegion(mm.Region(r), mm.Region(r), kernelDataFlags, false)
	}

	for r := ramRegions; r < KernelIdentityRegions; r++ {
		ks.table.RegisterRegion(mm.Region(r), mm.Region(r), deviceFlags, false)
	}

	for i := mm.Page(0); kernelInitialStackPage+i < kernelStackEnd; i++ {
		if err := ks.table.RegisterFrame(kernelInitialStackPage+i, bootStackFrame+mm.Frame(i), kernelDataFlags); err != nil {
			return err
		}
	}

	ks.lastHeapPage = KernelHeapStart
	ks.lastStackPage = kernelInitialStackPage
	ctx.MMU.DataSyncBarrier()
	return nil
}

func (layout KernelLayout) valid() bool {
	aligned := (layout.TextStart|layout.RodataStart|layout.DataStart)&(mm.PageSize-1) == 0
	return aligned &&
		layout.TextStart >= minKernelTextStart &&
		layout.TextStart <= layout.RodataStart &&
		layout.RodataStart <= layout.DataStart &&
		layout.DataStart <= mm.RegionSize
}

// mapKernelImage identity maps the first region page by page so each kernel
// section gets its own permissions.
func (ks *KernelSpace) mapKernelImage(layout KernelLayout) *kernel.Error {
	var (
		textPage   = mm.PageFromAddress(layout.TextStart)
		rodataPage = mm.PageFromAddress(layout.RodataStart)
		dataPage   = mm.PageFromAddress(layout.DataStart)
	)

	for page := mm.Page(0); page < mm.Page(mm.FramesPerRegion); page++ {
		var flags Flags
		switch {
		case page == 0:
			flags = kernelTextFlags
		case page < textPage:
			flags = kernelDataFlags
		case page < rodataPage:
			flags = kernelTextFlags
		case page < dataPage:
			flags = kernelRodataFlags
		default:
			flags = kernelDataFlags
		}

		if err := ks.table.RegisterFrame(page, mm.Frame(page), flags); err != nil {
			return err
		}
	}

	return nil
}

// Activate installs the kernel table on the executing core. Translation is
// turned off while the caches, the branch predictor and the TLB are
// invalidated and the table registers are programmed. The application half
// stays disabled until an application space is activated.
func (ks *KernelSpace) Activate() {
	ks.activation.Acquire()
	defer ks.activation.Release()

	mmu := ks.ctx.MMU
	mmu.DisableTranslation()

	mmu.InvalidateInstructionCache()
	mmu.InvalidateBranchPredictor()
	mmu.InvalidateTLB()
	mmu.DataSyncBarrier()

	mmu.SetTranslationControl(ttbcrSplit | ttbcrDisableApp)
	mmu.SetKernelTableBase(ks.table.HardwareBase() | ttbAttributes)
	mmu.SetDomainAccess(dacrClient)

	mmu.EnableTranslation()
	mmu.DataSyncBarrier()
	mmu.InstructionSyncBarrier()
}

// FirstBackingAddress returns the address of the first kernel heap page.
func (ks *KernelSpace) FirstBackingAddress() uintptr {
	return KernelHeapStart.Address()
}

// HeapTop returns the address following the last kernel heap page.
func (ks *KernelSpace) HeapTop() uintptr {
	return ks.lastHeapPage.Address()
}

// ReservePages extends the kernel heap by count pages and returns the address
// of the first new page. On failure the heap is left unchanged.
func (ks *KernelSpace) ReservePages(count uintptr) (uintptr, *kernel.Error) {
	first := ks.lastHeapPage
	for added := uintptr(0); added < count; added++ {
		if err := ks.mapHeapPage(); err != nil {
			_ = ks.FreePages(added)
			return 0, err
		}
	}

	ks.ctx.MMU.DataSyncBarrier()
	if TraceKernelHeap {
		kfmt.Printf("[vmm] allocated %d kernel heap pages at 0x%8x\n", count, first.Address())
	}
	return first.Address(), nil
}

func (ks *KernelSpace) mapHeapPage() *kernel.Error {
	if ks.lastHeapPage >= KernelStackLimit {
		return ErrKernelHeapFull
	}

	frame, err := ks.ctx.Frames.AllocateFrame()
	if err != nil {
		return err
	}

	if err = ks.table.RegisterFrame(ks.lastHeapPage, frame, kernelDataFlags); err != nil {
		ks.ctx.Frames.DeallocateFrame(frame)
		return err
	}

	ks.lastHeapPage++
	return nil
}

// FreePages shrinks the kernel heap by count pages. Each page is removed
// from the table and from every TLB before its frame is released.
func (ks *KernelSpace) FreePages(count uintptr) *kernel.Error {
	mmu := ks.ctx.MMU
	for ; count > 0; count-- {
		if ks.lastHeapPage <= KernelHeapStart {
			return ErrKernelHeapEmpty
		}
		if _, mapped := ks.table.Translate((ks.lastHeapPage - 1).Address()); !mapped {
			return ErrPageAlreadyUnmapped
		}
		ks.lastHeapPage--

		frame, _ := ks.table.UnregisterFrame(ks.lastHeapPage)

		mmu.DataSyncBarrier()
		mmu.InvalidateTLBEntry(ks.lastHeapPage.Address())
		mmu.DataSyncBarrier()
		ks.ctx.Frames.DeallocateFrame(frame)
	}

	if TraceKernelHeap {
		kfmt.Printf("[vmm] kernel heap shrunk to 0x%8x\n", ks.lastHeapPage.Address())
	}
	return nil
}

// StackBottom returns the lowest mapped supervisor stack address.
func (ks *KernelSpace) StackBottom() uintptr {
	return ks.lastStackPage.Address()
}

// AddStackPages maps count more pages below the supervisor stack.
func (ks *KernelSpace) AddStackPages(count uintptr) *kernel.Error {
	for ; count > 0; count-- {
		if ks.lastStackPage <= KernelStackLimit {
			return ErrStackLimitReached
		}

		frame, err := ks.ctx.Frames.AllocateFrame()
		if err != nil {
			return err
		}

		if err = ks.table.RegisterFrame(ks.lastStackPage-1, frame, kernelDataFlags); err != nil {
			ks.ctx.Frames.DeallocateFrame(frame)
			return err
		}
		ks.lastStackPage--
	}

	ks.ctx.MMU.DataSyncBarrier()
	if TraceKernelHeap {
		kfmt.Printf("[vmm] supervisor stack grown to 0x%8x\n", ks.lastStackPage.Address())
	}
	return nil
}

// GrowStack maps the pages needed for faultAddr to become a valid supervisor
// stack address.
func (ks *KernelSpace) GrowStack(faultAddr uintptr) *kernel.Error {
	page := mm.PageFromAddress(faultAddr)
	switch {
	case page >= ks.lastStackPage:
		return nil
	case page < KernelStackLimit:
		return ErrStackLimitReached
	case uintptr(ks.lastStackPage-page) > MaxStackGrowth:
		return ErrStackGrowthTooLarge
	}

	return ks.AddStackPages(uintptr(ks.lastStackPage - page))
}

// Translate returns the physical address mapped at vaddr.
func (ks *KernelSpace) Translate(vaddr uintptr) (uintptr, bool) {
	return ks.table.Translate(vaddr)
}

// HandleFault resolves a data abort raised in kernel mode. Translation
// faults inside the supervisor stack area grow the stack; anything else is
// reported back as unrecoverable.
func (ks *KernelSpace) HandleFault(faultAddr uintptr, status FaultStatus) *kernel.Error {
	if status.Kind() != FaultTranslation || !inPages(faultAddr, KernelStackLimit, kernelStackEnd) {
		return errUnrecoverableFault
	}
	return ks.GrowStack(faultAddr)
}

// DataAbort is the kernel-mode data abort entry point. Faults that cannot be
// resolved halt the kernel.
func (ks *KernelSpace) DataAbort(faultAddr uintptr, status FaultStatus) {
	if err := ks.HandleFault(faultAddr, status); err != nil {
		nonRecoverableFault(faultAddr, status, err)
	}
}

func inPages(addr uintptr, first, end mm.Page) bool {
	page := mm.PageFromAddress(addr)
	return page >= first && page < end
}
