package vmm

import (
	"gopherberry/kernel"
	"gopherberry/kernel/kfmt"
	"gopherberry/kernel/mm"
)

// HeapFailureExitCode is the exit code of a process whose heap resize
// request could not be served.
const HeapFailureExitCode = 102

var (
	// ErrInvalidProgramAddress is returned when a program page lies outside
	// the program area.
	ErrInvalidProgramAddress = &kernel.Error{Module: "vmm", Message: "program page outside of program area"}

	// ErrPageAlreadyMapped is returned when a program page is registered twice.
	ErrPageAlreadyMapped = &kernel.Error{Module: "vmm", Message: "program page already mapped"}

	// ErrHeapLimitReached is returned when the application heap reaches the
	// stack area.
	ErrHeapLimitReached = &kernel.Error{Module: "vmm", Message: "application heap exceeded its maximum size"}

	// ErrHeapEmpty is returned when freeing more pages than the application
	// heap holds.
	ErrHeapEmpty = &kernel.Error{Module: "vmm", Message: "cannot free pages of an empty application heap"}

	// ErrHeapPageAlreadyDeallocated is returned when a heap page that should
	// be mapped has no backing frame.
	ErrHeapPageAlreadyDeallocated = &kernel.Error{Module: "vmm", Message: "application heap page already deallocated"}

	// ErrProtectionViolation is returned for faults that cannot be resolved
	// by growing the stack.
	ErrProtectionViolation = &kernel.Error{Module: "vmm", Message: "access violates application memory protection"}

	// ErrSpaceDestroyed is returned when using a destroyed address space.
	ErrSpaceDestroyed = &kernel.Error{Module: "vmm", Message: "application address space destroyed"}
)

// ApplicationSpace is the upper half of the address space of one process:
//
//	0x8000_0000 - 0x9FFF_FFFF: program image
//	0xA000_0000 - 0xDFFF_FFFF: heap, growing up
//	0xE000_0000 - 0xFFFF_FFFF: stack, growing down
//
// All of its mappings are non-global so they are tagged with the space's ASID.
type ApplicationSpace struct {
	ctx   *Context
	table RegionTable

	lastHeapPage  mm.Page
	lastStackPage mm.Page

	asid      uint8
	hasASID   bool
	destroyed bool
}

// NewApplicationSpace returns an empty application space. No ASID is
// assigned until the space is activated.
func NewApplicationSpace(ctx *Context) (*ApplicationSpace, *kernel.Error) {
	space := &ApplicationSpace{
		ctx:           ctx,
		lastHeapPage:  AppHeapStart,
		lastStackPage: AppEnd,
	}

	if err := space.table.initApplication(ctx.Frames, ctx.Phys); err != nil {
		return nil, err
	}

	ctx.MMU.DataSyncBarrier()
	return space, nil
}

// ASID returns the address space identifier currently held by the space.
func (s *ApplicationSpace) ASID() (uint8, bool) {
	return s.asid, s.hasASID
}

// HeapTop returns the address following the last heap page.
func (s *ApplicationSpace) HeapTop() uintptr {
	return s.lastHeapPage.Address()
}

// StackBottom returns the lowest mapped stack address.
func (s *ApplicationSpace) StackBottom() uintptr {
	return s.lastStackPage.Address()
}

// Translate returns the physical address mapped at vaddr.
func (s *ApplicationSpace) Translate(vaddr uintptr) (uintptr, bool) {
	if s.destroyed {
		return 0, false
	}
	return s.table.Translate(vaddr)
}

// Activate installs the space on the executing core. The space that was
// resident on the core is evicted and its TLB entries dropped; a space
// without an ASID receives one. The TTBR1 walk is disabled while the ASID and
// the table base are switched.
func (s *ApplicationSpace) Activate() *kernel.Error {
	if s.destroyed {
		return ErrSpaceDestroyed
	}

	var (
		mmu   = s.ctx.MMU
		pool  = &s.ctx.asids
		core  = s.ctx.coreID()
		prev  = pool.resident[core]
		fresh = !s.hasASID
	)

	if prev == s && !fresh {
		return nil
	}

	if prev != nil && prev != s && prev.hasASID {
		mmu.InvalidateTLBASID(prev.asid)
	}
	pool.resident[core] = nil

	if fresh {
		pool.assign(mmu, s)
	}

	mmu.SetTranslationControl(ttbcrSplit | ttbcrDisableApp)
	mmu.InstructionSyncBarrier()
	mmu.SetContextID(uint32(s.asid))
	mmu.SetApplicationTableBase(s.table.HardwareBase() | ttbAttributes)
	mmu.InstructionSyncBarrier()
	mmu.SetTranslationControl(ttbcrSplit)

	pool.resident[core] = s
	return nil
}

// RegisterProgramPage maps a zeroed frame at vpage inside the program area
// and returns it so the loader can fill it.
func (s *ApplicationSpace) RegisterProgramPage(vpage mm.Page, executable, writable bool) (mm.Frame, *kernel.Error) {
	if s.destroyed {
		return mm.InvalidFrame, ErrSpaceDestroyed
	}

	if vpage < ProgramStart || vpage >= AppHeapStart {
		return mm.InvalidFrame, ErrInvalidProgramAddress
	}

	if _, mapped := s.table.Translate(vpage.Address()); mapped {
		return mm.InvalidFrame, ErrPageAlreadyMapped
	}

	frame, err := s.mapPage(vpage, programFlags(executable, writable))
	if err != nil {
		return mm.InvalidFrame, err
	}

	s.ctx.MMU.DataSyncBarrier()
	if TraceAppPages {
		kfmt.Printf("[vmm] allocated application program page at 0x%8x\n", vpage.Address())
	}
	return frame, nil
}

// ReserveHeapPages extends the heap by count zeroed pages and returns the
// address of the first new page. On failure the heap is left unchanged.
func (s *ApplicationSpace) ReserveHeapPages(count uintptr) (uintptr, *kernel.Error) {
	if s.destroyed {
		return 0, ErrSpaceDestroyed
	}

	first := s.lastHeapPage
	for added := uintptr(0); added < count; added++ {
		if s.lastHeapPage >= AppStackLimit {
			_ = s.FreeHeapPages(added)
			return 0, ErrHeapLimitReached
		}

		if _, err := s.mapPage(s.lastHeapPage, appDataFlags); err != nil {
			_ = s.FreeHeapPages(added)
			return 0, err
		}
		s.lastHeapPage++
	}

	s.ctx.MMU.DataSyncBarrier()
	if TraceAppPages {
		kfmt.Printf("[vmm] allocated %d application heap pages at 0x%8x\n", count, first.Address())
	}
	return first.Address(), nil
}

// FreeHeapPages shrinks the heap by count pages. Each page is removed from
// the table and from the TLB entries of the space's ASID before its frame is
// released.
func (s *ApplicationSpace) FreeHeapPages(count uintptr) *kernel.Error {
	if s.destroyed {
		return ErrSpaceDestroyed
	}

	mmu := s.ctx.MMU
	for ; count > 0; count-- {
		if s.lastHeapPage <= AppHeapStart {
			return ErrHeapEmpty
		}
		if _, mapped := s.table.Translate((s.lastHeapPage - 1).Address()); !mapped {
			return ErrHeapPageAlreadyDeallocated
		}
		s.lastHeapPage--

		frame, _ := s.table.UnregisterFrame(s.lastHeapPage)
		mmu.DataSyncBarrier()
		if s.hasASID {
			mmu.InvalidateTLBASIDEntry(s.asid, s.lastHeapPage.Address())
			mmu.DataSyncBarrier()
		}
		s.ctx.Frames.DeallocateFrame(frame)
	}

	if TraceAppPages {
		kfmt.Printf("[vmm] application heap shrunk to 0x%8x\n", s.lastHeapPage.Address())
	}
	return nil
}

// AdjustHeap serves the heap resize system call: a non-negative delta
// reserves pages, a negative delta frees them. It returns the heap top after
// the change. Callers terminate the process with HeapFailureExitCode when an
// error is returned.
func (s *ApplicationSpace) AdjustHeap(delta int) (uintptr, *kernel.Error) {
	if delta >= 0 {
		if _, err := s.ReserveHeapPages(uintptr(delta)); err != nil {
			return 0, err
		}
		return s.HeapTop(), nil
	}

	if err := s.FreeHeapPages(uintptr(-delta)); err != nil {
		return 0, err
	}
	return s.HeapTop(), nil
}

// AddStackPage maps one more zeroed page below the stack.
func (s *ApplicationSpace) AddStackPage() *kernel.Error {
	if s.destroyed {
		return ErrSpaceDestroyed
	}

	if s.lastStackPage <= AppStackLimit {
		return ErrStackLimitReached
	}

	if _, err := s.mapPage(s.lastStackPage-1, appDataFlags); err != nil {
		return err
	}
	s.lastStackPage--

	s.ctx.MMU.DataSyncBarrier()
	return nil
}

// GrowStack maps the pages needed for faultAddr to become a valid stack
// address.
func (s *ApplicationSpace) GrowStack(faultAddr uintptr) *kernel.Error {
	page := mm.PageFromAddress(faultAddr)
	switch {
	case page >= s.lastStackPage:
		return nil
	case page < AppStackLimit:
		return ErrStackLimitReached
	case uintptr(s.lastStackPage-page) > MaxStackGrowth:
		return ErrStackGrowthTooLarge
	}

	for page < s.lastStackPage {
		if err := s.AddStackPage(); err != nil {
			return err
		}
	}

	if TraceAppPages {
		kfmt.Printf("[vmm] application stack grown to 0x%8x\n", s.lastStackPage.Address())
	}
	return nil
}

// HandleFault resolves a data abort raised by the process. Translation
// faults inside the stack area grow the stack; any other fault is a
// protection violation and the process must be terminated.
func (s *ApplicationSpace) HandleFault(faultAddr uintptr, status FaultStatus) *kernel.Error {
	if status.Kind() != FaultTranslation || !inPages(faultAddr, AppStackLimit, AppEnd) {
		return ErrProtectionViolation
	}

	if err := s.GrowStack(faultAddr); err != nil {
		return ErrProtectionViolation
	}
	return nil
}

// Destroy releases every frame mapped by the space, its frame tables and
// its region table. If the space is resident on the executing core the
// application half of the address space is disabled. The space must not be
// resident on any other core.
func (s *ApplicationSpace) Destroy() {
	if s.destroyed {
		return
	}

	var (
		mmu  = s.ctx.MMU
		pool = &s.ctx.asids
		core = s.ctx.coreID()
	)

	for c, resident := range pool.resident {
		if resident != s {
			continue
		}

		if uint8(c) == core {
			mmu.SetTranslationControl(ttbcrSplit | ttbcrDisableApp)
			mmu.InstructionSyncBarrier()
		}
		pool.resident[c] = nil
	}

	if s.hasASID {
		mmu.InvalidateTLBASID(s.asid)
	}
	pool.release(s)

	mmu.DataSyncBarrier()

	// No TLB holds a translation of the space anymore.
	s.releasePages(ProgramStart, s.lastHeapPage)
	s.releasePages(s.lastStackPage, AppEnd)
	s.table.Release()
	s.destroyed = true

	if TraceAppPages {
		kfmt.Printf("[vmm] destroyed application address space\n")
	}
}

// releasePages returns the frames mapped in [first, end) to the allocator.
// Regions without a frame table are skipped as a whole.
func (s *ApplicationSpace) releasePages(first, end mm.Page) {
	for page := first; page < end; {
		ft, ok := s.table.FrameTable(page.Region())
		if !ok {
			page = (page.Region() + 1).Page(0)
			continue
		}

		if frame, mapped := ft.Lookup(page.Index()); mapped {
			s.ctx.Frames.DeallocateFrame(frame)
		}
		page++
	}
}

// mapPage maps a freshly allocated and zeroed frame at vpage.
func (s *ApplicationSpace) mapPage(vpage mm.Page, flags Flags) (mm.Frame, *kernel.Error) {
	frame, err := s.ctx.Frames.AllocateFrame()
	if err != nil {
		return mm.InvalidFrame, err
	}

	s.ctx.Phys.Memset(frame.Address(), 0, mm.PageSize)
	if err = s.table.RegisterFrame(vpage, frame, flags); err != nil {
		s.ctx.Frames.DeallocateFrame(frame)
		return mm.InvalidFrame, err
	}

	return frame, nil
}
