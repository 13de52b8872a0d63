package vmm

import (
	"gopherberry/kernel"
	"gopherberry/kernel/mm"
	"gopherberry/kernel/mm/pmm"
)

var (
	errSlotOutOfRange = &kernel.Error{Module: "vmm", Message: "translation table index outside of table"}
	errRegionMapped   = &kernel.Error{Module: "vmm", Message: "cannot map a frame inside a region mapping"}
	errNotDivided     = &kernel.Error{Module: "vmm", Message: "region is not mapped through a frame table"}
	errGroupMapped    = &kernel.Error{Module: "vmm", Message: "cannot split a region group with mapped slots"}
)

// table is a window of capacity consecutive 32-bit descriptors. Slot first
// is stored at physical address base.
type table struct {
	mem      mm.Memory
	base     uintptr
	first    uintptr
	capacity uintptr
}

func (t table) contains(index uintptr) bool {
	return index >= t.first && index-t.first < t.capacity
}

func (t table) slotAddr(index uintptr) uintptr {
	if !t.contains(index) {
		panic(errSlotOutOfRange)
	}
	return t.base + (index-t.first)*mm.WordSize
}

func (t table) entry(index uintptr) uint32 {
	return t.mem.Word(t.slotAddr(index))
}

func (t table) setEntry(index uintptr, value uint32) {
	t.mem.SetWord(t.slotAddr(index), value)
}

// FrameTable is a second-level table mapping the 256 pages of a region.
type FrameTable struct {
	table
}

func frameTableAt(mem mm.Memory, addr uintptr) FrameTable {
	return FrameTable{table{mem: mem, base: addr, capacity: frameTableEntries}}
}

// Address returns the physical address of the table.
func (ft FrameTable) Address() uintptr {
	return ft.base
}

// Lookup returns the frame mapped at the index-th page of the region.
func (ft FrameTable) Lookup(index uintptr) (mm.Frame, bool) {
	entry := ft.entry(index)
	if entry&frameValidBit == 0 {
		return mm.InvalidFrame, false
	}
	return mm.FrameFromAddress(uintptr(entry & frameAddrMask)), true
}

// RegionTable is a first-level translation table. The kernel and the
// application tables share this type and differ in the slots they own.
//
// Frame tables created on demand come in quartets: one zeroed frame holds
// the four tables of an aligned group of four regions and all four slots of
// the group are linked at once. The frames are owned by the region table and
// returned by Release.
type RegionTable struct {
	table

	frames     *pmm.FrameAllocator
	storage    mm.Frame
	kernelExec bool
	quartets   [regionGroups]mm.Frame
}

// initKernel allocates and clears an 8 KiB aligned table for the TTBR0 slots.
func (t *RegionTable) initKernel(frames *pmm.FrameAllocator, mem mm.Memory) *kernel.Error {
	storage, err := frames.AllocateDoubleFrame()
	if err != nil {
		return err
	}

	t.init(frames, mem, storage, kernelTableFirst, kernelTableRegions, true)
	return nil
}

// initApplication allocates and clears the storage for the TTBR1 slots. The
// storage is the upper half of a 16 KiB aligned window so that the hardware
// base, 8 KiB below it, satisfies the TTBR alignment.
func (t *RegionTable) initApplication(frames *pmm.FrameAllocator, mem mm.Memory) *kernel.Error {
	storage, err := frames.AllocateUpperDoubleFrame()
	if err != nil {
		return err
	}

	t.init(frames, mem, storage, appTableFirst, appTableRegions, false)
	return nil
}

func (t *RegionTable) init(frames *pmm.FrameAllocator, mem mm.Memory, storage mm.Frame, first, capacity uintptr, kernelExec bool) {
	t.table = table{mem: mem, base: storage.Address(), first: first, capacity: capacity}
	t.frames = frames
	t.storage = storage
	t.kernelExec = kernelExec
	t.quartets = [regionGroups]mm.Frame{}
	mem.Memset(t.base, 0, capacity*mm.WordSize)
}

// Base returns the physical address of the first owned slot.
func (t *RegionTable) Base() uintptr {
	return t.base
}

// HardwareBase returns the value programmed into the translation table base
// register, without the walk attributes.
func (t *RegionTable) HardwareBase() uint32 {
	return uint32(t.base - t.first*mm.WordSize)
}

// RegisterRegion maps the virtual region vreg onto the physical region preg.
func (t *RegionTable) RegisterRegion(vreg, preg mm.Region, flags Flags, kernelExec bool) {
	t.setEntry(uintptr(vreg), flags.regionEntry(preg, kernelExec))
}

// RegisterFrameTable points the slot of vreg to an existing frame table.
func (t *RegionTable) RegisterFrameTable(vreg mm.Region, ft FrameTable, kernelExec bool) {
	t.setEntry(uintptr(vreg), frameTableEntry(ft.Address(), kernelExec))
}

// UnregisterRegion clears the slot of vreg. Frame tables referenced by the
// slot stay owned by the region table until Release.
func (t *RegionTable) UnregisterRegion(vreg mm.Region) {
	t.setEntry(uintptr(vreg), 0)
}

// FrameTable returns the frame table referenced by the slot of vreg.
func (t *RegionTable) FrameTable(vreg mm.Region) (FrameTable, bool) {
	entry := t.entry(uintptr(vreg))
	if entry&descTypeMask != descFrameTable {
		return FrameTable{}, false
	}
	return frameTableAt(t.mem, uintptr(entry&tableAddrMask)), true
}

// RegisterFrame maps the virtual page vpage onto frame. If the region of the
// page is unmapped, a frame table is created for it first. Mapping a page
// inside a region mapping panics.
func (t *RegionTable) RegisterFrame(vpage mm.Page, frame mm.Frame, flags Flags) *kernel.Error {
	ft, err := t.frameTableFor(vpage.Region())
	if err != nil {
		return err
	}

	ft.setEntry(vpage.Index(), flags.frameEntry(frame))
	return nil
}

// UnregisterFrame removes the mapping of vpage and returns the frame it
// pointed to. The region of the page must be mapped through a frame table.
func (t *RegionTable) UnregisterFrame(vpage mm.Page) (mm.Frame, bool) {
	ft, ok := t.FrameTable(vpage.Region())
	if !ok {
		panic(errNotDivided)
	}

	frame, mapped := ft.Lookup(vpage.Index())
	ft.setEntry(vpage.Index(), 0)
	return frame, mapped
}

// Translate returns the physical address that vaddr maps to.
func (t *RegionTable) Translate(vaddr uintptr) (uintptr, bool) {
	vreg := uintptr(mm.RegionFromAddress(vaddr))
	if !t.contains(vreg) {
		return 0, false
	}

	entry := t.entry(vreg)
	switch entry & descTypeMask {
	case descUnmapped:
		return 0, false
	case descFrameTable:
		frame, ok := frameTableAt(t.mem, uintptr(entry&tableAddrMask)).Lookup(mm.PageFromAddress(vaddr).Index())
		if !ok {
			return 0, false
		}
		return frame.Address() | vaddr&(mm.PageSize-1), true
	default:
		return uintptr(entry&regionAddrMask) | vaddr&(mm.RegionSize-1), true
	}
}

// Release returns the frame table quartets and the table storage to the
// frame allocator. The table must not be used afterwards.
func (t *RegionTable) Release() {
	for group, quartet := range t.quartets {
		if quartet != 0 {
			t.frames.DeallocateFrame(quartet)
			t.quartets[group] = 0
		}
	}

	t.frames.DeallocateDoubleFrame(t.storage)
}

// frameTableFor returns the frame table of vreg, creating it when the slot
// is unmapped.
func (t *RegionTable) frameTableFor(vreg mm.Region) (FrameTable, *kernel.Error) {
	entry := t.entry(uintptr(vreg))
	switch entry & descTypeMask {
	case descFrameTable:
		return frameTableAt(t.mem, uintptr(entry&tableAddrMask)), nil
	case descUnmapped:
		return t.newFrameTable(vreg)
	default:
		panic(errRegionMapped)
	}
}

// newFrameTable splits the group of four regions around vreg: the quartet
// frame of the group is cleared and the four slots are pointed to its four
// frame tables. Every slot of the group must be unmapped.
func (t *RegionTable) newFrameTable(vreg mm.Region) (FrameTable, *kernel.Error) {
	group := (uintptr(vreg) - t.first) / regionsPerGroup
	firstSlot := t.first + group*regionsPerGroup

	for slot := firstSlot; slot < firstSlot+regionsPerGroup; slot++ {
		if t.entry(slot)&descTypeMask != descUnmapped {
			panic(errGroupMapped)
		}
	}

	// A group whose slots were all unregistered reuses its quartet.
	quartet := t.quartets[group]
	if quartet == 0 {
		frame, err := t.frames.AllocateFrame()
		if err != nil {
			return FrameTable{}, err
		}
		t.quartets[group] = frame
		quartet = frame
	}
	t.mem.Memset(quartet.Address(), 0, mm.PageSize)

	for i := uintptr(0); i < regionsPerGroup; i++ {
		ft := frameTableAt(t.mem, quartet.Address()+i*frameTableSize)
		t.RegisterFrameTable(mm.Region(firstSlot+i), ft, t.kernelExec)
	}

	return frameTableAt(t.mem, quartet.Address()+(uintptr(vreg)-firstSlot)*frameTableSize), nil
}
