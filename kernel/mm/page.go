package mm

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by frame allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = ^Frame(0)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns a pointer to the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// Region returns the region that contains this frame.
func (f Frame) Region() Region {
	return Region(uintptr(f) / FramesPerRegion)
}

// Index returns the position of this frame inside its region.
func (f Frame) Index() uintptr {
	return uintptr(f) % FramesPerRegion
}

// FrameFromAddress returns a Frame that corresponds to
// the given physical address. This function can handle
// both page-aligned and not aligned addresses. in the
// latter case, the input address will be rounded down
// to the frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(PageSize - 1)) >> PageShift)
}

// Region describes a 1 MiB block of either physical or virtual memory. Region
// indices are shared by both address spaces since the MMU maps regions 1:1
// through region table slots.
type Region uintptr

// Address returns the first address covered by this region.
func (r Region) Address() uintptr {
	return uintptr(r) << RegionShift
}

// Frame returns the index-th frame of this region. Region and frame index are
// combined with addition so a non-zero index is never lost.
func (r Region) Frame(index uintptr) Frame {
	return Frame(uintptr(r)*FramesPerRegion + index)
}

// Page returns the index-th virtual page of this region.
func (r Region) Page(index uintptr) Page {
	return Page(uintptr(r)*FramesPerRegion + index)
}

// RegionFromAddress returns the region containing the given address.
func RegionFromAddress(addr uintptr) Region {
	return Region(addr >> RegionShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns a pointer to the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// Region returns the virtual region containing this page.
func (p Page) Region() Region {
	return Region(uintptr(p) / FramesPerRegion)
}

// Index returns the position of this page inside its region.
func (p Page) Index() uintptr {
	return uintptr(p) % FramesPerRegion
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and not aligned virtual
// addresses. in the latter case, the input address will be rounded down to the
// page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(PageSize - 1)) >> PageShift)
}
