package mm

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a frame number (shift right by
	// PageShift) and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the size of a frame (or page) in bytes.
	PageSize = uintptr(1 << PageShift)

	// RegionShift is equal to log2(RegionSize).
	RegionShift = uintptr(20)

	// RegionSize defines the size of a region (an ARM section) in bytes.
	RegionSize = uintptr(1 << RegionShift)

	// FramesPerRegion is the number of frames contained in a region.
	FramesPerRegion = RegionSize / PageSize

	// WordSize is the size of the machine word used by the translation tables
	// and the heap allocator.
	WordSize = uintptr(4)

	// AddressSpaceRegions is the number of regions in the 32-bit address space.
	AddressSpaceRegions = uintptr(1 << (32 - RegionShift))
)
