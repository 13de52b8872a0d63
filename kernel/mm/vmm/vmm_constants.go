package vmm

import "gopherberry/kernel/mm"

const (
	// kernelTableFirst and kernelTableRegions describe the slots of the
	// region table that is walked through TTBR0 (the lower 2 GiB).
	kernelTableFirst   = uintptr(0)
	kernelTableRegions = uintptr(0x800)

	// appTableFirst and appTableRegions describe the slots of the region
	// table that is walked through TTBR1 (the upper 2 GiB).
	appTableFirst   = uintptr(0x800)
	appTableRegions = uintptr(0x800)

	// regionsPerGroup regions share one frame for their frame tables.
	regionsPerGroup = mm.PageSize / frameTableSize

	// regionGroups is the number of aligned region groups in a region table.
	regionGroups = kernelTableRegions / regionsPerGroup

	// frameTableEntries is the number of entries of a frame table.
	frameTableEntries = mm.FramesPerRegion

	// frameTableSize is the size in bytes of a frame table.
	frameTableSize = frameTableEntries * mm.WordSize

	// appTableOffset is the distance between the TTBR1 base address and
	// the storage of the application region table slots.
	appTableOffset = appTableFirst * mm.WordSize
)

// Kernel address space layout.
const (
	// KernelIdentityRegions is the number of regions that are identity
	// mapped; it covers RAM, the BCM2708 peripherals and the quad-A7 block.
	KernelIdentityRegions = uintptr(0x401)

	// KernelHeapStart is the first page of the kernel heap.
	KernelHeapStart = mm.Page(0x50000)

	// KernelStackLimit is the lowest page the supervisor stack may grow to.
	// It also bounds the kernel heap.
	KernelStackLimit = mm.Page(0x70000)

	// kernelInitialStackPage is the lowest page of the boot supervisor stack.
	kernelInitialStackPage = mm.Page(0x7fffa)

	// kernelStackEnd is the page following the supervisor stack.
	kernelStackEnd = mm.Page(0x80000)

	// bootStackFrame is the physical frame backing kernelInitialStackPage.
	bootStackFrame = mm.Frame(2)

	// minKernelTextStart is the lowest address the kernel text may start at;
	// the frames below it hold the vectors and the boot stacks.
	minKernelTextStart = uintptr(0x8000)
)

// Application address space layout.
const (
	// ProgramStart is the first page of the program image.
	ProgramStart = mm.Page(0x80000)

	// AppHeapStart is the first page of the application heap; it also
	// bounds the program image.
	AppHeapStart = mm.Page(0xa0000)

	// AppStackLimit is the lowest page the application stack may grow to;
	// it also bounds the application heap.
	AppStackLimit = mm.Page(0xe0000)

	// AppEnd is the page following the application stack.
	AppEnd = mm.Page(0x100000)
)

const (
	// MaxStackGrowth is the number of pages a single stack fault may add.
	MaxStackGrowth = 16

	// MaxCores is the number of cores that can hold a resident
	// application address space.
	MaxCores = 4

	// asidCount is the number of hardware address space identifiers.
	asidCount = 256
)

// System register values.
const (
	// ttbAttributes marks table walks as inner/outer write-back
	// write-allocate cacheable and shareable.
	ttbAttributes = uint32(0b1001010)

	// ttbcrSplit sets N=1 so TTBR0 covers [0, 2 GiB) and TTBR1 the rest.
	ttbcrSplit = uint32(1)

	// ttbcrDisableApp (PD1) stops the MMU from walking TTBR1.
	ttbcrDisableApp = uint32(1 << 5)

	// dacrClient puts domain 0 in client mode so permission bits apply.
	dacrClient = uint32(1)
)
