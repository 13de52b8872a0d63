// Package pmm implements the physical frame allocator. Physical memory is
// split into 1 MiB regions; each region is either free, divided (some of its
// frames are handed out) or full. Whole regions are served from the free list
// while single and double frames are carved out of divided regions.
package pmm

import (
	"gopherberry/kernel"
	"gopherberry/kernel/mm"
)

const (
	// MaxRegions is the number of regions the allocator can track. It covers
	// the 1 GiB of RAM addressable by the supported boards.
	MaxRegions = 1024

	// noRegion terminates the region lists.
	noRegion = uint16(0xffff)

	// bitmapWordsPerRegion is the number of uint64 words needed to track the
	// frames of a single region.
	bitmapWordsPerRegion = int(mm.FramesPerRegion / 64)

	framesPerRegion = uint16(mm.FramesPerRegion)
)

var (
	// ErrOutOfMemory is returned when no region can satisfy an allocation.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	// ErrInvalidMemorySize is returned by Init when the memory size cannot be
	// tracked or leaves no memory for allocation.
	ErrInvalidMemorySize = &kernel.Error{Module: "pmm", Message: "invalid memory size"}

	errDoubleFree            = &kernel.Error{Module: "pmm", Message: "frame is already free"}
	errRegionNotFull         = &kernel.Error{Module: "pmm", Message: "deallocated region is not fully allocated"}
	errOutOfRange            = &kernel.Error{Module: "pmm", Message: "frame or region outside of managed memory"}
	errMisalignedDoubleFrame = &kernel.Error{Module: "pmm", Message: "double frame is not aligned"}
)

// RegionState describes how a region is used by the allocator.
type RegionState uint8

const (
	// RegionFree means that none of the region's frames are in use.
	RegionFree RegionState = iota

	// RegionDivided means that some, but not all, of the region's frames
	// are in use.
	RegionDivided

	// RegionFull means that every frame of the region is in use, either
	// because the region was allocated as a whole, reserved at boot or
	// filled frame by frame.
	RegionFull
)

// String implements fmt.Stringer.
func (s RegionState) String() string {
	switch s {
	case RegionFree:
		return "free"
	case RegionDivided:
		return "divided"
	default:
		return "full"
	}
}
