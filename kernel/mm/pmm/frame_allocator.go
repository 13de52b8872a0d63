package pmm

import (
	"math/bits"

	"gopherberry/kernel"
	"gopherberry/kernel/kfmt"
	"gopherberry/kernel/mm"
)

// regionInfo tracks a single region. Free regions are chained through next;
// divided regions are chained through next and prev.
type regionInfo struct {
	freeFrames uint16
	next, prev uint16
}

// FrameAllocator hands out physical regions, frames and aligned frame pairs.
// All bookkeeping is held in fixed size arrays so the allocator can run
// before any dynamic memory is available. The allocator is not synchronized;
// callers must serialize access.
type FrameAllocator struct {
	regions [MaxRegions]regionInfo

	// bitmap holds one bit per frame; a set bit marks an allocated frame.
	bitmap [MaxRegions * bitmapWordsPerRegion]uint64

	regionCount   uint16
	reservedCount uint16
	freeHead      uint16
	dividedHead   uint16
	freeFrames    uintptr
}

// Init resets the allocator so it manages memSize bytes of RAM starting at
// physical address 0. Every region overlapping [0, kernelEnd) is reserved for
// the kernel image and is never handed out.
func (alloc *FrameAllocator) Init(memSize, kernelEnd uintptr) *kernel.Error {
	regionCount := memSize >> mm.RegionShift
	reserved := (kernelEnd + mm.RegionSize - 1) >> mm.RegionShift
	if regionCount == 0 || regionCount > MaxRegions || reserved >= regionCount {
		return ErrInvalidMemorySize
	}

	alloc.regionCount = uint16(regionCount)
	alloc.reservedCount = uint16(reserved)
	alloc.freeHead = noRegion
	alloc.dividedHead = noRegion
	alloc.freeFrames = 0

	for r := uint16(0); r < alloc.regionCount; r++ {
		alloc.regions[r] = regionInfo{next: noRegion, prev: noRegion}
		if r < alloc.reservedCount {
			alloc.fillBitmap(r, ^uint64(0))
			continue
		}

		alloc.fillBitmap(r, 0)
		alloc.regions[r].freeFrames = framesPerRegion
		alloc.freeFrames += mm.FramesPerRegion
	}

	// Push in reverse so the free list is sorted by ascending region index.
	for r := alloc.regionCount; r > alloc.reservedCount; r-- {
		alloc.pushFree(r - 1)
	}

	kfmt.Printf("[pmm] regions: %d total, %d reserved, free frames: %d/%d\n",
		regionCount, reserved, alloc.freeFrames, alloc.TotalFrames())
	return nil
}

// TotalFrames returns the number of frames in managed memory.
func (alloc *FrameAllocator) TotalFrames() uintptr {
	return uintptr(alloc.regionCount) * mm.FramesPerRegion
}

// FreeFrames returns the number of frames that are currently available.
func (alloc *FrameAllocator) FreeFrames() uintptr {
	return alloc.freeFrames
}

// RegionCount returns the number of regions in managed memory.
func (alloc *FrameAllocator) RegionCount() uintptr {
	return uintptr(alloc.regionCount)
}

// RegionState returns the current state of region r.
func (alloc *FrameAllocator) RegionState(r mm.Region) RegionState {
	if uintptr(r) >= uintptr(alloc.regionCount) {
		panic(errOutOfRange)
	}

	switch alloc.regions[r].freeFrames {
	case framesPerRegion:
		return RegionFree
	case 0:
		return RegionFull
	default:
		return RegionDivided
	}
}

// VisitRegions invokes visitor for every managed region in ascending order.
func (alloc *FrameAllocator) VisitRegions(visitor func(r mm.Region, state RegionState, freeFrames uintptr)) {
	for r := uint16(0); r < alloc.regionCount; r++ {
		visitor(mm.Region(r), alloc.RegionState(mm.Region(r)), uintptr(alloc.regions[r].freeFrames))
	}
}

// AllocateRegion reserves a whole free region.
func (alloc *FrameAllocator) AllocateRegion() (mm.Region, *kernel.Error) {
	r, err := alloc.popFree()
	if err != nil {
		return 0, err
	}

	alloc.fillBitmap(r, ^uint64(0))
	alloc.regions[r].freeFrames = 0
	alloc.freeFrames -= mm.FramesPerRegion
	return mm.Region(r), nil
}

// DeallocateRegion returns a full region to the free list. Releasing a
// region that is not full is a protocol violation and panics.
func (alloc *FrameAllocator) DeallocateRegion(region mm.Region) {
	r := alloc.checkRegion(region)
	if alloc.regions[r].freeFrames != 0 {
		panic(errRegionNotFull)
	}

	alloc.fillBitmap(r, 0)
	alloc.regions[r].freeFrames = framesPerRegion
	alloc.freeFrames += mm.FramesPerRegion
	alloc.pushFree(r)
}

// AllocateFrame reserves a single frame. Frames are carved out of the first
// divided region; when no region is divided, a free region is split.
func (alloc *FrameAllocator) AllocateFrame() (mm.Frame, *kernel.Error) {
	return alloc.allocateRun(1, 1, 0)
}

// AllocateDoubleFrame reserves two consecutive frames where the first frame
// has an even index (8 KiB aligned).
func (alloc *FrameAllocator) AllocateDoubleFrame() (mm.Frame, *kernel.Error) {
	return alloc.allocateRun(2, 2, 0)
}

// AllocateUpperDoubleFrame reserves two consecutive frames forming the upper
// half of a 16 KiB aligned window. The returned pair is the storage of an
// application region table whose hardware base lies 8 KiB below it.
func (alloc *FrameAllocator) AllocateUpperDoubleFrame() (mm.Frame, *kernel.Error) {
	return alloc.allocateRun(2, 4, 2)
}

// DeallocateFrame releases a frame previously obtained from AllocateFrame
// or one of the frames of a region. Releasing a free frame panics.
func (alloc *FrameAllocator) DeallocateFrame(frame mm.Frame) {
	r := alloc.checkRegion(frame.Region())
	word, mask := alloc.frameBit(frame)
	if *word&mask == 0 {
		panic(errDoubleFree)
	}
	*word &^= mask

	info := &alloc.regions[r]
	info.freeFrames++
	alloc.freeFrames++

	switch info.freeFrames {
	case framesPerRegion:
		alloc.removeDivided(r)
		alloc.pushFree(r)
	case 1:
		alloc.pushDivided(r)
	}
}

// DeallocateDoubleFrame releases a pair obtained from AllocateDoubleFrame or
// AllocateUpperDoubleFrame.
func (alloc *FrameAllocator) DeallocateDoubleFrame(frame mm.Frame) {
	if frame&1 != 0 {
		panic(errMisalignedDoubleFrame)
	}

	alloc.DeallocateFrame(frame)
	alloc.DeallocateFrame(frame + 1)
}

// allocateRun reserves count consecutive frames whose in-region index is
// congruent to phase modulo stride.
func (alloc *FrameAllocator) allocateRun(count, stride, phase uintptr) (mm.Frame, *kernel.Error) {
	for r := alloc.dividedHead; r != noRegion; r = alloc.regions[r].next {
		if uintptr(alloc.regions[r].freeFrames) < count {
			continue
		}

		if index, ok := alloc.findRun(r, count, stride, phase); ok {
			return alloc.claim(r, index, count), nil
		}
	}

	r, err := alloc.popFree()
	if err != nil {
		return mm.InvalidFrame, err
	}

	alloc.pushDivided(r)
	return alloc.claim(r, phase, count), nil
}

// findRun scans region r for count clear bits starting at an index that
// satisfies the stride/phase constraint.
func (alloc *FrameAllocator) findRun(r uint16, count, stride, phase uintptr) (uintptr, bool) {
	base := int(r) * bitmapWordsPerRegion

	// Fast path for single frames: find the first word with a clear bit.
	if count == 1 && stride == 1 {
		for w := 0; w < bitmapWordsPerRegion; w++ {
			if word := alloc.bitmap[base+w]; word != ^uint64(0) {
				return uintptr(w*64 + bits.TrailingZeros64(^word)), true
			}
		}
		return 0, false
	}

scan:
	for index := phase; index+count <= mm.FramesPerRegion; index += stride {
		for i := index; i < index+count; i++ {
			if alloc.bitmap[base+int(i/64)]&(1<<(i%64)) != 0 {
				continue scan
			}
		}
		return index, true
	}

	return 0, false
}

// claim marks count frames of region r starting at index as allocated. The
// region must be in the divided list.
func (alloc *FrameAllocator) claim(r uint16, index, count uintptr) mm.Frame {
	first := mm.Region(r).Frame(index)
	for i := uintptr(0); i < count; i++ {
		word, mask := alloc.frameBit(first + mm.Frame(i))
		*word |= mask
	}

	info := &alloc.regions[r]
	info.freeFrames -= uint16(count)
	alloc.freeFrames -= count
	if info.freeFrames == 0 {
		alloc.removeDivided(r)
	}

	return first
}

func (alloc *FrameAllocator) frameBit(frame mm.Frame) (*uint64, uint64) {
	index := uintptr(frame.Region())*mm.FramesPerRegion/64 + frame.Index()/64
	return &alloc.bitmap[index], 1 << (frame.Index() % 64)
}

func (alloc *FrameAllocator) fillBitmap(r uint16, value uint64) {
	base := int(r) * bitmapWordsPerRegion
	for w := 0; w < bitmapWordsPerRegion; w++ {
		alloc.bitmap[base+w] = value
	}
}

// checkRegion ensures that r is a managed region that does not belong to the
// kernel image.
func (alloc *FrameAllocator) checkRegion(r mm.Region) uint16 {
	if uintptr(r) >= uintptr(alloc.regionCount) || uintptr(r) < uintptr(alloc.reservedCount) {
		panic(errOutOfRange)
	}
	return uint16(r)
}

func (alloc *FrameAllocator) pushFree(r uint16) {
	alloc.regions[r].next = alloc.freeHead
	alloc.regions[r].prev = noRegion
	alloc.freeHead = r
}

func (alloc *FrameAllocator) popFree() (uint16, *kernel.Error) {
	r := alloc.freeHead
	if r == noRegion {
		return noRegion, ErrOutOfMemory
	}

	alloc.freeHead = alloc.regions[r].next
	alloc.regions[r].next = noRegion
	return r, nil
}

func (alloc *FrameAllocator) pushDivided(r uint16) {
	info := &alloc.regions[r]
	info.prev = noRegion
	info.next = alloc.dividedHead
	if alloc.dividedHead != noRegion {
		alloc.regions[alloc.dividedHead].prev = r
	}
	alloc.dividedHead = r
}

func (alloc *FrameAllocator) removeDivided(r uint16) {
	info := &alloc.regions[r]
	if info.prev != noRegion {
		alloc.regions[info.prev].next = info.next
	} else {
		alloc.dividedHead = info.next
	}

	if info.next != noRegion {
		alloc.regions[info.next].prev = info.prev
	}

	info.next, info.prev = noRegion, noRegion
}
