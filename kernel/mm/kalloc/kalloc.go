// Package kalloc provides the kernel's dynamic memory allocator. Requests
// matching a hardware granule (a frame, a double frame or a region, with a
// matching alignment) are served by the frame allocator; everything else is
// carved out of the kernel heap.
package kalloc

import (
	"gopherberry/kernel"
	"gopherberry/kernel/mm"
	"gopherberry/kernel/mm/heap"
	"gopherberry/kernel/mm/pmm"
	"gopherberry/kernel/sync"
)

type granule uint8

const (
	granuleNone granule = iota
	granuleFrame
	granuleDoubleFrame
	granuleRegion
)

// granuleOf returns the granule served directly by the frame allocator for
// a request of size bytes aligned to align.
func granuleOf(size, align uintptr) granule {
	switch {
	case size == mm.PageSize && align == mm.PageSize:
		return granuleFrame
	case size == 2*mm.PageSize && align == 2*mm.PageSize:
		return granuleDoubleFrame
	case size == mm.RegionSize && align == mm.RegionSize:
		return granuleRegion
	default:
		return granuleNone
	}
}

// Allocator is the kernel allocator. It is safe for use from every core.
// Frames handed out directly are addressed physically, which is valid in
// the kernel half since RAM is identity mapped.
type Allocator struct {
	lock   sync.Spinlock
	frames *pmm.FrameAllocator
	heap   *heap.Allocator
}

// New returns a kernel allocator whose heap grows through pages and is
// accessed through mem.
func New(frames *pmm.FrameAllocator, pages heap.PageSource, mem mm.Memory) *Allocator {
	return &Allocator{
		frames: frames,
		heap:   heap.New(pages, mem),
	}
}

// SetTrace toggles logging of kernel heap growth.
func (a *Allocator) SetTrace(enabled bool) {
	a.lock.Acquire()
	a.heap.Trace = enabled
	a.lock.Release()
}

// Allocate returns the address of size bytes aligned to align.
func (a *Allocator) Allocate(size, align uintptr) (uintptr, *kernel.Error) {
	a.lock.Acquire()
	defer a.lock.Release()

	switch granuleOf(size, align) {
	case granuleFrame:
		frame, err := a.frames.AllocateFrame()
		if err != nil {
			return 0, err
		}
		return frame.Address(), nil
	case granuleDoubleFrame:
		frame, err := a.frames.AllocateDoubleFrame()
		if err != nil {
			return 0, err
		}
		return frame.Address(), nil
	case granuleRegion:
		region, err := a.frames.AllocateRegion()
		if err != nil {
			return 0, err
		}
		return region.Address(), nil
	default:
		return a.heap.Allocate(size, align)
	}
}

// Deallocate releases memory returned by Allocate. size and align must
// match the values of the allocation.
func (a *Allocator) Deallocate(ptr, size, align uintptr) {
	a.lock.Acquire()
	defer a.lock.Release()

	switch granuleOf(size, align) {
	case granuleFrame:
		a.frames.DeallocateFrame(mm.FrameFromAddress(ptr))
	case granuleDoubleFrame:
		a.frames.DeallocateDoubleFrame(mm.FrameFromAddress(ptr))
	case granuleRegion:
		a.frames.DeallocateRegion(mm.RegionFromAddress(ptr))
	default:
		a.heap.Deallocate(ptr)
	}
}

// Trim returns the unused pages at the top of the kernel heap.
func (a *Allocator) Trim() (uintptr, *kernel.Error) {
	a.lock.Acquire()
	defer a.lock.Release()

	return a.heap.Trim()
}

// HeapStats reports the block counts of the kernel heap.
func (a *Allocator) HeapStats() heap.Stats {
	a.lock.Acquire()
	defer a.lock.Release()

	return a.heap.Stats()
}
