package heap

import (
	"math/rand"
	"testing"

	"gopherberry/kernel"
	"gopherberry/kernel/mm"

	"github.com/stretchr/testify/require"
)

const (
	testHeapBase  = uintptr(0x5000_0000)
	testHeapPages = 64
)

var errTestSourceFull = &kernel.Error{Module: "test", Message: "page source exhausted"}

// testSource hands out the pages of an arena and records every request.
type testSource struct {
	arena    *mm.Arena
	reserved uintptr
	reserves []uintptr
	frees    []uintptr
}

func newTestSource() *testSource {
	return &testSource{arena: mm.NewArena(testHeapBase, make([]byte, testHeapPages*mm.PageSize))}
}

func (s *testSource) FirstBackingAddress() uintptr { return testHeapBase }

func (s *testSource) ReservePages(count uintptr) (uintptr, *kernel.Error) {
	s.reserves = append(s.reserves, count)
	if s.reserved+count > testHeapPages {
		return 0, errTestSourceFull
	}

	addr := testHeapBase + s.reserved*mm.PageSize
	s.reserved += count
	return addr, nil
}

func (s *testSource) FreePages(count uintptr) *kernel.Error {
	s.frees = append(s.frees, count)
	s.reserved -= count
	return nil
}

func newTestAllocator() (*Allocator, *testSource) {
	source := newTestSource()
	return New(source, source.arena), source
}

// requireSingleFreeBlock checks that the heap holds one free block spanning
// all reserved pages.
func requireSingleFreeBlock(t *testing.T, alloc *Allocator, source *testSource) {
	t.Helper()

	stats := alloc.Stats()
	require.Equal(t, source.reserved, stats.Pages)
	require.Equal(t, uintptr(1), stats.FreeBlocks)
	require.Zero(t, stats.UsedBlocks)
	require.Equal(t, source.reserved*pageWords-5, stats.FreeWords)
	require.Equal(t, alloc.start+startWords*wordSize, alloc.freeHead)
	require.Equal(t, nilBlock, alloc.next(alloc.freeHead))
}

func TestAllocateSmallThenPage(t *testing.T) {
	alloc, source := newTestAllocator()

	small, err := alloc.Allocate(15, 4)
	require.Nil(t, err)
	require.Equal(t, []uintptr{1}, source.reserves)
	require.True(t, small >= testHeapBase && small+15 <= testHeapBase+mm.PageSize)
	require.Zero(t, small%4)

	large, err := alloc.Allocate(4080, 4)
	require.Nil(t, err)
	require.Equal(t, []uintptr{1, 1}, source.reserves, "exactly one extra page must be reserved")
	require.True(t, large >= small+16)
	require.True(t, large+4080 <= testHeapBase+2*mm.PageSize)

	// the payloads must not overlap
	for off := uintptr(0); off < 16; off += 4 {
		source.arena.SetWord(small+off, 0x11111111)
	}
	for off := uintptr(0); off < 4080; off += 4 {
		source.arena.SetWord(large+off, 0x22222222)
	}
	require.Equal(t, uint32(0x11111111), source.arena.Word(small+12))

	alloc.Deallocate(small)
	alloc.Deallocate(large)
	requireSingleFreeBlock(t, alloc, source)
}

func TestAllocateLayout(t *testing.T) {
	alloc, source := newTestAllocator()

	addr, err := alloc.Allocate(1, 1)
	require.Nil(t, err)
	require.Equal(t, testHeapBase+3*wordSize, addr, "first payload follows the sentinel and the header")

	var blocks []uintptr
	alloc.Walk(func(payload, words uintptr, free bool) {
		blocks = append(blocks, payload, words)
		if free {
			blocks = append(blocks, 1)
		} else {
			blocks = append(blocks, 0)
		}
	})

	// a minimum sized full block followed by the rest of the page
	require.Equal(t, []uintptr{
		addr, minPayload, 0,
		addr + (minPayload+2)*wordSize, pageWords - 5 - minPayload - 2, 1,
	}, blocks)

	require.Equal(t, uint32(minPayload<<2), source.arena.Word(addr-wordSize))
	require.Equal(t, uint32(0), source.arena.Word(testHeapBase+mm.PageSize-wordSize), "end tag")
}

func TestAllocateAlignment(t *testing.T) {
	alloc, source := newTestAllocator()

	specs := []struct {
		size, align uintptr
	}{
		{4, 8},
		{12, 16},
		{100, 64},
		{3, 2},
		{mm.PageSize / 2, mm.PageSize},
		{24, 8},
		{mm.PageSize, mm.PageSize},
	}

	var ptrs []uintptr
	for specIndex, spec := range specs {
		addr, err := alloc.Allocate(spec.size, spec.align)
		require.Nil(t, err, "spec %d", specIndex)

		align := spec.align
		if align < wordSize {
			align = wordSize
		}
		require.Zero(t, addr%align, "spec %d", specIndex)
		ptrs = append(ptrs, addr)
	}

	_, err := alloc.Allocate(8, 12)
	require.Equal(t, ErrInvalidAlignment, err)

	for _, ptr := range ptrs {
		alloc.Deallocate(ptr)
	}
	requireSingleFreeBlock(t, alloc, source)
}

func TestDeallocateCoalescingOrder(t *testing.T) {
	for _, order := range [][]int{{0, 1}, {1, 0}} {
		alloc, _ := newTestAllocator()

		var ptrs [4]uintptr
		for i := range ptrs {
			ptr, err := alloc.Allocate(32, 4)
			require.Nil(t, err)
			ptrs[i] = ptr
		}

		// free the two blocks in the middle in the requested order
		for _, i := range order {
			alloc.Deallocate(ptrs[1+i])
		}

		var free [][2]uintptr
		alloc.Walk(func(payload, words uintptr, isFree bool) {
			if isFree && payload < ptrs[3] {
				free = append(free, [2]uintptr{payload, words})
			}
		})

		require.Equal(t, [][2]uintptr{{ptrs[1], 8 + 2 + 8}}, free, "order %v", order)
	}
}

func TestAllocatorRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		alloc, source := newTestAllocator()

		var ptrs []uintptr
		for i := 0; i < 200; i++ {
			size := uintptr(rng.Intn(512))
			align := uintptr(1) << uint(rng.Intn(8))

			ptr, err := alloc.Allocate(size, align)
			require.Nil(t, err)
			require.Zero(t, ptr&(align-1))
			ptrs = append(ptrs, ptr)
		}

		rng.Shuffle(len(ptrs), func(i, j int) { ptrs[i], ptrs[j] = ptrs[j], ptrs[i] })
		for _, ptr := range ptrs {
			alloc.Deallocate(ptr)
		}

		requireSingleFreeBlock(t, alloc, source)
	}
}

func TestAllocatorGrowthFailure(t *testing.T) {
	alloc, source := newTestAllocator()

	_, err := alloc.Allocate((testHeapPages+1)*mm.PageSize, 4)
	require.Equal(t, errTestSourceFull, err)
	require.Zero(t, source.reserved)

	addr, err := alloc.Allocate(64, 4)
	require.Nil(t, err)
	require.NotZero(t, addr)
}

func TestAllocateHugeSizes(t *testing.T) {
	alloc, source := newTestAllocator()

	specs := []struct {
		size, align uintptr
	}{
		{^uintptr(0), 4},
		{^uintptr(0) - 2, 4},
		{^uintptr(0) - mm.PageSize, mm.PageSize},
		{^uintptr(0) / 2, 4},
		{64, ^uintptr(0)/2 + 1},
	}

	for specIndex, spec := range specs {
		addr, err := alloc.Allocate(spec.size, spec.align)
		require.Equal(t, ErrOutOfMemory, err, "spec %d", specIndex)
		require.Zero(t, addr, "spec %d", specIndex)
	}
	require.Empty(t, source.reserves, "oversized requests never reach the page source")

	// sizes that fit the address space are refused by the page source
	_, err := alloc.Allocate(^uintptr(0)/4, 4)
	require.Equal(t, errTestSourceFull, err)
	require.Zero(t, source.reserved)
}

func TestAllocatorTrim(t *testing.T) {
	alloc, source := newTestAllocator()

	pages, err := alloc.Trim()
	require.Nil(t, err)
	require.Zero(t, pages)

	keep, err := alloc.Allocate(64, 4)
	require.Nil(t, err)
	big, err := alloc.Allocate(5*mm.PageSize, 4)
	require.Nil(t, err)
	require.Equal(t, []uintptr{1, 5}, source.reserves, "the trailing free block counts towards growth")

	// the free block after big does not span a whole page
	pages, err = alloc.Trim()
	require.Nil(t, err)
	require.Zero(t, pages)

	alloc.Deallocate(big)
	pages, err = alloc.Trim()
	require.Nil(t, err)
	require.Equal(t, uintptr(5), pages)
	require.Equal(t, []uintptr{5}, source.frees)
	require.Equal(t, uintptr(1), source.reserved)

	stats := alloc.Stats()
	require.Equal(t, uintptr(1), stats.Pages)
	require.Equal(t, uintptr(1), stats.UsedBlocks)
	require.Equal(t, uintptr(1), stats.FreeBlocks)

	// the heap grows back on top of the trimmed pages
	again, err := alloc.Allocate(2*mm.PageSize, 4)
	require.Nil(t, err)
	require.Equal(t, big, again)

	alloc.Deallocate(again)
	alloc.Deallocate(keep)
	requireSingleFreeBlock(t, alloc, source)
}

func TestDeallocateErrors(t *testing.T) {
	alloc, _ := newTestAllocator()

	require.PanicsWithValue(t, errInvalidPointer, func() { alloc.Deallocate(testHeapBase + 12) })

	ptr, err := alloc.Allocate(16, 4)
	require.Nil(t, err)

	require.PanicsWithValue(t, errInvalidPointer, func() { alloc.Deallocate(ptr + 1) })
	require.PanicsWithValue(t, errInvalidPointer, func() { alloc.Deallocate(testHeapBase + mm.PageSize) })
	require.PanicsWithValue(t, errInvalidPointer, func() { alloc.Deallocate(testHeapBase + 4) })

	alloc.Deallocate(ptr)
	require.PanicsWithValue(t, errDoubleFree, func() { alloc.Deallocate(ptr) })
}
