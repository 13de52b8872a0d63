// Package heap implements a boundary-tag allocator that manages a heap grown
// page by page from a PageSource.
//
// Every block is framed by a header and a footer tag, one word each, holding
// (payload words << 2) | free bit. Free blocks keep the addresses of their
// list neighbors in the first two payload words. The heap starts with a
// zero-size full block and ends with a full end tag in the last reserved
// word, so coalescing never walks outside the heap.
package heap

import (
	"gopherberry/kernel"
	"gopherberry/kernel/kfmt"
	"gopherberry/kernel/mm"
)

const (
	wordSize = mm.WordSize

	freeBit = uint32(1)

	// minPayload is the smallest payload, in words, of any block. A free
	// block needs room for its list links.
	minPayload = uintptr(2)

	// minSplit is the smallest number of spare words that gets split off
	// into a new free block: two tags plus the minimum payload.
	minSplit = 2 + minPayload

	// startWords is the number of words used by the start sentinel.
	startWords = uintptr(2)

	// nilBlock terminates the free list. No block header can live at
	// address 0 as the start sentinel always precedes the first block.
	nilBlock = uintptr(0)

	pageWords = mm.PageSize / wordSize
)

var (
	// ErrOutOfMemory is returned when the heap cannot serve a request even
	// after growing.
	ErrOutOfMemory = &kernel.Error{Module: "heap", Message: "heap exhausted"}

	// ErrInvalidAlignment is returned when the requested alignment is not a
	// power of two.
	ErrInvalidAlignment = &kernel.Error{Module: "heap", Message: "alignment must be a power of two"}

	errDoubleFree      = &kernel.Error{Module: "heap", Message: "block is already free"}
	errInvalidPointer  = &kernel.Error{Module: "heap", Message: "pointer does not belong to the heap"}
	errNonContiguous   = &kernel.Error{Module: "heap", Message: "page source returned non-contiguous pages"}
	errCorruptedHeader = &kernel.Error{Module: "heap", Message: "block header and footer disagree"}
)

// PageSource provides the pages backing a heap. Pages are reserved at the
// top of the heap, contiguous with the ones already reserved, and are freed
// from the top down.
type PageSource interface {
	// FirstBackingAddress returns the address of the first heap page.
	FirstBackingAddress() uintptr

	// ReservePages maps count pages after the last reserved one and returns
	// the address of the first of them.
	ReservePages(count uintptr) (uintptr, *kernel.Error)

	// FreePages unmaps the count topmost pages.
	FreePages(count uintptr) *kernel.Error
}

// Allocator serves variable sized allocations out of the pages of a
// PageSource. It is not safe for concurrent use.
type Allocator struct {
	source PageSource
	mem    mm.Memory

	// Trace enables logging of heap growth and trimming.
	Trace bool

	start    uintptr
	top      uintptr
	freeHead uintptr
}

// New returns an empty allocator. Pages are requested from source on the
// first allocation; mem is used to read and write the heap words.
func New(source PageSource, mem mm.Memory) *Allocator {
	return &Allocator{source: source, mem: mem, freeHead: nilBlock}
}

// Allocate returns the address of a block of at least size bytes aligned to
// align. Alignments below the word size are raised to it.
func (a *Allocator) Allocate(size, align uintptr) (uintptr, *kernel.Error) {
	if align&(align-1) != 0 {
		return 0, ErrInvalidAlignment
	}
	if align < wordSize {
		align = wordSize
	}

	// the rounded size and the worst case padding must stay representable
	if align > ^uintptr(0)/2 || size > ^uintptr(0)/2-align {
		return 0, ErrOutOfMemory
	}

	words := (size + wordSize - 1) / wordSize
	if words < minPayload {
		words = minPayload
	}

	if addr, ok := a.allocate(words, align); ok {
		return addr, nil
	}

	if err := a.grow(words, align); err != nil {
		return 0, err
	}

	if addr, ok := a.allocate(words, align); ok {
		return addr, nil
	}
	return 0, ErrOutOfMemory
}

// allocate runs a first-fit search of the free list.
func (a *Allocator) allocate(words, align uintptr) (uintptr, bool) {
	for hdr := a.freeHead; hdr != nilBlock; hdr = a.next(hdr) {
		padding := a.padding(hdr, align)
		if padding+words > a.size(hdr) {
			continue
		}

		a.unlink(hdr)
		hdr = a.eliminatePadding(hdr, padding)
		a.split(hdr, words)
		a.setTags(hdr, a.size(hdr), false)
		return hdr + wordSize, true
	}

	return 0, false
}

// padding returns the number of words between the payload of the block at
// hdr and the first address aligned to align. The start sentinel is never
// freed so it cannot absorb padding; the first block moves its payload
// further until the padding can be split off instead.
func (a *Allocator) padding(hdr, align uintptr) uintptr {
	payload := hdr + wordSize
	padding := ((payload+align-1)&^(align-1) - payload) / wordSize

	for padding != 0 && padding < minSplit && hdr == a.start+startWords*wordSize {
		padding += align / wordSize
	}
	return padding
}

// Deallocate returns the block at ptr to the heap, merging it with its free
// neighbors.
func (a *Allocator) Deallocate(ptr uintptr) {
	if ptr&(wordSize-1) != 0 || ptr < a.start+(startWords+1)*wordSize || ptr >= a.top {
		panic(errInvalidPointer)
	}

	hdr := ptr - wordSize
	tag := a.mem.Word(hdr)
	if tag&freeBit != 0 {
		panic(errDoubleFree)
	}
	if a.mem.Word(a.footer(hdr)) != tag {
		panic(errCorruptedHeader)
	}

	a.setTags(hdr, a.size(hdr), true)
	a.pushFree(hdr)
	a.coalesce(hdr)
}

// grow reserves enough pages for an allocation of words aligned to align to
// succeed. A trailing free block is merged with the new pages and counts
// towards the request.
func (a *Allocator) grow(words, align uintptr) *kernel.Error {
	need := words + align/wordSize - 1
	if align > wordSize {
		need += minSplit
	}

	var overhead uintptr
	switch {
	case a.top == 0:
		// start sentinel, block tags and end tag
		overhead = startWords + 3
	case a.isFree(a.top - 2*wordSize):
		trailing := a.size(a.header(a.top - 2*wordSize))
		if trailing >= need {
			need = 0
		} else {
			need -= trailing
		}
	default:
		// the old end tag becomes the header of the new block
		overhead = 2
	}

	if need > ^uintptr(0)-overhead-pageWords {
		return ErrOutOfMemory
	}

	pages := (need + overhead + pageWords - 1) / pageWords
	if pages == 0 {
		pages = 1
	}

	addr, err := a.source.ReservePages(pages)
	if err != nil {
		return err
	}

	var hdr uintptr
	if a.top == 0 {
		if addr != a.source.FirstBackingAddress() {
			panic(errNonContiguous)
		}
		a.start = addr
		a.setTags(addr, 0, false)
		hdr = addr + startWords*wordSize
	} else {
		if addr != a.top {
			panic(errNonContiguous)
		}
		hdr = a.top - wordSize
	}

	a.top = addr + pages*mm.PageSize
	a.setEndTag()
	a.setTags(hdr, (a.top-hdr)/wordSize-3, true)
	a.pushFree(hdr)
	a.coalesce(hdr)

	if a.Trace {
		kfmt.Printf("[heap] reserved %d pages, heap top at 0x%8x\n", pages, a.top)
	}
	return nil
}

// Trim releases the whole pages at the end of the heap that are covered by
// a trailing free block and returns their number.
func (a *Allocator) Trim() (uintptr, *kernel.Error) {
	if a.top == 0 || !a.isFree(a.top-2*wordSize) {
		return 0, nil
	}

	hdr := a.header(a.top - 2*wordSize)

	// keep the header, the minimum payload, the footer and the end tag
	keep := hdr + (minPayload+3)*wordSize
	if keep > a.top {
		return 0, nil
	}

	pages := (a.top - keep) / mm.PageSize
	if pages == 0 {
		return 0, nil
	}

	if err := a.source.FreePages(pages); err != nil {
		return 0, err
	}

	a.top -= pages * mm.PageSize
	a.setEndTag()
	a.setTags(hdr, (a.top-hdr)/wordSize-3, true)

	if a.Trace {
		kfmt.Printf("[heap] released %d pages, heap top at 0x%8x\n", pages, a.top)
	}
	return pages, nil
}

// Stats describes the blocks of a heap.
type Stats struct {
	Pages      uintptr
	UsedBlocks uintptr
	UsedWords  uintptr
	FreeBlocks uintptr
	FreeWords  uintptr
}

// Stats walks the heap and returns its block counts.
func (a *Allocator) Stats() Stats {
	var stats Stats
	if a.top != 0 {
		stats.Pages = (a.top - a.start) / mm.PageSize
	}

	a.Walk(func(_ uintptr, words uintptr, free bool) {
		if free {
			stats.FreeBlocks++
			stats.FreeWords += words
		} else {
			stats.UsedBlocks++
			stats.UsedWords += words
		}
	})
	return stats
}

// Walk invokes fn for every block in address order with the address of the
// block payload, its size in words and whether it is free. The sentinels are
// not reported.
func (a *Allocator) Walk(fn func(payload, words uintptr, free bool)) {
	if a.top == 0 {
		return
	}

	end := a.top - wordSize
	for hdr := a.start + startWords*wordSize; hdr < end; hdr = a.footer(hdr) + wordSize {
		fn(hdr+wordSize, a.size(hdr), a.isFree(hdr))
	}
}

// eliminatePadding moves the start of the block at hdr forward by padding
// words. Padding large enough to hold a block becomes a new free block;
// smaller padding is given to the preceding block, which is always full.
// It returns the new header address.
func (a *Allocator) eliminatePadding(hdr, padding uintptr) uintptr {
	if padding == 0 {
		return hdr
	}

	size := a.size(hdr)
	newHdr := hdr + padding*wordSize

	if padding >= minSplit {
		a.setTags(hdr, padding-2, true)
		a.pushFree(hdr)
	} else {
		prevHdr := a.header(hdr - wordSize)
		a.setTags(prevHdr, a.size(prevHdr)+padding, false)
	}

	a.setTags(newHdr, size-padding, true)
	return newHdr
}

// split shrinks the block at hdr to words and turns the remainder into a
// free block. Remainders smaller than minSplit stay in the block.
func (a *Allocator) split(hdr, words uintptr) {
	size := a.size(hdr)
	if size-words < minSplit {
		return
	}

	a.setTags(hdr, words, a.isFree(hdr))

	rest := a.footer(hdr) + wordSize
	a.setTags(rest, size-words-2, true)
	a.pushFree(rest)
}

// coalesce merges the free block at hdr with its free neighbors. Blocks
// absorbed into a lower neighbor are removed from the free list.
func (a *Allocator) coalesce(hdr uintptr) {
	if next := a.footer(hdr) + wordSize; a.isFree(next) {
		a.unlink(next)
		a.setTags(hdr, a.size(hdr)+a.size(next)+2, true)
	}

	if prevFooter := hdr - wordSize; a.isFree(prevFooter) {
		prevHdr := a.header(prevFooter)
		a.unlink(hdr)
		a.setTags(prevHdr, a.size(prevHdr)+a.size(hdr)+2, true)
	}
}

func (a *Allocator) setEndTag() {
	a.mem.SetWord(a.top-wordSize, 0)
}

// setTags writes matching header and footer tags for a block of size words
// starting at hdr.
func (a *Allocator) setTags(hdr, size uintptr, free bool) {
	tag := uint32(size) << 2
	if free {
		tag |= freeBit
	}

	a.mem.SetWord(hdr, tag)
	a.mem.SetWord(hdr+(size+1)*wordSize, tag)
}

func (a *Allocator) size(tagAddr uintptr) uintptr {
	return uintptr(a.mem.Word(tagAddr) >> 2)
}

func (a *Allocator) isFree(tagAddr uintptr) bool {
	return a.mem.Word(tagAddr)&freeBit != 0
}

func (a *Allocator) footer(hdr uintptr) uintptr {
	return hdr + (a.size(hdr)+1)*wordSize
}

func (a *Allocator) header(footer uintptr) uintptr {
	return footer - (a.size(footer)+1)*wordSize
}

// Free list links live in the first two payload words.

func (a *Allocator) next(hdr uintptr) uintptr {
	return uintptr(a.mem.Word(hdr + wordSize))
}

func (a *Allocator) prev(hdr uintptr) uintptr {
	return uintptr(a.mem.Word(hdr + 2*wordSize))
}

func (a *Allocator) setNext(hdr, next uintptr) {
	a.mem.SetWord(hdr+wordSize, uint32(next))
}

func (a *Allocator) setPrev(hdr, prev uintptr) {
	a.mem.SetWord(hdr+2*wordSize, uint32(prev))
}

func (a *Allocator) pushFree(hdr uintptr) {
	a.setNext(hdr, a.freeHead)
	a.setPrev(hdr, nilBlock)
	if a.freeHead != nilBlock {
		a.setPrev(a.freeHead, hdr)
	}
	a.freeHead = hdr
}

func (a *Allocator) unlink(hdr uintptr) {
	next, prev := a.next(hdr), a.prev(hdr)
	if prev == nilBlock {
		a.freeHead = next
	} else {
		a.setNext(prev, next)
	}

	if next != nilBlock {
		a.setPrev(next, prev)
	}
}
