package mm

import (
	"encoding/binary"
	"unsafe"

	"gopherberry/kernel"
)

var (
	// ErrBusFault is raised when an access falls outside the backing memory.
	ErrBusFault = &kernel.Error{Module: "mm", Message: "access outside of physical memory"}

	// ErrUnalignedAccess is raised when a word access is not word aligned.
	ErrUnalignedAccess = &kernel.Error{Module: "mm", Message: "unaligned word access"}
)

// Memory provides word-level access to a flat address range. The translation
// tables and the heap allocator never dereference raw pointers; all of their
// reads and writes go through a Memory implementation.
type Memory interface {
	// Word returns the 32-bit little-endian word stored at addr.
	Word(addr uintptr) uint32

	// SetWord stores value at addr.
	SetWord(addr uintptr, value uint32)

	// Memset sets size bytes starting at addr to value.
	Memset(addr uintptr, value byte, size uintptr)
}

// Arena is a Memory backed by a byte slice that starts at a fixed base
// address. Accesses are bounds checked; an access outside the arena or a
// misaligned word access panics the same way a data abort would halt the
// kernel.
type Arena struct {
	base uintptr
	data []byte
}

// NewArena returns an Arena exposing data at addresses [base, base+len(data)).
func NewArena(base uintptr, data []byte) *Arena {
	return &Arena{base: base, data: data}
}

// Base returns the first address covered by the arena.
func (a *Arena) Base() uintptr { return a.base }

// Size returns the number of bytes covered by the arena.
func (a *Arena) Size() uintptr { return uintptr(len(a.data)) }

// Word implements Memory.
func (a *Arena) Word(addr uintptr) uint32 {
	off := a.wordOffset(addr)
	return binary.LittleEndian.Uint32(a.data[off : off+WordSize])
}

// SetWord implements Memory.
func (a *Arena) SetWord(addr uintptr, value uint32) {
	off := a.wordOffset(addr)
	binary.LittleEndian.PutUint32(a.data[off:off+WordSize], value)
}

// Memset implements Memory.
func (a *Arena) Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	off := a.offset(addr, size)
	target := a.data[off : off+size]
	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

func (a *Arena) wordOffset(addr uintptr) uintptr {
	if addr&(WordSize-1) != 0 {
		panic(ErrUnalignedAccess)
	}
	return a.offset(addr, WordSize)
}

func (a *Arena) offset(addr, size uintptr) uintptr {
	if addr < a.base || addr-a.base > uintptr(len(a.data)) || uintptr(len(a.data))-(addr-a.base) < size {
		panic(ErrBusFault)
	}
	return addr - a.base
}

// RawMemory is the Memory implementation used by the kernel itself: addresses
// are dereferenced directly.
type RawMemory struct{}

// Word implements Memory.
func (RawMemory) Word(addr uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(addr))
}

// SetWord implements Memory.
func (RawMemory) SetWord(addr uintptr, value uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = value
}

// Memset implements Memory.
func (RawMemory) Memset(addr uintptr, value byte, size uintptr) {
	kernel.Memset(addr, value, size)
}
