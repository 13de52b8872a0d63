package vmm

import "gopherberry/kernel/mm"

// Access describes the AP[2:0] permission bits of a mapping.
type Access uint8

const (
	// AccessForbidden denies all accesses.
	AccessForbidden Access = 0b000

	// AccessKernelOnly grants read/write access to privileged code only.
	AccessKernelOnly Access = 0b001

	// AccessReadOnlyKernelWrite grants read access to applications and
	// read/write access to privileged code.
	AccessReadOnlyKernelWrite Access = 0b010

	// AccessFull grants read/write access to everyone.
	AccessFull Access = 0b011

	// AccessKernelReadOnly grants read access to privileged code only.
	AccessKernelReadOnly Access = 0b101

	// AccessReadOnly grants read access to everyone.
	AccessReadOnly Access = 0b111
)

// Attributes describes the TEX[2:0], C and B memory type bits of a mapping.
// Bit 0 is B, bit 1 is C and bits 2-4 are TEX.
type Attributes uint8

const (
	// AttrStronglyOrdered maps strongly-ordered memory.
	AttrStronglyOrdered Attributes = 0b000

	// AttrDevice maps shareable device memory.
	AttrDevice Attributes = 0b001

	// AttrNonCacheable maps normal non-cacheable memory.
	AttrNonCacheable Attributes = 0b100

	// AttrWriteThrough maps normal write-through memory.
	AttrWriteThrough Attributes = 0b010

	// AttrWriteBack maps normal write-back memory without write allocation.
	AttrWriteBack Attributes = 0b011

	// AttrWriteAllocate maps normal write-back write-allocate memory.
	AttrWriteAllocate Attributes = 0b111
)

// Flags describes the attributes applied to a region or frame mapping.
type Flags struct {
	// Execute allows instruction fetches from the mapping.
	Execute bool

	// Global mappings are shared by every ASID.
	Global bool

	// Shareable mappings are kept coherent across cores.
	Shareable bool

	Access     Access
	Attributes Attributes
}

// Descriptor bits shared by region (section) and pointer entries.
const (
	descTypeMask    = uint32(0b11)
	descUnmapped    = uint32(0b00)
	descFrameTable  = uint32(0b01)
	descRegion      = uint32(0b10)
	regionAddrMask  = uint32(0xfff00000)
	tableAddrMask   = uint32(0xfffffc00)
	frameAddrMask   = uint32(0xfffff000)
	frameValidBit   = uint32(1 << 1)
	regionPXN       = uint32(1 << 0)
	regionXN        = uint32(1 << 4)
	regionShareable = uint32(1 << 16)
	regionNotGlobal = uint32(1 << 17)
	tablePXN        = uint32(1 << 2)
	frameXN         = uint32(1 << 0)
	frameShareable  = uint32(1 << 10)
	frameNotGlobal  = uint32(1 << 11)
)

// regionEntry encodes a section descriptor mapping preg with these flags.
func (f Flags) regionEntry(preg mm.Region, kernelExec bool) uint32 {
	entry := uint32(preg.Address()) | descRegion
	if !f.Execute {
		entry |= regionXN
	}
	if !f.Global {
		entry |= regionNotGlobal
	}
	if f.Shareable {
		entry |= regionShareable
	}
	entry |= uint32(f.Access&0b011)<<10 | uint32(f.Access&0b100)<<13
	entry |= uint32(f.Attributes&0b11)<<2 | uint32(f.Attributes&0b11100)<<10
	if !kernelExec {
		entry |= regionPXN
	}
	return entry
}

// frameEntry encodes a small page descriptor mapping frame with these flags.
func (f Flags) frameEntry(frame mm.Frame) uint32 {
	entry := uint32(frame.Address()) | frameValidBit
	if !f.Execute {
		entry |= frameXN
	}
	if !f.Global {
		entry |= frameNotGlobal
	}
	if f.Shareable {
		entry |= frameShareable
	}
	entry |= uint32(f.Access&0b011)<<4 | uint32(f.Access&0b100)<<7
	entry |= uint32(f.Attributes&0b11)<<2 | uint32(f.Attributes&0b11100)<<4
	return entry
}

// frameTableEntry encodes a region table entry pointing to a frame table.
func frameTableEntry(tableAddr uintptr, kernelExec bool) uint32 {
	entry := uint32(tableAddr)&tableAddrMask | descFrameTable
	if !kernelExec {
		entry |= tablePXN
	}
	return entry
}

var (
	kernelTextFlags = Flags{
		Execute:    true,
		Global:     true,
		Access:     AccessKernelReadOnly,
		Attributes: AttrWriteAllocate,
	}

	kernelRodataFlags = Flags{
		Global:     true,
		Access:     AccessKernelReadOnly,
		Attributes: AttrWriteAllocate,
	}

	kernelDataFlags = Flags{
		Global:     true,
		Shareable:  true,
		Access:     AccessKernelOnly,
		Attributes: AttrWriteAllocate,
	}

	deviceFlags = Flags{
		Global:     true,
		Shareable:  true,
		Access:     AccessKernelOnly,
		Attributes: AttrDevice,
	}

	appDataFlags = Flags{
		Shareable:  true,
		Access:     AccessFull,
		Attributes: AttrWriteAllocate,
	}
)

// programFlags returns the flags of a program image page.
func programFlags(executable, writable bool) Flags {
	flags := Flags{
		Execute:    executable,
		Shareable:  true,
		Access:     AccessReadOnlyKernelWrite,
		Attributes: AttrWriteAllocate,
	}
	if writable {
		flags.Access = AccessFull
	}
	return flags
}
