package vmm

import (
	"gopherberry/kernel"
	"gopherberry/kernel/mm"
)

// ErrTranslationFault is raised when a virtual memory view is accessed at an
// unmapped address.
var ErrTranslationFault = &kernel.Error{Module: "vmm", Message: "access to unmapped virtual address"}

// Translator resolves virtual addresses to physical addresses.
type Translator interface {
	Translate(vaddr uintptr) (uintptr, bool)
}

// virtualMemory is a mm.Memory that resolves every access through an
// address space before reaching physical memory.
type virtualMemory struct {
	space Translator
	phys  mm.Memory
}

// NewVirtualMemory returns a mm.Memory view of the address space. It lets the
// heap allocator run on top of an address space whose table is not installed
// in the MMU.
func NewVirtualMemory(space Translator, phys mm.Memory) mm.Memory {
	return &virtualMemory{space: space, phys: phys}
}

func (vm *virtualMemory) translate(vaddr uintptr) uintptr {
	paddr, ok := vm.space.Translate(vaddr)
	if !ok {
		panic(ErrTranslationFault)
	}
	return paddr
}

// Word implements mm.Memory.
func (vm *virtualMemory) Word(addr uintptr) uint32 {
	return vm.phys.Word(vm.translate(addr))
}

// SetWord implements mm.Memory.
func (vm *virtualMemory) SetWord(addr uintptr, value uint32) {
	vm.phys.SetWord(vm.translate(addr), value)
}

// Memset implements mm.Memory. The range is split at page boundaries since
// consecutive pages need not be physically contiguous.
func (vm *virtualMemory) Memset(addr uintptr, value byte, size uintptr) {
	for size > 0 {
		chunk := mm.PageSize - addr&(mm.PageSize-1)
		if chunk > size {
			chunk = size
		}

		vm.phys.Memset(vm.translate(addr), value, chunk)
		addr += chunk
		size -= chunk
	}
}
