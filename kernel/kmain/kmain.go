package kmain

import (
	"gopherberry/kernel"
	"gopherberry/kernel/cpu"
	"gopherberry/kernel/kfmt"
	"gopherberry/kernel/mm"
	"gopherberry/kernel/mm/kalloc"
	"gopherberry/kernel/mm/pmm"
	"gopherberry/kernel/mm/vmm"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// memoryManager is the state brought up by Kmain. It lives outside the
	// heap it manages.
	memoryManager MemoryManager
)

// Config describes the machine the memory manager runs on.
type Config struct {
	// MemSize is the amount of RAM reported by the firmware.
	MemSize uintptr

	// KernelEnd is the physical address following the kernel image.
	KernelEnd uintptr

	// Layout locates the kernel sections inside the first region.
	Layout vmm.KernelLayout

	// Phys gives access to physical memory.
	Phys mm.Memory

	// Virtual gives access to kernel virtual addresses once translation is
	// enabled. When nil, accesses are translated through the kernel space
	// and served by Phys.
	Virtual mm.Memory

	MMU vmm.MMU
}

// MemoryManager bundles the allocators and the kernel address space.
type MemoryManager struct {
	Frames  pmm.FrameAllocator
	Context vmm.Context
	Space   vmm.KernelSpace
	Alloc   *kalloc.Allocator
}

// Init brings up the frame allocator, builds and activates the kernel
// address space and creates the kernel allocator on top of it.
func (m *MemoryManager) Init(cfg Config) *kernel.Error {
	if err := m.Frames.Init(cfg.MemSize, cfg.KernelEnd); err != nil {
		return err
	}

	m.Context = vmm.Context{Frames: &m.Frames, Phys: cfg.Phys, MMU: cfg.MMU}
	if err := m.Space.Init(&m.Context, cfg.Layout, cfg.MemSize); err != nil {
		return err
	}
	m.Space.Activate()

	virtual := cfg.Virtual
	if virtual == nil {
		virtual = vmm.NewVirtualMemory(&m.Space, cfg.Phys)
	}
	m.Alloc = kalloc.New(&m.Frames, &m.Space, virtual)

	kfmt.Printf("[kmain] memory manager ready: %d/%d frames free\n", m.Frames.FreeFrames(), m.Frames.TotalFrames())
	return nil
}

// Kmain is invoked by the rt0 code once the boot stacks are set up and the
// MMU is still off. It receives the RAM size reported by the firmware and
// the linker symbols delimiting the kernel sections.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(memSize, textStart, rodataStart, dataStart, kernelEnd uintptr) {
	defer func() {
		if r := recover(); r != nil {
			kfmt.Panic(r)
		}
	}()

	err := memoryManager.Init(Config{
		MemSize:   memSize,
		KernelEnd: kernelEnd,
		Layout: vmm.KernelLayout{
			TextStart:   textStart,
			RodataStart: rodataStart,
			DataStart:   dataStart,
		},
		Phys:    mm.RawMemory{},
		Virtual: mm.RawMemory{},
		MMU:     cpu.MMU{},
	})
	if err != nil {
		panic(err)
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}
