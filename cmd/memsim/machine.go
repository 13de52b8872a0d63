package main

import (
	"fmt"
	"math/rand"

	"gopherberry/kernel"
	"gopherberry/kernel/kfmt"
	"gopherberry/kernel/kmain"
	"gopherberry/kernel/mm"
	"gopherberry/kernel/mm/vmm"
)

const (
	maxSpaces       = 8
	maxProgramPages = 8
	simCores        = 4

	// writeTranslationFault is the fault status of a write to an unmapped
	// page.
	writeTranslationFault = vmm.FaultStatus(0x807)

	// killedExitCode is reported for processes terminated after a fault
	// they cannot recover from.
	killedExitCode = 137
)

// machine is a simulated board running the memory manager.
type machine struct {
	mem     kmain.MemoryManager
	mmu     *simMMU
	arena   *mm.Arena
	release func()
}

// newMachine boots the memory manager on memSize bytes of simulated RAM.
// The kernel sections are laid out evenly below kernelEnd.
func newMachine(memSize, kernelEnd uintptr, log *csvLog) (*machine, error) {
	arena, release, err := newArena(memSize)
	if err != nil {
		return nil, err
	}

	m := &machine{mmu: &simMMU{log: log}, arena: arena, release: release}
	if kerr := m.mem.Init(kmain.Config{
		MemSize:   memSize,
		KernelEnd: kernelEnd,
		Layout:    layoutFor(kernelEnd),
		Phys:      arena,
		MMU:       m.mmu,
	}); kerr != nil {
		release()
		return nil, fmt.Errorf("memory manager init failed: %w", kerr)
	}

	return m, nil
}

// layoutFor splits the first region below kernelEnd into text, rodata and
// data.
func layoutFor(kernelEnd uintptr) vmm.KernelLayout {
	end := kernelEnd
	if end > mm.RegionSize {
		end = mm.RegionSize
	}

	const textStart = uintptr(0x8000)
	pageAlign := func(addr uintptr) uintptr {
		addr &^= mm.PageSize - 1
		if addr < textStart {
			return textStart
		}
		return addr
	}

	return vmm.KernelLayout{
		TextStart:   textStart,
		RodataStart: pageAlign(end / 2),
		DataStart:   pageAlign(end / 4 * 3),
	}
}

// allocation is a live kernel allocation.
type allocation struct {
	addr, size, align uintptr
}

// workloadStats counts the outcome of the workload operations.
type workloadStats struct {
	kernelAllocs, kernelFrees      int
	spacesCreated, spacesDestroyed int
	spacesKilled                   int
	heapFailureExits, killedExits  int
	activations, heapAdjusts       int
	stackFaults, kernelStackFaults int
	failedAllocs                   int
}

// workload drives the memory manager with random operations.
type workload struct {
	m      *machine
	rng    *rand.Rand
	allocs []allocation
	spaces []*vmm.ApplicationSpace
	stats  workloadStats
}

func newWorkload(m *machine, seed int64) *workload {
	return &workload{m: m, rng: rand.New(rand.NewSource(seed))}
}

// run performs count random operations.
func (w *workload) run(count int) error {
	for i := 0; i < count; i++ {
		var err error
		switch op := w.rng.Intn(100); {
		case op < 40:
			w.kernelAlloc()
		case op < 60:
			w.kernelFree()
		case op < 68:
			err = w.createSpace()
		case op < 78:
			w.activate()
		case op < 86:
			w.adjustHeap()
		case op < 92:
			w.stackFault()
		case op < 95:
			err = w.kernelStackFault()
		default:
			w.destroy(w.rng.Intn(maxSpaces), false)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

func (w *workload) kernelAlloc() {
	var size, align uintptr
	switch w.rng.Intn(10) {
	case 0:
		size, align = mm.PageSize, mm.PageSize
	case 1:
		size, align = 2*mm.PageSize, 2*mm.PageSize
	default:
		size = uintptr(1 + w.rng.Intn(2*int(mm.PageSize)))
		align = uintptr(1) << uint(w.rng.Intn(7))
	}

	addr, err := w.m.mem.Alloc.Allocate(size, align)
	if err != nil {
		w.stats.failedAllocs++
		return
	}

	w.stats.kernelAllocs++
	w.allocs = append(w.allocs, allocation{addr: addr, size: size, align: align})
}

func (w *workload) kernelFree() {
	if len(w.allocs) == 0 {
		return
	}

	i := w.rng.Intn(len(w.allocs))
	a := w.allocs[i]
	w.m.mem.Alloc.Deallocate(a.addr, a.size, a.align)

	w.allocs[i] = w.allocs[len(w.allocs)-1]
	w.allocs = w.allocs[:len(w.allocs)-1]
	w.stats.kernelFrees++
}

// createSpace loads a fake program into a new application space.
func (w *workload) createSpace() error {
	if len(w.spaces) >= maxSpaces {
		return nil
	}

	space, err := vmm.NewApplicationSpace(&w.m.mem.Context)
	if err != nil {
		w.stats.failedAllocs++
		return nil
	}

	pages := 1 + w.rng.Intn(maxProgramPages)
	for i := 0; i < pages; i++ {
		frame, err := space.RegisterProgramPage(vmm.ProgramStart+mm.Page(i), i == 0, i != 0)
		if err != nil {
			space.Destroy()
			w.stats.failedAllocs++
			return nil
		}
		w.m.arena.SetWord(frame.Address(), uint32(i))
	}

	if _, err := space.AdjustHeap(w.rng.Intn(4)); err != nil {
		space.Destroy()
		w.stats.failedAllocs++
		return nil
	}

	w.spaces = append(w.spaces, space)
	w.stats.spacesCreated++
	return nil
}

func (w *workload) pickSpace() (int, bool) {
	if len(w.spaces) == 0 {
		return 0, false
	}
	return w.rng.Intn(len(w.spaces)), true
}

func (w *workload) activate() {
	i, ok := w.pickSpace()
	if !ok {
		return
	}

	w.m.mmu.core = uint8(w.rng.Intn(simCores))
	if err := w.spaces[i].Activate(); err != nil {
		w.kill(i, err, killedExitCode)
		return
	}
	w.stats.activations++
}

func (w *workload) adjustHeap() {
	i, ok := w.pickSpace()
	if !ok {
		return
	}

	w.resizeHeap(i, w.rng.Intn(6)-2)
}

// resizeHeap serves a heap resize request of process i. A request that
// cannot be served terminates the process.
func (w *workload) resizeHeap(i, delta int) {
	w.stats.heapAdjusts++
	if _, err := w.spaces[i].AdjustHeap(delta); err != nil {
		w.kill(i, err, vmm.HeapFailureExitCode)
	}
}

// stackFault simulates a push below the stack bottom of a process.
func (w *workload) stackFault() {
	i, ok := w.pickSpace()
	if !ok {
		return
	}

	space := w.spaces[i]
	addr := space.StackBottom() - uintptr(1+w.rng.Intn(vmm.MaxStackGrowth+4))*mm.PageSize + 4

	w.stats.stackFaults++
	if err := space.HandleFault(addr, writeTranslationFault); err != nil {
		w.kill(i, err, killedExitCode)
	}
}

func (w *workload) kernelStackFault() error {
	ks := &w.m.mem.Space
	addr := ks.StackBottom() - uintptr(1+w.rng.Intn(4))*mm.PageSize + 8
	if addr < vmm.KernelStackLimit.Address() {
		return nil
	}

	w.stats.kernelStackFaults++
	if err := ks.HandleFault(addr, writeTranslationFault); err != nil {
		return fmt.Errorf("kernel stack fault at 0x%x: %w", addr, err)
	}
	return nil
}

// kill terminates the process owning space i after a failed request.
func (w *workload) kill(i int, err *kernel.Error, exitCode int) {
	if trace {
		kfmt.Printf("process %d exited with code %d: %s\n", i, exitCode, err.Message)
	}

	switch exitCode {
	case vmm.HeapFailureExitCode:
		w.stats.heapFailureExits++
	case killedExitCode:
		w.stats.killedExits++
	}
	w.destroy(i, true)
}

func (w *workload) destroy(i int, killed bool) {
	if i >= len(w.spaces) {
		return
	}

	w.spaces[i].Destroy()
	w.spaces[i] = w.spaces[len(w.spaces)-1]
	w.spaces = w.spaces[:len(w.spaces)-1]

	if killed {
		w.stats.spacesKilled++
	} else {
		w.stats.spacesDestroyed++
	}
}

// shutdown releases every allocation and address space and trims the
// kernel heap.
func (w *workload) shutdown() error {
	for len(w.allocs) != 0 {
		w.kernelFree()
	}

	for len(w.spaces) != 0 {
		w.destroy(len(w.spaces)-1, false)
	}

	if _, err := w.m.mem.Alloc.Trim(); err != nil {
		return err
	}
	return nil
}
