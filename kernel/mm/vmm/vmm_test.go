package vmm

//go:generate mockgen -destination mock_mmu_test.go -package vmm -write_package_comment=false gopherberry/kernel/mm/vmm MMU

import (
	"fmt"
	"testing"

	"gopherberry/kernel/mm"
	"gopherberry/kernel/mm/pmm"

	"github.com/stretchr/testify/require"
)

const (
	testMemSize   = 16 * mm.RegionSize
	testKernelEnd = 0x20000
)

var testLayout = KernelLayout{
	TextStart:   0x8000,
	RodataStart: 0x10000,
	DataStart:   0x14000,
}

// fakeMMU records every hardware operation as a string.
type fakeMMU struct {
	core  uint8
	calls []string
}

func (m *fakeMMU) record(format string, args ...interface{}) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *fakeMMU) count(call string) int {
	var n int
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *fakeMMU) reset() { m.calls = m.calls[:0] }

func (m *fakeMMU) CoreID() uint8 { return m.core }
func (m *fakeMMU) DisableTranslation() { m.record("DisableTranslation") }
func (m *fakeMMU) EnableTranslation() { m.record("EnableTranslation") }
func (m *fakeMMU) InvalidateInstructionCache() { m.record("InvalidateInstructionCache") }
func (m *fakeMMU) InvalidateBranchPredictor() { m.record("InvalidateBranchPredictor") }
func (m *fakeMMU) InvalidateTLB() { m.record("InvalidateTLB") }
func (m *fakeMMU) InvalidateTLBEntry(v uintptr) { m.record("InvalidateTLBEntry(%x)", v) }
func (m *fakeMMU) InvalidateTLBASID(asid uint8) { m.record("InvalidateTLBASID(%d)", asid) }
func (m *fakeMMU) InvalidateTLBASIDEntry(asid uint8, v uintptr) {
	m.record("InvalidateTLBASIDEntry(%d,%x)", asid, v)
}
func (m *fakeMMU) DataSyncBarrier() { m.record("DSB") }
func (m *fakeMMU) InstructionSyncBarrier() { m.record("ISB") }
func (m *fakeMMU) SetTranslationControl(v uint32) { m.record("TTBCR=%x", v) }
func (m *fakeMMU) SetKernelTableBase(v uint32) { m.record("TTBR0=%x", v) }
func (m *fakeMMU) SetApplicationTableBase(v uint32) { m.record("TTBR1=%x", v) }
func (m *fakeMMU) SetDomainAccess(v uint32) { m.record("DACR=%x", v) }
func (m *fakeMMU) SetContextID(v uint32) { m.record("CONTEXTIDR=%x", v) }

// newTestContext returns a context backed by a simulated RAM arena.
func newTestContext(t *testing.T, mmu MMU) (*Context, *mm.Arena) {
	t.Helper()

	arena := mm.NewArena(0, make([]byte, testMemSize))
	frames := new(pmm.FrameAllocator)
	require.Nil(t, frames.Init(testMemSize, testKernelEnd))

	return &Context{Frames: frames, Phys: arena, MMU: mmu}, arena
}

// newTestKernelSpace returns an initialized kernel space and its fake MMU.
func newTestKernelSpace(t *testing.T) (*KernelSpace, *fakeMMU, *mm.Arena) {
	t.Helper()

	mmu := new(fakeMMU)
	ctx, arena := newTestContext(t, mmu)

	ks := new(KernelSpace)
	require.Nil(t, ks.Init(ctx, testLayout, testMemSize))
	mmu.reset()
	return ks, mmu, arena
}
