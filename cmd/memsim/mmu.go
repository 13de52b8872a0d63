package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// simMMU stands in for the MMU of the simulated machine. It tracks the
// registers written by the memory manager and optionally logs every
// operation as a CSV record.
type simMMU struct {
	core        uint8
	translation bool

	ttbcr, ttbr0, ttbr1, dacr, contextID uint32

	ops        uint64
	tlbFlushes uint64

	log *csvLog
}

func (m *simMMU) record(op string, value uint64) {
	m.ops++
	if m.log != nil {
		m.log.write(m.ops, m.core, op, value)
	}
}

func (m *simMMU) CoreID() uint8 { return m.core }

func (m *simMMU) DisableTranslation() {
	m.translation = false
	m.record("disable_translation", 0)
}

func (m *simMMU) EnableTranslation() {
	m.translation = true
	m.record("enable_translation", 0)
}

func (m *simMMU) InvalidateInstructionCache() { m.record("icache_invalidate", 0) }
func (m *simMMU) InvalidateBranchPredictor() { m.record("bp_invalidate", 0) }

func (m *simMMU) InvalidateTLB() {
	m.tlbFlushes++
	m.record("tlb_invalidate_all", 0)
}

func (m *simMMU) InvalidateTLBEntry(vaddr uintptr) {
	m.tlbFlushes++
	m.record("tlb_invalidate_mva", uint64(vaddr))
}

func (m *simMMU) InvalidateTLBASID(asid uint8) {
	m.tlbFlushes++
	m.record("tlb_invalidate_asid", uint64(asid))
}

func (m *simMMU) InvalidateTLBASIDEntry(asid uint8, vaddr uintptr) {
	m.tlbFlushes++
	m.record("tlb_invalidate_asid_mva", uint64(vaddr)|uint64(asid))
}

func (m *simMMU) DataSyncBarrier() { m.record("dsb", 0) }
func (m *simMMU) InstructionSyncBarrier() { m.record("isb", 0) }

func (m *simMMU) SetTranslationControl(v uint32) {
	m.ttbcr = v
	m.record("ttbcr", uint64(v))
}

func (m *simMMU) SetKernelTableBase(v uint32) {
	m.ttbr0 = v
	m.record("ttbr0", uint64(v))
}

func (m *simMMU) SetApplicationTableBase(v uint32) {
	m.ttbr1 = v
	m.record("ttbr1", uint64(v))
}

func (m *simMMU) SetDomainAccess(v uint32) {
	m.dacr = v
	m.record("dacr", uint64(v))
}

func (m *simMMU) SetContextID(v uint32) {
	m.contextID = v
	m.record("contextidr", uint64(v))
}

// csvLog buffers MMU operations and writes them to a CSV file.
type csvLog struct {
	path   string
	w      io.WriteCloser
	buffer []string

	bufferSize int
}

// newCSVLog creates a uniquely named CSV file and registers a handler that
// flushes and closes it when the program exits.
func newCSVLog(prefix string) (*csvLog, error) {
	path := prefix + xid.New().String() + ".csv"
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	log := &csvLog{path: path, w: file, bufferSize: 1000}
	fmt.Fprintf(file, "Seq, Core, Op, Value\n")

	atexit.Register(func() {
		log.close()
	})
	return log, nil
}

func (l *csvLog) write(seq uint64, core uint8, op string, value uint64) {
	l.buffer = append(l.buffer, fmt.Sprintf("%d, %d, %s, 0x%x\n", seq, core, op, value))
	if len(l.buffer) >= l.bufferSize {
		l.flush()
	}
}

func (l *csvLog) flush() {
	for _, line := range l.buffer {
		io.WriteString(l.w, line)
	}
	l.buffer = l.buffer[:0]
}

func (l *csvLog) close() {
	if l.w == nil {
		return
	}

	l.flush()
	if err := l.w.Close(); err != nil {
		panic(err)
	}
	l.w = nil
}
