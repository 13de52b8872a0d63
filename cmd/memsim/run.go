package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"gopherberry/kernel/kfmt"
	"gopherberry/kernel/mm/vmm"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a random workload and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, w, err := simulate(os.Stdout, true)
		if err != nil {
			return err
		}
		defer m.release()

		printSummary(os.Stdout, m, w)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// simulate boots a machine configured by the command line flags and runs the
// workload on it, shutting the workload down when cleanup is set. Kernel
// output goes to out.
func simulate(out io.Writer, cleanup bool) (*machine, *workload, error) {
	kfmt.SetOutputSink(&kfmt.PrefixWriter{Sink: out, Prefix: []byte("[memsim] ")})
	vmm.TraceKernelHeap = trace
	vmm.TraceAppPages = trace

	var log *csvLog
	if mmuLog {
		var err error
		if log, err = newCSVLog("mmu_"); err != nil {
			return nil, nil, err
		}
	}

	m, err := newMachine(uintptr(memMiB)<<20, uintptr(kernelEnd), log)
	if err != nil {
		return nil, nil, err
	}
	m.mem.Alloc.SetTrace(trace)

	w := newWorkload(m, seed)
	if err := w.run(ops); err != nil {
		m.release()
		return nil, nil, err
	}

	if cleanup {
		if err := w.shutdown(); err != nil {
			m.release()
			return nil, nil, err
		}
	}

	if log != nil {
		log.flush()
	}
	return m, w, nil
}

func printSummary(out io.Writer, m *machine, w *workload) {
	heap := m.mem.Alloc.HeapStats()
	s := w.stats

	kfmt.Fprintf(out, "kernel allocations: %d (%d freed, %d failed)\n", s.kernelAllocs, s.kernelFrees, s.failedAllocs)
	kfmt.Fprintf(out, "address spaces: %d created, %d destroyed, %d killed\n", s.spacesCreated, s.spacesDestroyed, s.spacesKilled)
	kfmt.Fprintf(out, "process exits: %d with code %d, %d with code %d\n", s.heapFailureExits, vmm.HeapFailureExitCode, s.killedExits, killedExitCode)
	kfmt.Fprintf(out, "activations: %d, heap adjustments: %d\n", s.activations, s.heapAdjusts)
	kfmt.Fprintf(out, "stack faults: %d application, %d kernel\n", s.stackFaults, s.kernelStackFaults)
	kfmt.Fprintf(out, "kernel heap: %d pages, %d free words\n", heap.Pages, heap.FreeWords)
	kfmt.Fprintf(out, "frames: %d/%d free\n", m.mem.Frames.FreeFrames(), m.mem.Frames.TotalFrames())
	kfmt.Fprintf(out, "mmu: %d operations, %d TLB invalidations\n", m.mmu.ops, m.mmu.tlbFlushes)
	if m.mmu.log != nil {
		kfmt.Fprintf(out, "mmu log: %s\n", m.mmu.log.path)
	}
}
