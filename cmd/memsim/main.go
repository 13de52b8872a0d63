// Command memsim runs the kernel memory manager on a simulated machine. The
// physical RAM is a host memory arena and the MMU is a software stand-in
// that can log every system register operation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var (
	memMiB    uint
	kernelEnd uint
	seed      int64
	ops       int
	trace     bool
	mmuLog    bool
)

var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "Simulate the gopherberry memory manager",
	Long: `memsim boots the frame allocator, the kernel address space and the
kernel allocator on a simulated machine and drives them with a random
workload of kernel allocations and application address spaces.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().UintVar(&memMiB, "mem", 64, "Simulated RAM size in MiB")
	rootCmd.PersistentFlags().UintVar(&kernelEnd, "kernel-end", 0x40000, "Physical address following the kernel image")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 1, "Workload random seed")
	rootCmd.PersistentFlags().IntVar(&ops, "ops", 1000, "Number of workload operations")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "Log kernel heap, stack and application page changes")
	rootCmd.PersistentFlags().BoolVar(&mmuLog, "mmu-log", false, "Write every MMU operation to a CSV file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
