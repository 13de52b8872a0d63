package main

import "gopherberry/kernel/kmain"

// The rt0 code stores the firmware memory size and the linker symbols of the
// kernel sections here before jumping to main.
var (
	memSize     uintptr
	textStart   uintptr
	rodataStart uintptr
	dataStart   uintptr
	kernelEnd   uintptr
)

// main makes a dummy call to the actual kernel main entrypoint function. It
// is intentionally defined to prevent the Go compiler from optimizing away the
// real kernel code.
//
// Global variables are passed as arguments to Kmain to prevent the compiler
// from inlining the actual call and removing Kmain from the generated .o file.
func main() {
	kmain.Kmain(memSize, textStart, rodataStart, dataStart, kernelEnd)
}
