//go:build unix

package main

import (
	"fmt"

	"golang.org/x/sys/unix"

	"gopherberry/kernel/mm"
)

// newArena maps size bytes of anonymous memory to back the simulated RAM.
// Untouched pages are never committed by the host, which keeps large
// simulated machines cheap.
func newArena(size uintptr) (*mm.Arena, func(), error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to map %d bytes of simulated RAM: %w", size, err)
	}

	release := func() { _ = unix.Munmap(data) }
	return mm.NewArena(0, data), release, nil
}
