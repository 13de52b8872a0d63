package vmm

import (
	"gopherberry/kernel"
	"gopherberry/kernel/kfmt"
)

var errUnrecoverableFault = &kernel.Error{Module: "vmm", Message: "unrecoverable data abort"}

// FaultStatus is the value of the data fault status register (DFSR) that
// describes a data abort.
type FaultStatus uint32

// FaultKind classifies a data abort.
type FaultKind uint8

const (
	// FaultOther covers external aborts and debug events.
	FaultOther FaultKind = iota

	// FaultAlignment is raised for misaligned accesses.
	FaultAlignment

	// FaultTranslation is raised when no mapping exists for the address.
	FaultTranslation

	// FaultAccessFlag is raised when the access flag of a mapping is clear.
	FaultAccessFlag

	// FaultDomain is raised when the domain of a mapping denies access.
	FaultDomain

	// FaultPermission is raised when a mapping denies the access.
	FaultPermission
)

// Code returns the 5-bit fault status code (FS[4] is DFSR bit 10).
func (s FaultStatus) Code() uint32 {
	return uint32(s)&0xf | (uint32(s)>>6)&0x10
}

// Write returns true if the abort was caused by a write access.
func (s FaultStatus) Write() bool {
	return s&(1<<11) != 0
}

// Kind classifies the fault status code.
func (s FaultStatus) Kind() FaultKind {
	switch s.Code() {
	case 0b00001:
		return FaultAlignment
	case 0b00101, 0b00111:
		return FaultTranslation
	case 0b00011, 0b00110:
		return FaultAccessFlag
	case 0b01001, 0b01011:
		return FaultDomain
	case 0b01101, 0b01111:
		return FaultPermission
	default:
		return FaultOther
	}
}

func nonRecoverableFault(faultAddr uintptr, status FaultStatus, err *kernel.Error) {
	kfmt.Printf("\nData abort while accessing address: 0x%8x\nReason: ", faultAddr)
	switch status.Kind() {
	case FaultAlignment:
		kfmt.Printf("unaligned access")
	case FaultTranslation:
		kfmt.Printf("access to unmapped page")
	case FaultAccessFlag:
		kfmt.Printf("access flag fault")
	case FaultDomain:
		kfmt.Printf("domain fault")
	case FaultPermission:
		kfmt.Printf("page protection violation")
	default:
		kfmt.Printf("unknown")
	}

	if status.Write() {
		kfmt.Printf(" (write)\n")
	} else {
		kfmt.Printf(" (read)\n")
	}

	panic(err)
}
