// Package cpu provides access to the ARMv7 system control coprocessor (CP15)
// registers used by the memory manager.
package cpu

// System control register (SCTLR) bits.
const (
	sctlrMMU            = 1 << 0
	sctlrAlignmentCheck = 1 << 1
	sctlrDataCache      = 1 << 2
	sctlrSWP            = 1 << 10
	sctlrBranchPredict  = 1 << 11
	sctlrInstCache      = 1 << 12
	sctlrTEXRemap       = 1 << 28
	sctlrAccessFlag     = 1 << 29

	translationOnBits  = sctlrMMU | sctlrAlignmentCheck | sctlrDataCache | sctlrSWP | sctlrBranchPredict | sctlrInstCache
	translationOffBits = sctlrMMU | sctlrDataCache | sctlrBranchPredict | sctlrInstCache | sctlrTEXRemap | sctlrAccessFlag

	// mvaMask clears the page offset of a TLB maintenance operand.
	mvaMask = ^uint32(0xfff)

	coreIDMask = 0x3
)

// The register accessors are reached through these variables so tests can
// observe the values written to the coprocessor.
var (
	readSCTLRFn         = readSCTLR
	writeSCTLRFn        = writeSCTLR
	readMPIDRFn         = readMPIDR
	setTTBR0Fn          = setTTBR0
	setTTBR1Fn          = setTTBR1
	setTTBCRFn          = setTTBCR
	setDACRFn           = setDACR
	setCONTEXTIDRFn     = setCONTEXTIDR
	invalidateICacheFn  = invalidateICache
	invalidateBPFn      = invalidateBranchPredictor
	tlbInvalidateAllFn  = tlbInvalidateAll
	tlbInvalidateMVAAFn = tlbInvalidateMVAA
	tlbInvalidateASIDFn = tlbInvalidateASID
	tlbInvalidateMVAFn  = tlbInvalidateMVA
	dsbFn               = dsb
	isbFn               = isb
)

// MMU drives the memory management unit of the executing core. All
// maintenance operations are broadcast to the inner shareable domain so
// every core observes them.
type MMU struct{}

// CoreID returns the affinity level 0 field of MPIDR.
func (MMU) CoreID() uint8 {
	return uint8(readMPIDRFn() & coreIDMask)
}

// DisableTranslation turns off the MMU, the caches, branch prediction, TEX
// remap and the access flag.
func (MMU) DisableTranslation() {
	writeSCTLRFn(readSCTLRFn() &^ translationOffBits)
}

// EnableTranslation turns on the MMU, the caches, branch prediction, SWP
// instructions and alignment checking.
func (MMU) EnableTranslation() {
	writeSCTLRFn(readSCTLRFn() | translationOnBits)
}

// InvalidateInstructionCache invalidates all instruction caches (ICIALLUIS).
func (MMU) InvalidateInstructionCache() { invalidateICacheFn() }

// InvalidateBranchPredictor invalidates the branch predictor (BPIALLIS).
func (MMU) InvalidateBranchPredictor() { invalidateBPFn() }

// InvalidateTLB invalidates every unified TLB entry (TLBIALLIS).
func (MMU) InvalidateTLB() { tlbInvalidateAllFn() }

// InvalidateTLBEntry invalidates the entries of vaddr for all ASIDs
// (TLBIMVAAIS).
func (MMU) InvalidateTLBEntry(vaddr uintptr) {
	tlbInvalidateMVAAFn(uint32(vaddr) & mvaMask)
}

// InvalidateTLBASID invalidates the entries tagged with asid (TLBIASIDIS).
func (MMU) InvalidateTLBASID(asid uint8) {
	tlbInvalidateASIDFn(uint32(asid))
}

// InvalidateTLBASIDEntry invalidates the entry of vaddr tagged with asid
// (TLBIMVAIS).
func (MMU) InvalidateTLBASIDEntry(asid uint8, vaddr uintptr) {
	tlbInvalidateMVAFn(uint32(vaddr)&mvaMask | uint32(asid))
}

// DataSyncBarrier issues a DSB.
func (MMU) DataSyncBarrier() { dsbFn() }

// InstructionSyncBarrier issues an ISB.
func (MMU) InstructionSyncBarrier() { isbFn() }

// SetTranslationControl writes TTBCR.
func (MMU) SetTranslationControl(value uint32) { setTTBCRFn(value) }

// SetKernelTableBase writes TTBR0.
func (MMU) SetKernelTableBase(value uint32) { setTTBR0Fn(value) }

// SetApplicationTableBase writes TTBR1.
func (MMU) SetApplicationTableBase(value uint32) { setTTBR1Fn(value) }

// SetDomainAccess writes DACR.
func (MMU) SetDomainAccess(value uint32) { setDACRFn(value) }

// SetContextID writes CONTEXTIDR. The low byte holds the ASID.
func (MMU) SetContextID(value uint32) { setCONTEXTIDRFn(value) }
