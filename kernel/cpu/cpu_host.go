//go:build !arm

package cpu

// Halt is a no-op on hosts where the memory manager runs in simulation.
func Halt() {}

func readSCTLR() uint32 { return 0 }
func writeSCTLR(uint32) {}
func readMPIDR() uint32 { return 0 }
func setTTBR0(uint32) {}
func setTTBR1(uint32) {}
func setTTBCR(uint32) {}
func setDACR(uint32) {}
func setCONTEXTIDR(uint32) {}
func invalidateICache() {}
func invalidateBranchPredictor() {}
func tlbInvalidateAll() {}
func tlbInvalidateMVAA(uint32) {}
func tlbInvalidateASID(uint32) {}
func tlbInvalidateMVA(uint32) {}
func dsb() {}
func isb() {}
