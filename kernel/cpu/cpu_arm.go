package cpu

// Halt waits for interrupts forever.
func Halt()

func readSCTLR() uint32
func writeSCTLR(value uint32)
func readMPIDR() uint32

func setTTBR0(value uint32)
func setTTBR1(value uint32)
func setTTBCR(value uint32)
func setDACR(value uint32)
func setCONTEXTIDR(value uint32)

func invalidateICache()
func invalidateBranchPredictor()

func tlbInvalidateAll()
func tlbInvalidateMVAA(mva uint32)
func tlbInvalidateASID(asid uint32)
func tlbInvalidateMVA(mvaASID uint32)

func dsb()
func isb()
