package vmm

import (
	"testing"

	"gopherberry/kernel/mm"
)

func TestRegionEntryEncoding(t *testing.T) {
	specs := []struct {
		preg       mm.Region
		flags      Flags
		kernelExec bool
		exp        uint32
	}{
		{1, kernelDataFlags, false, 0x0011141f},
		{0x3f2, deviceFlags, false, 0x3f210417},
		{0, kernelTextFlags, true, 0x0000940e},
		{0x800, appDataFlags, false, 0x80031c1f},
		{0, Flags{Attributes: AttrNonCacheable}, false, 0x00021013},
		{0xfff, Flags{Execute: true, Global: true, Access: AccessForbidden, Attributes: AttrStronglyOrdered}, true, 0xfff00002},
	}

	for specIndex, spec := range specs {
		if got := spec.flags.regionEntry(spec.preg, spec.kernelExec); got != spec.exp {
			t.Errorf("[spec %d] expected region entry 0x%08x; got 0x%08x", specIndex, spec.exp, got)
		}
	}
}

func TestFrameEntryEncoding(t *testing.T) {
	specs := []struct {
		frame mm.Frame
		flags Flags
		exp   uint32
	}{
		{0x123, kernelDataFlags, 0x0012345f},
		{0x10, appDataFlags, 0x00010c7f},
		{8, kernelTextFlags, 0x0000825e},
		{1, programFlags(false, false), 0x00001c6f},
		{1, programFlags(true, true), 0x00001c7e},
		{0, Flags{Attributes: AttrNonCacheable}, 0x00000843},
		{0xfffff, Flags{Execute: true, Global: true, Access: AccessReadOnly, Attributes: AttrWriteThrough}, 0xfffff23a},
	}

	for specIndex, spec := range specs {
		got := spec.flags.frameEntry(spec.frame)
		if got != spec.exp {
			t.Errorf("[spec %d] expected frame entry 0x%08x; got 0x%08x", specIndex, spec.exp, got)
		}

		if got&frameValidBit == 0 {
			t.Errorf("[spec %d] expected frame entry to be valid", specIndex)
		}
	}
}

func TestFrameTableEntryEncoding(t *testing.T) {
	specs := []struct {
		addr       uintptr
		kernelExec bool
		exp        uint32
	}{
		{0x00123400, true, 0x00123401},
		{0x00123400, false, 0x00123405},
		{0x3ffffc00, true, 0x3ffffc01},
	}

	for specIndex, spec := range specs {
		got := frameTableEntry(spec.addr, spec.kernelExec)
		if got != spec.exp {
			t.Errorf("[spec %d] expected pointer entry 0x%08x; got 0x%08x", specIndex, spec.exp, got)
		}

		if got&descTypeMask != descFrameTable {
			t.Errorf("[spec %d] expected pointer entry type", specIndex)
		}
	}
}
