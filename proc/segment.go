package proc

import "linux01/mem"

// Kernel access to user memory goes through the caller's data
// segment: offset by the segment base, then through the page tree.
// Unmapped pages fault in the usual way.

func fsaddr(addr uintptr) mem.Pa_t {
	la := current.Ldt[2].Base() + addr
	for {
		pte := kvm.Pte_walk(la, false)
		if pte != nil && *pte&mem.PTE_P != 0 {
			return *pte&mem.PTE_ADDR + mem.Pa_t(la)&mem.PGOFFSET
		}
		kvm.Do_no_page(0, la)
	}
}

/// Put_fs_long stores a 32-bit value at addr in the caller's data
/// segment. Call Verify_area first if the page may be shared.
func Put_fs_long(val int, addr uintptr) {
	kphys.Writel(fsaddr(addr), uint32(val))
}

/// Get_fs_long loads a 32-bit value from addr in the caller's data
/// segment.
func Get_fs_long(addr uintptr) int {
	return int(kphys.Readl(fsaddr(addr)))
}

/// Put_fs_quad stores a 64-bit value at addr in the caller's data
/// segment.
func Put_fs_quad(val int, addr uintptr) {
	kphys.Writeq(fsaddr(addr), uintptr(val))
}

/// Get_fs_quad loads a 64-bit value from addr in the caller's data
/// segment.
func Get_fs_quad(addr uintptr) int {
	return int(kphys.Readq(fsaddr(addr)))
}
