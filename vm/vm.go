// Package vm builds and walks the four-level page tree rooted at the
// fixed PML4 frame and resolves page faults: fresh mappings, write
// protection and the copy-on-write path fork depends on.
package vm

import "fmt"

import "linux01/defs"
import "linux01/machine"
import "linux01/mem"

/// Do_exit is installed by the task layer; the fault handlers call it
/// with SIGSEGV when they cannot get a frame.
var Do_exit = func(sig int) {
	panic("no do_exit installed")
}

/// Vmem_t walks and mutates the page tree of a physical memory.
type Vmem_t struct {
	phys *mem.Physmem_t
}

/// Mkvm zeroes the root frame and returns a walker over phys.
func Mkvm(phys *mem.Physmem_t) *Vmem_t {
	pml4 := phys.Dmap_pmap(mem.PML4_ADDR)
	*pml4 = mem.Pmap_t{}
	return &Vmem_t{phys: phys}
}

/// Phys returns the physical memory behind this tree.
func (v *Vmem_t) Phys() *mem.Physmem_t {
	return v.phys
}

/// Invalidate reloads the page-map root, flushing the TLB.
func (v *Vmem_t) Invalidate() {
	machine.Tlbflush()
}

// Walk one level: return the next table, allocating and installing
// it when create is set and the entry is empty.
func (v *Vmem_t) next(pm *mem.Pmap_t, idx uint, create bool) *mem.Pmap_t {
	pte := pm[idx]
	if pte&mem.PTE_P == 0 {
		if !create {
			return nil
		}
		page := v.phys.Get_free_page()
		if page == 0 {
			return nil
		}
		pm[idx] = page | mem.PTE_P | mem.PTE_W | mem.PTE_U
		return v.phys.Dmap_pmap(page)
	}
	return v.phys.Dmap_pmap(pte & mem.PTE_ADDR)
}

/// Pte_walk returns the leaf entry for va, building missing interior
/// tables when create is set. A nil return with create means a table
/// frame could not be allocated.
func (v *Vmem_t) Pte_walk(va uintptr, create bool) *mem.Pa_t {
	pm := v.phys.Dmap_pmap(mem.PML4_ADDR)
	for lev := uint(3); lev > 0; lev-- {
		pm = v.next(pm, mem.Pglevel(va, lev), create)
		if pm == nil {
			return nil
		}
	}
	return &pm[mem.Pglevel(va, 0)]
}

// page tables are freed in 2MB blocks: one PD entry's worth of leaves
const blkmask = 0x1fffff

/// Free_page_tables clears every present leaf in [from, from+size),
/// releasing managed frames, and invalidates. from must be 2MB
/// aligned; size is rounded up to 2MB.
func (v *Vmem_t) Free_page_tables(from, size uintptr) defs.Err_t {
	if from&blkmask != 0 {
		panic("free_page_tables called with wrong alignment")
	}
	if from == 0 {
		panic("Trying to free up swapper memory space")
	}
	size = (size + blkmask) &^ blkmask
	for addr := from; addr < from+size; addr += uintptr(mem.PGSIZE) {
		pte := v.Pte_walk(addr, false)
		if pte == nil || *pte&mem.PTE_P == 0 {
			continue
		}
		page := *pte & mem.PTE_ADDR
		if page >= v.phys.Lowmem() {
			v.phys.Free_page(page)
		}
		*pte = 0
	}
	v.Invalidate()
	return 0
}

/// Copy_page_tables clones every present leaf of [from, from+size)
/// into the tree at to, write-protecting both sides and counting the
/// shared frames. On table exhaustion the partial destination is left
/// for the caller to unmap. Both ends must be 2MB aligned.
func (v *Vmem_t) Copy_page_tables(from, to, size uintptr) defs.Err_t {
	if from&blkmask != 0 || to&blkmask != 0 {
		panic("copy_page_tables called with wrong alignment")
	}
	size = (size + blkmask) &^ blkmask
	for addr := uintptr(0); addr < size; addr += uintptr(mem.PGSIZE) {
		fpte := v.Pte_walk(from+addr, false)
		if fpte == nil || *fpte&mem.PTE_P == 0 {
			continue
		}
		tpte := v.Pte_walk(to+addr, true)
		if tpte == nil {
			return -defs.ENOMEM
		}
		// both sides lose the write bit; the first write faults
		// and the handler decides who copies
		this := *fpte &^ mem.PTE_W
		*tpte = this
		*fpte = this
		phys := this & mem.PTE_ADDR
		if phys >= v.phys.Lowmem() {
			v.phys.Refup(phys)
		}
	}
	v.Invalidate()
	return 0
}

/// Put_page maps the frame at page to va with user write access. The
/// frame's refcount must already account for the mapping. Returns 0
/// when a table frame cannot be allocated.
func (v *Vmem_t) Put_page(page mem.Pa_t, va uintptr) mem.Pa_t {
	if page < v.phys.Lowmem() || page >= v.phys.Highmem() {
		fmt.Printf("Trying to put page %#x at %#x\n", page, va)
	} else if v.phys.Refcnt(page) != 1 {
		fmt.Printf("mem_map disagrees with %#x at %#x\n", page, va)
	}
	pte := v.Pte_walk(va, true)
	if pte == nil {
		return 0
	}
	*pte = page | mem.PTE_P | mem.PTE_W | mem.PTE_U
	return page
}

/// Un_wp_page resolves a write-protect fault on the given leaf. The
/// sole owner of a managed frame just gets the write bit back;
/// shared frames are copied. Returns false when no frame could be
/// allocated for the copy.
func (v *Vmem_t) Un_wp_page(pte *mem.Pa_t) bool {
	old := *pte & mem.PTE_ADDR
	if old >= v.phys.Lowmem() && v.phys.Refcnt(old) == 1 {
		*pte |= mem.PTE_W
		v.Invalidate()
		return true
	}
	npage := v.phys.Get_free_page()
	if npage == 0 {
		return false
	}
	if old >= v.phys.Lowmem() {
		v.phys.Free_page(old)
	}
	// drop old, install new, flush, then copy. this order is only
	// safe because page faults run with interrupts off.
	*pte = npage | mem.PTE_P | mem.PTE_W | mem.PTE_U
	v.Invalidate()
	v.phys.Copy_page(old, npage)
	return true
}

/// Do_wp_page handles a write-protect fault at va.
func (v *Vmem_t) Do_wp_page(ecode, va uintptr) {
	pte := v.Pte_walk(va, false)
	if pte == nil {
		return
	}
	if !v.Un_wp_page(pte) {
		Do_exit(defs.SIGSEGV)
	}
}

/// Write_verify forces a copy-on-write at va before the kernel
/// writes through a possibly shared user mapping. Unmapped addresses
/// are left for the no-page handler.
func (v *Vmem_t) Write_verify(va uintptr) {
	pte := v.Pte_walk(va, false)
	if pte == nil {
		return
	}
	if *pte&(mem.PTE_P|mem.PTE_W) == mem.PTE_P {
		if !v.Un_wp_page(pte) {
			Do_exit(defs.SIGSEGV)
		}
	}
}

/// Do_no_page maps a fresh writable frame at va. Allocation failure
/// is a segmentation violation for the current task.
func (v *Vmem_t) Do_no_page(ecode, va uintptr) {
	page := v.phys.Get_free_page()
	if page != 0 && v.Put_page(page, va) != 0 {
		return
	}
	Do_exit(defs.SIGSEGV)
}
