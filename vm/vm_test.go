package vm

import "testing"

import "linux01/defs"
import "linux01/machine"
import "linux01/mem"

const mb = 1 << 20

func mktestvm(npages int) (*mem.Physmem_t, *Vmem_t) {
	phys := mem.Mkphys(mem.LOW_MEM, mem.LOW_MEM+mem.Pa_t(npages*mem.PGSIZE))
	return phys, Mkvm(phys)
}

func expectpanic(t *testing.T, msg string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("no panic: %s", msg)
		}
	}()
	f()
}

func TestWalkNoCreate(t *testing.T) {
	_, v := mktestvm(64)
	if pte := v.Pte_walk(64*mb, false); pte != nil {
		t.Fatalf("walk invented a mapping")
	}
}

func TestWalkCreateBuildsTables(t *testing.T) {
	phys, v := mktestvm(64)
	free := phys.Count_free()
	pte := v.Pte_walk(64*mb, true)
	if pte == nil {
		t.Fatalf("walk failed")
	}
	// three interior tables were built on the way down
	if phys.Count_free() != free-3 {
		t.Fatalf("expected 3 table frames, used %d", free-phys.Count_free())
	}
	// and the same leaf comes back without create
	if v.Pte_walk(64*mb, false) != pte {
		t.Fatalf("walk not stable")
	}
	// interior entries carry present/writable/user
	pml4 := phys.Dmap_pmap(mem.PML4_ADDR)
	e := pml4[mem.Pglevel(64*mb, 3)]
	want := mem.PTE_P | mem.PTE_W | mem.PTE_U
	if e&want != want {
		t.Fatalf("interior entry flags %#x", e)
	}
}

func TestPutPage(t *testing.T) {
	phys, v := mktestvm(64)
	pa := phys.Get_free_page()
	if v.Put_page(pa, 64*mb) != pa {
		t.Fatalf("put_page failed")
	}
	pte := v.Pte_walk(64*mb, false)
	if pte == nil || *pte != pa|mem.PTE_P|mem.PTE_W|mem.PTE_U {
		t.Fatalf("bad leaf %#x", *pte)
	}
}

func TestCloneRefcountBalance(t *testing.T) {
	phys, v := mktestvm(64)
	var frames []mem.Pa_t
	for i := 0; i < 3; i++ {
		pa := phys.Get_free_page()
		v.Put_page(pa, uintptr(64*mb+i*mem.PGSIZE))
		frames = append(frames, pa)
	}
	if err := v.Copy_page_tables(64*mb, 128*mb, 3*uintptr(mem.PGSIZE)); err != 0 {
		t.Fatalf("copy_page_tables: %d", err)
	}
	for _, pa := range frames {
		if phys.Refcnt(pa) != 2 {
			t.Fatalf("shared frame refcnt %d", phys.Refcnt(pa))
		}
	}
	// both sides lost the write bit
	for i := range frames {
		src := v.Pte_walk(uintptr(64*mb+i*mem.PGSIZE), false)
		dst := v.Pte_walk(uintptr(128*mb+i*mem.PGSIZE), false)
		if *src&mem.PTE_W != 0 || *dst&mem.PTE_W != 0 {
			t.Fatalf("write bit survived clone")
		}
		if *src&mem.PTE_ADDR != *dst&mem.PTE_ADDR {
			t.Fatalf("clone changed the frame")
		}
	}
	v.Free_page_tables(128*mb, 3*uintptr(mem.PGSIZE))
	for _, pa := range frames {
		if phys.Refcnt(pa) != 1 {
			t.Fatalf("refcnt %d after child unmap", phys.Refcnt(pa))
		}
	}
	v.Free_page_tables(64*mb, 3*uintptr(mem.PGSIZE))
	for _, pa := range frames {
		if phys.Refcnt(pa) != 0 {
			t.Fatalf("refcnt %d after both unmaps", phys.Refcnt(pa))
		}
	}
}

func TestCowSharedFrameCopies(t *testing.T) {
	phys, v := mktestvm(64)
	pa := phys.Get_free_page()
	phys.Dmap8(pa)[0] = 0x5a
	v.Put_page(pa, 64*mb)
	if err := v.Copy_page_tables(64*mb, 128*mb, uintptr(mem.PGSIZE)); err != 0 {
		t.Fatalf("copy_page_tables: %d", err)
	}
	// parent writes: shared frame, so the fault copies
	v.Do_wp_page(7, 64*mb)
	ppte := v.Pte_walk(64*mb, false)
	cpte := v.Pte_walk(128*mb, false)
	npa := *ppte & mem.PTE_ADDR
	if npa == pa {
		t.Fatalf("shared frame not copied")
	}
	if *ppte&mem.PTE_W == 0 {
		t.Fatalf("faulting side still read-only")
	}
	if *cpte&mem.PTE_ADDR != pa || *cpte&mem.PTE_W != 0 {
		t.Fatalf("other side disturbed: %#x", *cpte)
	}
	if phys.Refcnt(pa) != 1 || phys.Refcnt(npa) != 1 {
		t.Fatalf("refcnts %d/%d", phys.Refcnt(pa), phys.Refcnt(npa))
	}
	if phys.Dmap8(npa)[0] != 0x5a {
		t.Fatalf("contents not copied")
	}
}

func TestCowSoleOwnerFlipsInPlace(t *testing.T) {
	phys, v := mktestvm(64)
	pa := phys.Get_free_page()
	v.Put_page(pa, 64*mb)
	pte := v.Pte_walk(64*mb, false)
	*pte &^= mem.PTE_W
	flushes := machine.Tlbflushes
	v.Do_wp_page(7, 64*mb)
	if *pte&mem.PTE_ADDR != pa {
		t.Fatalf("sole owner lost its frame")
	}
	if *pte&mem.PTE_W == 0 {
		t.Fatalf("write bit not restored")
	}
	if machine.Tlbflushes == flushes {
		t.Fatalf("no TLB flush")
	}
}

func TestWriteVerify(t *testing.T) {
	phys, v := mktestvm(64)
	pa := phys.Get_free_page()
	v.Put_page(pa, 64*mb)
	v.Copy_page_tables(64*mb, 128*mb, uintptr(mem.PGSIZE))
	v.Write_verify(64 * mb)
	pte := v.Pte_walk(64*mb, false)
	if *pte&mem.PTE_W == 0 {
		t.Fatalf("write_verify left the page read-only")
	}
	// writable or unmapped addresses are a no-op
	v.Write_verify(64 * mb)
	v.Write_verify(192 * mb)
	if v.Pte_walk(192*mb, false) != nil {
		t.Fatalf("write_verify mapped something")
	}
}

func TestDoNoPage(t *testing.T) {
	phys, v := mktestvm(64)
	v.Do_no_page(0, 64*mb+123)
	pte := v.Pte_walk(64*mb, false)
	if pte == nil || *pte&mem.PTE_P == 0 {
		t.Fatalf("no mapping after no_page")
	}
	if *pte&(mem.PTE_W|mem.PTE_U) != mem.PTE_W|mem.PTE_U {
		t.Fatalf("bad flags %#x", *pte)
	}
	pa := *pte & mem.PTE_ADDR
	if phys.Refcnt(pa) != 1 {
		t.Fatalf("refcnt %d", phys.Refcnt(pa))
	}
}

func TestFaultOomKillsTask(t *testing.T) {
	phys, v := mktestvm(12)
	// drain all managed frames
	for phys.Get_free_page() != 0 {
	}
	killed := 0
	old := Do_exit
	Do_exit = func(sig int) {
		killed = sig
		panic("exited")
	}
	defer func() { Do_exit = old }()
	func() {
		defer func() { recover() }()
		v.Do_no_page(0, 64*mb)
	}()
	if killed != defs.SIGSEGV {
		t.Fatalf("no SIGSEGV exit, got %d", killed)
	}
}

func TestAlignmentPanics(t *testing.T) {
	_, v := mktestvm(64)
	expectpanic(t, "unaligned free", func() {
		v.Free_page_tables(64*mb+0x1000, uintptr(mem.PGSIZE))
	})
	expectpanic(t, "freeing swapper space", func() {
		v.Free_page_tables(0, uintptr(mem.PGSIZE))
	})
	expectpanic(t, "unaligned copy", func() {
		v.Copy_page_tables(64*mb, 128*mb+0x1000, uintptr(mem.PGSIZE))
	})
}

func TestUnmapFlushesTlb(t *testing.T) {
	phys, v := mktestvm(64)
	pa := phys.Get_free_page()
	v.Put_page(pa, 64*mb)
	flushes := machine.Tlbflushes
	v.Free_page_tables(64*mb, uintptr(mem.PGSIZE))
	if machine.Tlbflushes == flushes {
		t.Fatalf("unmap did not invalidate")
	}
	if pte := v.Pte_walk(64*mb, false); pte != nil && *pte != 0 {
		t.Fatalf("leaf survived unmap")
	}
	if phys.Refcnt(pa) != 0 {
		t.Fatalf("frame not released")
	}
}

func TestCloneOom(t *testing.T) {
	phys, v := mktestvm(16)
	pa := phys.Get_free_page()
	v.Put_page(pa, 0)
	// no frames left for the destination's tables
	for phys.Get_free_page() != 0 {
	}
	if err := v.Copy_page_tables(0, 64*mb, uintptr(mem.PGSIZE)); err == 0 {
		t.Fatalf("clone succeeded without memory")
	}
}
