package mem

import "unsafe"

// The kernel runs with all of physical memory mapped; Dmap and
// friends are that view. Index math for the four table levels lives
// here with it since both walk the same addresses.

func shl(c uint) uint {
	return 12 + 9*c
}

/// Pgbits decomposes a canonical virtual address into its four 9-bit
/// table indices, root level first.
func Pgbits(v uintptr) (uint, uint, uint, uint) {
	lb := func(c uint) uint {
		return uint(v>>shl(c)) & 0x1ff
	}
	return lb(3), lb(2), lb(1), lb(0)
}

/// Pglevel returns the table index of va at level c (3 is the root).
func Pglevel(va uintptr, c uint) uint {
	return uint(va>>shl(c)) & 0x1ff
}

/// Pg2bytes converts a page of ints to a page of bytes.
func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

/// Pg2pmap converts a page to a page table page.
func Pg2pmap(pg *Pg_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(pg))
}

func (phys *Physmem_t) dmap(pa Pa_t) *Pg_t {
	if pa >= phys.highmem {
		panic("direct map not large enough")
	}
	bpg := &phys.store[pa>>PGSHIFT]
	return (*Pg_t)(unsafe.Pointer(bpg))
}

/// Dmap returns a page-aligned view of the frame containing pa.
func (phys *Physmem_t) Dmap(pa Pa_t) *Pg_t {
	return phys.dmap(pa)
}

/// Dmap_pmap returns the frame containing pa as a page table page.
func (phys *Physmem_t) Dmap_pmap(pa Pa_t) *Pmap_t {
	return Pg2pmap(phys.dmap(pa))
}

/// Dmap8 returns the bytes of pa's frame from pa's offset to the end
/// of the frame.
func (phys *Physmem_t) Dmap8(pa Pa_t) []uint8 {
	pg := phys.dmap(pa)
	off := pa & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}

/// Copy_page copies one frame's contents onto another.
func (phys *Physmem_t) Copy_page(from, to Pa_t) {
	src := phys.dmap(from & PGMASK)
	dst := phys.dmap(to & PGMASK)
	*dst = *src
}

// Word access into physical memory. The stack-image builder and the
// fork return path move 64-bit stack words; the user-segment
// accessors move 32-bit longs. Neither may straddle a frame.

/// Readq loads the 64-bit word at pa.
func (phys *Physmem_t) Readq(pa Pa_t) uintptr {
	b := phys.Dmap8(pa)
	if len(b) < 8 {
		panic("word straddles a frame")
	}
	return *(*uintptr)(unsafe.Pointer(&b[0]))
}

/// Writeq stores a 64-bit word at pa.
func (phys *Physmem_t) Writeq(pa Pa_t, v uintptr) {
	b := phys.Dmap8(pa)
	if len(b) < 8 {
		panic("word straddles a frame")
	}
	*(*uintptr)(unsafe.Pointer(&b[0])) = v
}

/// Readl loads the 32-bit long at pa.
func (phys *Physmem_t) Readl(pa Pa_t) uint32 {
	b := phys.Dmap8(pa)
	if len(b) < 4 {
		panic("long straddles a frame")
	}
	return *(*uint32)(unsafe.Pointer(&b[0]))
}

/// Writel stores a 32-bit long at pa.
func (phys *Physmem_t) Writel(pa Pa_t, v uint32) {
	b := phys.Dmap8(pa)
	if len(b) < 4 {
		panic("long straddles a frame")
	}
	*(*uint32)(unsafe.Pointer(&b[0])) = v
}
