package fs

import "fmt"

import "linux01/mem"

/// BLOCK_SIZE is the size of one disk block.
const BLOCK_SIZE = 1024

/// Bh_t is one buffer cache entry. The data lives in the reserved
/// buffer region below LOW_MEM, so the frames are never refcounted.
type Bh_t struct {
	Dev     int
	Blocknr int
	Uptodate bool
	Dirt    bool
	Count   int
	Data    []uint8
	next    *Bh_t
}

var free_list *Bh_t
var nr_buffers int

/// Buffer_init carves the region [start, end) of reserved memory into
/// buffer heads. Called once at boot.
func Buffer_init(phys *mem.Physmem_t, start, end mem.Pa_t) {
	if end > phys.Lowmem() {
		panic("buffers overlap paging memory")
	}
	free_list = nil
	nr_buffers = 0
	for b := start; b+BLOCK_SIZE <= end; b += BLOCK_SIZE {
		bh := &Bh_t{Data: phys.Dmap8(b)[:BLOCK_SIZE]}
		bh.next = free_list
		free_list = bh
		nr_buffers++
	}
	fmt.Printf("%d buffers = %d bytes buffer space\n", nr_buffers,
		nr_buffers*BLOCK_SIZE)
}

/// Getblk takes a free buffer for (dev, block). The real read path
/// belongs to the block layer; the core only needs the handle
/// lifecycle.
func Getblk(dev, block int) *Bh_t {
	bh := free_list
	if bh == nil {
		return nil
	}
	free_list = bh.next
	bh.Dev = dev
	bh.Blocknr = block
	bh.Count = 1
	return bh
}

/// Brelse returns a buffer to the free list.
func Brelse(bh *Bh_t) {
	if bh == nil {
		return
	}
	if bh.Count == 0 {
		panic("brelse of free buffer")
	}
	bh.Count--
	if bh.Count == 0 {
		bh.next = free_list
		free_list = bh
	}
}

/// Hd_init announces the disk driver. The driver proper is a
/// collaborator; boot only needs the init ordering.
func Hd_init() {
	fmt.Printf("hd: driver registered\n")
}
