package fs

import "testing"

import "linux01/mem"

func TestIgetSharesInodes(t *testing.T) {
	inode_table = [NR_INODE]Inode_t{}
	a := Iget(0x300, 7)
	b := Iget(0x300, 7)
	if a != b {
		t.Fatalf("same inode twice")
	}
	if a.Count != 2 {
		t.Fatalf("count %d", a.Count)
	}
	b.Iput()
	a.Iput()
	if a.Count != 0 {
		t.Fatalf("count %d after puts", a.Count)
	}
	c := Iget(0x300, 8)
	if c == nil || c.Num != 8 {
		t.Fatalf("fresh inode wrong")
	}
}

func TestIputUnderflowPanics(t *testing.T) {
	ip := &Inode_t{}
	defer func() {
		if recover() == nil {
			t.Fatalf("no panic")
		}
	}()
	ip.Iput()
}

func TestFileLifecycle(t *testing.T) {
	File_table = [NR_FILE]File_t{}
	inode_table = [NR_INODE]Inode_t{}
	f, err := Get_empty_filp()
	if err != 0 {
		t.Fatalf("get_empty_filp: %d", err)
	}
	f.Inode = Iget(0x300, 1)
	f.Dup()
	if f.Count != 2 {
		t.Fatalf("count %d", f.Count)
	}
	f.Put()
	if f.Inode == nil {
		t.Fatalf("inode dropped early")
	}
	f.Put()
	if f.Inode != nil || f.Count != 0 {
		t.Fatalf("final put did not release the inode")
	}
}

func TestBufferInit(t *testing.T) {
	phys := mem.Mkphys(mem.LOW_MEM, mem.LOW_MEM+mem.Pa_t(16*mem.PGSIZE))
	Buffer_init(phys, 0x20000, 0x24000)
	want := (0x24000 - 0x20000) / BLOCK_SIZE
	if nr_buffers != want {
		t.Fatalf("%d buffers, want %d", nr_buffers, want)
	}
	bh := Getblk(0x300, 1)
	if bh == nil || len(bh.Data) != BLOCK_SIZE {
		t.Fatalf("bad buffer")
	}
	bh.Data[0] = 0xaa
	Brelse(bh)
	if bh.Count != 0 {
		t.Fatalf("release did not drop the buffer")
	}
}

func TestBufferOverlapPanics(t *testing.T) {
	phys := mem.Mkphys(mem.LOW_MEM, mem.LOW_MEM+mem.Pa_t(16*mem.PGSIZE))
	defer func() {
		if recover() == nil {
			t.Fatalf("no panic")
		}
	}()
	Buffer_init(phys, 0x20000, mem.LOW_MEM+0x1000)
}
