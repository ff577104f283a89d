package machine

import "testing"

func TestDescBaseRoundtrip(t *testing.T) {
	var d Desc_t
	for _, base := range []uintptr{0, 0x4000000, 0x8000000, 0xfc000000, 0x12345000} {
		d.Set_base(base)
		if got := d.Base(); got != base {
			t.Fatalf("base %#x came back %#x", base, got)
		}
	}
}

func TestDescLimitRoundtrip(t *testing.T) {
	var d Desc_t
	for _, limit := range []uintptr{0x1000, 0x4000000, 0x100000000} {
		d.Set_limit(limit)
		if got := d.Limit(); got != limit {
			t.Fatalf("limit %#x came back %#x", limit, got)
		}
	}
}

func TestDescBaseLimitIndependent(t *testing.T) {
	d := Desc_t{A: 0xFFFF, B: 0x00AFFA00}
	d.Set_limit(0x4000000)
	d.Set_base(0x4000000)
	if d.Base() != 0x4000000 || d.Limit() != 0x4000000 {
		t.Fatalf("base/limit interference: %#x %#x", d.Base(), d.Limit())
	}
	// type and flag bits of the template survive
	if d.B&0x0000ff00 != 0x0000fa00 {
		t.Fatalf("access byte clobbered: %#x", d.B)
	}
}

func TestSysDescEncoding(t *testing.T) {
	Set_tss_desc(FIRST_TSS_ENTRY, 0x123456789ab0)
	lo := Gdt[FIRST_TSS_ENTRY]
	hi := Gdt[FIRST_TSS_ENTRY+1]
	if lo.B&0x0f00 != 0x0900 {
		t.Fatalf("not a TSS descriptor: %#x", lo.B)
	}
	if lo.B&0x8000 == 0 {
		t.Fatalf("TSS not present")
	}
	base := uintptr(lo.A>>16) | uintptr(lo.B&0xff)<<16 |
		uintptr(lo.B>>24)<<24 | uintptr(hi.A)<<32
	if base != 0x123456789ab0 {
		t.Fatalf("TSS base %#x", base)
	}
	Set_ldt_desc(FIRST_LDT_ENTRY+2, 0xdead000)
	if Gdt[FIRST_LDT_ENTRY+2].B&0x0f00 != 0x0200 {
		t.Fatalf("not an LDT descriptor")
	}
}

func TestSelectors(t *testing.T) {
	if TSS_sel(0) != FIRST_TSS_ENTRY<<3 {
		t.Fatalf("tss selector 0: %#x", TSS_sel(0))
	}
	if LDT_sel(0) != FIRST_LDT_ENTRY<<3 {
		t.Fatalf("ldt selector 0: %#x", LDT_sel(0))
	}
	// each task's pair is 16 bytes further on
	if LDT_sel(3)-LDT_sel(2) != 0x10 {
		t.Fatalf("ldt selector stride")
	}
}

func TestGates(t *testing.T) {
	fired := 0
	Set_intr_gate(0x20, func(tf *Tf_t) {
		if Cpu.If {
			fired = -1
			return
		}
		fired++
	})
	Sti()
	var tf Tf_t
	Raise(0x20, &tf)
	if fired != 1 {
		t.Fatalf("interrupt gate must mask interrupts (%d)", fired)
	}
	if !Cpu.If {
		t.Fatalf("interrupt flag not restored")
	}
	Set_system_gate(0x80, func(tf *Tf_t) { fired = 80 })
	if Idt[0x80].Dpl != 3 {
		t.Fatalf("syscall gate not user reachable")
	}
	Raise(0x80, &tf)
	if fired != 80 {
		t.Fatalf("trap gate did not dispatch")
	}
}

func TestCmosBus(t *testing.T) {
	Bus.Cmos[9] = 0x26
	Outb_p(0x80|9, 0x70)
	if Inb_p(0x71) != 0x26 {
		t.Fatalf("cmos readback failed")
	}
}
