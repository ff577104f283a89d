package machine

/// Gate_t is one modeled IDT entry. The hardware encoding packs the
/// handler address, selector, type and DPL into 16 bytes; the model
/// keeps the fields and the dispatch behavior.
type Gate_t struct {
	Handler func(*Tf_t)
	Sel     uint16
	Typ     uint8
	Dpl     uint8
	P       bool
}

/// Idt is the interrupt descriptor table.
var Idt [256]Gate_t

const kcs = 0x08

func setgate(n int, h func(*Tf_t), typ, dpl uint8) {
	Idt[n] = Gate_t{Handler: h, Sel: kcs, Typ: typ, Dpl: dpl, P: true}
}

/// Set_intr_gate installs an interrupt gate (DPL 0, interrupts
/// masked on entry).
func Set_intr_gate(n int, h func(*Tf_t)) {
	setgate(n, h, 0xe, 0)
}

/// Set_trap_gate installs a trap gate (DPL 0).
func Set_trap_gate(n int, h func(*Tf_t)) {
	setgate(n, h, 0xf, 0)
}

/// Set_system_gate installs a user-reachable trap gate (DPL 3).
func Set_system_gate(n int, h func(*Tf_t)) {
	setgate(n, h, 0xf, 3)
}

/// Raise delivers vector n with the given register frame, as the CPU
/// would on an interrupt or software gate. Interrupt gates run with
/// interrupts masked.
func Raise(n int, tf *Tf_t) {
	g := &Idt[n]
	if !g.P {
		panic("gate not present")
	}
	if g.Typ == 0xe {
		was := Cpu.If
		Cli()
		g.Handler(tf)
		Cpu.If = was
		return
	}
	g.Handler(tf)
}
