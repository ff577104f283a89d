package machine

/// Tss_t is the single long-mode task-state segment. Only Rsp0 is
/// mutated after boot, once per context switch.
type Tss_t struct {
	Reserved0  uint32
	Rsp0       uint64
	Rsp1       uint64
	Rsp2       uint64
	Reserved1  uint64
	Ist        [7]uint64
	Reserved2  uint64
	Reserved3  uint16
	IopbOffset uint16
}

/// Tss_size is the byte size of the TSS image the descriptor covers.
const Tss_size = 104

/// Cpu_t collects the modeled per-CPU registers: the task and LDT
/// selectors, the TS bit of CR0 and the interrupt flag.
type Cpu_t struct {
	Tr   uint16
	Ldtr uint16
	// CR0.TS; set on every context switch, cleared by clts
	Ts bool
	If bool
}

/// Cpu is the single CPU.
var Cpu = &Cpu_t{If: false}

/// Tss is the global task-state segment.
var Tss = &Tss_t{IopbOffset: Tss_size}

/// Cli disables interrupts.
func Cli() {
	Cpu.If = false
}

/// Sti enables interrupts.
func Sti() {
	Cpu.If = true
}

/// Clts clears CR0.TS so the next FP instruction does not trap.
func Clts() {
	Cpu.Ts = false
}

/// Stts sets CR0.TS; the switch path uses it to lazily swap FPU state.
func Stts() {
	Cpu.Ts = true
}

/// I387_t is a 512-byte fxsave area.
type I387_t [512]uint8

// the modeled FPU register file
var fpregs I387_t

/// Fxsave captures the FPU register file into dst.
var Fxsave = func(dst *I387_t) {
	*dst = fpregs
}

/// Fxrstor loads the FPU register file from src.
var Fxrstor = func(src *I387_t) {
	fpregs = *src
}

/// Fninit resets the FPU register file.
var Fninit = func() {
	fpregs = I387_t{}
}

/// Tlbflushes counts root-register reloads, one per invalidate.
var Tlbflushes int

/// Tlbflush reloads the page-map root register, invalidating all
/// non-global TLB entries. Replaceable for tests.
var Tlbflush = func() {
	Tlbflushes++
}
