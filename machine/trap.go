package machine

// The syscall entry trampoline saves every register in a fixed order;
// the indices below name the resulting frame layout, lowest address
// first. Copy_process lays down exactly this image on a child's
// kernel stack, so the two must never be edited independently.

/// TFSIZE is the number of words in a saved register frame.
const TFSIZE = 24

/// Indices into a register frame, in trampoline save order.
const (
	TF_DS = iota
	TF_ES
	TF_FS
	TF_GS
	TF_RAX
	TF_RBX
	TF_RCX
	TF_RDX
	TF_RDI
	TF_RSI
	TF_RBP
	TF_R8
	TF_R9
	TF_R10
	TF_R11
	TF_R12
	TF_R13
	TF_R14
	TF_R15
	// the interrupt frame the CPU pushed
	TF_RIP
	TF_CS
	TF_RFLAGS
	TF_RSP
	TF_SS
)

/// Tf_t is a saved register frame.
type Tf_t [TFSIZE]uintptr

/// Link-time addresses of the assembly trampolines. The values are
/// opaque tokens; the switch and fork paths compare and store them,
/// nothing dereferences them.
const (
	Lbl_system_call     uintptr = 0xffffffff80101000
	Lbl_timer_interrupt uintptr = 0xffffffff80101040
	Lbl_ret_from_fork   uintptr = 0xffffffff80101080
)

/// Context_t is the kernel context a task keeps across switches: the
/// stack pointer, the callee-saved registers and the thread-local
/// segment bases.
type Context_t struct {
	Rsp uintptr
	Rip uintptr
	Rbx uintptr
	Rbp uintptr
	R12 uintptr
	R13 uintptr
	R14 uintptr
	R15 uintptr
	Fs  uintptr
	Gs  uintptr
}
