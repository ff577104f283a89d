package proc

import "linux01/defs"
import "linux01/machine"

// The syscall dispatch table. The entry trampoline saves the full
// register image, System_call indexes this table by rax and the
// restore tail carries the return value back in rax. Arguments
// arrive in rdi, rsi and rdx.

type sysfn_t func(tf *machine.Tf_t) int

func sys_nosys(tf *machine.Tf_t) int {
	return int(-defs.ENOSYS)
}

func arg(tf *machine.Tf_t, n int) uintptr {
	switch n {
	case 0:
		return tf[machine.TF_RDI]
	case 1:
		return tf[machine.TF_RSI]
	case 2:
		return tf[machine.TF_RDX]
	}
	panic("bad argument index")
}

var sys_call_table [defs.NR_syscalls]sysfn_t

func init() {
	for i := range sys_call_table {
		sys_call_table[i] = sys_nosys
	}
	sys_call_table[defs.SYS_EXIT] = func(tf *machine.Tf_t) int {
		return Sys_exit(int(arg(tf, 0)))
	}
	sys_call_table[defs.SYS_FORK] = Sys_fork
	sys_call_table[defs.SYS_WAITPID] = func(tf *machine.Tf_t) int {
		return Sys_waitpid(int(arg(tf, 0)), arg(tf, 1), int(arg(tf, 2)))
	}
	sys_call_table[defs.SYS_TIME] = func(tf *machine.Tf_t) int {
		return Sys_time(arg(tf, 0))
	}
	sys_call_table[defs.SYS_GETPID] = func(tf *machine.Tf_t) int {
		return Sys_getpid()
	}
	sys_call_table[defs.SYS_ALARM] = func(tf *machine.Tf_t) int {
		return Sys_alarm(int(arg(tf, 0)))
	}
	sys_call_table[defs.SYS_PAUSE] = func(tf *machine.Tf_t) int {
		return Sys_pause()
	}
	sys_call_table[defs.SYS_NICE] = func(tf *machine.Tf_t) int {
		return Sys_nice(int(arg(tf, 0)))
	}
	sys_call_table[defs.SYS_KILL] = func(tf *machine.Tf_t) int {
		return Sys_kill(int(arg(tf, 0)), int(arg(tf, 1)))
	}
	sys_call_table[defs.SYS_SIGNAL] = func(tf *machine.Tf_t) int {
		return Sys_signal(int(arg(tf, 0)), arg(tf, 1), arg(tf, 2))
	}
	sys_call_table[defs.SYS_GETUID] = func(tf *machine.Tf_t) int {
		return Sys_getuid()
	}
	sys_call_table[defs.SYS_GETEUID] = func(tf *machine.Tf_t) int {
		return Sys_geteuid()
	}
	sys_call_table[defs.SYS_GETGID] = func(tf *machine.Tf_t) int {
		return Sys_getgid()
	}
	sys_call_table[defs.SYS_GETEGID] = func(tf *machine.Tf_t) int {
		return Sys_getegid()
	}
	sys_call_table[defs.SYS_GETPPID] = func(tf *machine.Tf_t) int {
		return Sys_getppid()
	}
}

/// Sys_time returns seconds since the epoch, also storing them
/// through tloc when non-zero.
func Sys_time(tloc uintptr) int {
	t := int(Current_time())
	if tloc != 0 {
		Verify_area(tloc, 8)
		Put_fs_quad(t, tloc)
	}
	return t
}

/// System_call is the vector 0x80 handler: dispatch by rax, return
/// in rax.
func System_call(tf *machine.Tf_t) {
	nr := int(tf[machine.TF_RAX])
	if nr < 0 || nr >= defs.NR_syscalls {
		nosys := int(-defs.ENOSYS)
		tf[machine.TF_RAX] = uintptr(nosys)
		return
	}
	tf[machine.TF_RAX] = uintptr(sys_call_table[nr](tf))
}
