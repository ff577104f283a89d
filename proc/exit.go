package proc

import "linux01/defs"

// free a reaped task's slot and kernel stack frame
func release(p *Task_t) {
	if p == nil {
		return
	}
	for i := 1; i < defs.NR_TASKS; i++ {
		if task[i] == p {
			task[i] = nil
			kphys.Free_page(p.p_kstack)
			p.released = true
			close(p.schedch)
			return
		}
	}
	panic("trying to release non-existent task")
}

func tell_father(pid int) {
	// the idle task's pid is 0, so slot 0 is a legitimate father
	for i := defs.NR_TASKS - 1; i >= 0; i-- {
		p := task[i]
		if p != nil && p.Pid == pid {
			p.Signal |= defs.Sigmask(defs.SIGCHLD)
			return
		}
	}
	// nobody will ever wait for us; clean up here
	release(current)
}

/// Do_exit tears the caller down: address space, open files, inode
/// handles. The task lingers as a zombie until the parent reaps it.
/// Does not return.
func Do_exit(code int) int {
	// code and data share the window, one teardown covers both
	kvm.Free_page_tables(current.Ldt[2].Base(), current.Ldt[2].Limit())
	for i := 0; i < defs.NR_OPEN; i++ {
		if f := current.Filp[i]; f != nil {
			f.Put()
			current.Filp[i] = nil
		}
	}
	if current.Pwd != nil {
		current.Pwd.Iput()
		current.Pwd = nil
	}
	if current.Root != nil {
		current.Root.Iput()
		current.Root = nil
	}
	if last_task_used_math == current {
		last_task_used_math = nil
	}
	current.State = defs.TASK_ZOMBIE
	current.Exit_code = code
	tell_father(current.Father)
	Schedule()
	panic("zombie ran again")
}

/// Sys_exit terminates the caller with the given status.
func Sys_exit(code int) int {
	return Do_exit((code & 0xff) << 8)
}

/// Sys_waitpid waits for a child matching pid: a specific PID, -1
/// for any child, 0 for the caller's process group or -pgrp for
/// another group. The reaped child's times fold into the caller's
/// cutime/cstime; its exit status is stored through stat_addr when
/// non-zero.
func Sys_waitpid(pid int, stat_addr uintptr, options int) int {
	if stat_addr != 0 {
		Verify_area(stat_addr, 4)
	}
repeat:
	flag := 0
	for i := defs.NR_TASKS - 1; i > 0; i-- {
		p := task[i]
		if p == nil || p == current {
			continue
		}
		if p.Father != current.Pid {
			continue
		}
		if pid > 0 {
			if p.Pid != pid {
				continue
			}
		} else if pid == 0 {
			if p.Pgrp != current.Pgrp {
				continue
			}
		} else if pid != -1 {
			if p.Pgrp != -pid {
				continue
			}
		}
		switch p.State {
		case defs.TASK_STOPPED:
			if options&defs.WUNTRACED == 0 {
				continue
			}
			if stat_addr != 0 {
				Put_fs_long(0x7f, stat_addr)
			}
			return p.Pid
		case defs.TASK_ZOMBIE:
			current.Cutime += p.Utime
			current.Cstime += p.Stime
			cpid := p.Pid
			code := p.Exit_code
			release(p)
			if stat_addr != 0 {
				Put_fs_long(code, stat_addr)
			}
			return cpid
		default:
			flag = 1
		}
	}
	if flag != 0 {
		if options&defs.WNOHANG != 0 {
			return 0
		}
		current.State = defs.TASK_INTERRUPTIBLE
		Schedule()
		current.Signal &^= defs.Sigmask(defs.SIGCHLD)
		if current.Signal == 0 {
			goto repeat
		}
		return int(-defs.EINTR)
	}
	return int(-defs.ECHILD)
}
