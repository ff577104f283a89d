package proc

import "linux01/defs"
import "linux01/machine"
import "linux01/mem"

var last_pid int

/// Find_empty_process advances the PID counter past every live PID
/// and returns the first free task slot.
func Find_empty_process() (int, defs.Err_t) {
repeat:
	last_pid++
	if last_pid < 0 {
		last_pid = 1
	}
	for i := 0; i < defs.NR_TASKS; i++ {
		if task[i] != nil && task[i].Pid == last_pid {
			goto repeat
		}
	}
	for i := 1; i < defs.NR_TASKS; i++ {
		if task[i] == nil {
			return i, 0
		}
	}
	return 0, -defs.EAGAIN
}

/// Verify_area makes [addr, addr+size) of the caller's data segment
/// writable before the kernel stores through it.
func Verify_area(addr uintptr, size int) {
	size += int(addr & 0xfff)
	start := addr&^0xfff + current.Ldt[2].Base()
	for size > 0 {
		size -= 4096
		kvm.Write_verify(start)
		start += 4096
	}
}

// give the child its own window and clone the parent's mappings into
// it copy-on-write
func copy_mem(nr int, p *Task_t) defs.Err_t {
	code_limit := current.Ldt[1].Limit()
	data_limit := current.Ldt[2].Limit()
	old_code_base := current.Ldt[1].Base()
	old_data_base := current.Ldt[2].Base()
	if old_data_base != old_code_base {
		panic("We don't support separate I&D")
	}
	if data_limit < code_limit {
		panic("Bad data_limit")
	}
	new_base := uintptr(nr) * TASK_SIZE
	p.Ldt[1].Set_base(new_base)
	p.Ldt[2].Set_base(new_base)
	if kvm.Copy_page_tables(old_data_base, new_base, data_limit) != 0 {
		kvm.Free_page_tables(new_base, data_limit)
		return -defs.ENOMEM
	}
	return 0
}

/// Copy_process builds a child in slot nr from the parent's saved
/// register frame and returns the child's PID, or a negative errno.
/// The slot pointer is published last; until then the child cannot be
/// scheduled.
func Copy_process(nr int, tf *machine.Tf_t) int {
	page := kphys.Get_free_page()
	if page == 0 {
		return int(-defs.EAGAIN)
	}
	p := &Task_t{}
	// NOTE! this doesn't copy the kernel stack
	*p = *current
	p.schedch = make(chan struct{})
	p.started = false
	p.released = false
	p.entry = nil
	p.slot = nr
	p.p_kstack = page
	p.State = defs.TASK_UNINTERRUPTIBLE // prevent running until set up
	p.Pid = last_pid
	p.Father = current.Pid
	p.Counter = p.Priority
	p.Signal = 0
	p.Alarm = 0
	p.Leader = 0 // process leadership doesn't inherit
	p.Utime = 0
	p.Stime = 0
	p.Cutime = 0
	p.Cstime = 0
	p.Start_time = jiffies

	// Build the frame the syscall entry saved, top down, so the
	// restore tail unwinds the child into user mode as if it had
	// just made the call itself.
	off := mem.PGSIZE
	push := func(v uintptr) {
		off -= 8
		kphys.Writeq(page+mem.Pa_t(off), v)
	}
	// the interrupt frame iretq pops
	push(tf[machine.TF_SS])
	push(tf[machine.TF_RSP])
	push(tf[machine.TF_RFLAGS])
	push(tf[machine.TF_CS])
	push(tf[machine.TF_RIP])
	// general registers; rax is the child's fork() return value
	push(tf[machine.TF_R15])
	push(tf[machine.TF_R14])
	push(tf[machine.TF_R13])
	push(tf[machine.TF_R12])
	push(tf[machine.TF_R11])
	push(tf[machine.TF_R10])
	push(tf[machine.TF_R9])
	push(tf[machine.TF_R8])
	push(tf[machine.TF_RBP])
	push(tf[machine.TF_RSI])
	push(tf[machine.TF_RDI])
	push(tf[machine.TF_RDX])
	push(tf[machine.TF_RCX])
	push(tf[machine.TF_RBX])
	push(0)
	// data segment selectors
	push(tf[machine.TF_GS])
	push(tf[machine.TF_FS])
	push(tf[machine.TF_ES])
	push(tf[machine.TF_DS])
	// where the first __switch_to return lands
	push(machine.Lbl_ret_from_fork)

	p.Thread = machine.Context_t{
		Rsp: uintptr(page) + uintptr(off),
		Rip: machine.Lbl_ret_from_fork,
		Rbx: tf[machine.TF_RBX],
		Rbp: tf[machine.TF_RBP],
		Fs:  tf[machine.TF_FS],
		Gs:  tf[machine.TF_GS],
	}

	if last_task_used_math == current {
		machine.Fxsave(&p.I387)
	}

	if copy_mem(nr, p) != 0 {
		kphys.Free_page(page)
		return int(-defs.EAGAIN)
	}
	for i := 0; i < defs.NR_OPEN; i++ {
		if f := p.Filp[i]; f != nil {
			f.Dup()
		}
	}
	if current.Pwd != nil {
		current.Pwd.Idup()
	}
	if current.Root != nil {
		current.Root.Idup()
	}

	machine.Set_ldt_desc(machine.FIRST_LDT_ENTRY+2*nr, p.ldtaddr())

	p.State = defs.TASK_RUNNING // now it's safe to run
	task[nr] = p                // do this last, just in case
	return last_pid
}

/// Sys_fork creates a child from the caller's saved registers.
func Sys_fork(tf *machine.Tf_t) int {
	nr, err := Find_empty_process()
	if err != 0 {
		return int(err)
	}
	return Copy_process(nr, tf)
}
