package proc

import "linux01/defs"
import "linux01/machine"
import "linux01/mem"
import "linux01/vm"

/// LATCH is the PIT counter value for HZ ticks per second.
const LATCH = 1193180 / defs.HZ

/// Waitq_t is a wait queue: a single pointer holding the most
/// recently added sleeper. Earlier sleepers are daisy-chained through
/// a local variable in each sleeper's frame.
type Waitq_t struct {
	P *Task_t
}

/// Schedule picks the runnable task with the most quantum left and
/// dispatches to it. When every runnable task has exhausted its
/// quantum, all counters decay-refill and the scan repeats; the idle
/// task runs when nothing else can.
func Schedule() {
	// check alarm, wake up any interruptible tasks that have got a
	// signal
	for i := defs.NR_TASKS - 1; i > 0; i-- {
		p := task[i]
		if p == nil {
			continue
		}
		if p.Alarm != 0 && p.Alarm < jiffies {
			p.Signal |= defs.Sigmask(defs.SIGALRM)
			p.Alarm = 0
		}
		if p.Signal != 0 && p.State == defs.TASK_INTERRUPTIBLE {
			p.State = defs.TASK_RUNNING
		}
	}

	// this is the scheduler proper:
	for {
		c := -1
		next := 0
		for i := defs.NR_TASKS - 1; i > 0; i-- {
			p := task[i]
			if p == nil {
				continue
			}
			if p.State == defs.TASK_RUNNING && p.Counter > c {
				c = p.Counter
				next = i
			}
		}
		if c != 0 {
			switch_to(next)
			return
		}
		// everybody ran dry; leftover halves reward tasks that
		// sleep through their quantum
		for i := defs.NR_TASKS - 1; i > 0; i-- {
			if p := task[i]; p != nil {
				p.Counter = p.Counter>>1 + p.Priority
			}
		}
	}
}

/// Sys_pause puts the caller to sleep until a signal arrives.
func Sys_pause() int {
	current.State = defs.TASK_INTERRUPTIBLE
	Schedule()
	return 0
}

/// Sleep_on adds the caller to q and sleeps uninterruptibly. On
/// wakeup the previous queue head, saved locally, is set running;
/// that chain hands one Wake_up down to every earlier sleeper.
func Sleep_on(q *Waitq_t) {
	if q == nil {
		return
	}
	if current == task[0] {
		panic("task[0] trying to sleep")
	}
	tmp := q.P
	q.P = current
	current.State = defs.TASK_UNINTERRUPTIBLE
	Schedule()
	if tmp != nil {
		tmp.State = defs.TASK_RUNNING
	}
}

/// Interruptible_sleep_on is Sleep_on for sleeps a signal may break.
/// Only the newest sleeper may leave the queue; a sleeper woken while
/// displaced wakes the newer one and goes back to sleep.
func Interruptible_sleep_on(q *Waitq_t) {
	if q == nil {
		return
	}
	if current == task[0] {
		panic("task[0] trying to sleep")
	}
	tmp := q.P
	q.P = current
	for {
		current.State = defs.TASK_INTERRUPTIBLE
		Schedule()
		if q.P != nil && q.P != current {
			q.P.State = defs.TASK_RUNNING
			continue
		}
		break
	}
	q.P = nil
	if tmp != nil {
		tmp.State = defs.TASK_RUNNING
	}
}

/// Wake_up makes the queue head runnable and empties the queue; the
/// daisy chain in the sleepers propagates further wakes.
func Wake_up(q *Waitq_t) {
	if q != nil && q.P != nil {
		q.P.State = defs.TASK_RUNNING
		q.P = nil
	}
}

/// Do_timer charges one tick to the current task and reschedules at
/// end of quantum. cpl is the interrupted privilege level; the kernel
/// is cooperative within itself, so only user context is preempted.
func Do_timer(cpl int) {
	if cpl != 0 {
		current.Utime++
	} else {
		current.Stime++
	}
	current.Counter--
	if current.Counter > 0 {
		return
	}
	current.Counter = 0
	if cpl == 0 {
		return
	}
	Schedule()
}

/// Timer_interrupt is the vector 0x20 handler: count the tick, then
/// charge it.
func Timer_interrupt(tf *machine.Tf_t) {
	jiffies++
	Do_timer(int(tf[machine.TF_CS]) & 3)
}

/// Sys_alarm arms (or with 0 cancels) the caller's alarm and returns
/// the requested seconds.
func Sys_alarm(seconds int) int {
	if seconds > 0 {
		current.Alarm = jiffies + defs.HZ*int64(seconds)
	} else {
		current.Alarm = 0
	}
	return seconds
}

/// Sys_getpid returns the caller's PID.
func Sys_getpid() int {
	return current.Pid
}

/// Sys_getppid returns the parent's PID.
func Sys_getppid() int {
	return current.Father
}

/// Sys_getuid returns the real user id.
func Sys_getuid() int {
	return int(current.Uid)
}

/// Sys_geteuid returns the effective user id.
func Sys_geteuid() int {
	return int(current.Euid)
}

/// Sys_getgid returns the real group id.
func Sys_getgid() int {
	return int(current.Gid)
}

/// Sys_getegid returns the effective group id.
func Sys_getegid() int {
	return int(current.Egid)
}

/// Sys_nice lowers the caller's priority by increment, as long as
/// the result stays positive.
func Sys_nice(increment int) int {
	if current.Priority-increment > 0 {
		current.Priority -= increment
	}
	return 0
}

/// Sys_signal installs a handler for one of the portable signals and
/// returns the previous handler.
func Sys_signal(signal int, handler, restorer uintptr) int {
	switch signal {
	case defs.SIGHUP, defs.SIGINT, defs.SIGQUIT, defs.SIGILL,
		defs.SIGTRAP, defs.SIGABRT, defs.SIGFPE, defs.SIGUSR1,
		defs.SIGSEGV, defs.SIGUSR2, defs.SIGPIPE, defs.SIGALRM,
		defs.SIGCHLD:
		old := current.Sigfn[signal-1]
		current.Sigfn[signal-1] = handler
		current.Sigrestorer = restorer
		return int(old)
	default:
		return -1
	}
}

/// Sys_kill posts sig to every task with the given PID.
func Sys_kill(pid, sig int) int {
	if sig < 1 || sig > defs.NSIG {
		return int(-defs.EINVAL)
	}
	for i := defs.NR_TASKS - 1; i > 0; i-- {
		p := task[i]
		if p != nil && p.Pid == pid {
			p.Signal |= defs.Sigmask(sig)
			return 0
		}
	}
	return int(-defs.ESRCH)
}

/// Math_state_restore parks the previous FPU owner's state and loads
/// the current task's. Runs from the device-not-available trap.
func Math_state_restore() {
	if last_task_used_math != nil {
		machine.Fxsave(&last_task_used_math.I387)
	}
	if current.Used_math {
		machine.Fxrstor(&current.I387)
	} else {
		machine.Fninit()
		current.Used_math = true
	}
	last_task_used_math = current
}

/// Sched_init builds the idle task, the TSS and descriptor tables,
/// programs the timer and hooks the timer and syscall gates. Must run
/// before any fork or schedule.
func Sched_init(phys *mem.Physmem_t, v *vm.Vmem_t) {
	kphys = phys
	kvm = v
	jiffies = 0
	startup_time = 0
	last_pid = 0
	last_task_used_math = nil

	// faults that cannot get memory kill the faulting task
	vm.Do_exit = func(sig int) {
		Do_exit(sig)
	}

	init := mkinittask()
	task[0] = init
	current = init
	for i := 1; i < defs.NR_TASKS; i++ {
		task[i] = nil
		machine.Clear_desc(machine.FIRST_LDT_ENTRY + 2*i)
	}

	// one TSS for every task; only rsp0 changes at switch time
	machine.Tss.Rsp0 = uint64(init.kstacktop())
	machine.Set_tss_desc(machine.FIRST_TSS_ENTRY, tssaddr())
	machine.Set_ldt_desc(machine.FIRST_LDT_ENTRY, init.ldtaddr())
	machine.Ltr(machine.TSS_sel(0))
	machine.Lldt(machine.LDT_sel(0))

	machine.Outb_p(0x36, 0x43)
	machine.Outb_p(uint8(LATCH&0xff), 0x40)
	machine.Outb(uint8(LATCH>>8), 0x40)
	machine.Set_intr_gate(0x20, Timer_interrupt)
	machine.Outb(machine.Inb_p(0x21)&^0x01, 0x21)
	machine.Set_system_gate(0x80, System_call)
}
