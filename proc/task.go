// Package proc owns the task table and everything that multiplexes
// the CPU over it: the priority-decay scheduler, the wait queues,
// signal posting, fork and the context switch.
package proc

import "unsafe"

import "linux01/defs"
import "linux01/fs"
import "linux01/machine"
import "linux01/mem"
import "linux01/vm"

/// TASK_SIZE is each task's virtual window; slot n's window starts
/// at n*TASK_SIZE, which is how fork derives the child's base.
const TASK_SIZE uintptr = 0x4000000

// the idle task's kernel stack frame, in reserved memory below
// LOW_MEM like the rest of the boot image
const init_task_addr mem.Pa_t = 0x4000

/// Task_t is one task descriptor. The descriptor sits at the low end
/// of the task's kernel stack frame; the stack grows down from the
/// frame's top.
type Task_t struct {
	State    int
	Counter  int
	Priority int

	Signal      uint32
	Sigrestorer uintptr
	Sigfn       [defs.NSIG]uintptr

	Exit_code   int
	End_code    uintptr
	End_data    uintptr
	Brk         uintptr
	Start_stack uintptr

	Pid     int
	Father  int
	Pgrp    int
	Session int
	Leader  int

	Uid, Euid, Suid uint16
	Gid, Egid, Sgid uint16

	Alarm      int64
	Utime      int64
	Stime      int64
	Cutime     int64
	Cstime     int64
	Start_time int64
	Used_math  bool

	Tty           int
	Umask         uint16
	Pwd           *fs.Inode_t
	Root          *fs.Inode_t
	Close_on_exec uint32
	Filp          [defs.NR_OPEN]*fs.File_t

	// 0 - zero, 1 - cs, 2 - ds&ss
	Ldt    [3]machine.Desc_t
	Thread machine.Context_t
	I387   machine.I387_t

	p_kstack mem.Pa_t
	slot     int

	// the task's kernel fiber. the switch primitive parks and wakes
	// fibers through schedch; released marks a reaped task whose
	// fiber must die on its next wakeup.
	schedch  chan struct{}
	started  bool
	released bool
	entry    func()
}

var task [defs.NR_TASKS]*Task_t
var current *Task_t
var last_task_used_math *Task_t

var jiffies int64
var startup_time int64

var kphys *mem.Physmem_t
var kvm *vm.Vmem_t

/// Current returns the running task.
func Current() *Task_t {
	return current
}

/// Task returns the occupant of a task-table slot, or nil.
func Task(nr int) *Task_t {
	return task[nr]
}

/// Jiffies returns the tick count since boot.
func Jiffies() int64 {
	return jiffies
}

/// Set_startup_time records the boot wall time in seconds.
func Set_startup_time(t int64) {
	startup_time = t
}

/// Current_time is the wall time in seconds.
func Current_time() int64 {
	return startup_time + jiffies/defs.HZ
}

/// Slot returns the task's table index.
func (p *Task_t) Slot() int {
	return p.slot
}

/// Kstack returns the frame holding the task's kernel stack.
func (p *Task_t) Kstack() mem.Pa_t {
	return p.p_kstack
}

func (p *Task_t) kstacktop() uintptr {
	return uintptr(p.p_kstack) + uintptr(mem.PGSIZE)
}

func (p *Task_t) ldtaddr() uintptr {
	return uintptr(unsafe.Pointer(&p.Ldt[0]))
}

func tssaddr() uintptr {
	return uintptr(unsafe.Pointer(machine.Tss))
}

// the flat user code and data descriptors every task starts from;
// the limit is narrowed to the task window so the clone and teardown
// walks cover exactly one 64MB slice
func initldt(p *Task_t) {
	p.Ldt[0] = machine.Desc_t{}
	p.Ldt[1] = machine.Desc_t{A: 0xFFFF, B: 0x00AFFA00}
	p.Ldt[2] = machine.Desc_t{A: 0xFFFF, B: 0x00CFF200}
	p.Ldt[1].Set_limit(TASK_SIZE)
	p.Ldt[2].Set_limit(TASK_SIZE)
}

func mkinittask() *Task_t {
	p := &Task_t{
		State:    defs.TASK_RUNNING,
		Counter:  15,
		Priority: 15,
		Father:   -1,
		Tty:      -1,
		Umask:    0133,
		p_kstack: init_task_addr,
		schedch:  make(chan struct{}),
		started:  true,
	}
	initldt(p)
	return p
}
