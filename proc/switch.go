package proc

import "runtime"

import "linux01/machine"
import "linux01/mem"

// The switch primitive. Each task's kernel context is a fiber parked
// on its descriptor's channel; handing the CPU over is a park/wake
// pair, so control really does stop at the switch and resume there
// when the task is picked again. A freshly forked task's fiber starts
// at the fork return path instead.

func switch_to(nr int) {
	next := task[nr]
	if next == nil || next == current {
		return
	}
	prev := current
	current = next
	// privilege transitions must land on the new task's stack
	machine.Tss.Rsp0 = uint64(next.kstacktop())
	__switch_to(prev, next)
	// back on this task's stack. skip the FPU trap if our state
	// never left the FPU.
	if current == last_task_used_math {
		machine.Clts()
	}
}

// save prev's context, load next's; returning "returns" into
// whatever next's stack top addresses
func __switch_to(prev, next *Task_t) {
	machine.Stts()
	if !next.started {
		next.started = true
		go next.fiber()
	}
	next.schedch <- struct{}{}
	<-prev.schedch
	if prev.released {
		// reaped while switched out; the fiber dies here
		runtime.Goexit()
	}
}

// first dispatch of a new task
func (p *Task_t) fiber() {
	<-p.schedch
	if p.released {
		runtime.Goexit()
	}
	if p.entry != nil {
		p.entry()
	} else {
		ret_from_fork(p)
	}
	// a kernel thread that returns is done
	Do_exit(0)
}

/// Userret hands control to user mode with the restored register
/// image. The host decides what user mode means; the default has no
/// user context and idles in the kernel.
var Userret func(p *Task_t, tf *machine.Tf_t)

func init() {
	Userret = func(p *Task_t, tf *machine.Tf_t) {
		for {
			Sys_pause()
		}
	}
}

// Pop the register image Copy_process laid down and leave through
// the user return hook, exactly as the restore tail of the syscall
// trampoline would.
func ret_from_fork(p *Task_t) {
	sp := mem.Pa_t(p.Thread.Rsp)
	if kphys.Readq(sp) != machine.Lbl_ret_from_fork {
		panic("bad fork return address")
	}
	sp += 8
	var tf machine.Tf_t
	for i := 0; i < machine.TFSIZE; i++ {
		tf[i] = kphys.Readq(sp + mem.Pa_t(8*i))
	}
	// frame consumed; the kernel stack is empty again
	p.Thread.Rsp = p.kstacktop()
	machine.Sti()
	Userret(p, &tf)
}
