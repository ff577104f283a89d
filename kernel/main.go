// Command kernel boots the modeled machine: reads the clock, builds
// physical memory and the page tree, starts the scheduler, forks off
// init and idles. The console output is drained to stdout at the end.
package main

import "fmt"
import "os"
import "time"

import "linux01/defs"
import "linux01/fs"
import "linux01/machine"
import "linux01/mem"
import "linux01/proc"
import "linux01/tty"
import "linux01/vm"

// the buffer cache sits in reserved memory right below LOW_MEM
const buffer_start mem.Pa_t = 0x20000
const buffer_end mem.Pa_t = 0x100000

// user segment selectors (LDT entries 1 and 2, RPL 3)
const ucs = 0x0f
const uds = 0x17

func cmos_read(addr uint8) uint8 {
	machine.Outb_p(0x80|addr, 0x70)
	return machine.Inb_p(0x71)
}

func bcd_to_bin(v uint8) int {
	return int(v&15) + int(v>>4)*10
}

func bin_to_bcd(v int) uint8 {
	return uint8(v%10 | v/10<<4)
}

// the host clock plays the CMOS: seed the BCD registers before the
// kernel reads them back through the ports
func cmos_seed() {
	now := time.Now()
	machine.Bus.Cmos[0] = bin_to_bcd(now.Second())
	machine.Bus.Cmos[2] = bin_to_bcd(now.Minute())
	machine.Bus.Cmos[4] = bin_to_bcd(now.Hour())
	machine.Bus.Cmos[7] = bin_to_bcd(now.Day())
	machine.Bus.Cmos[8] = bin_to_bcd(int(now.Month()))
	machine.Bus.Cmos[9] = bin_to_bcd(now.Year() % 100)
}

func time_init() {
	var sec, min, hour, day, mon, year int
	for {
		sec = bcd_to_bin(cmos_read(0))
		min = bcd_to_bin(cmos_read(2))
		hour = bcd_to_bin(cmos_read(4))
		day = bcd_to_bin(cmos_read(7))
		mon = bcd_to_bin(cmos_read(8)) - 1
		year = bcd_to_bin(cmos_read(9))
		if sec == bcd_to_bin(cmos_read(0)) {
			break
		}
	}
	proc.Set_startup_time(mktime(year, mon, day, hour, min, sec))
}

func trap_init() {
	// device-not-available: lazy FPU handoff
	machine.Set_trap_gate(7, func(tf *machine.Tf_t) {
		proc.Math_state_restore()
	})
	// the model delivers page faults synchronously through the vm
	// entry points; reaching the gate means the model is broken
	machine.Set_trap_gate(14, func(tf *machine.Tf_t) {
		panic("unexpected page fault")
	})
}

// what "user mode" runs: a tiny kernel-resident init. pid 1 shows
// the system is alive, forks one child and reaps it.
func user_main(p *proc.Task_t, tf *machine.Tf_t) {
	switch p.Pid {
	case 1:
		tty.Printk("init: pid %d up, %d\n", proc.Sys_getpid(), proc.Sys_time(0))
		mem.Physmem.Calc_mem()
		pid := proc.Sys_fork(tf)
		if pid < 0 {
			tty.Printk("init: fork failed: %d\n", pid)
			proc.Sys_exit(1)
		}
		// let the clock run a little
		for i := 0; i < 5; i++ {
			machine.Raise(0x20, tf)
		}
		proc.Sys_waitpid(pid, 0, 0)
		tty.Printk("init: child %d reaped\n", pid)
		proc.Sys_exit(0)
	default:
		tty.Printk("child: pid %d alive\n", proc.Sys_getpid())
		proc.Sys_exit(0)
	}
}

func main() {
	machine.Cli()
	cmos_seed()
	time_init()
	tty.Tty_init()
	trap_init()

	phys := mem.Phys_init()
	kvm := vm.Mkvm(phys)
	proc.Sched_init(phys, kvm)
	fs.Buffer_init(phys, buffer_start, buffer_end)
	fs.Hd_init()
	machine.Sti()

	proc.Userret = user_main

	// the register image a user-mode launch would enter with
	tf := &machine.Tf_t{}
	tf[machine.TF_CS] = ucs
	tf[machine.TF_SS] = uds
	tf[machine.TF_DS] = uds
	tf[machine.TF_ES] = uds
	tf[machine.TF_FS] = uds
	tf[machine.TF_GS] = uds
	tf[machine.TF_RFLAGS] = 0x200
	tf[machine.TF_RSP] = 0x10000

	if pid := proc.Sys_fork(tf); pid < 0 {
		panic("cannot fork init")
	}
	// the idle loop: give the CPU away until init is gone
	for proc.Task(1) != nil {
		proc.Schedule()
		if proc.Current().Signal&defs.Sigmask(defs.SIGCHLD) != 0 {
			proc.Current().Signal &^= defs.Sigmask(defs.SIGCHLD)
			proc.Sys_waitpid(-1, 0, defs.WNOHANG)
		}
	}

	tty.Printk("jiffies %d, %d pages free\n", proc.Jiffies(), phys.Count_free())
	os.Stdout.WriteString(tty.Drain(0))
	fmt.Println("System halted.")
}
