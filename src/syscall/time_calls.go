package syscall

import (
	"nanokernel/src/defs"
)

// CLOCK_* ids this core answers for; CLOCK_MONOTONIC and
// CLOCK_REALTIME both read the same underlying timer.Source, since
// this module's simulated clock has no wall-clock offset to apply.
const (
	CLOCK_REALTIME  = 0
	CLOCK_MONOTONIC = 1
)

func registerTimeCalls(t *Table_t) {
	t.Register(SYS_CLOCK_GETTIME, sysClockGettime)
	t.Register(SYS_CLOCK_GETRES, sysClockGetres)
	t.Register(SYS_NANOSLEEP, sysNanosleep)
	t.Register(SYS_CLOCK_NANOSLEEP, sysClockNanosleep)
}

func writeTimespec(p *Proc_t, uva int, nsec int64) defs.Err_t {
	sec := nsec / 1e9
	rem := nsec % 1e9
	if err := p.Vm.Userwriten(uva, 8, int(sec)); err != 0 {
		return err
	}
	return p.Vm.Userwriten(uva+8, 8, int(rem))
}

func sysClockGettime(p *Proc_t, clockid, uva, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if clockid != CLOCK_MONOTONIC && clockid != CLOCK_REALTIME {
		return 0, -defs.EINVAL
	}
	now := p.Kernel.Timeouts.Now()
	if err := writeTimespec(p, uva, now); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysClockGetres(p *Proc_t, clockid, uva, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if clockid != CLOCK_MONOTONIC && clockid != CLOCK_REALTIME {
		return 0, -defs.EINVAL
	}
	if uva == 0 {
		return 0, 0
	}
	if err := writeTimespec(p, uva, 1); err != 0 {
		return 0, err
	}
	return 0, 0
}

// sysNanosleep implements §8's concrete clock_nanosleep scenario: park
// the calling thread on the timeout queue until the requested duration
// elapses, waking early (ETIMEDOUT is not returned — POSIX nanosleep
// itself returns 0) if Wake is driven by something other than the
// timeout (a signal-equivalent tkill), in which case remaining time is
// reported through rem if non-nil.
func sysNanosleep(p *Proc_t, reqp, remp, a3, a4, a5, a6 int) (int, defs.Err_t) {
	dur, _, err := p.Vm.Usertimespec(reqp)
	if err != 0 {
		return 0, err
	}
	when := p.Kernel.Timeouts.Now() + dur.Nanoseconds()
	entry := p.Kernel.Timeouts.WakeAt(when, p.Thread, 0)
	p.Thread.ParkSleeping()
	retval := p.Thread.Retval()
	if retval != 0 {
		p.Kernel.Timeouts.Cancel(entry)
		if remp != 0 {
			left := when - p.Kernel.Timeouts.Now()
			if left < 0 {
				left = 0
			}
			writeTimespec(p, remp, left)
		}
		return 0, -defs.EINTR
	}
	return 0, 0
}

func sysClockNanosleep(p *Proc_t, clockid, flags, reqp, remp, a5, a6 int) (int, defs.Err_t) {
	if clockid != CLOCK_MONOTONIC && clockid != CLOCK_REALTIME {
		return 0, -defs.EINVAL
	}
	return sysNanosleep(p, reqp, remp, 0, 0, 0)
}
