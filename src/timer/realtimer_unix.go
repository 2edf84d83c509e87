//go:build realtimer && unix

package timer

import (
	"time"

	"golang.org/x/sys/unix"
)

func init() {
	timeNow = func() time.Time {
		var ts unix.Timespec
		if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
			panic(err)
		}
		return time.Unix(ts.Sec, ts.Nsec)
	}
}
