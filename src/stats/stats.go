// Package stats implements cheap opt-in in-kernel debug counters, enabled
// at compile time via the Stats/Timing constants. External-facing metrics
// (exported through the D_STAT device) live in package metrics instead;
// this package is for the teacher's original use case of zero-cost
// internal fast-path counters that a developer flips on locally.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"
)

// Stats enables Counter_t bookkeeping. Timing enables Cycles_t bookkeeping.
// Both default off so the counters compile to no-ops.
const Stats = false
const Timing = false

// Counter_t is a statistical counter.
type Counter_t int64

// Cycles_t holds an accumulated duration.
type Cycles_t int64

// Inc increments the counter when Stats is enabled.
func (c *Counter_t) Inc() {
	if Stats {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, 1)
	}
}

// Add adds the elapsed duration since start to the counter when Timing is
// enabled.
func (c *Cycles_t) Add(start time.Time) {
	if Timing {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, int64(time.Since(start)))
	}
}

// Stats2String converts a struct of counters to a printable string. It
// returns the empty string when Stats is disabled.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
		if strings.HasSuffix(t, "Cycles_t") {
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
