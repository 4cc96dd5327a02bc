// Package stats implements lightweight, compile-time-toggleable
// counters shaped for diag.CountersFromStats, which flattens a struct of
// them into the pprof profile the diag package exports. Counting is free when the Stats
// toggle is off: the fields are still there, they just stay zero.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"
)

// Stats enables counter increments. False in production builds; a debug
// build (or a test) flips it on.
const Stats = false

// Timing enables cycle-ish accounting via Cycles_t. This repository has
// no access to a real cycle counter (rdtsc is a privileged/runtime hook
// the teacher's patched Go runtime exposes and this module does not
// have), so elapsed time is tracked in nanoseconds instead; the counter
// is still named Cycles_t to keep the call sites identical to the
// teacher's.
const Timing = false

// Now returns a monotonic tick when Timing is enabled, else zero.
func Now() uint64 {
	if Timing {
		return uint64(time.Now().UnixNano())
	}
	return 0
}

// Counter_t is a statistical counter, atomically updated.
type Counter_t int64

// Inc increments the counter when Stats is enabled.
func (c *Counter_t) Inc() {
	if Stats {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1)
	}
}

// Add adds n to the counter when Stats is enabled.
func (c *Counter_t) Add(n int64) {
	if Stats {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), n)
	}
}

// Load reads the counter regardless of the Stats toggle.
func (c *Counter_t) Load() int64 {
	return atomic.LoadInt64((*int64)(unsafe.Pointer(c)))
}

// Cycles_t holds nanoseconds elapsed, named for parity with the
// teacher's cycle counter.
type Cycles_t int64

// Add adds the elapsed time since mark to the counter when Timing is
// enabled.
func (c *Cycles_t) Add(mark uint64) {
	if Timing {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), int64(Now()-mark))
	}
}

func (c *Cycles_t) Load() int64 {
	return atomic.LoadInt64((*int64)(unsafe.Pointer(c)))
}

// Dump renders every Counter_t/Cycles_t field of st as a human-readable
// string, mirroring the teacher's reflection-based Stats2String.
func Dump(st interface{}) string {
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	var sb strings.Builder
	for i := 0; i < v.NumField(); i++ {
		ft := v.Field(i).Type().String()
		switch {
		case strings.HasSuffix(ft, "Counter_t"):
			n := v.Field(i).Interface().(Counter_t)
			sb.WriteString("\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10))
		case strings.HasSuffix(ft, "Cycles_t"):
			n := v.Field(i).Interface().(Cycles_t)
			sb.WriteString("\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10) + "ns")
		}
	}
	return sb.String()
}
