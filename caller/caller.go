// Package caller tracks call-chain identity for debug logging: turning
// a raw program counter stack into a readable trace, and recognizing
// when a stack has already been seen so a noisy call site doesn't
// flood the log with the identical trace on every invocation.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

// Stack formats the call stack starting at the given depth (as passed
// to runtime.Caller) as a "file:line <- file:line <- ..." trace. Used
// by fault-reporting call sites that need the chain as a string to
// attach to a logrus field rather than printed straight to stdout,
// since a kernel has no stdout of its own — only whatever sink the
// caller's logger is wired to.
func Stack(start int) string {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d", f, l)
		} else {
			s += fmt.Sprintf(" <- %s:%d", f, l)
		}
	}
	return s
}

// DistinctCaller recognizes whether the current call chain has already
// triggered Distinct before, so a call site that fires repeatedly from
// the same place (a recurring fault, a hot retry loop) logs its first
// occurrence and suppresses the rest instead of flooding the UART sink
// one line per trap. Fields are protected by the embedded mutex.
type DistinctCaller struct {
	sync.Mutex
	Enabled   bool
	seen      map[uintptr]bool
	Whitelist map[string]bool
}

// pcHash is a poor-man's hash of the given RIP values, good enough to
// dedupe call chains without keeping the full frame list around.
func pcHash(pcs []uintptr) uintptr {
	if len(pcs) == 0 {
		panic("pcHash: empty stack")
	}
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

// Len returns the number of unique caller paths recorded.
func (dc *DistinctCaller) Len() int {
	dc.Lock()
	ret := len(dc.seen)
	dc.Unlock()
	return ret
}

// Distinct reports whether the current call chain is new. It returns
// true along with the formatted trace when the chain has not been
// recorded before, so the caller can log that trace once and suppress
// it on every subsequent call from the same path.
func (dc *DistinctCaller) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}

	if dc.seen == nil {
		dc.seen = make(map[uintptr]bool)
	}

	var pcs []uintptr
	for sz, got := 30, 30; got >= sz; sz *= 2 {
		pcs = make([]uintptr, 30)
		got = runtime.Callers(3, pcs)
		if got == 0 {
			panic("Distinct: runtime.Callers returned nothing")
		}
	}
	h := pcHash(pcs)
	if dc.seen[h] {
		return false, ""
	}
	dc.seen[h] = true

	frames := runtime.CallersFrames(pcs)
	fs := ""
	for {
		fr, more := frames.Next()
		if dc.Whitelist[fr.Function] {
			return false, ""
		}
		if fs == "" {
			fs = fmt.Sprintf("%v (%v:%v)", fr.Function, fr.File, fr.Line)
		} else {
			fs += fmt.Sprintf(" <- %v (%v:%v)", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, fs
}
