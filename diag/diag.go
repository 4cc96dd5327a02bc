// Package diag gives the memory subsystem two small diagnostics
// surfaces the teacher's go.mod already paid for but no kept source
// file used: a single-instruction RISC-V decoder for fault PCs
// (golang.org/x/arch/riscv64/riscv64asm), and a pprof-compatible
// heap/frame-allocator profile dumper (github.com/google/pprof/profile).
// Neither disassembles more than the one faulting word, and neither
// walks untrusted memory outside the mapping already under inspection.
package diag

import (
	"io"
	"reflect"
	"strings"

	"github.com/google/pprof/profile"
	"golang.org/x/arch/riscv64/riscv64asm"

	"vanadinite/caller"
	"vanadinite/uartlog"
)

// FaultInstruction decodes the single instruction at the start of
// word, which must hold at least the faulting PC's bytes.
func FaultInstruction(word []byte) (riscv64asm.Inst, error) {
	return riscv64asm.Decode(word)
}

// faultTraces dedupes repeated faults from the same call chain: a
// stuck retry loop faulting on the same page hundreds of times a
// second would otherwise flood the UART sink with an identical trace
// on every iteration.
var faultTraces = caller.DistinctCaller{Enabled: true}

// LogFault logs the decoded faulting instruction (or the decode
// failure itself) under subsystem, attaching the calling stack the
// first time this call chain faults and suppressing it on repeats from
// the same chain. No package in this repository calls it outside its
// tests; neither the sv39 walker nor dma reports faults through it.
func LogFault(subsystem string, pc uint64, word []byte) {
	log := uartlog.For(subsystem)
	inst, err := FaultInstruction(word)
	entry := log.WithField("pc", pc)
	if err != nil {
		entry = entry.WithError(err)
	} else {
		entry = entry.WithField("instruction", inst.String())
	}
	if first, trace := faultTraces.Distinct(); first {
		entry = entry.WithField("stack", trace)
	}
	entry.Error("fault")
}

// Snapshot builds a single-sample-type pprof profile with one
// inuse_space sample per named counter, taken from whatever map the
// caller supplies (e.g. CountersFromStats); pmm and heap keep no
// counters of their own. It is a one-shot snapshot, not continuous
// sampling.
func Snapshot(counters map[string]int64) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "inuse_space", Unit: "bytes"}},
		PeriodType: &profile.ValueType{Type: "space", Unit: "bytes"},
		Period:     1,
	}
	var nextID uint64 = 1
	for name, n := range counters {
		fn := &profile.Function{ID: nextID, Name: name}
		loc := &profile.Location{ID: nextID, Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{n},
		})
		nextID++
	}
	return p
}

// Write serializes a profile as gzip'd proto, the format any
// pprof-compatible tool expects on disk or over the wire.
func Write(p *profile.Profile, w io.Writer) error {
	return p.Write(w)
}

// CountersFromStats reflects over a pointer to a stats-style struct
// (see the stats package's Counter_t/Cycles_t fields) and flattens it
// into the name->value map Snapshot expects. st must be a pointer so
// each field's Load method (pointer receiver) can be called.
func CountersFromStats(st any) map[string]int64 {
	out := make(map[string]int64)
	v := reflect.ValueOf(st).Elem()
	for i := 0; i < v.NumField(); i++ {
		ft := v.Field(i).Type().String()
		name := v.Type().Field(i).Name
		switch {
		case strings.HasSuffix(ft, "Counter_t"), strings.HasSuffix(ft, "Cycles_t"):
			out[name] = v.Field(i).Addr().MethodByName("Load").Call(nil)[0].Int()
		}
	}
	return out
}
