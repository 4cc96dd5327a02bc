package diag

import (
	"bytes"
	"os"
	"sync/atomic"
	"testing"
	"unsafe"

	"vanadinite/uartlog"
)

func TestMain(m *testing.M) {
	regs := make([]byte, 6)
	regs[5] = 0x20 // THR-empty bit, matching uartlog's 16550 LSR layout
	uartlog.Init(uartlog.NewWriter(regs))
	os.Exit(m.Run())
}

func TestFaultInstructionRejectsEmptyWord(t *testing.T) {
	if _, err := FaultInstruction(nil); err == nil {
		t.Fatalf("expected decode failure on empty input")
	}
}

func TestLogFaultDoesNotPanicOnBadDecode(t *testing.T) {
	LogFault("pmm", 0xdead0000, nil)
}

type sampleStats struct {
	Allocs Counter_t
	Frees  Counter_t
}

// Counter_t mirrors stats.Counter_t's shape locally so this test does
// not need to import the stats package just to exercise reflection
// over its field-name suffix convention.
type Counter_t int64

func (c *Counter_t) Load() int64 { return atomic.LoadInt64((*int64)(unsafe.Pointer(c))) }
func (c *Counter_t) Inc()        { atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1) }

func TestCountersFromStatsFlattensFields(t *testing.T) {
	st := &sampleStats{}
	st.Allocs.Inc()
	st.Allocs.Inc()
	st.Frees.Inc()

	got := CountersFromStats(st)
	if got["Allocs"] != 2 || got["Frees"] != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestSnapshotProducesOneSamplePerCounter(t *testing.T) {
	p := Snapshot(map[string]int64{"a": 10, "b": 20})
	if len(p.Sample) != 2 {
		t.Fatalf("len(Sample) = %d, want 2", len(p.Sample))
	}
	var total int64
	for _, s := range p.Sample {
		total += s.Value[0]
	}
	if total != 30 {
		t.Fatalf("total = %d, want 30", total)
	}
}

func TestWriteProducesNonEmptyOutput(t *testing.T) {
	p := Snapshot(map[string]int64{"a": 1})
	var buf bytes.Buffer
	if err := Write(p, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty serialized profile")
	}
}
