// Package uartlog wires the kernel's structured logging to a
// 16550-compatible UART (mmiodev.ClassUART): a logrus.Logger whose sink
// is the UART's transmit register, with golang.org/x/text/message used
// to keep counter dumps column-aligned across a boot log. Grounded on
// the pack's logrus.WithField("source", ...) per-subsystem logger
// convention (see other_examples' virtcontainers hvLogger).
package uartlog

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"vanadinite/circbuf"
	"vanadinite/spinlock"
)

// stageSize bounds how many bytes Write queues internally between
// drains; it is not a true output limit, since drainLocked empties the
// stage completely before Write returns.
const stageSize = 64

// 16550 register offsets relative to a UART's MMIO window.
const (
	regTHR  = 0x00 // transmit holding register
	regLSR  = 0x05 // line status register
	lsrTHRE = 1 << 5
)

// Writer drives a memory-mapped 16550 UART a byte at a time, spinning
// on the line status register between bytes. regs must cover at least
// regLSR+1 bytes of the device's MMIO window. Outbound bytes stage
// through a circbuf before hitting the hardware register, the same
// buffered-tty shape biscuit's circbuf backed, generalized from a
// keyboard/console buffer to this UART's transmit side.
type Writer struct {
	mu    spinlock.Mutex
	regs  []byte
	stage circbuf.Circbuf
}

// NewWriter wraps the MMIO byte window backing a UART device, typically
// obtained from pgtbl.Manager.MapMMIO plus a byte-slice view over it.
func NewWriter(regs []byte) *Writer {
	w := &Writer{regs: regs}
	w.stage.Init(make([]uint8, stageSize))
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for len(p) > 0 {
		n := w.stage.Write(p)
		total += n
		p = p[n:]
		w.drainLocked()
	}
	return total, nil
}

// drainLocked empties the stage into the hardware register. Called with
// mu held.
func (w *Writer) drainLocked() {
	var b [1]uint8
	for !w.stage.Empty() {
		w.stage.Read(b[:])
		for w.regs[regLSR]&lsrTHRE == 0 {
			// transmit holding register still full
		}
		w.regs[regTHR] = b[0]
		if b[0] == '\n' {
			for w.regs[regLSR]&lsrTHRE == 0 {
			}
			w.regs[regTHR] = '\r'
		}
	}
}

var root spinlock.Cell[*logrus.Logger]

// Init installs w as the destination for every logger For hands out
// afterward. Boot bring-up calls this exactly once, after the UART's
// MMIO window is mapped.
func Init(w *Writer) {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: false})
	root.Set(logger)
	printer.Set(message.NewPrinter(language.English))
}

// For returns a logger scoped to a named subsystem, e.g. For("pmm") or
// For("pgtbl"). Panics if Init has not yet run, the same discipline
// spinlock.Cell enforces for every other piece of boot-published state.
func For(subsystem string) *logrus.Entry {
	return root.Get().WithField("source", subsystem)
}

var printer spinlock.Cell[*message.Printer]

// Countf formats a labelled counter in fixed-width columns: the label
// left-aligned in 20 columns, then the count right-aligned in 12 with
// its digits grouped (1024 prints as "1,024"), so repeated stats dumps
// line up down a whole boot log.
func Countf(label string, n int64) string {
	return printer.Get().Sprintf("%-20s%12d", label, n)
}
