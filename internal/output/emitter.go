package output

import (
	"log"

	"github.com/relabs-tech/baro_vario/internal/baro"
	"github.com/relabs-tech/baro_vario/internal/sentence"
)

// MinLogFree is the room the log must report before a sentence is queued.
const MinLogFree = 128

// LineWriter takes one complete line.
type LineWriter interface {
	WriteLine([]byte) error
}

// Log is a LineWriter that reports its free space.
type Log interface {
	LineWriter
	Free() int
}

// Emitter formats the three sentences for every estimate and hands them to
// the console (when verbose), the log (when it has room) and the taps.
// It owns the line buffer and must be used by one task only.
type Emitter struct {
	Console LineWriter // nil disables
	Log     Log        // nil disables
	Verbose bool

	// Battery returns the supply voltage in mV for $LK8EX1.
	Battery func() uint32

	// Taps see every sentence, e.g. the MQTT publisher.
	Taps []func(line []byte)

	line []byte

	// last error text per destination, so a failing port logs once
	consoleErr, logErr string
}

// NewEmitter returns an Emitter with a preallocated line buffer.
func NewEmitter(console LineWriter, log Log, verbose bool) *Emitter {
	return &Emitter{Console: console, Log: log, Verbose: verbose, line: make([]byte, 0, 96)}
}

// Emit implements baro.Sink.
func (e *Emitter) Emit(est baro.Estimate) {
	e.line = sentence.AppendPOGNB(e.line[:0], est)
	e.send()
	e.line = sentence.AppendPGRMZ(e.line[:0], est)
	e.send()
	e.line = sentence.AppendLK8EX1(e.line[:0], est, e.battery())
	e.send()
}

func (e *Emitter) battery() uint32 {
	if e.Battery == nil {
		return 0
	}
	return e.Battery()
}

// send skips a destination on error; the next cycle tries again.
func (e *Emitter) send() {
	if e.Verbose && e.Console != nil {
		report("console", &e.consoleErr, e.Console.WriteLine(e.line))
	}
	if e.Log != nil && e.Log.Free() >= MinLogFree {
		report("log", &e.logErr, e.Log.WriteLine(e.line))
	}
	for _, tap := range e.Taps {
		tap(e.line)
	}
}

// report logs a write failure when it differs from the last result for
// dest, and the first success after a failure.
func report(dest string, last *string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == *last {
		return
	}
	*last = msg
	if err != nil {
		log.Printf("output: %s write: %v", dest, err)
		return
	}
	log.Printf("output: %s write recovered", dest)
}

var _ baro.Sink = (*Emitter)(nil)
