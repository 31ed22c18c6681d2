package assert

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultPeriod is the toggle period of the halt indicator.
const DefaultPeriod = 500 * time.Millisecond

// Sink receives the diagnostic text. It must not perform checks of its own,
// otherwise a failing sink would re-enter the handler it is backing.
type Sink interface {
	WriteDiagnostic(p []byte)
}

// Flusher is implemented by sinks that buffer output.
type Flusher interface {
	Flush()
}

// Indicator is the output toggled while halted (a debug LED).
type Indicator interface {
	Toggle()
}

// Reporter is the terminal failure path: it writes the diagnostic through
// Sink, then halts forever toggling Indicator every Period.
type Reporter struct {
	Sink      Sink
	Indicator Indicator
	Period    time.Duration

	sleep     func(time.Duration)
	reporting atomic.Bool
}

// NewReporter creates a Reporter. Both sink and ind may be nil.
func NewReporter(sink Sink, ind Indicator) *Reporter {
	return &Reporter{
		Sink:      sink,
		Indicator: ind,
		Period:    DefaultPeriod,
		sleep:     time.Sleep,
	}
}

// Fail implements Handler. It never returns.
func (r *Reporter) Fail(loc Location, msg string) {
	// a failure while reporting goes straight to the halt loop.
	if r.reporting.CompareAndSwap(false, true) {
		r.report(loc, msg)
	}
	r.halt()
}

// Format renders the diagnostic text written to the sink.
func Format(loc Location, msg string) []byte {
	return []byte(fmt.Sprintf("Assertion failed in %s on line %d: %s\n", loc.File, loc.Line, msg))
}

func (r *Reporter) report(loc Location, msg string) {
	glog.Errorf("assertion failed at %s: %s", loc, msg)
	if r.Sink == nil {
		return
	}
	r.Sink.WriteDiagnostic(Format(loc, msg))
	if f, ok := r.Sink.(Flusher); ok {
		f.Flush()
	}
}

func (r *Reporter) halt() {
	period := r.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for {
		if r.Indicator != nil {
			r.Indicator.Toggle()
		}
		sleep(period)
	}
}
