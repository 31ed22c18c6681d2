// Package usart implements an interrupt-driven asynchronous serial
// transport over two bounded byte queues.
//
// The foreground produces into the transmit queue and the data-empty
// handler consumes it; the byte-received handler produces into the receive
// queue and the foreground consumes it. The queues are the only interface
// between the two contexts. Arming and disarming the data-empty source is
// the transmit flow control: it is armed whenever the foreground queues a
// byte and disarmed by the handler once nothing is left to send.
//
// The transport supports one instance per peripheral and is constructed
// explicitly and passed to its users.
package usart

import (
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/bsp.go/pkg/assert"
	"github.com/robotalks/bsp.go/pkg/dsa/queue"
	"github.com/robotalks/bsp.go/pkg/irq"
)

// BufferSize is the default capacity of each direction.
const BufferSize = 16

// MaxDivisor is the largest value of the 12-bit baud rate register.
const MaxDivisor = 0x0FFF

// Divisor computes round(clockHz / (16 × baud)) − 1, clamped to the
// register range.
func Divisor(clockHz uint32, baud BaudRate) uint16 {
	if baud == 0 {
		return MaxDivisor
	}
	den := 16 * uint64(baud)
	div := (uint64(clockHz) + den/2) / den
	switch {
	case div == 0:
		return 0
	case div-1 > MaxDivisor:
		return MaxDivisor
	}
	return uint16(div - 1)
}

// Option customizes a Transport at construction.
type Option func(*Transport)

// WithBufferSize sets the capacity of both queues.
func WithBufferSize(n int) Option {
	return func(t *Transport) {
		rx, tx := queue.New[byte](n), queue.New[byte](n)
		t.rxIn, t.rxOut = rx.Producer(), rx.Consumer()
		t.txIn, t.txOut = tx.Producer(), tx.Consumer()
	}
}

// Transport is the serial transport bound to one peripheral.
type Transport struct {
	hw   Peripheral
	intr *irq.Controller

	cfg         Config
	echo        atomic.Bool
	initialized atomic.Bool
	callback    atomic.Pointer[Callback]

	// each context only holds the side of a queue it is allowed to use:
	// the receive handler produces rx and the foreground consumes it; the
	// foreground (and the echo in the receive handler) produce tx and the
	// data-empty handler consumes it.
	rxIn  queue.Producer[byte]
	rxOut queue.Consumer[byte]
	txIn  queue.Producer[byte]
	txOut queue.Consumer[byte]

	rxBytes     atomic.Uint64
	rxDropped   atomic.Uint64
	txBytes     atomic.Uint64
	echoDropped atomic.Uint64
}

// New creates a Transport on hw and installs its handlers in intr.
// The transport must be initialized with Init before use.
func New(hw Peripheral, intr *irq.Controller, opts ...Option) *Transport {
	t := &Transport{hw: hw, intr: intr}
	WithBufferSize(BufferSize)(t)
	for _, opt := range opts {
		opt(t)
	}
	intr.Register(irq.USARTRx, t.HandleReceiveComplete)
	intr.Register(irq.USARTDataEmpty, t.HandleDataRegisterEmpty)
	return t
}

// Init programs the peripheral with cfg. The configuration can not change
// afterwards; calling Init twice is a fatal assertion.
func (t *Transport) Init(cfg Config) {
	assert.True(!t.initialized.Load(), "USART has already been initialized.")
	assert.True(cfg.Baud.IsValid(), "USART baud rate %d is not supported.", uint32(cfg.Baud))

	t.cfg = cfg
	t.echo.Store(cfg.EchoOnReceive)

	t.hw.SetDivisor(Divisor(t.hw.ClockHz(), cfg.Baud))
	t.hw.Enable(ReceiverEnable | TransmitterEnable)
	t.hw.SetFrame(Frame8N1)
	t.hw.Enable(ReceiveInterrupt)

	t.initialized.Store(true)
	glog.V(2).Infof("USART initialized: %s %s echo=%v", cfg.Baud, Frame8N1, cfg.EchoOnReceive)
}

// Initialized reports whether Init completed.
func (t *Transport) Initialized() bool {
	return t.initialized.Load()
}

// Config returns the configuration passed to Init.
func (t *Transport) Config() Config {
	t.assertInitialized()
	return t.cfg
}

// Poll reports whether Read would return without waiting.
func (t *Transport) Poll() bool {
	t.assertInitialized()
	return !t.rxOut.IsEmpty()
}

// Read returns the next received byte. It spins until a byte arrives and
// waits forever if none does.
func (t *Transport) Read() byte {
	t.assertInitialized()
	for {
		for t.rxOut.IsEmpty() {
			runtime.Gosched()
		}
		s := t.intr.Disable()
		b, ok := t.rxOut.Dequeue()
		t.intr.Restore(s)
		if ok {
			return b
		}
	}
}

// Write queues c for transmission, spinning while the transmit queue is
// full. A newline is preceded by a carriage return.
func (t *Transport) Write(c byte) {
	t.assertInitialized()
	t.write(c)
}

// Print writes every byte of s.
func (t *Transport) Print(s string) {
	t.assertInitialized()
	for i := 0; i < len(s); i++ {
		t.write(s[i])
	}
}

// Printf formats according to format and writes the result.
func (t *Transport) Printf(format string, args ...interface{}) {
	t.assertInitialized()
	fmt.Fprintf(writer{t}, format, args...)
}

// Writer returns an io.Writer over Write. Each Write call moves every byte
// and never fails.
func (t *Transport) Writer() io.Writer {
	t.assertInitialized()
	return writer{t}
}

// RegisterCallback replaces the receive callback; nil clears it.
// See Callback for the constraints on fn.
func (t *Transport) RegisterCallback(fn Callback) {
	t.assertInitialized()
	if fn == nil {
		t.callback.Store(nil)
		return
	}
	t.callback.Store(&fn)
}

// Flush spins until every queued byte was handed to the hardware and the
// transmitter went idle. It returns immediately before Init.
func (t *Transport) Flush() {
	if !t.initialized.Load() {
		return
	}
	for t.txIn.Len() > 0 || t.hw.Enabled(DataEmptyInterrupt) {
		runtime.Gosched()
	}
}

// TxState returns the state of the transmit direction.
func (t *Transport) TxState() TxState {
	if t.hw.Enabled(DataEmptyInterrupt) {
		return TxDraining
	}
	return TxIdle
}

// Stats returns a snapshot of the counters.
func (t *Transport) Stats() Stats {
	return Stats{
		RxBytes:     t.rxBytes.Load(),
		RxDropped:   t.rxDropped.Load(),
		TxBytes:     t.txBytes.Load(),
		EchoDropped: t.echoDropped.Load(),
		RxBuffered:  t.rxOut.Len(),
		TxPending:   t.txIn.Len(),
	}
}

// WriteDiagnostic implements assert.Sink. It bypasses the initialization
// check so that a failed check can be reported through the transport.
func (t *Transport) WriteDiagnostic(p []byte) {
	if !t.initialized.Load() {
		glog.Warningf("USART not initialized, diagnostic dropped: %q", p)
		return
	}
	for _, c := range p {
		t.write(c)
	}
}

// HandleDataRegisterEmpty is the data-empty interrupt handler. It moves one
// byte to the data register and disarms the source once the transmit queue
// is empty.
func (t *Transport) HandleDataRegisterEmpty() {
	if b, ok := t.txOut.Dequeue(); ok {
		t.hw.Transmit(b)
		t.txBytes.Add(1)
	}
	if t.txOut.IsEmpty() {
		t.hw.Disable(DataEmptyInterrupt)
	}
}

// HandleReceiveComplete is the byte-received interrupt handler. A byte
// arriving while the receive queue is full is dropped.
func (t *Transport) HandleReceiveComplete() {
	b := t.hw.Receive()
	if t.rxIn.IsFull() {
		t.rxDropped.Add(1)
		return
	}
	if t.echo.Load() {
		if b == '\r' {
			t.echoByte('\n')
		} else {
			t.echoByte(b)
		}
	}
	t.rxIn.Enqueue(b)
	t.rxBytes.Add(1)
	if cb := t.callback.Load(); cb != nil {
		(*cb)()
	}
}

func (t *Transport) assertInitialized() {
	assert.True(t.initialized.Load(), "USART has not been initialized.")
}

func (t *Transport) write(c byte) {
	if c == '\n' {
		t.write('\r')
	}
	for {
		for t.txIn.IsFull() {
			runtime.Gosched()
		}
		// the receive handler may take the last slot for an echo between
		// the check above and the mask, so the enqueue can still fail.
		var ok bool
		t.intr.Critical(func() {
			ok = t.txIn.Enqueue(c)
			t.hw.Enable(DataEmptyInterrupt)
		})
		if ok {
			return
		}
	}
}

// echoByte is the transmit path used from the receive handler, which can
// not wait for room: the echo is dropped when it does not fit.
func (t *Transport) echoByte(c byte) {
	need := 1
	if c == '\n' {
		need = 2
	}
	if t.txIn.Cap()-t.txIn.Len() < need {
		t.echoDropped.Add(uint64(need))
		return
	}
	if c == '\n' {
		t.txIn.Enqueue('\r')
	}
	t.txIn.Enqueue(c)
	t.hw.Enable(DataEmptyInterrupt)
}

type writer struct {
	t *Transport
}

func (w writer) Write(p []byte) (int, error) {
	for _, c := range p {
		w.t.write(c)
	}
	return len(p), nil
}
