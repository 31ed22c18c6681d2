// Package sim is a host model of the board: a USART peripheral with its
// interrupt lines, a debug LED and the wiring of the serial transport on
// top of them.
package sim

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/bsp.go/pkg/irq"
	"github.com/robotalks/bsp.go/pkg/usart"
)

// DefaultWireBuffer is the number of transmitted bytes the line holds
// before the far end reads them.
const DefaultWireBuffer = 256

// ErrPortClosed is returned by the remote end after Close.
var ErrPortClosed = errors.New("port closed")

// Port models the USART block. It implements usart.Peripheral.
//
// The port never holds its register lock while raising an interrupt, since
// handlers read and write the registers.
type Port struct {
	// Realtime paces both directions at the programmed baud rate.
	Realtime bool

	intr    *irq.Controller
	clockHz uint32

	lock     sync.Mutex
	divisor  uint16
	frame    usart.Frame
	ctrl     usart.Control
	data     byte
	dataFull bool
	latch    byte

	injectLock sync.Mutex
	wire       chan byte
	wakeCh     chan struct{}
	closeOnce  sync.Once
	closed     chan struct{}

	transmitted atomic.Uint64
	received    atomic.Uint64
	lost        atomic.Uint64
}

// PortStats are the line counters of a Port.
type PortStats struct {
	Transmitted uint64 // bytes shifted onto the wire
	Received    uint64 // bytes delivered to the receive vector
	Lost        uint64 // bytes arriving while the receiver was off
}

// NewPort creates a port clocked at clockHz raising its vectors on intr.
func NewPort(intr *irq.Controller, clockHz uint32) *Port {
	return &Port{
		intr:    intr,
		clockHz: clockHz,
		frame:   usart.Frame8N1,
		wire:    make(chan byte, DefaultWireBuffer),
		wakeCh:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// ClockHz implements usart.Peripheral.
func (p *Port) ClockHz() uint32 {
	return p.clockHz
}

// SetDivisor implements usart.Peripheral.
func (p *Port) SetDivisor(div uint16) {
	p.lock.Lock()
	p.divisor = div
	p.lock.Unlock()
}

// SetFrame implements usart.Peripheral.
func (p *Port) SetFrame(f usart.Frame) {
	p.lock.Lock()
	p.frame = f
	p.lock.Unlock()
}

// Enable implements usart.Peripheral. Arming the data-empty source wakes
// the clock.
func (p *Port) Enable(c usart.Control) {
	p.lock.Lock()
	p.ctrl |= c
	p.lock.Unlock()
	if c&(usart.DataEmptyInterrupt|usart.TransmitterEnable) != 0 {
		p.wake()
	}
}

// Disable implements usart.Peripheral.
func (p *Port) Disable(c usart.Control) {
	p.lock.Lock()
	p.ctrl &^= c
	p.lock.Unlock()
}

// Enabled implements usart.Peripheral.
func (p *Port) Enabled(c usart.Control) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.ctrl&c == c
}

// Transmit implements usart.Peripheral. Writing a full data register
// overwrites the pending byte, as the hardware does.
func (p *Port) Transmit(b byte) {
	p.lock.Lock()
	p.data, p.dataFull = b, true
	p.lock.Unlock()
	p.wake()
}

// Receive implements usart.Peripheral.
func (p *Port) Receive() byte {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.latch
}

// Divisor returns the programmed divisor register.
func (p *Port) Divisor() uint16 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.divisor
}

// Frame returns the programmed frame format.
func (p *Port) Frame() usart.Frame {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.frame
}

// Baud returns the line speed the divisor produces.
func (p *Port) Baud() uint32 {
	return p.clockHz / (16 * (uint32(p.Divisor()) + 1))
}

// ByteTime is the duration of one frame on the line.
func (p *Port) ByteTime() time.Duration {
	baud := p.Baud()
	if baud == 0 {
		return 0
	}
	return time.Duration(p.Frame().BitsPerFrame()) * time.Second / time.Duration(baud)
}

// Stats returns the line counters.
func (p *Port) Stats() PortStats {
	return PortStats{
		Transmitted: p.transmitted.Load(),
		Received:    p.received.Load(),
		Lost:        p.lost.Load(),
	}
}

// Inject delivers b to the receiver as if it arrived on the line. The byte
// is lost when the receiver or its interrupt is disabled.
func (p *Port) Inject(b byte) {
	p.injectLock.Lock()
	defer p.injectLock.Unlock()
	if p.Realtime {
		time.Sleep(p.ByteTime())
	}
	if !p.Enabled(usart.ReceiverEnable | usart.ReceiveInterrupt) {
		p.lost.Add(1)
		glog.V(2).Infof("port: receiver off, lost %q", b)
		return
	}
	p.lock.Lock()
	p.latch = b
	p.lock.Unlock()
	p.received.Add(1)
	p.intr.Raise(irq.USARTRx)
}

// Run is the port clock. It shifts the data register onto the wire and
// raises the data-empty vector while the source is armed, until ctx is
// done or the port is closed.
func (p *Port) Run(ctx context.Context) error {
	for {
		if b, ok := p.takeData(); ok {
			if p.Realtime {
				time.Sleep(p.ByteTime())
			}
			select {
			case p.wire <- b:
				p.transmitted.Add(1)
			case <-ctx.Done():
				return ctx.Err()
			case <-p.closed:
				return nil
			}
			continue
		}
		if p.Enabled(usart.TransmitterEnable | usart.DataEmptyInterrupt) {
			p.intr.Raise(irq.USARTDataEmpty)
			continue
		}
		select {
		case <-p.wakeCh:
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closed:
			return nil
		}
	}
}

// Close disconnects the line. Pending remote reads return ErrPortClosed.
func (p *Port) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// Remote returns the far end of the line: reads return what the board
// transmitted and writes are injected into its receiver. Closing it closes
// the port.
func (p *Port) Remote() io.ReadWriteCloser {
	return remote{p}
}

func (p *Port) takeData() (byte, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.dataFull || p.ctrl&usart.TransmitterEnable == 0 {
		return 0, false
	}
	p.dataFull = false
	return p.data, true
}

func (p *Port) wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

type remote struct {
	p *Port
}

// Read blocks for the first byte and returns what else is already on the
// wire without waiting.
func (r remote) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	select {
	case buf[0] = <-r.p.wire:
	case <-r.p.closed:
		return 0, ErrPortClosed
	}
	n := 1
	for n < len(buf) {
		select {
		case buf[n] = <-r.p.wire:
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (r remote) Close() error {
	return r.p.Close()
}

func (r remote) Write(buf []byte) (int, error) {
	for n, b := range buf {
		select {
		case <-r.p.closed:
			return n, ErrPortClosed
		default:
		}
		r.p.Inject(b)
	}
	return len(buf), nil
}
