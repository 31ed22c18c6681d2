// Package irq models the interrupt controller of a single-core board.
//
// Hardware goroutines raise vectors; the Controller dispatches the registered
// handler with interrupts globally masked, which is what a core does when it
// enters a service routine. Foreground code masks interrupts around the few
// shared fields it has to update with Disable/Restore or Critical.
//
// Handlers are never nested and never run while foreground code holds the
// mask. Neither Disable nor Critical may be called from a handler.
package irq

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Vector identifies an interrupt source.
type Vector uint8

// Vectors of the board.
const (
	// USARTRx fires when the receiver latched a byte.
	USARTRx Vector = iota
	// USARTDataEmpty fires when the transmit data register can take a byte.
	USARTDataEmpty

	NumVectors
)

var vectorNames = [NumVectors]string{
	USARTRx:        "USART_RX",
	USARTDataEmpty: "USART_UDRE",
}

// String implements fmt.Stringer.
func (v Vector) String() string {
	if v < NumVectors {
		return vectorNames[v]
	}
	return fmt.Sprintf("VECTOR(%d)", uint8(v))
}

// Handler is an interrupt service routine. It must return in bounded time.
type Handler func()

// State is the token returned by Disable and consumed by Restore.
type State struct {
	held bool
}

// Controller is the global interrupt flag plus the vector table.
type Controller struct {
	mask     sync.Mutex
	handlers [NumVectors]atomic.Pointer[Handler]
	counts   [NumVectors]atomic.Uint64
	spurious atomic.Uint64
}

// NewController creates a Controller with an empty vector table.
func NewController() *Controller {
	return &Controller{}
}

// Register installs h for v, replacing any previous handler.
// A nil h uninstalls it.
func (c *Controller) Register(v Vector, h Handler) {
	if v >= NumVectors {
		panic(fmt.Sprintf("irq: invalid vector %d", v))
	}
	if h == nil {
		c.handlers[v].Store(nil)
		return
	}
	c.handlers[v].Store(&h)
}

// Raise services v: it waits until interrupts are unmasked, then runs the
// handler with interrupts masked. It reports false when no handler is
// installed.
func (c *Controller) Raise(v Vector) bool {
	if v >= NumVectors {
		c.spurious.Add(1)
		return false
	}
	h := c.handlers[v].Load()
	if h == nil {
		c.spurious.Add(1)
		return false
	}
	c.mask.Lock()
	defer c.mask.Unlock()
	c.counts[v].Add(1)
	(*h)()
	return true
}

// Disable masks interrupts and returns the state to pass to Restore.
func (c *Controller) Disable() State {
	c.mask.Lock()
	return State{held: true}
}

// Restore unmasks interrupts masked by the matching Disable.
func (c *Controller) Restore(s State) {
	if s.held {
		c.mask.Unlock()
	}
}

// Critical runs fn with interrupts masked.
func (c *Controller) Critical(fn func()) {
	s := c.Disable()
	defer c.Restore(s)
	fn()
}

// Count returns how many times v was serviced.
func (c *Controller) Count(v Vector) uint64 {
	if v >= NumVectors {
		return 0
	}
	return c.counts[v].Load()
}

// Spurious returns the number of raises without a handler.
func (c *Controller) Spurious() uint64 {
	return c.spurious.Load()
}
