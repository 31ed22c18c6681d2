package irq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRaiseDispatchesRegisteredHandler(t *testing.T) {
	c := NewController()
	var rx, udre int
	c.Register(USARTRx, func() { rx++ })
	c.Register(USARTDataEmpty, func() { udre++ })

	require.True(t, c.Raise(USARTRx))
	require.True(t, c.Raise(USARTRx))
	require.True(t, c.Raise(USARTDataEmpty))
	require.Equal(t, 2, rx)
	require.Equal(t, 1, udre)
	require.Equal(t, uint64(2), c.Count(USARTRx))
	require.Equal(t, uint64(1), c.Count(USARTDataEmpty))
}

func TestRaiseWithoutHandler(t *testing.T) {
	c := NewController()
	require.False(t, c.Raise(USARTRx))
	require.False(t, c.Raise(NumVectors))
	require.Equal(t, uint64(2), c.Spurious())

	c.Register(USARTRx, func() {})
	c.Register(USARTRx, nil)
	require.False(t, c.Raise(USARTRx))
	require.Zero(t, c.Count(USARTRx))
}

func TestRegisterInvalidVector(t *testing.T) {
	require.Panics(t, func() { NewController().Register(NumVectors, func() {}) })
}

func TestCriticalDefersInterrupts(t *testing.T) {
	c := NewController()
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	c.Register(USARTRx, func() { record("isr") })

	raised := make(chan struct{})
	c.Critical(func() {
		record("enter")
		go func() {
			c.Raise(USARTRx)
			close(raised)
		}()
		time.Sleep(20 * time.Millisecond)
		record("leave")
	})
	select {
	case <-raised:
	case <-time.After(time.Second):
		t.Fatal("interrupt never serviced")
	}
	require.Equal(t, []string{"enter", "leave", "isr"}, order)
}

func TestDisableRestore(t *testing.T) {
	c := NewController()
	s := c.Disable()
	c.Restore(s)
	// zero State is a no-op.
	c.Restore(State{})
	c.Critical(func() {})
}

func TestVectorString(t *testing.T) {
	require.Equal(t, "USART_RX", USARTRx.String())
	require.Equal(t, "USART_UDRE", USARTDataEmpty.String())
	require.Equal(t, "VECTOR(9)", Vector(9).String())
}
