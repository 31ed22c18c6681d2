package sim

import (
	"context"

	"github.com/robotalks/bsp.go/pkg/assert"
	"github.com/robotalks/bsp.go/pkg/irq"
	"github.com/robotalks/bsp.go/pkg/usart"
)

// Board wires the interrupt controller, the USART port, the debug LED and
// the serial transport. The transport still needs Init.
type Board struct {
	Intr     *irq.Controller
	Port     *Port
	LED      *Pin
	USART    *usart.Transport
	Reporter *assert.Reporter
}

// NewBoard creates a board.
func NewBoard(cfg Config) *Board {
	if cfg.ClockHz == 0 {
		cfg.ClockHz = DefaultClockHz
	}
	var opts []usart.Option
	if cfg.BufferSize > 0 {
		opts = append(opts, usart.WithBufferSize(cfg.BufferSize))
	}
	b := &Board{
		Intr: irq.NewController(),
		LED:  NewPin("PB5"),
	}
	b.Port = NewPort(b.Intr, cfg.ClockHz)
	b.Port.Realtime = cfg.Realtime
	b.USART = usart.New(b.Port, b.Intr, opts...)
	b.Reporter = assert.NewReporter(b.USART, b.LED)
	return b
}

// InstallReporter routes assertion failures to this board's reporter.
func (b *Board) InstallReporter() (restore func()) {
	return assert.SetHandler(b.Reporter)
}

// Run implements framework.Runnable by running the port clock.
func (b *Board) Run(ctx context.Context) error {
	return b.Port.Run(ctx)
}

// Name implements framework.Named.
func (b *Board) Name() string {
	return "board"
}
