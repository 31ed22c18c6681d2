package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable is a background activity bound to a context.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller is one step of the foreground superloop.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// ControlContext describes the current pass of the superloop.
type ControlContext interface {
	Context() context.Context
	// Time is when the pass started.
	Time() time.Time
	// Iteration counts passes from 1.
	Iteration() uint64

	Waker
}

// Waker schedules another pass of the superloop.
type Waker interface {
	// TriggerNext requests a pass right after the current one. It never
	// blocks and coalesces with pending requests, so it can be called from
	// an interrupt handler.
	TriggerNext()
}
