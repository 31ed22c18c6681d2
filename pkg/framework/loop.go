package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the idle period between superloop passes.
const DefaultInterval = 100 * time.Millisecond

// Loop is the foreground superloop. Each pass runs every Controller in
// registration order. A pass starts when Interval elapses or right after
// TriggerNext was called. Create it with NewLoop.
type Loop struct {
	Interval time.Duration

	lock        sync.Mutex
	controllers []Controller
	runners     []Runnable

	iterations uint64
	wakeUpCh   chan struct{}
}

// LoopAdder adds its components to a Loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	*Loop
	ctx  context.Context
	time time.Time
	num  uint64
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: DefaultInterval,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController appends controllers. A controller that is also a Runnable
// is started with the loop.
func (l *Loop) AddController(ctls ...Controller) *Loop {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.controllers = append(l.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds background activities started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable. It returns when ctx is done or a runnable
// fails.
func (l *Loop) Run(ctx context.Context) error {
	l.lock.Lock()
	runners := append([]Runnable(nil), l.runners...)
	l.lock.Unlock()

	runner := NewRunnerWith(ctx)
	runner.StopOnError = true
	runner.Go(runners...)

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := runner.Context.Done()
	for {
		select {
		case <-done:
			runner.Stop()
			if err := runner.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
		case <-l.wakeUpCh:
		}
		l.runIteration(runner.Context)
	}
}

// TriggerNext implements Waker.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Iterations returns the number of passes started so far.
func (l *Loop) Iterations() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.iterations
}

func (l *Loop) runIteration(ctx context.Context) {
	l.lock.Lock()
	l.iterations++
	iter := &loopIteration{Loop: l, ctx: ctx, time: time.Now(), num: l.iterations}
	ctls := l.controllers
	l.lock.Unlock()

	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}

func (t *loopIteration) Context() context.Context { return t.ctx }
func (t *loopIteration) Time() time.Time          { return t.time }
func (t *loopIteration) Iteration() uint64        { return t.num }
