package framework

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, context.Canceled).Aggregate())

	errA, errB := errors.New("a"), errors.New("b")
	errs.Add(errA)
	require.Equal(t, "a", errs.Error())
	errs.Add(errB)
	err := errs.Aggregate()
	require.Error(t, err)
	require.Equal(t, "Multiple errors:\na\nb", err.Error())
	require.True(t, errors.Is(err, errB))
}

func TestRunnerWait(t *testing.T) {
	testCases := []struct {
		name   string
		errs   []error
		expect string
	}{
		{name: "all ok", errs: []error{nil, nil}},
		{name: "canceled ignored", errs: []error{context.Canceled, nil}},
		{name: "one failure", errs: []error{nil, errors.New("boom")}, expect: "boom"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRunner()
			for i, err := range tc.errs {
				err := err
				r.Go(NamedFunc("r"+string(rune('0'+i)), func(context.Context) error { return err }))
			}
			err := r.Wait()
			if tc.expect == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.expect)
			}
		})
	}
}

func TestRunnerStopOnError(t *testing.T) {
	r := NewRunner()
	r.StopOnError = true
	r.Go(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Go(RunFunc(func(context.Context) error { return errors.New("pump failed") }))
	require.EqualError(t, r.Wait(), "pump failed")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunWithContextCloser(t *testing.T) {
	released := make(chan struct{})
	closed := 0
	closer := closerFunc(func() error {
		closed++
		close(released)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-released
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, closed)

	closed = 0
	released = make(chan struct{})
	err = RunWithContextCloser(context.Background(), closer, func() error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, closed)
}

func TestLoopRunsControllersInOrder(t *testing.T) {
	var lock sync.Mutex
	var trace []string
	ctl := func(name string) Controller {
		return ControlFunc(func(cc ControlContext) error {
			lock.Lock()
			trace = append(trace, name)
			lock.Unlock()
			return nil
		})
	}

	l := NewLoop()
	l.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	l.AddController(ctl("a"), ctl("b"), ControlFunc(func(cc ControlContext) error {
		if cc.Iteration() == 2 {
			cancel()
		}
		return errors.New("logged only")
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	l.TriggerNext()
	require.Eventually(t, func() bool { return l.Iterations() == 1 }, time.Second, time.Millisecond)
	l.TriggerNext()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	require.Equal(t, []string{"a", "b", "a", "b"}, trace)
}

func TestLoopTriggerCoalesces(t *testing.T) {
	l := NewLoop()
	for i := 0; i < 10; i++ {
		l.TriggerNext()
	}
	require.Len(t, l.wakeUpCh, 1)
}

func TestLoopStopsOnRunnableError(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Millisecond
	l.AddRunnable(RunFunc(func(context.Context) error { return errors.New("clock stopped") }))
	err := l.Run(context.Background())
	require.EqualError(t, err, "clock stopped")
}
