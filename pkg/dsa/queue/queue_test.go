package queue

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsZeroCapacity(t *testing.T) {
	require.Panics(t, func() { New[byte](0) })
	require.Panics(t, func() { New[byte](-1) })
}

func TestEmptyQueue(t *testing.T) {
	q := New[int](3)
	require.True(t, q.IsEmpty())
	require.False(t, q.IsFull())
	require.Equal(t, 0, q.Len())
	require.Equal(t, 3, q.Cap())

	_, ok := q.Peek()
	require.False(t, ok)
	v, ok := q.Dequeue()
	require.False(t, ok)
	require.Zero(t, v)

	// nothing moved.
	require.Equal(t, uint32(0), q.head.Load())
	require.Equal(t, uint32(0), q.tail.Load())
	require.False(t, q.full.Load())
}

func TestFIFO(t *testing.T) {
	testCases := []struct {
		name string
		cap  int
		vals []int
	}{
		{name: "single slot", cap: 1, vals: []int{7}},
		{name: "partial", cap: 4, vals: []int{1, 2}},
		{name: "exactly full", cap: 4, vals: []int{1, 2, 3, 4}},
		{name: "bytes sized", cap: 16, vals: []int{'h', 'e', 'l', 'l', 'o'}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := New[int](tc.cap)
			for _, v := range tc.vals {
				require.True(t, q.Enqueue(v))
			}
			require.Equal(t, len(tc.vals), q.Len())
			require.Equal(t, len(tc.vals) == tc.cap, q.IsFull())
			var got []int
			for range tc.vals {
				v, ok := q.Dequeue()
				require.True(t, ok)
				got = append(got, v)
			}
			require.Equal(t, tc.vals, got)
			require.True(t, q.IsEmpty())
		})
	}
}

func TestEnqueueOnFullDrops(t *testing.T) {
	q := New[byte](2)
	require.True(t, q.Enqueue('a'))
	require.True(t, q.Enqueue('b'))
	require.True(t, q.IsFull())

	require.False(t, q.Enqueue('c'))
	require.Equal(t, 2, q.Len())
	require.True(t, q.IsFull())

	v, _ := q.Dequeue()
	require.Equal(t, byte('a'), v)
	v, _ = q.Dequeue()
	require.Equal(t, byte('b'), v)
	_, ok := q.Dequeue()
	require.False(t, ok)
}

func TestPeekDoesNotConsume(t *testing.T) {
	q := New[int](2)
	q.Enqueue(1)
	q.Enqueue(2)
	for i := 0; i < 3; i++ {
		v, ok := q.Peek()
		require.True(t, ok)
		require.Equal(t, 1, v)
		require.True(t, q.IsFull())
		require.Equal(t, 2, q.Len())
	}
}

func TestWraparound(t *testing.T) {
	q := New[int](4)
	var popped []int
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(i))
		require.False(t, q.IsFull())
		if i%2 == 1 {
			for n := 0; n < 2; n++ {
				v, ok := q.Dequeue()
				require.True(t, ok)
				popped = append(popped, v)
			}
		}
	}
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		popped = append(popped, v)
	}
	require.Len(t, popped, 10)
	for i, v := range popped {
		require.Equal(t, i, v)
	}
	// 10 writes through 4 slots.
	require.Equal(t, uint32(10%4), q.head.Load())
	require.Equal(t, q.head.Load(), q.tail.Load())
}

func TestRandomOperationsMatchModel(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for _, capacity := range []int{1, 2, 3, 4, 7, 16} {
		q := New[int](capacity)
		var model []int
		next := 0
		for step := 0; step < 2000; step++ {
			switch r.Intn(3) {
			case 0, 1:
				ok := q.Enqueue(next)
				if len(model) < capacity {
					require.True(t, ok)
					model = append(model, next)
				} else {
					require.False(t, ok)
				}
				next++
			default:
				v, ok := q.Dequeue()
				if len(model) == 0 {
					require.False(t, ok)
				} else {
					require.True(t, ok)
					require.Equal(t, model[0], v)
					model = model[1:]
				}
			}
			size := q.Len()
			require.GreaterOrEqual(t, size, 0)
			require.LessOrEqual(t, size, capacity)
			require.Equal(t, len(model), size)
			require.Equal(t, size == capacity, q.IsFull())
			require.Equal(t, size == 0, q.IsEmpty())
			require.Less(t, int(q.head.Load()), capacity)
			require.Less(t, int(q.tail.Load()), capacity)
		}
	}
}

func TestNilQueue(t *testing.T) {
	var q *Queue[byte]
	require.True(t, q.IsEmpty())
	require.False(t, q.IsFull())
	require.Equal(t, 0, q.Len())
	require.Equal(t, 0, q.Cap())
	require.False(t, q.Enqueue(1))
	_, ok := q.Dequeue()
	require.False(t, ok)
	_, ok = q.Peek()
	require.False(t, ok)
}

func TestSplitHandles(t *testing.T) {
	q := New[byte](2)
	p, c := q.Producer(), q.Consumer()
	require.True(t, c.IsEmpty())
	require.Equal(t, 2, p.Cap())
	require.True(t, p.Enqueue('x'))
	require.Equal(t, 1, p.Len())
	v, ok := c.Peek()
	require.True(t, ok)
	require.Equal(t, byte('x'), v)
	require.True(t, p.Enqueue('y'))
	require.True(t, p.IsFull())
	v, _ = c.Dequeue()
	require.Equal(t, byte('x'), v)
	require.Equal(t, 1, c.Len())
}

func TestProducerConsumerGoroutines(t *testing.T) {
	// Producer and consumer only ever see each other through the queue;
	// the producer backs off while full so every value is delivered.
	const total = 10000
	q := New[int](8)
	var mu sync.Mutex // stands in for the interrupt mask around full
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			mu.Lock()
			ok := q.Enqueue(i)
			mu.Unlock()
			if ok {
				i++
			}
		}
	}()
	got := make([]int, 0, total)
	for len(got) < total {
		mu.Lock()
		v, ok := q.Dequeue()
		mu.Unlock()
		if ok {
			got = append(got, v)
		}
	}
	wg.Wait()
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
