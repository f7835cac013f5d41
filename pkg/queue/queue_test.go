package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRunning(t *testing.T) *Queue {
	t.Helper()
	q := New(0, nil)
	q.Start()
	t.Cleanup(q.Close)
	return q
}

func TestOpsRunInOrder(t *testing.T) {
	q := newRunning(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		if err := q.Enqueue(Func(func() { got = append(got, i) })); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	// Barrier: by the time this op returns, everything before it ran.
	if err := q.RunSync(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	if len(got) != 100 {
		t.Fatalf("ran %d ops, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestRunSyncSerializes(t *testing.T) {
	q := newRunning(t)

	var counter int
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				err := q.RunSync(context.Background(), func() error {
					counter++ // safe: only the worker goroutine touches it
					return nil
				})
				if err != nil {
					t.Errorf("RunSync: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if counter != 400 {
		t.Errorf("counter = %d, want 400", counter)
	}
}

func TestRunSyncPropagatesError(t *testing.T) {
	q := newRunning(t)
	want := errors.New("boom")
	if err := q.RunSync(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("RunSync error = %v, want %v", err, want)
	}
}

func TestRunSyncContextCancel(t *testing.T) {
	q := newRunning(t)

	release := make(chan struct{})
	if err := q.Enqueue(Func(func() { <-release })); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.RunSync(ctx, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunSync = %v, want context.Canceled", err)
	}

	close(release)
}

func TestEnqueueAfterClose(t *testing.T) {
	q := New(0, nil)
	q.Start()
	q.Close()

	if err := q.Enqueue(Func(func() {})); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after Close = %v, want ErrClosed", err)
	}
	if err := q.RunSync(context.Background(), func() error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("RunSync after Close = %v, want ErrClosed", err)
	}
}

func TestCloseDrainsPending(t *testing.T) {
	q := New(0, nil)
	q.Start()

	var ran int
	for i := 0; i < 20; i++ {
		if err := q.Enqueue(Func(func() {
			time.Sleep(time.Millisecond)
			ran++
		})); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	q.Close()

	if ran != 20 {
		t.Errorf("ran = %d ops before Close returned, want 20", ran)
	}
}

func TestCloseTwice(t *testing.T) {
	q := New(0, nil)
	q.Start()
	q.Close()
	q.Close()
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	q := newRunning(t)

	if err := q.Enqueue(Func(func() { panic("bad op") })); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.RunSync(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("RunSync after panic = %v, want worker still alive", err)
	}
}
