// Package queue serializes scene and engine mutation onto a single
// goroutine. Every command's placement phase and all frame processing run
// here, which is what lets the scene graph and engine state go unlocked.
package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("queue: closed")

const defaultBuffer = 64

// Op is a unit of work executed on the queue goroutine.
type Op interface {
	Run()
}

// Func adapts a plain function to Op.
type Func func()

// Run calls f.
func (f Func) Run() { f() }

// Queue owns one worker goroutine and executes submitted ops in order.
type Queue struct {
	log  *zap.Logger
	ops  chan Op
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New builds a queue with the given submission buffer. A non-positive
// buffer takes the default; a nil logger disables logging.
func New(buffer int, log *zap.Logger) *Queue {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		log:  log,
		ops:  make(chan Op, buffer),
		done: make(chan struct{}),
	}
}

// Start launches the worker goroutine. Call once.
func (q *Queue) Start() {
	go q.loop()
}

func (q *Queue) loop() {
	defer close(q.done)
	for op := range q.ops {
		q.runOne(op)
	}
}

// runOne isolates panics so one bad op cannot take down the worker.
func (q *Queue) runOne(op Op) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("op panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	op.Run()
}

// Enqueue submits an op without waiting for it to run. It blocks only
// while the submission buffer is full.
func (q *Queue) Enqueue(op Op) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.ops <- op
	return nil
}

// RunSync submits fn and waits for it to finish, returning its error.
// A done context abandons the wait; the op itself still runs.
func (q *Queue) RunSync(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if err := q.Enqueue(Func(func() {
		res <- fn()
	})); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, runs everything already submitted, and
// waits for the worker to exit. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.ops)
	<-q.done
}
