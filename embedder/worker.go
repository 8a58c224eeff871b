package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"
)

type MessageHandler func(ctx context.Context, data []byte) error

// acker is the part of *nats.Msg the pool settles.
type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
}

type job struct {
	data []byte
	msg  acker
}

type WorkerPool struct {
	jobs    chan job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	handler MessageHandler

	handled atomic.Int64
	failed  atomic.Int64
}

func NewWorkerPool(ctx context.Context, maxWorkers, queueSize int, handler MessageHandler) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 16
	}

	// queued messages are still handled after ctx is cancelled; Stop ends
	// the pool
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	pool := &WorkerPool{
		jobs:    make(chan job, queueSize),
		ctx:     poolCtx,
		cancel:  cancel,
		handler: handler,
	}

	for i := 0; i < maxWorkers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

func (w *WorkerPool) worker() {
	defer w.wg.Done()

	for j := range w.jobs {
		w.process(j)
	}
}

func (w *WorkerPool) process(j job) {
	if err := w.handler(w.ctx, j.data); err != nil {
		w.failed.Add(1)
		slog.Error("failed to handle catalog event", "err", err)
		if err := j.msg.Nak(); err != nil {
			slog.Error("failed to nak message", "err", err)
		}
		return
	}

	w.handled.Add(1)
	if err := j.msg.Ack(); err != nil {
		slog.Error("failed to ack message", "err", err)
	}
}

// Submit queues a message, blocking while the queue is full. It returns
// false once ctx or the pool is done.
func (w *WorkerPool) Submit(ctx context.Context, msg *nats.Msg) bool {
	return w.submit(ctx, job{data: msg.Data, msg: msg})
}

func (w *WorkerPool) submit(ctx context.Context, j job) bool {
	select {
	case w.jobs <- j:
		return true
	case <-ctx.Done():
		return false
	case <-w.ctx.Done():
		return false
	}
}

// Stop lets the workers finish the queued messages and waits for them.
// Nothing may be submitted once Stop is called.
func (w *WorkerPool) Stop() {
	close(w.jobs)
	w.wg.Wait()
	w.cancel()

	slog.Info("worker pool stopped", "handled", w.handled.Load(), "failed", w.failed.Load())
}
