// Package worker delivers queued input events to the mapping engine. Events
// from one device always go through the same lane so they are processed in
// capture order; lanes run concurrently.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/padmap/internal/adapters/mq/queue"
	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/pkg/logger"
	"github.com/okian/padmap/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Processor consumes one event. engine.Engine implements it.
type Processor interface {
	ProcessInput(ctx context.Context, ev input.Event)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue() <-chan input.Event
}

// Worker processes events from one queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called or
	// the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker hands each dequeued event to the processor in order.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, ev)
		}
	}
}

// process keeps a panicking rule or sink from taking the lane down.
func (w *InMemoryWorker) process(ctx context.Context, ev input.Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "event processing panicked",
				logger.String("event", ev.String()),
				logger.Any("panic", r),
			)
		}
	}()
	w.processor.ProcessInput(ctx, ev)
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// lane pairs a queue with the single worker draining it.
type lane struct {
	queue  *queue.InMemoryQueue
	worker *InMemoryWorker
}

// Pool routes events onto per-device lanes.
type Pool struct {
	lanes    []lane
	shutdown chan struct{}
	once     sync.Once
	logger   logger.Logger
}

// NewPool creates laneCount lanes, each with a queue of queueSize events.
// laneCount < 1 uses one lane per CPU.
func NewPool(laneCount, queueSize int, p Processor, opts ...PoolOption) *Pool {
	if laneCount < 1 {
		laneCount = runtime.NumCPU()
	}
	pool := &Pool{
		lanes:    make([]lane, laneCount),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pool)
	}
	if pool.logger == nil {
		pool.logger = logger.Get().Named("worker-pool")
	}

	for i := range pool.lanes {
		q := queue.NewInMemoryQueue(queue.WithCapacity(queueSize))
		pool.lanes[i] = lane{
			queue: q,
			worker: NewInMemoryWorker(q, p,
				WithName("lane-"+strconv.Itoa(i)),
				WithLogger(pool.logger),
			),
		}
	}

	metrics.UpdateLaneCount(laneCount)
	metrics.UpdateQueueCapacity(laneCount * pool.lanes[0].queue.Cap())
	metrics.UpdateQueueSize(0)
	return pool
}

// Start starts every lane worker.
func (p *Pool) Start(ctx context.Context) {
	for _, l := range p.lanes {
		go l.worker.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// Submit enqueues ev on its device's lane without blocking.
func (p *Pool) Submit(ctx context.Context, ev input.Event) error {
	return p.lanes[p.laneFor(ev.Device())].queue.Enqueue(ctx, ev)
}

// Lanes returns the number of lanes.
func (p *Pool) Lanes() int { return len(p.lanes) }

// Len returns the number of queued events across lanes.
func (p *Pool) Len() int {
	n := 0
	for _, l := range p.lanes {
		n += l.queue.Len()
	}
	return n
}

// Cap returns the total queue capacity across lanes.
func (p *Pool) Cap() int {
	n := 0
	for _, l := range p.lanes {
		n += l.queue.Cap()
	}
	return n
}

func (p *Pool) laneFor(device input.DeviceID) int {
	return int(xxhash.Sum64String(string(device)) % uint64(len(p.lanes)))
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(p.Len())
		}
	}
}

// Shutdown closes every lane queue, lets the workers drain what was already
// queued and waits for them to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.shutdown) })

	for _, l := range p.lanes {
		if err := l.queue.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, l := range p.lanes {
		select {
		case <-l.worker.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "lane shutdown timed out", logger.Int("lane", i))
		}
	}
	metrics.UpdateQueueSize(p.Len())
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
