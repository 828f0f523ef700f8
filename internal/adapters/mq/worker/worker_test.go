package worker_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/padmap/internal/adapters/mq/queue"
	"github.com/okian/padmap/internal/adapters/mq/worker"
	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recordingProcessor struct {
	mu      sync.Mutex
	events  map[input.DeviceID][]int
	total   int
	panicOn int
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{events: map[input.DeviceID][]int{}, panicOn: -1}
}

func (p *recordingProcessor) ProcessInput(_ context.Context, ev input.Event) {
	a, _ := ev.AxisPayload()
	if a.Value == p.panicOn {
		panic("rule exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[ev.Device()] = append(p.events[ev.Device()], a.Value)
	p.total++
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func initLogger(t *testing.T) {
	t.Helper()
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatalf("logger init: %v", err)
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	initLogger(t)

	convey.Convey("Given a worker draining a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		p := newRecordingProcessor()
		w := worker.NewInMemoryWorker(q, p, worker.WithName("lane-test"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When events are queued", func() {
			for i := 0; i < 5; i++ {
				convey.So(q.Enqueue(ctx, input.Axis("pad", 1, i, ts)), convey.ShouldBeNil)
			}

			convey.Convey("Then they should be processed in order", func() {
				convey.So(waitFor(func() bool { return p.count() == 5 }), convey.ShouldBeTrue)
				convey.So(p.events["pad"], convey.ShouldResemble, []int{0, 1, 2, 3, 4})
			})
		})

		convey.Convey("When processing panics", func() {
			p.panicOn = 1
			for i := 0; i < 3; i++ {
				convey.So(q.Enqueue(ctx, input.Axis("pad", 1, i, ts)), convey.ShouldBeNil)
			}

			convey.Convey("Then the worker should keep going", func() {
				convey.So(waitFor(func() bool { return p.count() == 2 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a worker whose queue is closed", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		w := worker.NewInMemoryWorker(q, newRecordingProcessor())
		done := make(chan struct{})
		go func() {
			w.Run(context.Background())
			close(done)
		}()
		convey.So(q.Close(), convey.ShouldBeNil)

		convey.Convey("Then the worker should stop", func() {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("worker did not stop")
			}
		})
	})
}

func TestPoolLanes(t *testing.T) {
	initLogger(t)

	convey.Convey("Given a pool with four lanes", t, func() {
		p := newRecordingProcessor()
		pool := worker.NewPool(4, 4096, p)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Lanes(), convey.ShouldEqual, 4)
		convey.So(pool.Cap(), convey.ShouldEqual, 4*4096)

		convey.Convey("When several devices submit interleaved events", func() {
			const devices, perDevice = 8, 200
			for i := 0; i < perDevice; i++ {
				for d := 0; d < devices; d++ {
					ev := input.Axis(input.DeviceID(fmt.Sprintf("pad-%d", d)), 1, i, ts)
					convey.So(pool.Submit(ctx, ev), convey.ShouldBeNil)
				}
			}

			convey.Convey("Then each device's events should arrive in submit order", func() {
				convey.So(waitFor(func() bool { return p.count() == devices*perDevice }), convey.ShouldBeTrue)
				p.mu.Lock()
				defer p.mu.Unlock()
				for d := 0; d < devices; d++ {
					got := p.events[input.DeviceID(fmt.Sprintf("pad-%d", d))]
					convey.So(got, convey.ShouldHaveLength, perDevice)
					for i, v := range got {
						if v != i {
							t.Fatalf("device %d: event %d out of order (%d)", d, i, v)
						}
					}
				}
			})
		})

		convey.Convey("When the pool shuts down", func() {
			convey.So(pool.Submit(ctx, input.Axis("pad", 1, 1, ts)), convey.ShouldBeNil)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then queued events should have drained and new ones be rejected", func() {
				convey.So(p.count(), convey.ShouldEqual, 1)
				convey.So(pool.Submit(ctx, input.Axis("pad", 1, 2, ts)), convey.ShouldEqual, queue.ErrClosed)
			})
		})
	})
}
