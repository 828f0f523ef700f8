package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/padmap/internal/domain/input"
)

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Enqueue(ctx, input.Button("pad-1", 1, true, ts)); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	ev := <-q.Dequeue()
	if ev.Device() != "pad-1" {
		t.Errorf("expected pad-1, got %v", ev.Device())
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, input.Axis("pad", 1, i, ts)); err != nil {
			t.Fatalf("expected enqueue to succeed: %v", err)
		}
	}
	if err := q.Enqueue(ctx, input.Axis("pad", 1, 3, ts)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if q.Cap() != 2 || q.Len() != 2 {
		t.Errorf("expected 2/2, got %d/%d", q.Len(), q.Cap())
	}
}

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := q.Enqueue(ctx, input.Axis("pad", 1, i, ts)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 10; i++ {
		ev := <-q.Dequeue()
		p, _ := ev.AxisPayload()
		if p.Value != i {
			t.Fatalf("expected value %d, got %d", i, p.Value)
		}
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := q.Enqueue(ctx, input.Button("pad", input.ButtonID(j), true, ts)); err != nil {
					t.Errorf("enqueue failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if l := q.Len(); l != 1000 {
		t.Errorf("expected length 1000, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if err := q.Enqueue(ctx, input.Button("pad", 1, true, ts)); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Enqueue(ctx, input.Button("pad", 2, true, ts)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Queued events drain before the channel reports closed.
	if _, ok := <-q.Dequeue(); !ok {
		t.Error("expected queued event to be delivered after close")
	}
	if _, ok := <-q.Dequeue(); ok {
		t.Error("expected channel to be closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, input.Button("pad", 1, true, ts)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
