package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/achat/internal/domain/model"
)

func mutation(id string) model.Mutation {
	return model.Mutation{ID: id, Name: "test"}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Cap(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, mutation("m1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	m := <-q.Dequeue(ctx)
	if m.ID != "m1" {
		t.Errorf("expected m1, got %v", m.ID)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, mutation("m1")) || !q.Enqueue(ctx, mutation("m2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, mutation("m3")) {
		t.Error("expected enqueue to fail when the queue is full")
	}

	<-q.Dequeue(ctx)
	if !q.Enqueue(ctx, mutation("m3")) {
		t.Error("expected enqueue to succeed after a dequeue")
	}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if !q.Enqueue(ctx, mutation(fmt.Sprintf("m%d", i))) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	ch := q.Dequeue(ctx)
	for i := 0; i < 10; i++ {
		if m := <-ch; m.ID != fmt.Sprintf("m%d", i) {
			t.Fatalf("expected m%d, got %s", i, m.ID)
		}
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, mutation("m1"))
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if q.Enqueue(ctx, mutation("m2")) {
		t.Error("expected enqueue to fail on a closed queue")
	}

	// queued mutations survive Close
	ch := q.Dequeue(ctx)
	if m, ok := <-ch; !ok || m.ID != "m1" {
		t.Errorf("expected m1 before close, got %v %v", m.ID, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after draining")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, mutation("m1")) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
}

func TestInMemoryQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if q.Enqueue(ctx, mutation(fmt.Sprintf("%d-%d", g, i))) {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}(g)
	}
	wg.Wait()

	if accepted != 100 {
		t.Errorf("expected exactly 100 accepted mutations, got %d", accepted)
	}
	if l := q.Len(ctx); l != 100 {
		t.Errorf("expected length 100, got %d", l)
	}
}
