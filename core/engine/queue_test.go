package engine

import (
	"testing"
	"time"
)

func TestLaunchQueueFIFO(t *testing.T) {
	q := NewLaunchQueue()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	q.Enqueue(&LaunchRequest{ProcessID: "p2", EnqueuedAt: base.Add(2 * time.Second)})
	q.Enqueue(&LaunchRequest{ProcessID: "p1", EnqueuedAt: base.Add(time.Second)})
	q.Enqueue(&LaunchRequest{ProcessID: "p3", EnqueuedAt: base.Add(3 * time.Second)})

	if q.Size() != 3 {
		t.Fatalf("Size = %d, want 3", q.Size())
	}
	for _, want := range []string{"p1", "p2", "p3"} {
		req := q.Dequeue()
		if req == nil || req.ProcessID != want {
			t.Fatalf("Dequeue = %+v, want %s", req, want)
		}
	}
	if req := q.Dequeue(); req != nil {
		t.Fatalf("Dequeue on empty queue = %+v, want nil", req)
	}
	if q.Size() != 0 {
		t.Fatalf("Size = %d, want 0", q.Size())
	}
}

func TestLaunchQueueStampsEnqueueTime(t *testing.T) {
	q := NewLaunchQueue()
	req := &LaunchRequest{ProcessID: "p1"}
	q.Enqueue(req)
	if req.EnqueuedAt.IsZero() {
		t.Fatal("EnqueuedAt not stamped")
	}
}

func TestWorkerPoolRunsAllSubmissions(t *testing.T) {
	pool := NewWorkerPool(3)
	results := make(chan int, 10)
	for i := 0; i < 10; i++ {
		n := i
		pool.Submit(func() { results <- n })
	}
	pool.Wait()
	close(results)
	seen := 0
	for range results {
		seen++
	}
	if seen != 10 {
		t.Fatalf("ran %d submissions, want 10", seen)
	}
}
