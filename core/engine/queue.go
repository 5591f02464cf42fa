package engine

import (
	"container/heap"
	"sync"
	"time"
)

// LaunchRequest is one pending process launch
type LaunchRequest struct {
	ExperimentID string
	ProcessID    string
	GatewayID    string
	DeliveryTag  uint64
	EnqueuedAt   time.Time

	index int // for heap.Interface
}

// launchHeap orders requests by enqueue time, oldest first
type launchHeap []*LaunchRequest

func (h launchHeap) Len() int           { return len(h) }
func (h launchHeap) Less(i, j int) bool { return h[i].EnqueuedAt.Before(h[j].EnqueuedAt) }
func (h launchHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *launchHeap) Push(x interface{}) {
	req := x.(*LaunchRequest)
	req.index = len(*h)
	*h = append(*h, req)
}

func (h *launchHeap) Pop() interface{} {
	old := *h
	n := len(old)
	req := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return req
}

// LaunchQueue is a priority queue of pending process launches. Launches
// drain first-in first-out even when producers race.
type LaunchQueue struct {
	requests launchHeap
	mu       sync.Mutex
}

// NewLaunchQueue creates an empty launch queue
func NewLaunchQueue() *LaunchQueue {
	lq := &LaunchQueue{requests: make(launchHeap, 0)}
	heap.Init(&lq.requests)
	return lq
}

// Enqueue adds a launch request to the queue
func (lq *LaunchQueue) Enqueue(req *LaunchRequest) {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now()
	}
	heap.Push(&lq.requests, req)
}

// Dequeue removes and returns the oldest launch request, or nil when empty
func (lq *LaunchQueue) Dequeue() *LaunchRequest {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	if lq.requests.Len() == 0 {
		return nil
	}
	return heap.Pop(&lq.requests).(*LaunchRequest)
}

// Size returns the number of pending launch requests
func (lq *LaunchQueue) Size() int {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	return lq.requests.Len()
}
