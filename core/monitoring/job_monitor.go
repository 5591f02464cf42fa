// Package monitoring polls remote resource managers for job state
// and feeds the observed transitions back into the engine.
package monitoring

import (
	"context"
	"log"
	"sync"
	"time"

	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

// CancelWatcher streams the experiment IDs whose cancel marker is set.
// Implemented by core/coordination.
type CancelWatcher interface {
	WatchCancelRequests(ctx context.Context) <-chan string
}

// JobMonitor polls the provider of every tracked asynchronous process
// for its job's state, records state changes and hands terminal jobs
// back to the engine for outflow.
type JobMonitor struct {
	engine   *engine.Engine
	interval time.Duration

	mu      sync.Mutex
	tracked map[string]*engine.ProcessContext // process ID -> context
}

// NewJobMonitor creates a monitor polling at the given interval
func NewJobMonitor(eng *engine.Engine, interval time.Duration) *JobMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &JobMonitor{
		engine:   eng,
		interval: interval,
		tracked:  make(map[string]*engine.ProcessContext),
	}
}

// Track implements engine.JobTracker
func (m *JobMonitor) Track(pctx *engine.ProcessContext) {
	if pctx.Job == nil {
		log.Printf("Refusing to track process %s: no job submitted", pctx.ProcessID)
		return
	}
	m.mu.Lock()
	m.tracked[pctx.ProcessID] = pctx
	m.mu.Unlock()
	log.Printf("Monitoring job %s of process %s", pctx.Job.JobID, pctx.ProcessID)
}

// TrackedCount returns the number of processes being polled
func (m *JobMonitor) TrackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}

// Start runs the polling loop until the context is canceled
func (m *JobMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollAll(ctx)
		}
	}
}

// WatchCancellations cancels tracked processes of an experiment as soon
// as its cancel marker appears. Processes handed over for asynchronous
// monitoring never pass an engine interrupt point again, so without
// this the marker would only be honored on recovery.
func (m *JobMonitor) WatchCancellations(ctx context.Context, w CancelWatcher) {
	for experimentID := range w.WatchCancelRequests(ctx) {
		m.cancelExperiment(ctx, experimentID)
	}
}

func (m *JobMonitor) cancelExperiment(ctx context.Context, experimentID string) {
	m.mu.Lock()
	var contexts []*engine.ProcessContext
	for id, pctx := range m.tracked {
		if pctx.ExperimentID == experimentID {
			delete(m.tracked, id)
			contexts = append(contexts, pctx)
		}
	}
	m.mu.Unlock()

	for _, pctx := range contexts {
		if err := m.engine.CancelProcess(ctx, pctx); err != nil {
			log.Printf("Failed to cancel process %s of experiment %s: %v", pctx.ProcessID, experimentID, err)
		}
	}
}

func (m *JobMonitor) pollAll(ctx context.Context) {
	m.mu.Lock()
	contexts := make([]*engine.ProcessContext, 0, len(m.tracked))
	for _, pctx := range m.tracked {
		contexts = append(contexts, pctx)
	}
	m.mu.Unlock()

	for _, pctx := range contexts {
		m.poll(ctx, pctx)
	}
}

// poll asks the provider for the job's state and records a status
// when it differs from the last recorded one.
func (m *JobMonitor) poll(ctx context.Context, pctx *engine.ProcessContext) {
	job := pctx.Job
	state, err := pctx.Provider.JobState(ctx, pctx, job)
	if err != nil {
		log.Printf("Failed to poll job %s of process %s: %v", job.JobID, pctx.ProcessID, err)
		return
	}

	last := models.JobStateSubmitted
	if cur := job.CurrentStatus(); cur != nil {
		last = cur.State
	}
	if state != last {
		if err := engine.SaveAndPublishJobStatus(pctx, job, state, "observed by monitor"); err != nil {
			log.Printf("Failed to record status %s of job %s: %v", state, job.JobID, err)
			return
		}
	}
	if !state.IsTerminal() {
		return
	}

	m.mu.Lock()
	delete(m.tracked, pctx.ProcessID)
	m.mu.Unlock()
	if err := m.engine.HandleTerminalJob(ctx, pctx, state); err != nil {
		log.Printf("Failed to finish process %s after job %s reached %s: %v",
			pctx.ProcessID, job.JobID, state, err)
	}
}
