package monitoring

import (
	"context"
	"strings"
	"testing"
	"time"

	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

func TestTrackRequiresSubmittedJob(t *testing.T) {
	m := NewJobMonitor(nil, time.Second)
	m.Track(&engine.ProcessContext{ProcessID: "proc-1"})
	if m.TrackedCount() != 0 {
		t.Fatalf("TrackedCount = %d, want 0 for process without job", m.TrackedCount())
	}

	m.Track(&engine.ProcessContext{
		ProcessID: "proc-2",
		Job:       &models.JobModel{JobID: "job-1"},
	})
	if m.TrackedCount() != 1 {
		t.Fatalf("TrackedCount = %d, want 1", m.TrackedCount())
	}
}

func TestNewJobMonitorDefaultInterval(t *testing.T) {
	m := NewJobMonitor(nil, 0)
	if m.interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s default", m.interval)
	}
}

type stubWatcher struct{ ch chan string }

func (w stubWatcher) WatchCancelRequests(ctx context.Context) <-chan string { return w.ch }

func TestWatchCancellationsLeavesOtherExperimentsTracked(t *testing.T) {
	m := NewJobMonitor(nil, time.Second)
	m.Track(&engine.ProcessContext{
		ProcessID:    "proc-1",
		ExperimentID: "exp-1",
		Job:          &models.JobModel{JobID: "job-1"},
	})

	ch := make(chan string, 1)
	ch <- "exp-other"
	close(ch)
	m.WatchCancellations(context.Background(), stubWatcher{ch: ch})

	if m.TrackedCount() != 1 {
		t.Fatalf("TrackedCount = %d, want 1 after unrelated cancel", m.TrackedCount())
	}
}

type stubCounter struct {
	processes map[models.ProcessState]int
	jobs      map[models.JobState]int
}

func (c *stubCounter) CountProcessesByState() (map[models.ProcessState]int, error) {
	return c.processes, nil
}

func (c *stubCounter) CountJobsByState() (map[models.JobState]int, error) {
	return c.jobs, nil
}

func TestGetPrometheusMetrics(t *testing.T) {
	counter := &stubCounter{
		processes: map[models.ProcessState]int{models.ProcessStateExecuting: 3},
		jobs:      map[models.JobState]int{models.JobStateActive: 2},
	}
	monitor := NewJobMonitor(nil, time.Second)
	monitor.Track(&engine.ProcessContext{
		ProcessID: "proc-1",
		Job:       &models.JobModel{JobID: "job-1"},
	})

	out := NewMetricsExporter(counter, monitor).GetPrometheusMetrics()
	for _, want := range []string{
		`gateway_processes{state="EXECUTING"} 3`,
		`gateway_jobs{state="ACTIVE"} 2`,
		"gateway_monitored_jobs 1",
		"# TYPE gateway_processes gauge",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q:\n%s", want, out)
		}
	}
}
