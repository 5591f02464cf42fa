package monitoring

import (
	"fmt"
	"strings"

	"hpc-gateway/core/models"
)

// StatusCounter provides the latest-state counts the exporter reports.
// Implemented by repository.Registry.
type StatusCounter interface {
	CountProcessesByState() (map[models.ProcessState]int, error)
	CountJobsByState() (map[models.JobState]int, error)
}

// MetricsExporter exposes engine state in Prometheus text format
type MetricsExporter struct {
	counter StatusCounter
	monitor *JobMonitor
}

// NewMetricsExporter creates a metrics exporter
func NewMetricsExporter(counter StatusCounter, monitor *JobMonitor) *MetricsExporter {
	return &MetricsExporter{counter: counter, monitor: monitor}
}

// GetPrometheusMetrics returns metrics in Prometheus format
func (me *MetricsExporter) GetPrometheusMetrics() string {
	var b strings.Builder

	processCounts, err := me.counter.CountProcessesByState()
	if err == nil {
		b.WriteString("# HELP gateway_processes Processes by current state\n")
		b.WriteString("# TYPE gateway_processes gauge\n")
		for state, count := range processCounts {
			fmt.Fprintf(&b, "gateway_processes{state=%q} %d\n", state, count)
		}
	}

	jobCounts, err := me.counter.CountJobsByState()
	if err == nil {
		b.WriteString("# HELP gateway_jobs Jobs by current state\n")
		b.WriteString("# TYPE gateway_jobs gauge\n")
		for state, count := range jobCounts {
			fmt.Fprintf(&b, "gateway_jobs{state=%q} %d\n", state, count)
		}
	}

	if me.monitor != nil {
		b.WriteString("# HELP gateway_monitored_jobs Jobs currently polled by the monitor\n")
		b.WriteString("# TYPE gateway_monitored_jobs gauge\n")
		fmt.Fprintf(&b, "gateway_monitored_jobs %d\n", me.monitor.TrackedCount())
	}
	return b.String()
}
