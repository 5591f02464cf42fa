package models

import (
	"testing"
	"time"
)

func TestCurrentStatusPicksLatest(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &ProcessModel{Statuses: []ProcessStatus{
		{State: ProcessStateCreated, TimeOfStateChange: base},
		{State: ProcessStateExecuting, TimeOfStateChange: base.Add(2 * time.Second)},
		{State: ProcessStateScheduled, TimeOfStateChange: base.Add(time.Second)},
	}}
	cur := p.CurrentStatus()
	if cur == nil || cur.State != ProcessStateExecuting {
		t.Fatalf("CurrentStatus = %+v, want EXECUTING", cur)
	}
}

func TestCurrentStatusTieBreaksTowardTerminal(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &ProcessModel{Statuses: []ProcessStatus{
		{State: ProcessStateCompleted, TimeOfStateChange: at},
		{State: ProcessStateExecuting, TimeOfStateChange: at},
	}}
	if cur := p.CurrentStatus(); cur.State != ProcessStateCompleted {
		t.Fatalf("CurrentStatus = %s, want COMPLETED on tie", cur.State)
	}

	// Same tie with the terminal entry recorded first.
	p.Statuses[0], p.Statuses[1] = p.Statuses[1], p.Statuses[0]
	if cur := p.CurrentStatus(); cur.State != ProcessStateCompleted {
		t.Fatalf("CurrentStatus = %s, want COMPLETED regardless of order", cur.State)
	}
}

func TestCurrentStatusEmptyHistory(t *testing.T) {
	var e ExperimentModel
	if cur := e.CurrentStatus(); cur != nil {
		t.Fatalf("CurrentStatus on empty history = %+v, want nil", cur)
	}
}

func TestJobCurrentStatusTieTowardTerminal(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	j := &JobModel{Statuses: []JobStatus{
		{State: JobStateActive, TimeOfStateChange: at},
		{State: JobStateComplete, TimeOfStateChange: at},
	}}
	if cur := j.CurrentStatus(); cur.State != JobStateComplete {
		t.Fatalf("CurrentStatus = %s, want COMPLETE on tie", cur.State)
	}
}

func TestStateIsTerminal(t *testing.T) {
	terminal := []ProcessState{ProcessStateCompleted, ProcessStateFailed, ProcessStateCanceled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
	transient := []ProcessState{ProcessStateCreated, ProcessStateValidated, ProcessStateScheduled, ProcessStateExecuting, ProcessStateCancelling}
	for _, s := range transient {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}
