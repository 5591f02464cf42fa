package models

import "time"

// ExperimentState represents the lifecycle state of an experiment
type ExperimentState string

const (
	ExperimentStateCreated    ExperimentState = "CREATED"
	ExperimentStateValidated  ExperimentState = "VALIDATED"
	ExperimentStateScheduled  ExperimentState = "SCHEDULED"
	ExperimentStateLaunched   ExperimentState = "LAUNCHED"
	ExperimentStateExecuting  ExperimentState = "EXECUTING"
	ExperimentStateCancelling ExperimentState = "CANCELLING"
	ExperimentStateCompleted  ExperimentState = "COMPLETED"
	ExperimentStateFailed     ExperimentState = "FAILED"
	ExperimentStateCanceled   ExperimentState = "CANCELED"
)

// ProcessState represents the lifecycle state of a process
type ProcessState string

const (
	ProcessStateCreated    ProcessState = "CREATED"
	ProcessStateValidated  ProcessState = "VALIDATED"
	ProcessStateScheduled  ProcessState = "SCHEDULED"
	ProcessStateLaunched   ProcessState = "LAUNCHED"
	ProcessStateExecuting  ProcessState = "EXECUTING"
	ProcessStateCancelling ProcessState = "CANCELLING"
	ProcessStateCompleted  ProcessState = "COMPLETED"
	ProcessStateFailed     ProcessState = "FAILED"
	ProcessStateCanceled   ProcessState = "CANCELED"
)

// TaskState represents the lifecycle state of a task
type TaskState string

const (
	TaskStateCreated   TaskState = "CREATED"
	TaskStateExecuting TaskState = "EXECUTING"
	TaskStateCompleted TaskState = "COMPLETED"
	TaskStateFailed    TaskState = "FAILED"
	TaskStateCanceled  TaskState = "CANCELED"
)

// JobState represents the state of a job on the remote resource manager
type JobState string

const (
	JobStateSubmitted JobState = "SUBMITTED"
	JobStateQueued    JobState = "QUEUED"
	JobStateActive    JobState = "ACTIVE"
	JobStateComplete  JobState = "COMPLETE"
	JobStateFailed    JobState = "FAILED"
	JobStateCanceled  JobState = "CANCELED"
)

// IsTerminal reports whether no further state changes are expected
func (s ExperimentState) IsTerminal() bool {
	return s == ExperimentStateCompleted || s == ExperimentStateFailed || s == ExperimentStateCanceled
}

// IsTerminal reports whether no further state changes are expected
func (s ProcessState) IsTerminal() bool {
	return s == ProcessStateCompleted || s == ProcessStateFailed || s == ProcessStateCanceled
}

// IsTerminal reports whether no further state changes are expected
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed || s == TaskStateCanceled
}

// IsTerminal reports whether no further state changes are expected
func (s JobState) IsTerminal() bool {
	return s == JobStateComplete || s == JobStateFailed || s == JobStateCanceled
}

// ExperimentStatus is one entry in an experiment's append-only status history
type ExperimentStatus struct {
	StatusID          string
	State             ExperimentState
	TimeOfStateChange time.Time
	Reason            string
}

// ProcessStatus is one entry in a process's append-only status history
type ProcessStatus struct {
	StatusID          string
	State             ProcessState
	TimeOfStateChange time.Time
	Reason            string
}

// TaskStatus is one entry in a task's append-only status history
type TaskStatus struct {
	StatusID          string
	State             TaskState
	TimeOfStateChange time.Time
	Reason            string
}

// JobStatus is one entry in a job's append-only status history
type JobStatus struct {
	StatusID          string
	State             JobState
	TimeOfStateChange time.Time
	Reason            string
}

// latestStatus picks the index of the status with the latest
// timeOfStateChange. Ties are broken in favor of terminal states so
// a COMPLETED/FAILED/CANCELED entry recorded in the same instant as a
// transient one wins.
func latestStatus(n int, timeAt func(int) time.Time, terminal func(int) bool) int {
	best := -1
	for i := 0; i < n; i++ {
		if best < 0 {
			best = i
			continue
		}
		t, bt := timeAt(i), timeAt(best)
		if t.After(bt) || (t.Equal(bt) && terminal(i) && !terminal(best)) {
			best = i
		}
	}
	return best
}
