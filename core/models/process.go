package models

import "time"

// ProcessModel is one execution attempt of an experiment's application
// on a specific compute resource.
type ProcessModel struct {
	ProcessID               string
	ExperimentID            string
	ApplicationDeploymentID string
	ApplicationInterfaceID  string
	ComputeResourceID       string
	ResourceSchedule        ComputationalResourceScheduling
	// TaskDAG is the ordered list of task IDs, comma-separated.
	TaskDAG                 string
	Statuses                []ProcessStatus
	Errors                  []ErrorModel
	Tasks                   []*TaskModel
	Inputs                  []InputDataObject
	Outputs                 []OutputDataObject
	EnableEmailNotification bool
	EmailAddresses          []string
	CreatedAt               time.Time
}

// ProcessRef identifies a process within its experiment
type ProcessRef struct {
	ExperimentID string
	ProcessID    string
}

// ComputationalResourceScheduling carries the batch-queue request for a process
type ComputationalResourceScheduling struct {
	QueueName           string
	NodeCount           int
	TotalCPUCount       int
	WallTimeLimit       int // minutes
	TotalPhysicalMemory int // MB
}

// CurrentStatus returns the status with the latest timeOfStateChange,
// ties broken toward terminal states.
func (p *ProcessModel) CurrentStatus() *ProcessStatus {
	i := latestStatus(len(p.Statuses),
		func(i int) time.Time { return p.Statuses[i].TimeOfStateChange },
		func(i int) bool { return p.Statuses[i].State.IsTerminal() })
	if i < 0 {
		return nil
	}
	return &p.Statuses[i]
}

// Task returns the process's task with the given ID, or nil.
func (p *ProcessModel) Task(taskID string) *TaskModel {
	for _, t := range p.Tasks {
		if t.TaskID == taskID {
			return t
		}
	}
	return nil
}
