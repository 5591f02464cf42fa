package models

import "time"

// TaskType discriminates the sub-task model carried by a TaskModel
type TaskType string

const (
	TaskTypeEnvSetup      TaskType = "ENV_SETUP"
	TaskTypeDataStageIn   TaskType = "DATA_STAGE_IN"
	TaskTypeDataStageOut  TaskType = "DATA_STAGE_OUT"
	TaskTypeJobSubmission TaskType = "JOB_SUBMISSION"
	TaskTypeMonitor       TaskType = "MONITOR"
)

// TaskModel is a sub-step of a process: environment setup, data
// staging, job submission or monitoring.
type TaskModel struct {
	TaskID          string
	ParentProcessID string
	TaskType        TaskType
	SubTask         SubTaskModel
	Statuses        []TaskStatus
	Errors          []ErrorModel
	Jobs            []*JobModel
	CreatedAt       time.Time
}

// SubTaskModel is the task-type-specific payload
type SubTaskModel struct {
	JobSubmission *JobSubmissionSubTask
	DataStaging   *DataStagingSubTask
	EnvSetup      *EnvironmentSetupSubTask
	Monitor       *MonitorSubTask
}

// JobSubmissionSubTask parameterizes a JOB_SUBMISSION task
type JobSubmissionSubTask struct {
	Protocol    JobSubmissionProtocol
	MonitorMode MonitorMode
	// WallTimeLimit overrides the process scheduling wall time when >0.
	WallTimeLimit int
}

// DataStagingSubTask parameterizes DATA_STAGE_IN/OUT tasks
type DataStagingSubTask struct {
	Source      string
	Destination string
}

// EnvironmentSetupSubTask parameterizes an ENV_SETUP task
type EnvironmentSetupSubTask struct {
	Location string
	Protocol JobSubmissionProtocol
}

// MonitorSubTask parameterizes a MONITOR task
type MonitorSubTask struct {
	MonitorMode MonitorMode
}

// CurrentStatus returns the status with the latest timeOfStateChange,
// ties broken toward terminal states.
func (t *TaskModel) CurrentStatus() *TaskStatus {
	i := latestStatus(len(t.Statuses),
		func(i int) time.Time { return t.Statuses[i].TimeOfStateChange },
		func(i int) bool { return t.Statuses[i].State.IsTerminal() })
	if i < 0 {
		return nil
	}
	return &t.Statuses[i]
}
