package models

import "time"

// JobModel is one submission of a process's job-submission task to a
// remote resource manager. The (JobID, TaskID) pair is unique; JobID
// is only assigned once the submission protocol returns a handle.
type JobModel struct {
	JobID          string
	TaskID         string
	ProcessID      string
	JobName        string
	JobDescription string // rendered submission script
	WorkingDir     string
	StdOutPath     string
	StdErrPath     string
	ExitCode       int
	Statuses       []JobStatus
	CreatedAt      time.Time
}

// CurrentStatus returns the status with the latest timeOfStateChange,
// ties broken toward terminal states.
func (j *JobModel) CurrentStatus() *JobStatus {
	i := latestStatus(len(j.Statuses),
		func(i int) time.Time { return j.Statuses[i].TimeOfStateChange },
		func(i int) bool { return j.Statuses[i].State.IsTerminal() })
	if i < 0 {
		return nil
	}
	return &j.Statuses[i]
}
