package engine

import (
	"log"
	"time"

	"hpc-gateway/core/messaging"
	"hpc-gateway/core/models"

	"github.com/google/uuid"
)

// The save-and-publish helpers stamp the status time if unset, append
// it to the owning entity's status history and publish the matching
// status-change event. Persist and publish are sequential, not
// transactional: a publish failure after a successful persist is
// logged and reported, the persisted status stays (at-least-once
// delivery).

// SaveAndPublishProcessStatus records the context's current process status
func SaveAndPublishProcessStatus(pctx *ProcessContext) error {
	status := &pctx.ProcessStatus
	if status.StatusID == "" {
		status.StatusID = uuid.New().String()
	}
	if status.TimeOfStateChange.IsZero() {
		status.TimeOfStateChange = time.Now()
	}
	if err := pctx.Registry.AddProcessStatus(pctx.ProcessID, *status); err != nil {
		return &DataAccessError{Msg: "saving process status " + string(status.State), Err: err}
	}
	pctx.Process.Statuses = append(pctx.Process.Statuses, *status)

	event := messaging.ProcessStatusChangeEvent{
		State: status.State,
		ProcessIdentity: messaging.ProcessIdentifier{
			ProcessID:    pctx.ProcessID,
			ExperimentID: pctx.ExperimentID,
			GatewayID:    pctx.GatewayID,
		},
	}
	msg := messaging.NewMessageContext(event, messaging.MessageTypeProcess, pctx.GatewayID)
	if err := pctx.Publisher.Publish(msg); err != nil {
		log.Printf("Failed to publish process status %s for process %s: %v", status.State, pctx.ProcessID, err)
		return err
	}
	return nil
}

// SaveAndPublishTaskStatus records the context's current task status
func SaveAndPublishTaskStatus(tctx *TaskContext) error {
	status := &tctx.TaskStatus
	if status.StatusID == "" {
		status.StatusID = uuid.New().String()
	}
	if status.TimeOfStateChange.IsZero() {
		status.TimeOfStateChange = time.Now()
	}
	pctx := tctx.Parent
	if err := pctx.Registry.AddTaskStatus(tctx.TaskID, *status); err != nil {
		return &DataAccessError{Msg: "saving task status " + string(status.State), Err: err}
	}
	tctx.Task.Statuses = append(tctx.Task.Statuses, *status)

	event := messaging.TaskStatusChangeEvent{
		State: status.State,
		TaskIdentity: messaging.TaskIdentifier{
			TaskID:       tctx.TaskID,
			ProcessID:    pctx.ProcessID,
			ExperimentID: pctx.ExperimentID,
			GatewayID:    pctx.GatewayID,
		},
	}
	msg := messaging.NewMessageContext(event, messaging.MessageTypeTask, pctx.GatewayID)
	if err := pctx.Publisher.Publish(msg); err != nil {
		log.Printf("Failed to publish task status %s for task %s: %v", status.State, tctx.TaskID, err)
		return err
	}
	return nil
}

// SaveAndPublishJobStatus appends a status to the context's job
func SaveAndPublishJobStatus(pctx *ProcessContext, job *models.JobModel, state models.JobState, reason string) error {
	status := models.JobStatus{
		StatusID:          uuid.New().String(),
		State:             state,
		TimeOfStateChange: time.Now(),
		Reason:            reason,
	}
	if err := pctx.Registry.AddJobStatus(job.JobID, job.TaskID, status); err != nil {
		return &DataAccessError{Msg: "saving job status " + string(state), Err: err}
	}
	job.Statuses = append(job.Statuses, status)

	event := messaging.JobStatusChangeEvent{
		State: state,
		JobIdentity: messaging.JobIdentifier{
			JobID:        job.JobID,
			TaskID:       job.TaskID,
			ProcessID:    pctx.ProcessID,
			ExperimentID: pctx.ExperimentID,
			GatewayID:    pctx.GatewayID,
		},
	}
	msg := messaging.NewMessageContext(event, messaging.MessageTypeJob, pctx.GatewayID)
	if err := pctx.Publisher.Publish(msg); err != nil {
		log.Printf("Failed to publish job status %s for job %s: %v", state, job.JobID, err)
		return err
	}
	return nil
}

// SaveAndPublishExperimentStatus appends a status to the experiment
func SaveAndPublishExperimentStatus(reg Registry, pub messaging.Publisher, experimentID, gatewayID string, state models.ExperimentState, reason string) error {
	status := models.ExperimentStatus{
		StatusID:          uuid.New().String(),
		State:             state,
		TimeOfStateChange: time.Now(),
		Reason:            reason,
	}
	if err := reg.AddExperimentStatus(experimentID, status); err != nil {
		return &DataAccessError{Msg: "saving experiment status " + string(state), Err: err}
	}
	event := messaging.ExperimentStatusChangeEvent{
		State:        state,
		ExperimentID: experimentID,
		GatewayID:    gatewayID,
	}
	msg := messaging.NewMessageContext(event, messaging.MessageTypeExperiment, gatewayID)
	if err := pub.Publish(msg); err != nil {
		log.Printf("Failed to publish experiment status %s for experiment %s: %v", state, experimentID, err)
		return err
	}
	return nil
}

// SaveExperimentError appends the error record to the experiment
func SaveExperimentError(pctx *ProcessContext, errModel models.ErrorModel) error {
	errModel.ErrorID = uuid.New().String()
	errModel.CreatedAt = time.Now()
	if err := pctx.Registry.AddExperimentError(pctx.ExperimentID, errModel); err != nil {
		return &DataAccessError{Msg: "saving experiment error", Err: err}
	}
	return nil
}

// SaveProcessError appends the error record to the process
func SaveProcessError(pctx *ProcessContext, errModel models.ErrorModel) error {
	errModel.ErrorID = uuid.New().String()
	errModel.CreatedAt = time.Now()
	if err := pctx.Registry.AddProcessError(pctx.ProcessID, errModel); err != nil {
		return &DataAccessError{Msg: "saving process error", Err: err}
	}
	pctx.Process.Errors = append(pctx.Process.Errors, errModel)
	return nil
}

// SaveTaskError appends the error record to the task
func SaveTaskError(tctx *TaskContext, errModel models.ErrorModel) error {
	errModel.ErrorID = uuid.New().String()
	errModel.CreatedAt = time.Now()
	if err := tctx.Parent.Registry.AddTaskError(tctx.TaskID, errModel); err != nil {
		return &DataAccessError{Msg: "saving task error", Err: err}
	}
	tctx.Task.Errors = append(tctx.Task.Errors, errModel)
	return nil
}
