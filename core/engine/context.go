package engine

import (
	"context"
	"sync/atomic"

	"hpc-gateway/core/messaging"
	"hpc-gateway/core/models"
)

// Registry is the narrow persistence interface the engine drives the
// experiment catalog through. Implemented by core/repository.
type Registry interface {
	GetExperiment(id string) (*models.ExperimentModel, error)
	AddExperimentStatus(experimentID string, status models.ExperimentStatus) error
	AddExperimentError(experimentID string, errModel models.ErrorModel) error

	GetProcess(id string) (*models.ProcessModel, error)
	ListProcessIDs(experimentID string) ([]string, error)
	ListUnfinishedProcessRefs() ([]models.ProcessRef, error)
	AddProcessStatus(processID string, status models.ProcessStatus) error
	AddProcessError(processID string, errModel models.ErrorModel) error
	UpdateTaskDAG(processID, taskDAG string) error

	CreateTask(task *models.TaskModel) error
	GetTasksByProcess(processID string) ([]*models.TaskModel, error)
	AddTaskStatus(taskID string, status models.TaskStatus) error
	AddTaskError(taskID string, errModel models.ErrorModel) error

	CreateJob(job *models.JobModel) error
	GetJobsByProcess(processID string) ([]*models.JobModel, error)
	AddJobStatus(jobID, taskID string, status models.JobStatus) error
	UpdateJobExitCode(jobID, taskID string, exitCode int) error
}

// Catalog reads application-catalog descriptors
type Catalog interface {
	GetComputeResource(id string) (*models.ComputeResourceDescription, error)
	GetGatewayResourceProfile(gatewayID string) (*models.GatewayResourceProfile, error)
	GetApplicationDeployment(id string) (*models.ApplicationDeploymentDescription, error)
	GetApplicationInterface(id string) (*models.ApplicationInterfaceDescription, error)
	GetSSHJobSubmission(interfaceID string) (*models.SSHJobSubmission, error)
	GetLocalJobSubmission(interfaceID string) (*models.LocalSubmission, error)
	GetUnicoreJobSubmission(interfaceID string) (*models.UnicoreJobSubmission, error)
	GetCloudJobSubmission(interfaceID string) (*models.CloudJobSubmission, error)
}

// CredentialReader resolves credential-store tokens to key material
type CredentialReader interface {
	GetCredential(gatewayID, tokenID string) (*models.Credential, error)
}

// Coordinator is the distributed coordination layer tracking cancel
// requests and delivery tags. Implemented by core/coordination.
type Coordinator interface {
	CreateExperimentNode(ctx context.Context, experimentID string) error
	SetExperimentCancelRequest(ctx context.Context, experimentID string) error
	IsCancelRequested(ctx context.Context, experimentID string) (bool, error)
	AckCancelRequest(ctx context.Context, experimentID string) (bool, error)
	SetProcessDeliveryTag(ctx context.Context, experimentID, processID string, deliveryTag uint64) error
	GetProcessDeliveryTag(ctx context.Context, experimentID, processID string) (uint64, error)
	DeleteExperimentNode(ctx context.Context, experimentID string) error
}

// ExecutionMode selects when the outflow handlers run relative to the
// provider invocation.
type ExecutionMode string

const (
	// ModeSynchronous runs outflow handlers immediately after the
	// provider returns. Default.
	ModeSynchronous ExecutionMode = "SYNCHRONOUS"
	// ModeAsynchronous defers outflow to an explicit later call,
	// typically once the monitor observes the job's terminal state.
	ModeAsynchronous ExecutionMode = "ASYNCHRONOUS"
)

// Provider performs the actual remote job submission for one protocol
type Provider interface {
	Protocol() models.JobSubmissionProtocol
	// Submit builds and submits the job, records the JobModel and its
	// SUBMITTED status, and stores the model on the task context.
	Submit(ctx context.Context, tctx *TaskContext) error
	// Cancel issues the job-manager-specific cancel command for the
	// task's submitted job.
	Cancel(ctx context.Context, tctx *TaskContext) error
	// JobState asks the resource manager for the job's current state.
	JobState(ctx context.Context, pctx *ProcessContext, job *models.JobModel) (models.JobState, error)
}

// Handler is one pre/post-processing step run around the provider
type Handler interface {
	TaskType() models.TaskType
	Invoke(ctx context.Context, tctx *TaskContext) error
}

// ProcessContext is the in-memory, per-execution-attempt aggregate for
// one process. It is reconstructed from persisted models at the start
// of every execution or recovery attempt and discarded at completion,
// cancellation or hand-over; nothing in it is persisted directly.
type ProcessContext struct {
	ProcessID    string
	ExperimentID string
	GatewayID    string
	TokenID      string

	Process         *models.ProcessModel
	GatewayProfile  *models.GatewayResourceProfile
	Preference      *models.ComputeResourcePreference
	ComputeResource *models.ComputeResourceDescription
	AppDeployment   *models.ApplicationDeploymentDescription
	AppInterface    *models.ApplicationInterfaceDescription

	// Resolved by the provider/handler scheduler.
	SubmissionProtocol  models.JobSubmissionProtocol
	SubmissionInterface *models.JobSubmissionInterface
	// ResourceJobManager is nil when the catalog has no record for
	// the selected interface; callers treat nil as "unknown manager".
	ResourceJobManager *models.ResourceJobManager
	Provider           Provider
	InHandlers         []Handler
	OutHandlers        []Handler
	ExecutionMode      ExecutionMode

	WorkingDir     string
	InputDir       string
	OutputDir      string
	StdoutLocation string
	StderrLocation string

	// MonitorEmailAddress is set when job monitoring for the selected
	// protocol is email based.
	MonitorEmailAddress string
	NotificationEmails  []string

	// DeliveryTag is the coordination-layer delivery tag observed when
	// the context was populated. A different tag recorded later means
	// the process was re-delivered to another engine instance.
	DeliveryTag uint64

	Job *models.JobModel

	Registry    Registry
	Catalog     Catalog
	Credentials CredentialReader
	Publisher   messaging.Publisher
	Coordinator Coordinator

	// Current in-memory process status; persisted copies live in
	// Process.Statuses.
	ProcessStatus models.ProcessStatus

	cancelled  atomic.Bool
	handedOver atomic.Bool
}

// SetCancelled marks the context as cancel-requested. Observed
// cooperatively at interrupt points.
func (p *ProcessContext) SetCancelled() { p.cancelled.Store(true) }

// IsCancelled reports whether a cancel request has been observed
func (p *ProcessContext) IsCancelled() bool { return p.cancelled.Load() }

// SetHandedOver marks the context as handed over to another engine
// instance. A hand-over is an interrupt but not an error.
func (p *ProcessContext) SetHandedOver() { p.handedOver.Store(true) }

// IsHandedOver reports whether the process was handed over
func (p *ProcessContext) IsHandedOver() bool { return p.handedOver.Load() }

// IsInterrupted reports whether execution should stop at the next
// interrupt point, for either cause.
func (p *ProcessContext) IsInterrupted() bool {
	return p.IsCancelled() || p.IsHandedOver()
}

// JobSubmissionTask returns the process's job-submission task model,
// or nil when none has been created yet.
func (p *ProcessContext) JobSubmissionTask() *models.TaskModel {
	for _, t := range p.Process.Tasks {
		if t.TaskType == models.TaskTypeJobSubmission {
			return t
		}
	}
	return nil
}

// TaskContext is the per-task view handed to handlers and providers
type TaskContext struct {
	TaskID string
	Task   *models.TaskModel
	Parent *ProcessContext

	// Current in-memory task status; persisted copies live in
	// Task.Statuses.
	TaskStatus models.TaskStatus
}
