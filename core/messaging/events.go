package messaging

import (
	"time"

	"hpc-gateway/core/models"

	"github.com/google/uuid"
)

// MessageType discriminates the event payload carried by a MessageContext
type MessageType string

const (
	MessageTypeExperiment MessageType = "EXPERIMENT"
	MessageTypeProcess    MessageType = "PROCESS"
	MessageTypeTask       MessageType = "TASK"
	MessageTypeJob        MessageType = "JOB"
)

// ProcessIdentifier locates a process in the catalog hierarchy
type ProcessIdentifier struct {
	ProcessID    string `json:"process_id"`
	ExperimentID string `json:"experiment_id"`
	GatewayID    string `json:"gateway_id"`
}

// TaskIdentifier locates a task in the catalog hierarchy
type TaskIdentifier struct {
	TaskID       string `json:"task_id"`
	ProcessID    string `json:"process_id"`
	ExperimentID string `json:"experiment_id"`
	GatewayID    string `json:"gateway_id"`
}

// JobIdentifier locates a job in the catalog hierarchy
type JobIdentifier struct {
	JobID        string `json:"job_id"`
	TaskID       string `json:"task_id"`
	ProcessID    string `json:"process_id"`
	ExperimentID string `json:"experiment_id"`
	GatewayID    string `json:"gateway_id"`
}

// ExperimentStatusChangeEvent reports an experiment state transition
type ExperimentStatusChangeEvent struct {
	State        models.ExperimentState `json:"state"`
	ExperimentID string                 `json:"experiment_id"`
	GatewayID    string                 `json:"gateway_id"`
}

// ProcessStatusChangeEvent reports a process state transition
type ProcessStatusChangeEvent struct {
	State           models.ProcessState `json:"state"`
	ProcessIdentity ProcessIdentifier   `json:"process_identity"`
}

// TaskStatusChangeEvent reports a task state transition
type TaskStatusChangeEvent struct {
	State        models.TaskState `json:"state"`
	TaskIdentity TaskIdentifier   `json:"task_identity"`
}

// JobStatusChangeEvent reports a job state transition
type JobStatusChangeEvent struct {
	State       models.JobState `json:"state"`
	JobIdentity JobIdentifier   `json:"job_identity"`
}

// MessageContext wraps a typed status-change event with routing metadata
type MessageContext struct {
	Event       interface{} `json:"event"`
	Type        MessageType `json:"type"`
	MessageID   string      `json:"message_id"`
	GatewayID   string      `json:"gateway_id"`
	UpdatedTime time.Time   `json:"updated_time"`
	DeliveryTag uint64      `json:"delivery_tag,omitempty"`
}

// NewMessageContext builds a MessageContext with a fresh message ID
// and the current timestamp.
func NewMessageContext(event interface{}, msgType MessageType, gatewayID string) MessageContext {
	return MessageContext{
		Event:       event,
		Type:        msgType,
		MessageID:   string(msgType) + "_" + uuid.New().String(),
		GatewayID:   gatewayID,
		UpdatedTime: time.Now(),
	}
}

// Publisher delivers status-change events to interested consumers.
// Publish is at-least-once: callers persist state before publishing
// and do not roll back on publish failure.
type Publisher interface {
	Publish(msg MessageContext) error
}
