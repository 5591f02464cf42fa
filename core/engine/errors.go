package engine

import "fmt"

// ConfigurationError reports missing or ambiguous provider, handler or
// parallelism-prefix configuration. It is fatal to the current process
// attempt and never retried automatically.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DataAccessError reports a registry read/write failure. It may be
// retried by an external recovery pass.
type DataAccessError struct {
	Msg string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access error: %s: %v", e.Msg, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// RemoteSubmissionError reports a failure during job submission by a
// protocol-specific provider.
type RemoteSubmissionError struct {
	Protocol string
	Msg      string
	Err      error
}

func (e *RemoteSubmissionError) Error() string {
	return fmt.Sprintf("remote submission error (%s): %s: %v", e.Protocol, e.Msg, e.Err)
}

func (e *RemoteSubmissionError) Unwrap() error { return e.Err }

// CoordinationError reports a missing delivery-tag node or a failed
// cancel-node operation. Fatal to recovery flows.
type CoordinationError struct {
	Path string
	Msg  string
	Err  error
}

func (e *CoordinationError) Error() string {
	return fmt.Sprintf("coordination error at %s: %s: %v", e.Path, e.Msg, e.Err)
}

func (e *CoordinationError) Unwrap() error { return e.Err }

// Error is the unified error returned across the engine boundary.
// Callers see only this type; the wrapped cause carries the taxonomy.
type Error struct {
	ExperimentID string
	ProcessID    string
	TaskID       string
	Msg          string
	Err          error
}

func (e *Error) Error() string {
	s := "engine error"
	if e.ExperimentID != "" {
		s += " [expId: " + e.ExperimentID
		if e.ProcessID != "" {
			s += ", processId: " + e.ProcessID
		}
		if e.TaskID != "" {
			s += ", taskId: " + e.TaskID
		}
		s += "]"
	}
	s += ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }
