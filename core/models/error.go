package models

import "time"

// ErrorModel is an error record attached to an experiment, process or
// task. Error lists are append-only; records are never overwritten.
type ErrorModel struct {
	ErrorID             string
	CreatedAt           time.Time
	ActualErrorMessage  string
	UserFriendlyMessage string
	TransientOrPersist  bool
	RootCauseErrorIDs   []string
}
