package models

import "time"

// ExperimentModel is the root entity of the catalog: one user request
// to run an application, realized by one or more processes.
type ExperimentModel struct {
	ExperimentID           string
	GatewayID              string
	UserName               string
	ExperimentName         string
	Description            string
	ApplicationInterfaceID string
	Inputs                 []InputDataObject
	Outputs                []OutputDataObject
	Statuses               []ExperimentStatus
	Errors                 []ErrorModel
	Processes              []*ProcessModel
	CreatedAt              time.Time
}

// CurrentStatus returns the status with the latest timeOfStateChange,
// ties broken toward terminal states. Nil when no status has been
// recorded yet.
func (e *ExperimentModel) CurrentStatus() *ExperimentStatus {
	i := latestStatus(len(e.Statuses),
		func(i int) time.Time { return e.Statuses[i].TimeOfStateChange },
		func(i int) bool { return e.Statuses[i].State.IsTerminal() })
	if i < 0 {
		return nil
	}
	return &e.Statuses[i]
}

// DataType is the declared type of an experiment/process input or output
type DataType string

const (
	DataTypeString        DataType = "STRING"
	DataTypeInteger       DataType = "INTEGER"
	DataTypeFloat         DataType = "FLOAT"
	DataTypeURI           DataType = "URI"
	DataTypeURICollection DataType = "URI_COLLECTION"
	DataTypeStdout        DataType = "STDOUT"
	DataTypeStderr        DataType = "STDERR"
)

// InputDataObject is a typed input value with command-line placement metadata
type InputDataObject struct {
	Name                string
	Value               string
	Type                DataType
	ApplicationArgument string
	InputOrder          int
	// RequiredToCommandLine marks inputs that appear on the
	// submitted command line, in InputOrder position.
	RequiredToCommandLine bool
}

// OutputDataObject is a typed output value
type OutputDataObject struct {
	Name                  string
	Value                 string
	Type                  DataType
	ApplicationArgument   string
	RequiredToCommandLine bool
}
