// Package spec parses the YAML experiment specification submitted
// through the REST surface into catalog models.
package spec

import (
	"fmt"

	"hpc-gateway/core/models"

	"gopkg.in/yaml.v3"
)

// ExperimentSpec is the YAML experiment submission
type ExperimentSpec struct {
	Experiment ExperimentSection `yaml:"experiment"`
}

// ExperimentSection is the experiment block of the spec
type ExperimentSection struct {
	Name                 string           `yaml:"name"`
	GatewayID            string           `yaml:"gateway_id"`
	UserName             string           `yaml:"user_name"`
	Description          string           `yaml:"description"`
	ApplicationInterface string           `yaml:"application_interface"`
	Inputs               []InputSection   `yaml:"inputs"`
	Outputs              []OutputSection  `yaml:"outputs"`
	Processes            []ProcessSection `yaml:"processes"`
	Notification         *NotifySection   `yaml:"notification,omitempty"`
}

// InputSection is one typed experiment input
type InputSection struct {
	Name                  string `yaml:"name"`
	Value                 string `yaml:"value"`
	Type                  string `yaml:"type"`
	ApplicationArgument   string `yaml:"application_argument"`
	InputOrder            int    `yaml:"input_order"`
	RequiredToCommandLine bool   `yaml:"required_to_command_line"`
}

// OutputSection is one typed experiment output
type OutputSection struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
	Type  string `yaml:"type"`
}

// ProcessSection describes one execution attempt of the experiment
type ProcessSection struct {
	ComputeResource       string            `yaml:"compute_resource"`
	ApplicationDeployment string            `yaml:"application_deployment"`
	Scheduling            SchedulingSection `yaml:"scheduling"`
}

// SchedulingSection is the batch-queue request of a process
type SchedulingSection struct {
	Queue               string `yaml:"queue"`
	NodeCount           int    `yaml:"node_count"`
	TotalCPUCount       int    `yaml:"total_cpu_count"`
	WallTimeLimit       int    `yaml:"wall_time_limit"`
	TotalPhysicalMemory int    `yaml:"total_physical_memory"`
}

// NotifySection configures per-experiment email notification
type NotifySection struct {
	Enabled bool     `yaml:"enabled"`
	Emails  []string `yaml:"emails"`
}

// ParseExperimentSpec parses a YAML experiment spec into an
// experiment model with its processes.
func ParseExperimentSpec(specYAML string) (*models.ExperimentModel, error) {
	var s ExperimentSpec
	if err := yaml.Unmarshal([]byte(specYAML), &s); err != nil {
		return nil, fmt.Errorf("parsing experiment spec: %w", err)
	}
	exp := s.Experiment
	if exp.Name == "" {
		return nil, fmt.Errorf("experiment spec has no name")
	}
	if exp.GatewayID == "" {
		return nil, fmt.Errorf("experiment spec has no gateway_id")
	}
	if exp.ApplicationInterface == "" {
		return nil, fmt.Errorf("experiment spec has no application_interface")
	}
	if len(exp.Processes) == 0 {
		return nil, fmt.Errorf("experiment spec has no processes")
	}

	model := &models.ExperimentModel{
		ExperimentName:         exp.Name,
		GatewayID:              exp.GatewayID,
		UserName:               exp.UserName,
		Description:            exp.Description,
		ApplicationInterfaceID: exp.ApplicationInterface,
	}
	for _, in := range exp.Inputs {
		model.Inputs = append(model.Inputs, models.InputDataObject{
			Name:                  in.Name,
			Value:                 in.Value,
			Type:                  models.DataType(in.Type),
			ApplicationArgument:   in.ApplicationArgument,
			InputOrder:            in.InputOrder,
			RequiredToCommandLine: in.RequiredToCommandLine,
		})
	}
	for _, out := range exp.Outputs {
		model.Outputs = append(model.Outputs, models.OutputDataObject{
			Name:  out.Name,
			Value: out.Value,
			Type:  models.DataType(out.Type),
		})
	}

	for i, p := range exp.Processes {
		if p.ComputeResource == "" {
			return nil, fmt.Errorf("process %d has no compute_resource", i)
		}
		if p.ApplicationDeployment == "" {
			return nil, fmt.Errorf("process %d has no application_deployment", i)
		}
		proc := &models.ProcessModel{
			ComputeResourceID:       p.ComputeResource,
			ApplicationDeploymentID: p.ApplicationDeployment,
			ApplicationInterfaceID:  exp.ApplicationInterface,
			Inputs:                  model.Inputs,
			Outputs:                 model.Outputs,
			ResourceSchedule: models.ComputationalResourceScheduling{
				QueueName:           p.Scheduling.Queue,
				NodeCount:           p.Scheduling.NodeCount,
				TotalCPUCount:       p.Scheduling.TotalCPUCount,
				WallTimeLimit:       p.Scheduling.WallTimeLimit,
				TotalPhysicalMemory: p.Scheduling.TotalPhysicalMemory,
			},
		}
		if exp.Notification != nil {
			proc.EnableEmailNotification = exp.Notification.Enabled
			proc.EmailAddresses = exp.Notification.Emails
		}
		model.Processes = append(model.Processes, proc)
	}
	return model, nil
}
