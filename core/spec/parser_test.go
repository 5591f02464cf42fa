package spec

import (
	"strings"
	"testing"

	"hpc-gateway/core/models"
)

const validSpec = `
experiment:
  name: gaussian-run-1
  gateway_id: seagrid
  user_name: alice
  application_interface: iface-gaussian
  inputs:
    - name: input-file
      value: file:///data/molecule.com
      type: URI
      input_order: 1
      required_to_command_line: true
  outputs:
    - name: log
      value: gaussian.log
      type: URI
  processes:
    - compute_resource: cr-stampede
      application_deployment: dep-gaussian-stampede
      scheduling:
        queue: normal
        node_count: 2
        total_cpu_count: 32
        wall_time_limit: 75
        total_physical_memory: 4096
  notification:
    enabled: true
    emails:
      - alice@example.org
`

func TestParseExperimentSpec(t *testing.T) {
	model, err := ParseExperimentSpec(validSpec)
	if err != nil {
		t.Fatalf("ParseExperimentSpec: %v", err)
	}
	if model.ExperimentName != "gaussian-run-1" || model.GatewayID != "seagrid" {
		t.Errorf("experiment = %q gateway = %q", model.ExperimentName, model.GatewayID)
	}
	if len(model.Inputs) != 1 || model.Inputs[0].Type != models.DataTypeURI || !model.Inputs[0].RequiredToCommandLine {
		t.Errorf("inputs = %+v", model.Inputs)
	}
	if len(model.Processes) != 1 {
		t.Fatalf("processes = %d, want 1", len(model.Processes))
	}
	proc := model.Processes[0]
	if proc.ComputeResourceID != "cr-stampede" || proc.ApplicationDeploymentID != "dep-gaussian-stampede" {
		t.Errorf("process bindings = %q / %q", proc.ComputeResourceID, proc.ApplicationDeploymentID)
	}
	if proc.ApplicationInterfaceID != "iface-gaussian" {
		t.Errorf("process interface = %q, want experiment's", proc.ApplicationInterfaceID)
	}
	sched := proc.ResourceSchedule
	if sched.QueueName != "normal" || sched.NodeCount != 2 || sched.TotalCPUCount != 32 || sched.WallTimeLimit != 75 {
		t.Errorf("schedule = %+v", sched)
	}
	if !proc.EnableEmailNotification || len(proc.EmailAddresses) != 1 {
		t.Errorf("notification not applied: %v %v", proc.EnableEmailNotification, proc.EmailAddresses)
	}
	if len(proc.Inputs) != 1 {
		t.Errorf("process inputs not inherited: %+v", proc.Inputs)
	}
}

func TestParseExperimentSpecValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{"missing name", dropLine("name: gaussian-run-1"), "no name"},
		{"missing gateway", dropLine("gateway_id: seagrid"), "no gateway_id"},
		{"missing interface", dropLine("application_interface: iface-gaussian"), "no application_interface"},
		{"missing compute resource", blankValue("cr-stampede"), "no compute_resource"},
		{"missing deployment", blankValue("dep-gaussian-stampede"), "no application_deployment"},
	}
	for _, tc := range cases {
		_, err := ParseExperimentSpec(tc.mutate(validSpec))
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: err = %v, want containing %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestParseExperimentSpecNoProcesses(t *testing.T) {
	noProc := `
experiment:
  name: x
  gateway_id: g
  application_interface: i
`
	_, err := ParseExperimentSpec(noProc)
	if err == nil || !strings.Contains(err.Error(), "no processes") {
		t.Fatalf("err = %v, want no processes", err)
	}
}

func TestParseExperimentSpecBadYAML(t *testing.T) {
	if _, err := ParseExperimentSpec(": not yaml ["); err == nil {
		t.Fatal("expected parse error")
	}
}

func blankValue(value string) func(string) string {
	return func(s string) string {
		return strings.ReplaceAll(s, value, `""`)
	}
}

func dropLine(line string) func(string) string {
	return func(s string) string {
		var out []string
		for _, l := range strings.Split(s, "\n") {
			if strings.Contains(l, line) {
				continue
			}
			out = append(out, l)
		}
		return strings.Join(out, "\n")
	}
}
