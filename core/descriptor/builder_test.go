package descriptor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

func TestMaxWallTimeCalculator(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{45, "00:45:00"},
		{60, "1:00:00"},
		{75, "1:15:00"},
		{125, "2:05:00"},
		{1440, "24:00:00"},
	}
	for _, tc := range cases {
		if got := MaxWallTimeCalculator(tc.minutes); got != tc.want {
			t.Errorf("MaxWallTimeCalculator(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}

func TestMaxWallTimeCalculatorForLSF(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{45, "00:45"},
		{75, "1:15"},
		{125, "2:05"},
	}
	for _, tc := range cases {
		if got := MaxWallTimeCalculatorForLSF(tc.minutes); got != tc.want {
			t.Errorf("MaxWallTimeCalculatorForLSF(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}

func TestQoSForQueue(t *testing.T) {
	cases := []struct {
		qos   string
		queue string
		want  string
	}{
		{"normal=high,shared=low", "normal", "high"},
		{"normal=high,shared=low", "shared", "low"},
		{"normal=high", "gpu", ""},
		{"", "normal", ""},
		{"normal=high", "", ""},
	}
	for _, tc := range cases {
		if got := QoSForQueue(tc.qos, tc.queue); got != tc.want {
			t.Errorf("QoSForQueue(%q, %q) = %q, want %q", tc.qos, tc.queue, got, tc.want)
		}
	}
}

func TestCommandLineValuesOrderingAndURIs(t *testing.T) {
	inputs := []models.InputDataObject{
		{Name: "b", Value: "/data/in/b.txt", Type: models.DataTypeURI, InputOrder: 2, RequiredToCommandLine: true},
		{Name: "a", Value: "42", Type: models.DataTypeInteger, InputOrder: 1, RequiredToCommandLine: true, ApplicationArgument: "-n"},
		{Name: "hidden", Value: "x", Type: models.DataTypeString, InputOrder: 0},
		{Name: "c", Value: "/d/one.dat /d/two.dat", Type: models.DataTypeURICollection, InputOrder: 3, RequiredToCommandLine: true},
	}
	outputs := []models.OutputDataObject{
		{Name: "out", Value: "/results/out.txt", Type: models.DataTypeURI, RequiredToCommandLine: true, ApplicationArgument: "-o"},
	}
	got := commandLineValues(inputs, outputs)
	want := []string{"-n", "42", "b.txt", "one.dat two.dat", "-o", "out.txt"}
	if len(got) != len(want) {
		t.Fatalf("commandLineValues = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("commandLineValues[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestActiveReservationWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	pref := &models.ComputeResourcePreference{
		ReservationName:      "resv-1",
		ReservationStartTime: start,
		ReservationEndTime:   end,
	}
	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"before window", start.Add(-time.Minute), ""},
		{"at start", start, "resv-1"},
		{"inside", start.Add(12 * time.Hour), "resv-1"},
		{"at end", end, ""},
		{"after window", end.Add(time.Minute), ""},
	}
	for _, tc := range cases {
		if got := activeReservation(pref, tc.now); got != tc.want {
			t.Errorf("%s: activeReservation = %q, want %q", tc.name, got, tc.want)
		}
	}

	noWindow := &models.ComputeResourcePreference{ReservationName: "resv-2"}
	if got := activeReservation(noWindow, start); got != "" {
		t.Errorf("reservation without window = %q, want empty", got)
	}
}

func testProcessContext() *engine.ProcessContext {
	return &engine.ProcessContext{
		ProcessID: "proc-1",
		Process: &models.ProcessModel{
			ProcessID: "proc-1",
			ResourceSchedule: models.ComputationalResourceScheduling{
				QueueName:     "normal",
				NodeCount:     2,
				TotalCPUCount: 32,
				WallTimeLimit: 75,
			},
		},
		AppDeployment: &models.ApplicationDeploymentDescription{
			AppDeploymentID: "dep-1",
			ExecutablePath:  "/apps/solver/bin/solver",
		},
		AppInterface: &models.ApplicationInterfaceDescription{
			ApplicationName: "solver",
		},
		ComputeResource: &models.ComputeResourceDescription{HostName: "cluster.example.org"},
		WorkingDir:      "/scratch/proc-1",
		InputDir:        "/scratch/proc-1",
		OutputDir:       "/scratch/proc-1",
		StdoutLocation:  "/scratch/proc-1/solver.stdout",
		StderrLocation:  "/scratch/proc-1/solver.stderr",
	}
}

func testTaskContext(pctx *engine.ProcessContext) *engine.TaskContext {
	task := &models.TaskModel{
		TaskID:   "task-1",
		TaskType: models.TaskTypeJobSubmission,
		SubTask: models.SubTaskModel{
			JobSubmission: &models.JobSubmissionSubTask{Protocol: models.SubmissionProtocolSSH},
		},
	}
	return &engine.TaskContext{TaskID: task.TaskID, Task: task, Parent: pctx}
}

func TestCreateJobDescriptorScheduling(t *testing.T) {
	pctx := testProcessContext()
	d, err := CreateJobDescriptor(pctx, testTaskContext(pctx))
	if err != nil {
		t.Fatalf("CreateJobDescriptor: %v", err)
	}
	if d.QueueName != "normal" {
		t.Errorf("QueueName = %q, want normal", d.QueueName)
	}
	if d.Nodes != 2 || d.ProcessesPerNode != 16 || d.CPUCount != 32 {
		t.Errorf("Nodes/PPN/CPU = %d/%d/%d, want 2/16/32", d.Nodes, d.ProcessesPerNode, d.CPUCount)
	}
	if d.MaxWallTime != "1:15:00" {
		t.Errorf("MaxWallTime = %q, want 1:15:00", d.MaxWallTime)
	}
	if !strings.HasPrefix(d.JobName, "A") {
		t.Errorf("JobName = %q, want leading letter", d.JobName)
	}
	if d.ExecutablePath != "/apps/solver/bin/solver" {
		t.Errorf("ExecutablePath = %q", d.ExecutablePath)
	}
}

func TestCreateJobDescriptorLSFWallTime(t *testing.T) {
	pctx := testProcessContext()
	pctx.ResourceJobManager = &models.ResourceJobManager{Type: models.ResourceJobManagerLSF}
	d, err := CreateJobDescriptor(pctx, testTaskContext(pctx))
	if err != nil {
		t.Fatalf("CreateJobDescriptor: %v", err)
	}
	if d.MaxWallTime != "1:15" {
		t.Errorf("MaxWallTime = %q, want 1:15 for LSF", d.MaxWallTime)
	}
}

func TestCreateJobDescriptorTaskWallTimeOverride(t *testing.T) {
	pctx := testProcessContext()
	tctx := testTaskContext(pctx)
	tctx.Task.SubTask.JobSubmission.WallTimeLimit = 45
	d, err := CreateJobDescriptor(pctx, tctx)
	if err != nil {
		t.Fatalf("CreateJobDescriptor: %v", err)
	}
	if d.MaxWallTime != "00:45:00" {
		t.Errorf("MaxWallTime = %q, want task override 00:45:00", d.MaxWallTime)
	}
}

func TestCreateJobDescriptorParallelismPrefix(t *testing.T) {
	pctx := testProcessContext()
	pctx.AppDeployment.Parallelism = models.ParallelismMPI
	pctx.ResourceJobManager = &models.ResourceJobManager{
		Type: models.ResourceJobManagerSlurm,
		ParallelismPrefixes: map[models.ApplicationParallelismType]string{
			models.ParallelismMPI: "mpirun -np 32",
		},
	}
	d, err := CreateJobDescriptor(pctx, testTaskContext(pctx))
	if err != nil {
		t.Fatalf("CreateJobDescriptor: %v", err)
	}
	if d.JobSubmitter != "mpirun -np 32" {
		t.Errorf("JobSubmitter = %q, want mpirun -np 32", d.JobSubmitter)
	}
}

func TestCreateJobDescriptorMissingParallelismPrefix(t *testing.T) {
	pctx := testProcessContext()
	pctx.AppDeployment.Parallelism = models.ParallelismMPI
	pctx.ResourceJobManager = &models.ResourceJobManager{Type: models.ResourceJobManagerSlurm}
	_, err := CreateJobDescriptor(pctx, testTaskContext(pctx))
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestCreateJobDescriptorMissingPrefixWithNilManager(t *testing.T) {
	pctx := testProcessContext()
	pctx.AppDeployment.Parallelism = models.ParallelismOpenMP
	pctx.ResourceJobManager = nil
	_, err := CreateJobDescriptor(pctx, testTaskContext(pctx))
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError for unknown manager", err)
	}
}

func TestCreateJobDescriptorDeterministicExceptJobName(t *testing.T) {
	pctx := testProcessContext()
	d1, err := CreateJobDescriptor(pctx, testTaskContext(pctx))
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	d2, err := CreateJobDescriptor(pctx, testTaskContext(pctx))
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	d1.JobName, d2.JobName = "", ""
	s1 := RenderScript(d1, models.ResourceJobManagerSlurm)
	s2 := RenderScript(d2, models.ResourceJobManagerSlurm)
	if s1 != s2 {
		t.Fatalf("descriptors differ beyond job name:\n%s\n---\n%s", s1, s2)
	}
}

func TestCommandSubstitution(t *testing.T) {
	pctx := testProcessContext()
	pctx.AppDeployment.PreJobCommands = []models.CommandObject{
		{Command: "cp $inputDir/a.dat $workingDir/", CommandOrder: 1},
	}
	pctx.AppDeployment.PostJobCommands = []models.CommandObject{
		{Command: "tar -cf out.tar $outputDir", CommandOrder: 1},
	}
	d, err := CreateJobDescriptor(pctx, testTaskContext(pctx))
	if err != nil {
		t.Fatalf("CreateJobDescriptor: %v", err)
	}
	if got := d.PreJobCommands[0]; got != "cp /scratch/proc-1/a.dat /scratch/proc-1/" {
		t.Errorf("pre-job command = %q", got)
	}
	if got := d.PostJobCommands[0]; got != "tar -cf out.tar /scratch/proc-1" {
		t.Errorf("post-job command = %q", got)
	}
}

func TestOrderedCommands(t *testing.T) {
	cmds := []models.CommandObject{
		{Command: "third", CommandOrder: 3},
		{Command: "first", CommandOrder: 1},
		{Command: "second", CommandOrder: 2},
	}
	got := orderedCommands(cmds, nil)
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("orderedCommands = %v, want %v", got, want)
		}
	}
}
