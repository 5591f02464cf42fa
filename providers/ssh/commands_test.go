package ssh

import (
	"testing"

	"hpc-gateway/core/models"
)

func TestParseJobID(t *testing.T) {
	cases := []struct {
		name    string
		manager models.ResourceJobManagerType
		output  string
		want    string
	}{
		{"pbs bare id", models.ResourceJobManagerPBS, "123456.pbs01\n", "123456.pbs01"},
		{"pbs multi line", models.ResourceJobManagerPBS, "987.head\nnoise\n", "987.head"},
		{"slurm", models.ResourceJobManagerSlurm, "Submitted batch job 424242\n", "424242"},
		{"lsf", models.ResourceJobManagerLSF, "Job <8712> is submitted to queue <normal>.\n", "8712"},
		{"uge", models.ResourceJobManagerUGE, `Your job 55123 ("A99") has been submitted` + "\n", "55123"},
	}
	for _, tc := range cases {
		if got := parseJobID(tc.manager, tc.output); got != tc.want {
			t.Errorf("%s: parseJobID = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestParseJobState(t *testing.T) {
	cases := []struct {
		name    string
		manager models.ResourceJobManagerType
		output  string
		want    models.JobState
	}{
		{"slurm pending", models.ResourceJobManagerSlurm, "PENDING\n", models.JobStateQueued},
		{"slurm running", models.ResourceJobManagerSlurm, "RUNNING\n", models.JobStateActive},
		{"slurm completed", models.ResourceJobManagerSlurm, "COMPLETED\n", models.JobStateComplete},
		{"slurm failed", models.ResourceJobManagerSlurm, "FAILED\n", models.JobStateFailed},
		{"slurm cancelled", models.ResourceJobManagerSlurm, "CANCELLED\n", models.JobStateCanceled},
		{"lsf pend", models.ResourceJobManagerLSF, "JOBID  STAT\n8712   PEND\n", models.JobStateQueued},
		{"lsf run", models.ResourceJobManagerLSF, "8712 RUN normal\n", models.JobStateActive},
		{"lsf done", models.ResourceJobManagerLSF, "8712 DONE normal\n", models.JobStateComplete},
		{"pbs queued", models.ResourceJobManagerPBS, "123456.pbs01 user normal A99 -- 1 1 -- 1:15 Q 00:00\n", models.JobStateQueued},
		{"pbs running", models.ResourceJobManagerPBS, "123456.pbs01 user normal A99 1234 1 1 -- 1:15 R 00:02\n", models.JobStateActive},
		{"pbs complete", models.ResourceJobManagerPBS, "123456.pbs01 user normal A99 1234 1 1 -- 1:15 C 01:10\n", models.JobStateComplete},
		{"unknown keeps polling", models.ResourceJobManagerSlurm, "garbage\n", models.JobStateActive},
	}
	for _, tc := range cases {
		if got := parseJobState(tc.manager, tc.output); got != tc.want {
			t.Errorf("%s: parseJobState = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestJobManagerCommand(t *testing.T) {
	slurm := &models.ResourceJobManager{Type: models.ResourceJobManagerSlurm}
	if got := jobManagerCommand(slurm, models.JobManagerCommandSubmission); got != "sbatch" {
		t.Errorf("stock slurm submission = %q, want sbatch", got)
	}

	withBin := &models.ResourceJobManager{
		Type:              models.ResourceJobManagerSlurm,
		JobManagerBinPath: "/opt/slurm/bin/",
	}
	if got := jobManagerCommand(withBin, models.JobManagerCommandSubmission); got != "/opt/slurm/bin/sbatch" {
		t.Errorf("bin-path slurm submission = %q", got)
	}

	custom := &models.ResourceJobManager{
		Type: models.ResourceJobManagerPBS,
		JobManagerCommands: map[models.JobManagerCommand]string{
			models.JobManagerCommandSubmission: "/usr/local/bin/qsub-wrapper",
		},
	}
	if got := jobManagerCommand(custom, models.JobManagerCommandSubmission); got != "/usr/local/bin/qsub-wrapper" {
		t.Errorf("catalog template = %q", got)
	}

	if got := jobManagerCommand(nil, models.JobManagerCommandSubmission); got != "qsub" {
		t.Errorf("nil manager defaults to PBS qsub, got %q", got)
	}
}
