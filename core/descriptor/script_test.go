package descriptor

import (
	"strings"
	"testing"

	"hpc-gateway/core/models"
)

func scriptDescriptor() *JobDescriptor {
	return &JobDescriptor{
		JobName:            "A12345",
		QueueName:          "normal",
		AccountString:      "TG-ABC123",
		MaxWallTime:        "1:15:00",
		Nodes:              2,
		ProcessesPerNode:   16,
		CPUCount:           32,
		StandardOutFile:    "/scratch/p1/app.stdout",
		StandardErrorFile:  "/scratch/p1/app.stderr",
		WorkingDirectory:   "/scratch/p1",
		ExecutablePath:     "/apps/bin/app",
		InputValues:        []string{"-n", "42"},
		ModuleLoadCommands: []string{"module load gcc"},
		PreJobCommands:     []string{"echo start"},
		PostJobCommands:    []string{"echo done"},
		ShellName:          "/bin/bash",
		AllEnvExport:       true,
	}
}

func mustContain(t *testing.T, script string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(script, w) {
			t.Errorf("script missing %q:\n%s", w, script)
		}
	}
}

func TestRenderScriptPBS(t *testing.T) {
	script := RenderScript(scriptDescriptor(), models.ResourceJobManagerPBS)
	mustContain(t, script,
		"#!/bin/bash",
		"#PBS -N A12345",
		"#PBS -q normal",
		"#PBS -A TG-ABC123",
		"#PBS -l walltime=1:15:00",
		"#PBS -l nodes=2:ppn=16",
		"#PBS -o /scratch/p1/app.stdout",
		"#PBS -e /scratch/p1/app.stderr",
		"#PBS -V",
		"module load gcc",
		"cd /scratch/p1",
		"echo start",
		"/apps/bin/app -n 42",
		"echo done",
	)
}

func TestRenderScriptSlurm(t *testing.T) {
	script := RenderScript(scriptDescriptor(), models.ResourceJobManagerSlurm)
	mustContain(t, script,
		"#SBATCH -J A12345",
		"#SBATCH -p normal",
		"#SBATCH -t 1:15:00",
		"#SBATCH -N 2",
		"#SBATCH -n 32",
		"#SBATCH --export=ALL",
	)
	if strings.Contains(script, "#PBS") {
		t.Errorf("slurm script carries PBS directives:\n%s", script)
	}
}

func TestRenderScriptLSF(t *testing.T) {
	script := RenderScript(scriptDescriptor(), models.ResourceJobManagerLSF)
	mustContain(t, script,
		"#BSUB -J A12345",
		"#BSUB -q normal",
		"#BSUB -W 1:15:00",
		"#BSUB -n 32",
		"#BSUB -R \"span[ptile=16]\"",
	)
}

func TestRenderScriptUGE(t *testing.T) {
	script := RenderScript(scriptDescriptor(), models.ResourceJobManagerUGE)
	mustContain(t, script,
		"#$ -N A12345",
		"#$ -q normal",
		"#$ -l h_rt=1:15:00",
		"#$ -V",
	)
}

func TestRenderScriptForkRedirectsInline(t *testing.T) {
	script := RenderScript(scriptDescriptor(), models.ResourceJobManagerFork)
	mustContain(t, script, "/apps/bin/app -n 42 1>/scratch/p1/app.stdout 2>/scratch/p1/app.stderr")
	for _, directive := range []string{"#PBS", "#SBATCH", "#BSUB", "#$ "} {
		if strings.Contains(script, directive) {
			t.Errorf("fork script carries %q directives:\n%s", directive, script)
		}
	}
}

func TestRenderScriptJobSubmitterPrefix(t *testing.T) {
	d := scriptDescriptor()
	d.JobSubmitter = "mpirun -np 32"
	script := RenderScript(d, models.ResourceJobManagerSlurm)
	mustContain(t, script, "mpirun -np 32 /apps/bin/app -n 42")
}

func TestRenderScriptMailDirectives(t *testing.T) {
	d := scriptDescriptor()
	d.MailAddress = "monitor@example.org"
	script := RenderScript(d, models.ResourceJobManagerSlurm)
	mustContain(t, script,
		"#SBATCH --mail-user=monitor@example.org",
		"#SBATCH --mail-type=ALL",
	)
}
