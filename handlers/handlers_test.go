package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

func localContext(t *testing.T) *engine.ProcessContext {
	t.Helper()
	work := filepath.Join(t.TempDir(), "proc-1")
	return &engine.ProcessContext{
		ProcessID:          "proc-1",
		SubmissionProtocol: models.SubmissionProtocolLocal,
		Process:            &models.ProcessModel{ProcessID: "proc-1"},
		WorkingDir:         work,
		InputDir:           work,
		OutputDir:          work,
		StdoutLocation:     filepath.Join(work, "app.stdout"),
		StderrLocation:     filepath.Join(work, "app.stderr"),
	}
}

func TestEnvSetupCreatesLocalDirectories(t *testing.T) {
	pctx := localContext(t)
	h := &EnvSetup{}
	if err := h.Invoke(context.Background(), &engine.TaskContext{Parent: pctx}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if fi, err := os.Stat(pctx.WorkingDir); err != nil || !fi.IsDir() {
		t.Fatalf("working dir not created: %v", err)
	}
}

func TestDataStageInCopiesURIInputs(t *testing.T) {
	pctx := localContext(t)
	if err := os.MkdirAll(pctx.InputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "molecule.com")
	if err := os.WriteFile(src, []byte("input data"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	pctx.Process.Inputs = []models.InputDataObject{
		{Name: "input-file", Value: "file://" + src, Type: models.DataTypeURI},
		{Name: "param", Value: "42", Type: models.DataTypeInteger},
	}

	h := &DataStageIn{}
	if err := h.Invoke(context.Background(), &engine.TaskContext{Parent: pctx}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	staged, err := os.ReadFile(filepath.Join(pctx.InputDir, "molecule.com"))
	if err != nil {
		t.Fatalf("staged input missing: %v", err)
	}
	if string(staged) != "input data" {
		t.Fatalf("staged content = %q", staged)
	}
}

func TestDataStageOutCollectsOutputs(t *testing.T) {
	pctx := localContext(t)
	if err := os.MkdirAll(pctx.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(pctx.StdoutLocation, []byte("job output"), 0o644); err != nil {
		t.Fatalf("write stdout: %v", err)
	}
	result := filepath.Join(pctx.OutputDir, "result.dat")
	if err := os.WriteFile(result, []byte("result"), 0o644); err != nil {
		t.Fatalf("write result: %v", err)
	}
	pctx.Process.Outputs = []models.OutputDataObject{
		{Name: "result", Value: result, Type: models.DataTypeURI},
	}

	h := &DataStageOut{StagingDir: t.TempDir()}
	if err := h.Invoke(context.Background(), &engine.TaskContext{Parent: pctx}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	destDir := filepath.Join(h.StagingDir, pctx.ProcessID)
	for _, name := range []string{"app.stdout", "result.dat"} {
		if _, err := os.Stat(filepath.Join(destDir, name)); err != nil {
			t.Errorf("staged output %s missing: %v", name, err)
		}
	}
	// Missing stderr is skipped, not an error; nothing staged for it.
	if _, err := os.Stat(filepath.Join(destDir, "app.stderr")); err == nil {
		t.Error("unexpected staged stderr for job that produced none")
	}
}
