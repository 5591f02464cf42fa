// Package handlers implements the pre/post-processing steps run
// around the provider invocation: environment setup and data staging.
package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
	sshprovider "hpc-gateway/providers/ssh"
)

// EnvSetup prepares the working, input and output directories on the
// execution target.
type EnvSetup struct{}

// TaskType implements engine.Handler
func (h *EnvSetup) TaskType() models.TaskType { return models.TaskTypeEnvSetup }

// Invoke creates the process directories. LOCAL targets get them on
// the engine host; SSH targets over a remote session. CLOUD and
// UNICORE targets manage their own workspace, so nothing is done.
func (h *EnvSetup) Invoke(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	switch pctx.SubmissionProtocol {
	case models.SubmissionProtocolLocal:
		for _, dir := range processDirs(pctx) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", dir, err)
			}
		}
		return nil
	case models.SubmissionProtocolSSH, models.SubmissionProtocolSSHFork:
		client, err := sshprovider.Connect(pctx)
		if err != nil {
			return err
		}
		defer client.Close()
		cmd := "mkdir -p " + strings.Join(processDirs(pctx), " ")
		if _, stderr, err := sshprovider.Run(client, cmd, nil); err != nil {
			return fmt.Errorf("creating remote directories: %s: %w", string(stderr), err)
		}
		return nil
	default:
		return nil
	}
}

// DataStageIn copies URI inputs into the process's input directory
type DataStageIn struct{}

// TaskType implements engine.Handler
func (h *DataStageIn) TaskType() models.TaskType { return models.TaskTypeDataStageIn }

func (h *DataStageIn) Invoke(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	for _, input := range pctx.Process.Inputs {
		switch input.Type {
		case models.DataTypeURI:
			if input.Value == "" {
				continue
			}
			if err := stageIn(pctx, input.Value); err != nil {
				return err
			}
		case models.DataTypeURICollection:
			for _, uri := range strings.Fields(input.Value) {
				if err := stageIn(pctx, uri); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// DataStageOut pulls the job's stdout/stderr and URI outputs into the
// local staging area once the job finishes.
type DataStageOut struct {
	// StagingDir is the local base directory for staged outputs;
	// files land under <StagingDir>/<processID>/.
	StagingDir string
}

// TaskType implements engine.Handler
func (h *DataStageOut) TaskType() models.TaskType { return models.TaskTypeDataStageOut }

func (h *DataStageOut) Invoke(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	destDir := path.Join(h.StagingDir, pctx.ProcessID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating staging directory %s: %w", destDir, err)
	}

	sources := []string{pctx.StdoutLocation, pctx.StderrLocation}
	for _, out := range pctx.Process.Outputs {
		if out.Type == models.DataTypeURI && out.Value != "" {
			sources = append(sources, out.Value)
		}
	}

	switch pctx.SubmissionProtocol {
	case models.SubmissionProtocolLocal:
		for _, src := range sources {
			if err := copyFile(localPath(src), path.Join(destDir, path.Base(src))); err != nil {
				// Missing stdout/stderr is not fatal, the job may
				// never have produced it.
				log.Printf("Skipping output %s of process %s: %v", src, pctx.ProcessID, err)
			}
		}
		return nil
	case models.SubmissionProtocolSSH, models.SubmissionProtocolSSHFork:
		client, err := sshprovider.Connect(pctx)
		if err != nil {
			return err
		}
		defer client.Close()
		for _, src := range sources {
			stdout, _, err := sshprovider.Run(client, "cat "+src, nil)
			if err != nil {
				log.Printf("Skipping output %s of process %s: %v", src, pctx.ProcessID, err)
				continue
			}
			dest := path.Join(destDir, path.Base(src))
			if err := os.WriteFile(dest, stdout, 0o644); err != nil {
				return fmt.Errorf("writing staged output %s: %w", dest, err)
			}
		}
		return nil
	default:
		return nil
	}
}

// stageIn copies one input into the input directory
func stageIn(pctx *engine.ProcessContext, uri string) error {
	src := localPath(uri)
	dest := path.Join(pctx.InputDir, path.Base(src))
	switch pctx.SubmissionProtocol {
	case models.SubmissionProtocolLocal:
		return copyFile(src, dest)
	case models.SubmissionProtocolSSH, models.SubmissionProtocolSSHFork:
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("reading input %s: %w", src, err)
		}
		client, err := sshprovider.Connect(pctx)
		if err != nil {
			return err
		}
		defer client.Close()
		if _, stderr, err := sshprovider.Run(client, "cat > "+dest, strings.NewReader(string(data))); err != nil {
			return fmt.Errorf("copying input to %s: %s: %w", dest, string(stderr), err)
		}
		return nil
	default:
		return nil
	}
}

func processDirs(pctx *engine.ProcessContext) []string {
	dirs := []string{pctx.WorkingDir}
	if pctx.InputDir != pctx.WorkingDir {
		dirs = append(dirs, pctx.InputDir)
	}
	if pctx.OutputDir != pctx.WorkingDir {
		dirs = append(dirs, pctx.OutputDir)
	}
	return dirs
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dest, err)
	}
	return out.Close()
}
