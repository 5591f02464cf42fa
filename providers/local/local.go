// Package local submits jobs as forked processes on the engine host.
// The fork is synchronous: Submit returns once the job finishes, so
// the job walks SUBMITTED, ACTIVE and its terminal state within one
// provider invocation.
package local

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"hpc-gateway/core/descriptor"
	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

// Provider implements LOCAL job submission
type Provider struct {
	mu      sync.Mutex
	running map[string]*exec.Cmd // job ID -> forked process
}

// New creates a local provider
func New() *Provider {
	return &Provider{running: make(map[string]*exec.Cmd)}
}

// Protocol implements engine.Provider
func (p *Provider) Protocol() models.JobSubmissionProtocol {
	return models.SubmissionProtocolLocal
}

// Submit builds the job descriptor, renders the shell script into the
// working directory and runs it to completion.
func (p *Provider) Submit(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	d, err := descriptor.CreateJobDescriptor(pctx, tctx)
	if err != nil {
		return err
	}
	script := descriptor.RenderScript(d, models.ResourceJobManagerFork)

	if err := os.MkdirAll(pctx.WorkingDir, 0o755); err != nil {
		return &engine.RemoteSubmissionError{Protocol: "LOCAL", Msg: "creating working directory " + pctx.WorkingDir, Err: err}
	}
	scriptPath := pctx.WorkingDir + "/" + d.JobName + ".sh"
	if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
		return &engine.RemoteSubmissionError{Protocol: "LOCAL", Msg: "writing job script " + scriptPath, Err: err}
	}

	cmd := exec.CommandContext(ctx, "/bin/bash", scriptPath)
	cmd.Dir = pctx.WorkingDir
	if err := cmd.Start(); err != nil {
		return &engine.RemoteSubmissionError{Protocol: "LOCAL", Msg: "starting job script " + scriptPath, Err: err}
	}

	jobID := strconv.Itoa(cmd.Process.Pid)
	job := &models.JobModel{
		JobID:          jobID,
		TaskID:         tctx.TaskID,
		ProcessID:      pctx.ProcessID,
		JobName:        d.JobName,
		JobDescription: script,
		WorkingDir:     pctx.WorkingDir,
		StdOutPath:     d.StandardOutFile,
		StdErrPath:     d.StandardErrorFile,
	}
	if err := pctx.Registry.CreateJob(job); err != nil {
		return &engine.DataAccessError{Msg: "recording job " + jobID, Err: err}
	}
	pctx.Job = job
	tctx.Task.Jobs = append(tctx.Task.Jobs, job)

	if err := engine.SaveAndPublishJobStatus(pctx, job, models.JobStateSubmitted, "forked on engine host"); err != nil {
		return err
	}
	if err := engine.SaveAndPublishJobStatus(pctx, job, models.JobStateActive, ""); err != nil {
		return err
	}

	p.mu.Lock()
	p.running[jobID] = cmd
	p.mu.Unlock()
	waitErr := cmd.Wait()
	p.mu.Lock()
	delete(p.running, jobID)
	p.mu.Unlock()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	job.ExitCode = exitCode
	if err := pctx.Registry.UpdateJobExitCode(jobID, tctx.TaskID, exitCode); err != nil {
		return &engine.DataAccessError{Msg: "recording exit code of job " + jobID, Err: err}
	}

	if pctx.IsCancelled() {
		return engine.SaveAndPublishJobStatus(pctx, job, models.JobStateCanceled, "cancel requested")
	}
	if waitErr != nil {
		if err := engine.SaveAndPublishJobStatus(pctx, job, models.JobStateFailed, waitErr.Error()); err != nil {
			return err
		}
		return &engine.RemoteSubmissionError{Protocol: "LOCAL", Msg: "job " + jobID + " exited with code " + strconv.Itoa(exitCode), Err: waitErr}
	}
	return engine.SaveAndPublishJobStatus(pctx, job, models.JobStateComplete, "")
}

// Cancel kills the forked process if it is still running
func (p *Provider) Cancel(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	if pctx.Job == nil {
		return nil
	}
	p.mu.Lock()
	cmd, ok := p.running[pctx.Job.JobID]
	p.mu.Unlock()
	if !ok || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return &engine.RemoteSubmissionError{Protocol: "LOCAL", Msg: "killing job " + pctx.Job.JobID, Err: err}
	}
	return nil
}

// JobState reports ACTIVE while the fork is running, the recorded
// state afterwards.
func (p *Provider) JobState(ctx context.Context, pctx *engine.ProcessContext, job *models.JobModel) (models.JobState, error) {
	p.mu.Lock()
	_, ok := p.running[job.JobID]
	p.mu.Unlock()
	if ok {
		return models.JobStateActive, nil
	}
	if cur := job.CurrentStatus(); cur != nil {
		return cur.State, nil
	}
	return models.JobStateComplete, nil
}
