// Package unicore submits jobs to a UNICORE/X server through its REST
// job management API.
package unicore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hpc-gateway/core/descriptor"
	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

// Provider implements UNICORE job submission
type Provider struct {
	client *http.Client
}

// New creates a UNICORE provider
func New() *Provider {
	return &Provider{client: &http.Client{Timeout: 60 * time.Second}}
}

// Protocol implements engine.Provider
func (p *Provider) Protocol() models.JobSubmissionProtocol {
	return models.SubmissionProtocolUnicore
}

// jobRequest is the UNICORE REST job description
type jobRequest struct {
	Executable  string            `json:"Executable"`
	Arguments   []string          `json:"Arguments,omitempty"`
	Environment map[string]string `json:"Environment,omitempty"`
	Stdout      string            `json:"Stdout,omitempty"`
	Stderr      string            `json:"Stderr,omitempty"`
	Name        string            `json:"Name,omitempty"`
	Project     string            `json:"Project,omitempty"`
	Resources   *jobResources     `json:"Resources,omitempty"`
}

type jobResources struct {
	Queue   string `json:"Queue,omitempty"`
	Nodes   int    `json:"Nodes,omitempty"`
	CPUs    int    `json:"TotalCPUs,omitempty"`
	Runtime string `json:"Runtime,omitempty"`
	Memory  string `json:"Memory,omitempty"`
}

// Submit posts the job description to the UNICORE endpoint. The job
// URL returned in the Location header becomes the job id.
func (p *Provider) Submit(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	d, err := descriptor.CreateJobDescriptor(pctx, tctx)
	if err != nil {
		return err
	}
	endpoint, err := p.endpoint(pctx)
	if err != nil {
		return err
	}

	req := jobRequest{
		Executable: d.ExecutablePath,
		Arguments:  d.InputValues,
		Stdout:     d.StandardOutFile,
		Stderr:     d.StandardErrorFile,
		Name:       d.JobName,
		Project:    d.AccountString,
		Resources: &jobResources{
			Queue:   d.QueueName,
			Nodes:   d.Nodes,
			CPUs:    d.CPUCount,
			Runtime: d.MaxWallTime,
			Memory:  d.UsedMemory,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "encoding job description", Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/jobs", bytes.NewReader(body))
	if err != nil {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "building submission request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "submitting to " + endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: fmt.Sprintf("submission to %s returned %s", endpoint, resp.Status)}
	}
	jobURL := resp.Header.Get("Location")
	if jobURL == "" {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "submission response has no Location header"}
	}

	script, err := d.ToXML()
	if err != nil {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "rendering job descriptor", Err: err}
	}
	job := &models.JobModel{
		JobID:          jobURL,
		TaskID:         tctx.TaskID,
		ProcessID:      pctx.ProcessID,
		JobName:        d.JobName,
		JobDescription: script,
		WorkingDir:     pctx.WorkingDir,
		StdOutPath:     d.StandardOutFile,
		StdErrPath:     d.StandardErrorFile,
	}
	if err := pctx.Registry.CreateJob(job); err != nil {
		return &engine.DataAccessError{Msg: "recording job " + jobURL, Err: err}
	}
	pctx.Job = job
	tctx.Task.Jobs = append(tctx.Task.Jobs, job)
	return engine.SaveAndPublishJobStatus(pctx, job, models.JobStateSubmitted, "submitted to "+endpoint)
}

// Cancel aborts the job through its management URL
func (p *Provider) Cancel(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	if pctx.Job == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pctx.Job.JobID+"/actions/abort", strings.NewReader("{}"))
	if err != nil {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "building abort request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "aborting job " + pctx.Job.JobID, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: fmt.Sprintf("abort of %s returned %s", pctx.Job.JobID, resp.Status)}
	}
	return engine.SaveAndPublishJobStatus(pctx, pctx.Job, models.JobStateCanceled, "cancel requested")
}

// JobState reads the job's status resource
func (p *Provider) JobState(ctx context.Context, pctx *engine.ProcessContext, job *models.JobModel) (models.JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.JobID, nil)
	if err != nil {
		return "", &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "building status request", Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "reading status of job " + job.JobID, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return models.JobStateComplete, nil
	}
	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", &engine.RemoteSubmissionError{Protocol: "UNICORE", Msg: "decoding status of job " + job.JobID, Err: err}
	}
	switch strings.ToUpper(status.Status) {
	case "STAGINGIN", "QUEUED", "READY":
		return models.JobStateQueued, nil
	case "RUNNING", "STAGINGOUT":
		return models.JobStateActive, nil
	case "SUCCESSFUL":
		return models.JobStateComplete, nil
	case "FAILED":
		return models.JobStateFailed, nil
	default:
		return models.JobStateActive, nil
	}
}

// endpoint resolves the UNICORE server base URL from the catalog
func (p *Provider) endpoint(pctx *engine.ProcessContext) (string, error) {
	if pctx.SubmissionInterface == nil {
		return "", &engine.ConfigurationError{Msg: "no submission interface resolved for UNICORE process " + pctx.ProcessID}
	}
	sub, err := pctx.Catalog.GetUnicoreJobSubmission(pctx.SubmissionInterface.JobSubmissionInterfaceID)
	if err != nil {
		return "", &engine.DataAccessError{Msg: "loading UNICORE submission " + pctx.SubmissionInterface.JobSubmissionInterfaceID, Err: err}
	}
	if sub.UnicoreEndpointURL == "" {
		return "", &engine.ConfigurationError{Msg: "UNICORE submission " + sub.JobSubmissionInterfaceID + " has no endpoint URL"}
	}
	return strings.TrimRight(sub.UnicoreEndpointURL, "/"), nil
}
