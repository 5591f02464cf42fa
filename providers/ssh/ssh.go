// Package ssh submits jobs over SSH to a remote resource manager.
// SSH targets hand the rendered script to the remote batch system
// (qsub, sbatch, bsub); SSH_FORK targets run it directly on the
// remote host.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"hpc-gateway/core/descriptor"
	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"

	"golang.org/x/crypto/ssh"
)

// Provider implements SSH and SSH_FORK job submission
type Provider struct {
	fork bool
}

// New creates a provider for batch submission over SSH
func New() *Provider { return &Provider{} }

// NewFork creates a provider that forks the script on the remote host
// instead of handing it to a batch system.
func NewFork() *Provider { return &Provider{fork: true} }

// Protocol implements engine.Provider
func (p *Provider) Protocol() models.JobSubmissionProtocol {
	if p.fork {
		return models.SubmissionProtocolSSHFork
	}
	return models.SubmissionProtocolSSH
}

// Submit renders the job script, copies it to the remote working
// directory and submits it to the resource manager (or forks it).
func (p *Provider) Submit(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	d, err := descriptor.CreateJobDescriptor(pctx, tctx)
	if err != nil {
		return err
	}
	managerType := models.ResourceJobManagerFork
	if !p.fork && pctx.ResourceJobManager != nil {
		managerType = pctx.ResourceJobManager.Type
	}
	script := descriptor.RenderScript(d, managerType)

	client, err := p.connect(pctx)
	if err != nil {
		return err
	}
	defer client.Close()

	scriptPath := pctx.WorkingDir + "/" + d.JobName + ".sh"
	setup := fmt.Sprintf("mkdir -p %s %s %s", pctx.WorkingDir, pctx.InputDir, pctx.OutputDir)
	if _, _, err := runRemote(client, setup, nil); err != nil {
		return &engine.RemoteSubmissionError{Protocol: string(p.Protocol()), Msg: "creating remote directories", Err: err}
	}
	if _, _, err := runRemote(client, "cat > "+scriptPath+" && chmod +x "+scriptPath, strings.NewReader(script)); err != nil {
		return &engine.RemoteSubmissionError{Protocol: string(p.Protocol()), Msg: "copying job script to " + scriptPath, Err: err}
	}

	var jobID string
	if p.fork {
		cmd := fmt.Sprintf("nohup %s >/dev/null 2>&1 & echo $!", scriptPath)
		stdout, stderr, err := runRemote(client, cmd, nil)
		if err != nil {
			return &engine.RemoteSubmissionError{Protocol: string(p.Protocol()), Msg: "forking job script: " + string(stderr), Err: err}
		}
		jobID = strings.TrimSpace(string(stdout))
	} else {
		cmd := jobManagerCommand(pctx.ResourceJobManager, models.JobManagerCommandSubmission) + " " + scriptPath
		stdout, stderr, err := runRemote(client, cmd, nil)
		if err != nil {
			return &engine.RemoteSubmissionError{Protocol: string(p.Protocol()), Msg: "submitting job script: " + string(stderr), Err: err}
		}
		jobID = parseJobID(managerType, string(stdout))
	}
	if jobID == "" {
		return &engine.RemoteSubmissionError{Protocol: string(p.Protocol()), Msg: "resource manager returned no job id"}
	}

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

	reason := "submitted to " + string(managerType)
	if p.fork {
		reason = "forked on " + pctx.ComputeResource.HostName
	}
	return engine.SaveAndPublishJobStatus(pctx, job, models.JobStateSubmitted, reason)
}

// Cancel runs the resource manager's deletion command (kill for fork
// targets) against the submitted job.
func (p *Provider) Cancel(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	if pctx.Job == nil {
		return nil
	}
	client, err := p.connect(pctx)
	if err != nil {
		return err
	}
	defer client.Close()

	var cmd string
	if p.fork {
		cmd = "kill " + pctx.Job.JobID
	} else {
		cmd = jobManagerCommand(pctx.ResourceJobManager, models.JobManagerCommandDeletion) + " " + pctx.Job.JobID
	}
	if _, stderr, err := runRemote(client, cmd, nil); err != nil {
		return &engine.RemoteSubmissionError{Protocol: string(p.Protocol()), Msg: "cancelling job " + pctx.Job.JobID + ": " + string(stderr), Err: err}
	}
	return engine.SaveAndPublishJobStatus(pctx, pctx.Job, models.JobStateCanceled, "cancel requested")
}

// JobState queries the resource manager for the job's state. A job no
// longer known to the manager is COMPLETE.
func (p *Provider) JobState(ctx context.Context, pctx *engine.ProcessContext, job *models.JobModel) (models.JobState, error) {
	client, err := p.connect(pctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if p.fork {
		stdout, _, _ := runRemote(client, "kill -0 "+job.JobID+" 2>/dev/null && echo RUNNING", nil)
		if strings.Contains(string(stdout), "RUNNING") {
			return models.JobStateActive, nil
		}
		return models.JobStateComplete, nil
	}

	managerType := models.ResourceJobManagerPBS
	if pctx.ResourceJobManager != nil {
		managerType = pctx.ResourceJobManager.Type
	}
	cmd := jobManagerCommand(pctx.ResourceJobManager, models.JobManagerCommandMonitoring) + " " + job.JobID
	stdout, _, err := runRemote(client, cmd, nil)
	if err != nil {
		// Finished jobs usually make the monitoring command fail.
		return models.JobStateComplete, nil
	}
	return parseJobState(managerType, string(stdout)), nil
}

// connect dials the submission target using the credential-store key
func (p *Provider) connect(pctx *engine.ProcessContext) (*ssh.Client, error) {
	return Connect(pctx)
}

// Connect dials the process's submission target using the
// credential-store key. Data-staging handlers share it for remote
// file operations.
func Connect(pctx *engine.ProcessContext) (*ssh.Client, error) {
	cred, err := pctx.Credentials.GetCredential(pctx.GatewayID, pctx.TokenID)
	if err != nil {
		return nil, &engine.DataAccessError{Msg: "resolving credential token " + pctx.TokenID, Err: err}
	}
	var signer ssh.Signer
	if cred.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(cred.PrivateKey, []byte(cred.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(cred.PrivateKey)
	}
	if err != nil {
		return nil, &engine.RemoteSubmissionError{Protocol: string(pctx.SubmissionProtocol), Msg: "parsing private key for token " + pctx.TokenID, Err: err}
	}

	user := cred.LoginUserName
	if pctx.Preference != nil && pctx.Preference.LoginUserName != "" {
		user = pctx.Preference.LoginUserName
	}
	host := pctx.ComputeResource.HostName
	port := 22
	if pctx.SubmissionInterface != nil {
		if sub, err := pctx.Catalog.GetSSHJobSubmission(pctx.SubmissionInterface.JobSubmissionInterfaceID); err == nil {
			if sub.AlternativeSSHHostName != "" {
				host = sub.AlternativeSSHHostName
			}
			if sub.SSHPort > 0 {
				port = sub.SSHPort
			}
		}
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)), config)
	if err != nil {
		return nil, &engine.RemoteSubmissionError{Protocol: string(pctx.SubmissionProtocol), Msg: "connecting to " + host, Err: err}
	}
	return client, nil
}

// Run runs one command on a fresh session of the client and returns
// its stdout and stderr.
func Run(client *ssh.Client, cmd string, stdin *strings.Reader) ([]byte, []byte, error) {
	return runRemote(client, cmd, stdin)
}

// runRemote runs one command on a fresh session and returns its output
func runRemote(client *ssh.Client, cmd string, stdin *strings.Reader) ([]byte, []byte, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, nil, err
	}
	defer session.Close()
	var stdout, stderr bytes.Buffer
	if stdin != nil {
		session.Stdin = stdin
	}
	session.Stdout = &stdout
	session.Stderr = &stderr
	err = session.Run(cmd)
	return stdout.Bytes(), stderr.Bytes(), err
}
