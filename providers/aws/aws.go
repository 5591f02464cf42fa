// Package aws submits CLOUD-protocol jobs by bursting onto EC2: the
// rendered job script runs as instance user data on a fresh instance
// that shuts itself down when the script finishes.
package aws

import (
	"context"
	"encoding/base64"
	"fmt"

	"hpc-gateway/core/descriptor"
	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Provider implements CLOUD job submission on EC2
type Provider struct {
	client       *ec2.Client
	imageID      string
	instanceType string
}

// New creates an EC2-backed cloud provider. The image must carry the
// application stack; the instance type defaults to m5.large.
func New(ctx context.Context, region, imageID, instanceType string) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	if instanceType == "" {
		instanceType = "m5.large"
	}
	return &Provider{
		client:       ec2.NewFromConfig(cfg),
		imageID:      imageID,
		instanceType: instanceType,
	}, nil
}

// Protocol implements engine.Provider
func (p *Provider) Protocol() models.JobSubmissionProtocol {
	return models.SubmissionProtocolCloud
}

// Submit launches one instance running the job script as user data.
// The instance id is the job id.
func (p *Provider) Submit(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	d, err := descriptor.CreateJobDescriptor(pctx, tctx)
	if err != nil {
		return err
	}
	script := descriptor.RenderScript(d, models.ResourceJobManagerFork)
	userData := script + "shutdown -h now\n"

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(p.imageID),
		InstanceType: types.InstanceType(p.instanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		UserData:     aws.String(base64.StdEncoding.EncodeToString([]byte(userData))),
		InstanceInitiatedShutdownBehavior: types.ShutdownBehaviorTerminate,
		TagSpecifications: []types.TagSpecification{
			{
				ResourceType: types.ResourceTypeInstance,
				Tags: []types.Tag{
					{Key: aws.String("Name"), Value: aws.String(d.JobName)},
					{Key: aws.String("ProcessId"), Value: aws.String(pctx.ProcessID)},
					{Key: aws.String("ManagedBy"), Value: aws.String("hpc-gateway")},
				},
			},
		},
	}
	result, err := p.client.RunInstances(ctx, input)
	if err != nil {
		return &engine.RemoteSubmissionError{Protocol: "CLOUD", Msg: "launching instance", Err: err}
	}
	if len(result.Instances) == 0 {
		return &engine.RemoteSubmissionError{Protocol: "CLOUD", Msg: "RunInstances returned no instances"}
	}
	jobID := aws.ToString(result.Instances[0].InstanceId)

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
	return engine.SaveAndPublishJobStatus(pctx, job, models.JobStateSubmitted, "instance "+jobID+" launched")
}

// Cancel terminates the job's instance
func (p *Provider) Cancel(ctx context.Context, tctx *engine.TaskContext) error {
	pctx := tctx.Parent
	if pctx.Job == nil {
		return nil
	}
	_, err := p.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{pctx.Job.JobID},
	})
	if err != nil {
		return &engine.RemoteSubmissionError{Protocol: "CLOUD", Msg: "terminating instance " + pctx.Job.JobID, Err: err}
	}
	return engine.SaveAndPublishJobStatus(pctx, pctx.Job, models.JobStateCanceled, "cancel requested")
}

// JobState maps the instance lifecycle to a job state. A terminated
// instance means the script ran to completion and shut the host down.
func (p *Provider) JobState(ctx context.Context, pctx *engine.ProcessContext, job *models.JobModel) (models.JobState, error) {
	result, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{job.JobID},
	})
	if err != nil {
		return "", &engine.RemoteSubmissionError{Protocol: "CLOUD", Msg: "describing instance " + job.JobID, Err: err}
	}
	for _, reservation := range result.Reservations {
		for _, instance := range reservation.Instances {
			if instance.State == nil {
				continue
			}
			switch instance.State.Name {
			case types.InstanceStateNamePending:
				return models.JobStateQueued, nil
			case types.InstanceStateNameRunning:
				return models.JobStateActive, nil
			case types.InstanceStateNameStopping, types.InstanceStateNameShuttingDown:
				return models.JobStateActive, nil
			case types.InstanceStateNameTerminated, types.InstanceStateNameStopped:
				return models.JobStateComplete, nil
			}
		}
	}
	return models.JobStateComplete, nil
}
