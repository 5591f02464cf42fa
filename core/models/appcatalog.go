package models

import "time"

// JobSubmissionProtocol is the remote access mechanism used to submit a job
type JobSubmissionProtocol string

const (
	SubmissionProtocolLocal   JobSubmissionProtocol = "LOCAL"
	SubmissionProtocolSSH     JobSubmissionProtocol = "SSH"
	SubmissionProtocolSSHFork JobSubmissionProtocol = "SSH_FORK"
	SubmissionProtocolUnicore JobSubmissionProtocol = "UNICORE"
	SubmissionProtocolCloud   JobSubmissionProtocol = "CLOUD"
)

// SecurityProtocol is the authentication mechanism of a submission interface
type SecurityProtocol string

const (
	SecurityProtocolSSHKeys          SecurityProtocol = "SSH_KEYS"
	SecurityProtocolUsernamePassword SecurityProtocol = "USERNAME_PASSWORD"
	SecurityProtocolGSI              SecurityProtocol = "GSI"
	SecurityProtocolOAuth            SecurityProtocol = "OAUTH"
)

// ResourceJobManagerType identifies the remote batch-queue system
type ResourceJobManagerType string

const (
	ResourceJobManagerPBS   ResourceJobManagerType = "PBS"
	ResourceJobManagerSlurm ResourceJobManagerType = "SLURM"
	ResourceJobManagerLSF   ResourceJobManagerType = "LSF"
	ResourceJobManagerUGE   ResourceJobManagerType = "UGE"
	ResourceJobManagerFork  ResourceJobManagerType = "FORK"
)

// JobManagerCommand names a command template slot of a resource job manager
type JobManagerCommand string

const (
	JobManagerCommandSubmission JobManagerCommand = "SUBMISSION"
	JobManagerCommandMonitoring JobManagerCommand = "JOB_MONITORING"
	JobManagerCommandDeletion   JobManagerCommand = "DELETION"
	JobManagerCommandShowQueue  JobManagerCommand = "SHOW_QUEUE"
)

// ResourceJobManager describes the remote batch-queue system and its
// command templates.
type ResourceJobManager struct {
	ResourceJobManagerID string
	Type                 ResourceJobManagerType
	JobManagerBinPath    string
	JobManagerCommands   map[JobManagerCommand]string
	// ParallelismPrefixes maps an application parallelism type to the
	// submitter command placed before the executable (mpirun etc.).
	ParallelismPrefixes    map[ApplicationParallelismType]string
	PushMonitoringEndpoint string
}

// MonitorMode is how job state changes are observed for an interface
type MonitorMode string

const (
	MonitorModePollJobManager MonitorMode = "POLL_JOB_MANAGER"
	MonitorModeJobEmail       MonitorMode = "JOB_EMAIL_NOTIFICATION_MONITOR"
)

// JobSubmissionInterface is one way of submitting jobs to a compute
// resource. Lower PriorityOrder is preferred.
type JobSubmissionInterface struct {
	JobSubmissionInterfaceID string
	Protocol                 JobSubmissionProtocol
	PriorityOrder            int
}

// ComputeResourceDescription is a remote HPC/cluster or local target
type ComputeResourceDescription struct {
	ComputeResourceID       string
	HostName                string
	HostAliases             []string
	IPAddresses             []string
	JobSubmissionInterfaces []JobSubmissionInterface
	MaxMemoryPerNode        int
	Enabled                 bool
}

// SSHJobSubmission is the submission record for SSH and SSH_FORK interfaces
type SSHJobSubmission struct {
	JobSubmissionInterfaceID string
	SecurityProtocol         SecurityProtocol
	ResourceJobManager       *ResourceJobManager
	AlternativeSSHHostName   string
	SSHPort                  int
	MonitorMode              MonitorMode
}

// LocalSubmission is the submission record for LOCAL interfaces
type LocalSubmission struct {
	JobSubmissionInterfaceID string
	ResourceJobManager       *ResourceJobManager
}

// UnicoreJobSubmission is the submission record for UNICORE interfaces
type UnicoreJobSubmission struct {
	JobSubmissionInterfaceID string
	SecurityProtocol         SecurityProtocol
	UnicoreEndpointURL       string
}

// CloudJobSubmission is the submission record for CLOUD interfaces
type CloudJobSubmission struct {
	JobSubmissionInterfaceID string
	SecurityProtocol         SecurityProtocol
	ProviderName             string
	NodeID                   string
	UserAccountName          string
}

// ApplicationParallelismType is the declared parallelism of a deployment
type ApplicationParallelismType string

const (
	ParallelismSerial    ApplicationParallelismType = "SERIAL"
	ParallelismMPI       ApplicationParallelismType = "MPI"
	ParallelismOpenMP    ApplicationParallelismType = "OPENMP"
	ParallelismOpenMPMPI ApplicationParallelismType = "OPENMP_MPI"
)

// CommandObject is an ordered shell command of a deployment descriptor
type CommandObject struct {
	Command      string
	CommandOrder int
}

// ApplicationDeploymentDescription describes how an application is
// installed on a particular compute resource.
type ApplicationDeploymentDescription struct {
	AppDeploymentID string
	AppModuleID     string
	ComputeHostID   string
	ExecutablePath  string
	Parallelism     ApplicationParallelismType
	ModuleLoadCmds  []CommandObject
	PreJobCommands  []CommandObject
	PostJobCommands []CommandObject
}

// ApplicationInterfaceDescription is the user-facing application
// definition, including declared outputs used to default the
// stdout/stderr locations.
type ApplicationInterfaceDescription struct {
	ApplicationInterfaceID string
	ApplicationName        string
	Inputs                 []InputDataObject
	Outputs                []OutputDataObject
}

// ComputeResourcePreference is a gateway's per-resource submission
// preference.
type ComputeResourcePreference struct {
	ComputeResourceID              string
	LoginUserName                  string
	PreferredJobSubmissionProtocol JobSubmissionProtocol
	PreferredBatchQueue            string
	ScratchLocation                string
	AllocationProjectNumber        string
	ReservationName                string
	ReservationStartTime           time.Time
	ReservationEndTime             time.Time
	// QualityOfService uses the "queueName=value,..." grammar.
	QualityOfService string
}

// GatewayResourceProfile holds a gateway's compute-resource preferences
type GatewayResourceProfile struct {
	GatewayID            string
	Preferences          []ComputeResourcePreference
	CredentialStoreToken string
}

// Preference returns the gateway's preference for the given compute
// resource, or nil when none is configured.
func (g *GatewayResourceProfile) Preference(computeResourceID string) *ComputeResourcePreference {
	for i := range g.Preferences {
		if g.Preferences[i].ComputeResourceID == computeResourceID {
			return &g.Preferences[i]
		}
	}
	return nil
}
