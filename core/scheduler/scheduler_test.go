package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"hpc-gateway/config"
	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

type stubProvider struct {
	protocol models.JobSubmissionProtocol
}

func (p *stubProvider) Protocol() models.JobSubmissionProtocol { return p.protocol }

func (p *stubProvider) Submit(ctx context.Context, tctx *engine.TaskContext) error { return nil }

func (p *stubProvider) Cancel(ctx context.Context, tctx *engine.TaskContext) error { return nil }

func (p *stubProvider) JobState(ctx context.Context, pctx *engine.ProcessContext, job *models.JobModel) (models.JobState, error) {
	return models.JobStateComplete, nil
}

type stubHandler struct {
	taskType models.TaskType
}

func (h *stubHandler) TaskType() models.TaskType { return h.taskType }

func (h *stubHandler) Invoke(ctx context.Context, tctx *engine.TaskContext) error { return nil }

type stubCatalog struct {
	ssh *models.SSHJobSubmission
}

func (c *stubCatalog) GetComputeResource(id string) (*models.ComputeResourceDescription, error) {
	return nil, fmt.Errorf("not used")
}

func (c *stubCatalog) GetGatewayResourceProfile(gatewayID string) (*models.GatewayResourceProfile, error) {
	return nil, fmt.Errorf("not used")
}

func (c *stubCatalog) GetApplicationDeployment(id string) (*models.ApplicationDeploymentDescription, error) {
	return nil, fmt.Errorf("not used")
}

func (c *stubCatalog) GetApplicationInterface(id string) (*models.ApplicationInterfaceDescription, error) {
	return nil, fmt.Errorf("not used")
}

func (c *stubCatalog) GetSSHJobSubmission(interfaceID string) (*models.SSHJobSubmission, error) {
	if c.ssh == nil {
		return nil, fmt.Errorf("no ssh submission %s", interfaceID)
	}
	return c.ssh, nil
}

func (c *stubCatalog) GetLocalJobSubmission(interfaceID string) (*models.LocalSubmission, error) {
	return &models.LocalSubmission{JobSubmissionInterfaceID: interfaceID}, nil
}

func (c *stubCatalog) GetUnicoreJobSubmission(interfaceID string) (*models.UnicoreJobSubmission, error) {
	return nil, fmt.Errorf("no unicore submission %s", interfaceID)
}

func (c *stubCatalog) GetCloudJobSubmission(interfaceID string) (*models.CloudJobSubmission, error) {
	return nil, fmt.Errorf("no cloud submission %s", interfaceID)
}

func schedulingContext() *engine.ProcessContext {
	return &engine.ProcessContext{
		ProcessID: "proc-1",
		Process:   &models.ProcessModel{ProcessID: "proc-1"},
		ComputeResource: &models.ComputeResourceDescription{
			HostName: "cluster.example.org",
			JobSubmissionInterfaces: []models.JobSubmissionInterface{
				{JobSubmissionInterfaceID: "if-ssh", Protocol: models.SubmissionProtocolSSH, PriorityOrder: 1},
				{JobSubmissionInterfaceID: "if-local", Protocol: models.SubmissionProtocolLocal, PriorityOrder: 2},
			},
		},
		AppInterface: &models.ApplicationInterfaceDescription{ApplicationName: "solver"},
		Catalog: &stubCatalog{ssh: &models.SSHJobSubmission{
			JobSubmissionInterfaceID: "if-ssh",
			SecurityProtocol:         models.SecurityProtocolSSHKeys,
			ResourceJobManager:       &models.ResourceJobManager{Type: models.ResourceJobManagerSlurm},
		}},
	}
}

func baseConfig() *config.EngineConfig {
	return &config.EngineConfig{
		Providers: []config.ProviderBinding{
			{Protocol: "SSH", Security: "SSH_KEYS", Provider: "ssh"},
			{Protocol: "LOCAL", Provider: "local"},
		},
		Handlers: config.HandlerChains{
			In:  []string{"ENV_SETUP", "DATA_STAGE_IN"},
			Out: []string{"DATA_STAGE_OUT"},
		},
	}
}

func registeredScheduler(cfg *config.EngineConfig) *Scheduler {
	s := NewScheduler(cfg)
	s.RegisterProvider("ssh", &stubProvider{protocol: models.SubmissionProtocolSSH})
	s.RegisterProvider("local", &stubProvider{protocol: models.SubmissionProtocolLocal})
	s.RegisterHandler(&stubHandler{taskType: models.TaskTypeEnvSetup})
	s.RegisterHandler(&stubHandler{taskType: models.TaskTypeDataStageIn})
	s.RegisterHandler(&stubHandler{taskType: models.TaskTypeDataStageOut})
	return s
}

func TestPreferredJobSubmissionProtocol(t *testing.T) {
	pctx := schedulingContext()
	protocol, err := PreferredJobSubmissionProtocol(pctx)
	if err != nil {
		t.Fatalf("PreferredJobSubmissionProtocol: %v", err)
	}
	if protocol != models.SubmissionProtocolSSH {
		t.Errorf("protocol = %s, want SSH by priority order", protocol)
	}

	pctx.Preference = &models.ComputeResourcePreference{
		PreferredJobSubmissionProtocol: models.SubmissionProtocolLocal,
	}
	protocol, err = PreferredJobSubmissionProtocol(pctx)
	if err != nil {
		t.Fatalf("PreferredJobSubmissionProtocol with preference: %v", err)
	}
	if protocol != models.SubmissionProtocolLocal {
		t.Errorf("protocol = %s, want preference LOCAL", protocol)
	}
}

func TestPreferredJobSubmissionProtocolNoInterfaces(t *testing.T) {
	pctx := schedulingContext()
	pctx.ComputeResource.JobSubmissionInterfaces = nil
	_, err := PreferredJobSubmissionProtocol(pctx)
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestPreferredJobSubmissionInterface(t *testing.T) {
	pctx := schedulingContext()
	pctx.ComputeResource.JobSubmissionInterfaces = append(pctx.ComputeResource.JobSubmissionInterfaces,
		models.JobSubmissionInterface{JobSubmissionInterfaceID: "if-ssh-high", Protocol: models.SubmissionProtocolSSH, PriorityOrder: 0})

	iface, err := PreferredJobSubmissionInterface(pctx, models.SubmissionProtocolSSH)
	if err != nil {
		t.Fatalf("PreferredJobSubmissionInterface: %v", err)
	}
	if iface.JobSubmissionInterfaceID != "if-ssh-high" {
		t.Errorf("interface = %s, want lowest priority order", iface.JobSubmissionInterfaceID)
	}

	if _, err := PreferredJobSubmissionInterface(pctx, models.SubmissionProtocolUnicore); err == nil {
		t.Error("expected error for protocol with no interface")
	}
}

func TestScheduleResolvesEverything(t *testing.T) {
	s := registeredScheduler(baseConfig())
	pctx := schedulingContext()
	if err := s.Schedule(pctx); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if pctx.SubmissionProtocol != models.SubmissionProtocolSSH {
		t.Errorf("protocol = %s", pctx.SubmissionProtocol)
	}
	if pctx.SubmissionInterface == nil || pctx.SubmissionInterface.JobSubmissionInterfaceID != "if-ssh" {
		t.Errorf("interface = %+v", pctx.SubmissionInterface)
	}
	if pctx.ResourceJobManager == nil || pctx.ResourceJobManager.Type != models.ResourceJobManagerSlurm {
		t.Errorf("resource job manager = %+v", pctx.ResourceJobManager)
	}
	if pctx.Provider == nil || pctx.Provider.Protocol() != models.SubmissionProtocolSSH {
		t.Errorf("provider = %+v", pctx.Provider)
	}
	if len(pctx.InHandlers) != 2 || len(pctx.OutHandlers) != 1 {
		t.Errorf("handler chains = %d in, %d out", len(pctx.InHandlers), len(pctx.OutHandlers))
	}
	if pctx.ExecutionMode != engine.ModeSynchronous {
		t.Errorf("execution mode = %s, want default SYNCHRONOUS", pctx.ExecutionMode)
	}
}

func TestScheduleSecurityMismatchFallsToAnyMatch(t *testing.T) {
	cfg := baseConfig()
	cfg.Providers = []config.ProviderBinding{
		{Protocol: "SSH", Security: "GSI", Provider: "ssh-gsi"},
		{Protocol: "SSH", Provider: "ssh"},
	}
	s := registeredScheduler(cfg)
	s.RegisterProvider("ssh-gsi", &stubProvider{protocol: models.SubmissionProtocolSSH})

	pctx := schedulingContext()
	if err := s.Schedule(pctx); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// The SSH_KEYS interface does not match the GSI binding; the
	// empty-security binding catches it.
	if pctx.Provider != s.providers["ssh"] {
		t.Errorf("provider = %+v, want empty-security fallback", pctx.Provider)
	}
}

func TestScheduleNoProviderForProtocol(t *testing.T) {
	cfg := baseConfig()
	cfg.Providers = []config.ProviderBinding{{Protocol: "UNICORE", Provider: "unicore"}}
	s := registeredScheduler(cfg)
	pctx := schedulingContext()
	err := s.Schedule(pctx)
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
	if !strings.Contains(err.Error(), "couldn't find provider") {
		t.Errorf("err = %v, want couldn't find provider message", err)
	}
}

func TestScheduleApplicationOverride(t *testing.T) {
	cfg := baseConfig()
	cfg.Applications = map[string]config.ApplicationOverride{
		"solver": {Provider: "local", ExecutionMode: "ASYNCHRONOUS"},
	}
	s := registeredScheduler(cfg)
	pctx := schedulingContext()
	if err := s.Schedule(pctx); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if pctx.Provider.Protocol() != models.SubmissionProtocolLocal {
		t.Errorf("provider protocol = %s, want application override local", pctx.Provider.Protocol())
	}
	if pctx.ExecutionMode != engine.ModeAsynchronous {
		t.Errorf("execution mode = %s, want application override", pctx.ExecutionMode)
	}
}

func TestScheduleApplicationOverrideUnregistered(t *testing.T) {
	cfg := baseConfig()
	cfg.Applications = map[string]config.ApplicationOverride{
		"solver": {Provider: "missing"},
	}
	s := registeredScheduler(cfg)
	err := s.Schedule(schedulingContext())
	if err == nil || !strings.Contains(err.Error(), "couldn't find provider") {
		t.Fatalf("err = %v, want couldn't find provider", err)
	}
}

func TestExecutionModePrecedence(t *testing.T) {
	cfg := baseConfig()
	cfg.ExecutionModes = config.ExecutionModeOverrides{
		HostClasses: map[string]string{"cluster.example.org": "ASYNCHRONOUS"},
		Protocols:   map[string]string{"SSH": "SYNCHRONOUS"},
	}
	s := registeredScheduler(cfg)
	pctx := schedulingContext()
	if err := s.Schedule(pctx); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// Host class beats protocol.
	if pctx.ExecutionMode != engine.ModeAsynchronous {
		t.Errorf("execution mode = %s, want host-class override", pctx.ExecutionMode)
	}

	cfg.ExecutionModes.HostClasses = nil
	pctx = schedulingContext()
	if err := s.Schedule(pctx); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if pctx.ExecutionMode != engine.ModeSynchronous {
		t.Errorf("execution mode = %s, want protocol override", pctx.ExecutionMode)
	}
}

func TestScheduleMissingHandler(t *testing.T) {
	cfg := baseConfig()
	cfg.Handlers.In = []string{"ENV_SETUP", "UNREGISTERED"}
	s := registeredScheduler(cfg)
	err := s.Schedule(schedulingContext())
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError for missing handler", err)
	}
}
