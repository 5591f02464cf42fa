package scheduler

import (
	"hpc-gateway/config"
	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

// Scheduler assigns to a process context the provider to invoke, the
// in/out handler chains to run around it and the execution mode.
// Providers and handlers are registered explicitly at startup; there
// is no dynamic loading.
type Scheduler struct {
	cfg       *config.EngineConfig
	providers map[string]engine.Provider
	handlers  map[models.TaskType]engine.Handler
}

// NewScheduler creates a scheduler from the engine configuration
func NewScheduler(cfg *config.EngineConfig) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		providers: make(map[string]engine.Provider),
		handlers:  make(map[models.TaskType]engine.Handler),
	}
}

// RegisterProvider registers a provider under a configuration name
func (s *Scheduler) RegisterProvider(name string, p engine.Provider) {
	s.providers[name] = p
}

// RegisterHandler registers the handler for its task type
func (s *Scheduler) RegisterHandler(h engine.Handler) {
	s.handlers[h.TaskType()] = h
}

// Schedule resolves protocol, interface, resource job manager,
// provider, handler chains and execution mode for the process.
func (s *Scheduler) Schedule(pctx *engine.ProcessContext) error {
	protocol, err := PreferredJobSubmissionProtocol(pctx)
	if err != nil {
		return err
	}
	pctx.SubmissionProtocol = protocol

	iface, err := PreferredJobSubmissionInterface(pctx, protocol)
	if err != nil {
		return err
	}
	pctx.SubmissionInterface = iface
	pctx.ResourceJobManager = ResourceJobManager(pctx)

	provider, err := s.selectProvider(pctx)
	if err != nil {
		return err
	}
	pctx.Provider = provider

	in, out, err := s.handlerChains()
	if err != nil {
		return err
	}
	pctx.InHandlers = in
	pctx.OutHandlers = out

	pctx.ExecutionMode = s.executionMode(pctx)
	return nil
}

// selectProvider picks the provider instance. An application-specific
// provider configured by name wins over the protocol-derived one.
func (s *Scheduler) selectProvider(pctx *engine.ProcessContext) (engine.Provider, error) {
	if app := s.cfg.Applications[pctx.AppInterface.ApplicationName]; app.Provider != "" {
		p, ok := s.providers[app.Provider]
		if !ok {
			return nil, &engine.ConfigurationError{
				Msg: "couldn't find provider " + app.Provider + " configured for application " + pctx.AppInterface.ApplicationName,
			}
		}
		return p, nil
	}

	security := s.securityProtocol(pctx)
	var anyMatch engine.Provider
	for _, binding := range s.cfg.Providers {
		if models.JobSubmissionProtocol(binding.Protocol) != pctx.SubmissionProtocol {
			continue
		}
		p, ok := s.providers[binding.Provider]
		if !ok {
			return nil, &engine.ConfigurationError{
				Msg: "provider " + binding.Provider + " bound to protocol " + binding.Protocol + " is not registered",
			}
		}
		if binding.Security == "" {
			// Empty-security bindings match any security protocol.
			if anyMatch == nil {
				anyMatch = p
			}
			continue
		}
		if models.SecurityProtocol(binding.Security) == security {
			return p, nil
		}
	}
	if anyMatch != nil {
		return anyMatch, nil
	}
	return nil, &engine.ConfigurationError{
		Msg: "couldn't find provider class for protocol " + string(pctx.SubmissionProtocol) + " security " + string(security),
	}
}

// securityProtocol resolves the security discriminator for protocols
// that carry one. Empty for LOCAL and unresolvable records.
func (s *Scheduler) securityProtocol(pctx *engine.ProcessContext) models.SecurityProtocol {
	if pctx.SubmissionInterface == nil {
		return ""
	}
	interfaceID := pctx.SubmissionInterface.JobSubmissionInterfaceID
	switch pctx.SubmissionProtocol {
	case models.SubmissionProtocolSSH, models.SubmissionProtocolSSHFork:
		if sub, err := pctx.Catalog.GetSSHJobSubmission(interfaceID); err == nil {
			return sub.SecurityProtocol
		}
	case models.SubmissionProtocolUnicore:
		if sub, err := pctx.Catalog.GetUnicoreJobSubmission(interfaceID); err == nil {
			return sub.SecurityProtocol
		}
	case models.SubmissionProtocolCloud:
		if sub, err := pctx.Catalog.GetCloudJobSubmission(interfaceID); err == nil {
			return sub.SecurityProtocol
		}
	}
	return ""
}

func (s *Scheduler) handlerChains() (in, out []engine.Handler, err error) {
	for _, name := range s.cfg.Handlers.In {
		h, ok := s.handlers[models.TaskType(name)]
		if !ok {
			return nil, nil, &engine.ConfigurationError{Msg: "no handler registered for task type " + name}
		}
		in = append(in, h)
	}
	for _, name := range s.cfg.Handlers.Out {
		h, ok := s.handlers[models.TaskType(name)]
		if !ok {
			return nil, nil, &engine.ConfigurationError{Msg: "no handler registered for task type " + name}
		}
		out = append(out, h)
	}
	return in, out, nil
}

// executionMode resolves the execution mode, most specific override
// first: application, host class, protocol, then SYNCHRONOUS.
func (s *Scheduler) executionMode(pctx *engine.ProcessContext) engine.ExecutionMode {
	if app := s.cfg.Applications[pctx.AppInterface.ApplicationName]; app.ExecutionMode != "" {
		return engine.ExecutionMode(app.ExecutionMode)
	}
	if mode := s.cfg.ExecutionModes.HostClasses[pctx.ComputeResource.HostName]; mode != "" {
		return engine.ExecutionMode(mode)
	}
	if mode := s.cfg.ExecutionModes.Protocols[string(pctx.SubmissionProtocol)]; mode != "" {
		return engine.ExecutionMode(mode)
	}
	return engine.ModeSynchronous
}
