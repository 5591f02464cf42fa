package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"hpc-gateway/core/coordination"
	"hpc-gateway/core/messaging"
	"hpc-gateway/core/models"

	"github.com/google/uuid"
)

// ProcessScheduler resolves provider, handler chains and execution
// mode for a populated process context. Implemented by core/scheduler.
type ProcessScheduler interface {
	Schedule(pctx *ProcessContext) error
}

// JobTracker receives asynchronous process contexts whose jobs need
// polling. Implemented by core/monitoring.
type JobTracker interface {
	Track(pctx *ProcessContext)
}

// Options wires an engine's collaborators. Everything is injected;
// the engine holds no package-level state.
type Options struct {
	Registry    Registry
	Catalog     Catalog
	Credentials CredentialReader
	Publisher   messaging.Publisher
	Coordinator Coordinator
	Scheduler   ProcessScheduler

	// PoolSize is the number of process executions run concurrently.
	PoolSize int

	// MonitorEmailAddress is merged into the job's notification list
	// when monitoring for the selected interface is email based.
	MonitorEmailAddress string
	NotificationEnabled bool
	NotificationEmails  []string

	// Monitor, when set, receives asynchronous processes after
	// submission so their jobs get polled to completion.
	Monitor JobTracker
}

// Engine drives the process lifecycle: context population, validation,
// scheduling, handler chains, provider invocation, outflow, recovery
// and cancellation.
type Engine struct {
	registry    Registry
	catalog     Catalog
	credentials CredentialReader
	publisher   messaging.Publisher
	coordinator Coordinator
	scheduler   ProcessScheduler
	pool        *WorkerPool
	launches    *LaunchQueue
	launchCh    chan struct{}
	quit        chan struct{}
	stopOnce    sync.Once

	monitorEmail  string
	notifyEnabled bool
	notifyEmails  []string
	monitor       JobTracker

	tagCounter atomic.Uint64
}

// New creates an engine with its own worker pool and launch queue
func New(opts Options) *Engine {
	e := &Engine{
		registry:      opts.Registry,
		catalog:       opts.Catalog,
		credentials:   opts.Credentials,
		publisher:     opts.Publisher,
		coordinator:   opts.Coordinator,
		scheduler:     opts.Scheduler,
		pool:          NewWorkerPool(opts.PoolSize),
		launches:      NewLaunchQueue(),
		launchCh:      make(chan struct{}, 1),
		quit:          make(chan struct{}),
		monitorEmail:  opts.MonitorEmailAddress,
		notifyEnabled: opts.NotificationEnabled,
		notifyEmails:  opts.NotificationEmails,
		monitor:       opts.Monitor,
	}
	go e.dispatchLaunches()
	return e
}

// dispatchLaunches drains the launch queue onto pool workers, oldest
// request first. Pool backpressure applies here, not in the callers of
// LaunchExperiment.
func (e *Engine) dispatchLaunches() {
	for {
		select {
		case <-e.quit:
			return
		case <-e.launchCh:
			select {
			case <-e.quit:
				return
			default:
			}
			for req := e.launches.Dequeue(); req != nil; req = e.launches.Dequeue() {
				r := req
				e.pool.Submit(func() {
					e.runProcess(r.ExperimentID, r.ProcessID)
				})
			}
		}
	}
}

// Stop ends the launch dispatcher. Already-dispatched pool work drains
// through Pool().Wait(); requests still queued stay queued.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.quit) })
}

// Pool exposes the engine's worker pool, mainly so a server can wait
// for in-flight processes on shutdown.
func (e *Engine) Pool() *WorkerPool { return e.pool }

// SetMonitor wires the job tracker after construction. The tracker
// needs the engine to report terminal jobs, so it cannot exist before
// the engine does.
func (e *Engine) SetMonitor(m JobTracker) { e.monitor = m }

// PopulateProcessContext reconstructs the full in-memory context for
// one process from the registry and the application catalog. Every
// missing entity is a DataAccessError; nothing is created here.
func (e *Engine) PopulateProcessContext(ctx context.Context, experimentID, processID string) (*ProcessContext, error) {
	experiment, err := e.registry.GetExperiment(experimentID)
	if err != nil {
		return nil, &DataAccessError{Msg: "loading experiment " + experimentID, Err: err}
	}
	process, err := e.registry.GetProcess(processID)
	if err != nil {
		return nil, &DataAccessError{Msg: "loading process " + processID, Err: err}
	}
	tasks, err := e.registry.GetTasksByProcess(processID)
	if err != nil {
		return nil, &DataAccessError{Msg: "loading tasks of process " + processID, Err: err}
	}
	process.Tasks = tasks

	profile, err := e.catalog.GetGatewayResourceProfile(experiment.GatewayID)
	if err != nil {
		return nil, &DataAccessError{Msg: "loading gateway resource profile " + experiment.GatewayID, Err: err}
	}
	computeResource, err := e.catalog.GetComputeResource(process.ComputeResourceID)
	if err != nil {
		return nil, &DataAccessError{Msg: "loading compute resource " + process.ComputeResourceID, Err: err}
	}
	appDeployment, err := e.catalog.GetApplicationDeployment(process.ApplicationDeploymentID)
	if err != nil {
		return nil, &DataAccessError{Msg: "loading application deployment " + process.ApplicationDeploymentID, Err: err}
	}
	appInterface, err := e.catalog.GetApplicationInterface(process.ApplicationInterfaceID)
	if err != nil {
		return nil, &DataAccessError{Msg: "loading application interface " + process.ApplicationInterfaceID, Err: err}
	}

	pctx := &ProcessContext{
		ProcessID:       processID,
		ExperimentID:    experimentID,
		GatewayID:       experiment.GatewayID,
		TokenID:         profile.CredentialStoreToken,
		Process:         process,
		GatewayProfile:  profile,
		Preference:      profile.Preference(process.ComputeResourceID),
		ComputeResource: computeResource,
		AppDeployment:   appDeployment,
		AppInterface:    appInterface,
		Registry:        e.registry,
		Catalog:         e.catalog,
		Credentials:     e.credentials,
		Publisher:       e.publisher,
		Coordinator:     e.coordinator,
	}

	if chain := e.CreateTaskChain(pctx); len(chain) > 0 {
		pctx.Process.Tasks = tasksInChainOrder(pctx.Process.Tasks, chain)
	}

	scratch := "/tmp"
	if pctx.Preference != nil && pctx.Preference.ScratchLocation != "" {
		scratch = strings.TrimRight(pctx.Preference.ScratchLocation, "/")
	}
	pctx.WorkingDir = scratch + "/" + processID
	pctx.InputDir = pctx.WorkingDir
	pctx.OutputDir = pctx.WorkingDir
	pctx.StdoutLocation, pctx.StderrLocation = stdRedirectLocations(pctx)

	// Reattach a previously submitted job, if any. Recovery and
	// monitoring need it; fresh executions have none.
	jobs, err := e.registry.GetJobsByProcess(processID)
	if err != nil {
		return nil, &DataAccessError{Msg: "loading jobs of process " + processID, Err: err}
	}
	if len(jobs) > 0 {
		pctx.Job = jobs[len(jobs)-1]
	}

	tag, err := e.coordinator.GetProcessDeliveryTag(ctx, experimentID, processID)
	switch {
	case err == nil:
		pctx.DeliveryTag = tag
	case !errors.Is(err, coordination.ErrNodeNotExists):
		return nil, &CoordinationError{
			Path: "/experiments/" + experimentID + "/" + processID + "/delivery-tag",
			Msg:  "reading delivery tag",
			Err:  err,
		}
	}
	return pctx, nil
}

// stdRedirectLocations resolves stdout/stderr paths: the application
// interface's declared STDOUT/STDERR outputs win, otherwise
// <workingDir>/<appName>.stdout and .stderr.
func stdRedirectLocations(pctx *ProcessContext) (stdout, stderr string) {
	for _, out := range pctx.AppInterface.Outputs {
		switch out.Type {
		case models.DataTypeStdout:
			if out.Value != "" {
				stdout = out.Value
			}
		case models.DataTypeStderr:
			if out.Value != "" {
				stderr = out.Value
			}
		}
	}
	base := pctx.WorkingDir + "/" + pctx.AppInterface.ApplicationName
	if stdout == "" {
		stdout = base + ".stdout"
	}
	if stderr == "" {
		stderr = base + ".stderr"
	}
	return stdout, stderr
}

// ValidateProcessContext checks the context is executable and records
// the VALIDATED status.
func (e *Engine) ValidateProcessContext(pctx *ProcessContext) error {
	if pctx.AppDeployment.ExecutablePath == "" {
		return e.fail(pctx, "", &ConfigurationError{
			Msg: "application deployment " + pctx.AppDeployment.AppDeploymentID + " has no executable path",
		})
	}
	sched := pctx.Process.ResourceSchedule
	if sched.TotalCPUCount > 0 && sched.NodeCount <= 0 {
		return e.fail(pctx, "", &ConfigurationError{
			Msg: fmt.Sprintf("process %s requests %d CPUs on %d nodes", pctx.ProcessID, sched.TotalCPUCount, sched.NodeCount),
		})
	}
	pctx.ProcessStatus = models.ProcessStatus{State: models.ProcessStateValidated}
	return SaveAndPublishProcessStatus(pctx)
}

// CreateTaskChain resolves the process's task DAG string into the
// ordered list of task IDs. The DAG is a linear chain; there is no
// cycle detection.
func (e *Engine) CreateTaskChain(pctx *ProcessContext) []string {
	var chain []string
	for _, id := range strings.Split(pctx.Process.TaskDAG, ",") {
		if id = strings.TrimSpace(id); id != "" {
			chain = append(chain, id)
		}
	}
	return chain
}

// tasksInChainOrder sorts tasks into the DAG's order. Tasks the chain
// does not name keep their relative order after the named ones.
func tasksInChainOrder(tasks []*models.TaskModel, chain []string) []*models.TaskModel {
	pos := make(map[string]int, len(chain))
	for i, id := range chain {
		pos[id] = i
	}
	ordered := make([]*models.TaskModel, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, iok := pos[ordered[i].TaskID]
		pj, jok := pos[ordered[j].TaskID]
		if iok != jok {
			return iok
		}
		return iok && pi < pj
	})
	return ordered
}

// LaunchExperiment records the LAUNCHED experiment status, creates the
// experiment's coordination node and enqueues every process of the
// experiment on the worker pool. It returns once the processes are
// enqueued; completion is observed through status events.
func (e *Engine) LaunchExperiment(ctx context.Context, experimentID string) error {
	experiment, err := e.registry.GetExperiment(experimentID)
	if err != nil {
		return &Error{ExperimentID: experimentID, Msg: "launching experiment", Err: &DataAccessError{Msg: "loading experiment", Err: err}}
	}
	if err := e.coordinator.CreateExperimentNode(ctx, experimentID); err != nil {
		return &Error{ExperimentID: experimentID, Msg: "launching experiment", Err: &CoordinationError{Path: "/experiments/" + experimentID, Msg: "creating experiment node", Err: err}}
	}
	if err := SaveAndPublishExperimentStatus(e.registry, e.publisher, experimentID, experiment.GatewayID, models.ExperimentStateLaunched, ""); err != nil {
		return &Error{ExperimentID: experimentID, Msg: "launching experiment", Err: err}
	}

	processIDs, err := e.registry.ListProcessIDs(experimentID)
	if err != nil {
		return &Error{ExperimentID: experimentID, Msg: "launching experiment", Err: &DataAccessError{Msg: "listing processes", Err: err}}
	}
	for _, processID := range processIDs {
		tag := e.tagCounter.Add(1)
		if err := e.coordinator.SetProcessDeliveryTag(ctx, experimentID, processID, tag); err != nil {
			log.Printf("Failed to record delivery tag for process %s: %v", processID, err)
		}
		e.launches.Enqueue(&LaunchRequest{
			ExperimentID: experimentID,
			ProcessID:    processID,
			GatewayID:    experiment.GatewayID,
			DeliveryTag:  tag,
		})
	}
	select {
	case e.launchCh <- struct{}{}:
	default:
	}
	return nil
}

// runProcess executes one process end to end on a pool worker
func (e *Engine) runProcess(experimentID, processID string) {
	ctx := context.Background()
	pctx, err := e.PopulateProcessContext(ctx, experimentID, processID)
	if err != nil {
		log.Printf("Failed to populate context for process %s: %v", processID, err)
		stub := &ProcessContext{
			ProcessID:    processID,
			ExperimentID: experimentID,
			Process:      &models.ProcessModel{ProcessID: processID, ExperimentID: experimentID},
			Registry:     e.registry,
			Publisher:    e.publisher,
			Coordinator:  e.coordinator,
		}
		if experiment, eerr := e.registry.GetExperiment(experimentID); eerr == nil {
			stub.GatewayID = experiment.GatewayID
		}
		e.fail(stub, "", err)
		return
	}
	if err := e.ValidateProcessContext(pctx); err != nil {
		log.Printf("Process %s failed validation: %v", processID, err)
		return
	}
	if err := e.ScheduleProcess(pctx); err != nil {
		log.Printf("Process %s failed scheduling: %v", processID, err)
		return
	}
	if err := e.ExecuteProcess(ctx, pctx); err != nil {
		log.Printf("Process %s failed: %v", processID, err)
	}
}

// ScheduleProcess resolves provider, handlers and execution mode for
// the context and records the SCHEDULED status.
func (e *Engine) ScheduleProcess(pctx *ProcessContext) error {
	if err := e.scheduler.Schedule(pctx); err != nil {
		return e.fail(pctx, "", err)
	}
	e.applyMonitoringPreferences(pctx)
	pctx.ProcessStatus = models.ProcessStatus{State: models.ProcessStateScheduled}
	return SaveAndPublishProcessStatus(pctx)
}

// applyMonitoringPreferences merges the monitor mailbox and the
// gateway notification list into the context once the submission
// interface is known.
func (e *Engine) applyMonitoringPreferences(pctx *ProcessContext) {
	if e.notifyEnabled {
		pctx.NotificationEmails = e.notifyEmails
	}
	if e.monitorEmail == "" || pctx.SubmissionInterface == nil {
		return
	}
	switch pctx.SubmissionProtocol {
	case models.SubmissionProtocolSSH, models.SubmissionProtocolSSHFork:
		sub, err := pctx.Catalog.GetSSHJobSubmission(pctx.SubmissionInterface.JobSubmissionInterfaceID)
		if err == nil && sub.MonitorMode == models.MonitorModeJobEmail {
			pctx.MonitorEmailAddress = e.monitorEmail
		}
	}
}

// ExecuteProcess runs the in-handler chain, the provider submission
// and, in synchronous mode, the outflow. Interrupts are observed
// between steps; a cancel interrupt turns into CancelProcess, a
// hand-over stops silently.
func (e *Engine) ExecuteProcess(ctx context.Context, pctx *ProcessContext) error {
	return e.executeProcess(ctx, pctx, false)
}

func (e *Engine) executeProcess(ctx context.Context, pctx *ProcessContext, recovering bool) error {
	if e.interrupted(ctx, pctx) {
		return e.handleInterrupt(ctx, pctx)
	}
	for _, h := range pctx.InHandlers {
		if err := e.runHandler(ctx, pctx, h, recovering); err != nil {
			return err
		}
		if e.interrupted(ctx, pctx) {
			return e.handleInterrupt(ctx, pctx)
		}
	}
	if err := e.executeJobSubmission(ctx, pctx, recovering); err != nil {
		return err
	}
	if pctx.IsHandedOver() {
		return nil
	}
	if pctx.ExecutionMode == ModeAsynchronous {
		// Outflow runs later, once the monitor sees the job finish.
		if e.monitor != nil {
			e.monitor.Track(pctx)
		}
		return nil
	}
	if recovering {
		return e.RecoverProcessOutflow(ctx, pctx)
	}
	return e.RunProcessOutflow(ctx, pctx)
}

// runHandler executes one pre/post-processing handler as a task of the
// process. In recovery mode a task of the handler's type that already
// reached a terminal status is skipped, not re-run.
func (e *Engine) runHandler(ctx context.Context, pctx *ProcessContext, h Handler, recovering bool) error {
	if recovering {
		if t := taskOfType(pctx, h.TaskType()); t != nil {
			if s := t.CurrentStatus(); s != nil && s.State.IsTerminal() {
				return nil
			}
		}
	}
	tctx, err := e.createTask(pctx, h.TaskType())
	if err != nil {
		return e.fail(pctx, "", err)
	}
	tctx.TaskStatus = models.TaskStatus{State: models.TaskStateExecuting}
	if err := SaveAndPublishTaskStatus(tctx); err != nil {
		return e.fail(pctx, tctx.TaskID, err)
	}
	if err := h.Invoke(ctx, tctx); err != nil {
		return e.failTask(pctx, tctx, err)
	}
	tctx.TaskStatus = models.TaskStatus{State: models.TaskStateCompleted}
	return SaveAndPublishTaskStatus(tctx)
}

// executeJobSubmission records EXECUTING, runs the provider under a
// job-submission task and completes the task. In recovery mode a
// terminal submission task means the provider has already run and is
// not invoked again.
func (e *Engine) executeJobSubmission(ctx context.Context, pctx *ProcessContext, recovering bool) error {
	var tctx *TaskContext
	if recovering {
		if t := pctx.JobSubmissionTask(); t != nil {
			if s := t.CurrentStatus(); s != nil && s.State.IsTerminal() {
				return nil
			}
			tctx = &TaskContext{TaskID: t.TaskID, Task: t, Parent: pctx}
		}
	}

	if cur := pctx.Process.CurrentStatus(); cur == nil || cur.State != models.ProcessStateExecuting {
		pctx.ProcessStatus = models.ProcessStatus{State: models.ProcessStateExecuting}
		if err := SaveAndPublishProcessStatus(pctx); err != nil {
			return e.fail(pctx, "", err)
		}
	}

	if tctx == nil {
		var err error
		tctx, err = e.createTask(pctx, models.TaskTypeJobSubmission)
		if err != nil {
			return e.fail(pctx, "", err)
		}
	}
	tctx.TaskStatus = models.TaskStatus{State: models.TaskStateExecuting}
	if err := SaveAndPublishTaskStatus(tctx); err != nil {
		return e.fail(pctx, tctx.TaskID, err)
	}

	if e.interrupted(ctx, pctx) {
		return e.handleInterrupt(ctx, pctx)
	}
	if err := pctx.Provider.Submit(ctx, tctx); err != nil {
		return e.failTask(pctx, tctx, err)
	}
	tctx.TaskStatus = models.TaskStatus{State: models.TaskStateCompleted}
	return SaveAndPublishTaskStatus(tctx)
}

// RunProcessOutflow runs the out-handler chain and records COMPLETED.
func (e *Engine) RunProcessOutflow(ctx context.Context, pctx *ProcessContext) error {
	return e.runProcessOutflow(ctx, pctx, false)
}

// RecoverProcessOutflow is the skip-if-terminal variant of
// RunProcessOutflow: out-handler tasks already in a terminal status
// are not re-run. The monitor's completion callback uses it too,
// since a recovered asynchronous process may already carry a terminal
// stage-out task.
func (e *Engine) RecoverProcessOutflow(ctx context.Context, pctx *ProcessContext) error {
	return e.runProcessOutflow(ctx, pctx, true)
}

func (e *Engine) runProcessOutflow(ctx context.Context, pctx *ProcessContext, recovering bool) error {
	for _, h := range pctx.OutHandlers {
		if err := e.runHandler(ctx, pctx, h, recovering); err != nil {
			return err
		}
		if e.interrupted(ctx, pctx) {
			return e.handleInterrupt(ctx, pctx)
		}
	}
	pctx.ProcessStatus = models.ProcessStatus{State: models.ProcessStateCompleted}
	if err := SaveAndPublishProcessStatus(pctx); err != nil {
		return e.fail(pctx, "", err)
	}
	e.finalizeExperimentIfDone(ctx, pctx)
	return nil
}

// HandleTerminalJob finishes an asynchronous process once the monitor
// observes its job's terminal state: a completed job runs the
// outflow, a failed job fails the process, a canceled job cancels it.
func (e *Engine) HandleTerminalJob(ctx context.Context, pctx *ProcessContext, state models.JobState) error {
	switch state {
	case models.JobStateComplete:
		return e.RecoverProcessOutflow(ctx, pctx)
	case models.JobStateCanceled:
		pctx.ProcessStatus = models.ProcessStatus{State: models.ProcessStateCanceled, Reason: "job canceled"}
		if err := SaveAndPublishProcessStatus(pctx); err != nil {
			return e.fail(pctx, "", err)
		}
		e.finalizeExperimentIfDone(ctx, pctx)
		return nil
	default:
		return e.fail(pctx, "", &RemoteSubmissionError{
			Protocol: string(pctx.SubmissionProtocol),
			Msg:      "job " + pctx.Job.JobID + " reached state " + string(state),
		})
	}
}

// RecoverOutstanding resumes every process whose latest recorded state
// is not terminal. Run once after a restart, before new launches are
// accepted.
func (e *Engine) RecoverOutstanding(ctx context.Context) error {
	refs, err := e.registry.ListUnfinishedProcessRefs()
	if err != nil {
		return &Error{Msg: "recovering outstanding processes", Err: &DataAccessError{Msg: "listing unfinished processes", Err: err}}
	}
	if len(refs) == 0 {
		return nil
	}
	log.Printf("Recovering %d unfinished processes", len(refs))
	for _, ref := range refs {
		r := ref
		e.pool.Submit(func() {
			pctx, err := e.PopulateProcessContext(context.Background(), r.ExperimentID, r.ProcessID)
			if err != nil {
				log.Printf("Failed to populate context for process %s during recovery: %v", r.ProcessID, err)
				return
			}
			if err := e.RecoverProcess(context.Background(), pctx); err != nil {
				log.Printf("Failed to recover process %s: %v", r.ProcessID, err)
			}
		})
	}
	return nil
}

// RecoverProcess resumes a process after an engine restart or
// hand-over. The delivery tag recorded at launch is a hard
// dependency: recovery does not proceed without it.
func (e *Engine) RecoverProcess(ctx context.Context, pctx *ProcessContext) error {
	if _, err := e.coordinator.GetProcessDeliveryTag(ctx, pctx.ExperimentID, pctx.ProcessID); err != nil {
		path := "/experiments/" + pctx.ExperimentID + "/" + pctx.ProcessID + "/delivery-tag"
		if errors.Is(err, coordination.ErrNodeNotExists) {
			return e.fail(pctx, "", &CoordinationError{Path: path, Msg: "delivery tag missing, cannot recover", Err: err})
		}
		return e.fail(pctx, "", &CoordinationError{Path: path, Msg: "reading delivery tag", Err: err})
	}

	cur := pctx.Process.CurrentStatus()
	state := models.ProcessStateCreated
	if cur != nil {
		state = cur.State
	}
	switch state {
	case models.ProcessStateCompleted, models.ProcessStateFailed, models.ProcessStateCanceled:
		return nil
	case models.ProcessStateCancelling:
		if err := e.scheduler.Schedule(pctx); err != nil {
			return e.fail(pctx, "", err)
		}
		e.applyMonitoringPreferences(pctx)
		return e.CancelProcess(ctx, pctx)
	case models.ProcessStateCreated, models.ProcessStateValidated:
		if state == models.ProcessStateCreated {
			if err := e.ValidateProcessContext(pctx); err != nil {
				return err
			}
		}
		if err := e.ScheduleProcess(pctx); err != nil {
			return err
		}
		return e.executeProcess(ctx, pctx, true)
	default: // SCHEDULED, LAUNCHED, EXECUTING
		if err := e.scheduler.Schedule(pctx); err != nil {
			return e.fail(pctx, "", err)
		}
		e.applyMonitoringPreferences(pctx)
		return e.executeProcess(ctx, pctx, true)
	}
}

// CancelProcess cancels the process: CANCELLING is recorded, the
// provider's cancel command runs against any submitted job, then
// CANCELED is recorded and the cancel request acknowledged.
func (e *Engine) CancelProcess(ctx context.Context, pctx *ProcessContext) error {
	pctx.SetCancelled()
	pctx.ProcessStatus = models.ProcessStatus{State: models.ProcessStateCancelling, Reason: "cancel requested"}
	if err := SaveAndPublishProcessStatus(pctx); err != nil {
		return e.fail(pctx, "", err)
	}

	if pctx.Job != nil && pctx.Provider != nil {
		tctx := &TaskContext{Parent: pctx}
		if t := pctx.JobSubmissionTask(); t != nil {
			tctx.TaskID = t.TaskID
			tctx.Task = t
		}
		if err := pctx.Provider.Cancel(ctx, tctx); err != nil {
			return e.fail(pctx, tctx.TaskID, err)
		}
	}

	pctx.ProcessStatus = models.ProcessStatus{State: models.ProcessStateCanceled, Reason: "cancel requested"}
	if err := SaveAndPublishProcessStatus(pctx); err != nil {
		return e.fail(pctx, "", err)
	}
	if _, err := e.coordinator.AckCancelRequest(ctx, pctx.ExperimentID); err != nil {
		log.Printf("Failed to acknowledge cancel request for experiment %s: %v", pctx.ExperimentID, err)
	}
	e.finalizeExperimentIfDone(ctx, pctx)
	return nil
}

// interrupted reports whether execution should stop at this interrupt
// point, checking the local flags, the process's delivery tag and the
// coordination layer's cancel marker. A tag differing from the one
// observed at populate time means another instance took the process
// over, and takes precedence over cancellation: the new owner cancels.
func (e *Engine) interrupted(ctx context.Context, pctx *ProcessContext) bool {
	if pctx.IsInterrupted() {
		return true
	}
	if pctx.DeliveryTag != 0 {
		tag, err := e.coordinator.GetProcessDeliveryTag(ctx, pctx.ExperimentID, pctx.ProcessID)
		if err == nil && tag != pctx.DeliveryTag {
			pctx.SetHandedOver()
			return true
		}
	}
	cancelled, err := e.coordinator.IsCancelRequested(ctx, pctx.ExperimentID)
	if err != nil {
		log.Printf("Failed to check cancel marker for experiment %s: %v", pctx.ExperimentID, err)
		return false
	}
	if cancelled {
		pctx.SetCancelled()
	}
	return cancelled
}

// handleInterrupt resolves an observed interrupt: a cancel request
// turns into cancellation, a hand-over just stops this instance's
// work without a status change.
func (e *Engine) handleInterrupt(ctx context.Context, pctx *ProcessContext) error {
	if pctx.IsHandedOver() {
		log.Printf("Process %s handed over, stopping execution", pctx.ProcessID)
		return nil
	}
	return e.CancelProcess(ctx, pctx)
}

// createTask persists a new task of the given type, links it into the
// process's task DAG and returns its context.
func (e *Engine) createTask(pctx *ProcessContext, taskType models.TaskType) (*TaskContext, error) {
	task := &models.TaskModel{
		TaskID:          uuid.New().String(),
		ParentProcessID: pctx.ProcessID,
		TaskType:        taskType,
	}
	switch taskType {
	case models.TaskTypeEnvSetup:
		task.SubTask.EnvSetup = &models.EnvironmentSetupSubTask{
			Location: pctx.WorkingDir,
			Protocol: pctx.SubmissionProtocol,
		}
	case models.TaskTypeDataStageIn:
		task.SubTask.DataStaging = &models.DataStagingSubTask{Destination: pctx.InputDir}
	case models.TaskTypeDataStageOut:
		task.SubTask.DataStaging = &models.DataStagingSubTask{Source: pctx.OutputDir}
	case models.TaskTypeJobSubmission:
		task.SubTask.JobSubmission = &models.JobSubmissionSubTask{Protocol: pctx.SubmissionProtocol}
	}
	if err := e.registry.CreateTask(task); err != nil {
		return nil, &DataAccessError{Msg: "creating " + string(taskType) + " task", Err: err}
	}
	pctx.Process.Tasks = append(pctx.Process.Tasks, task)

	dag := pctx.Process.TaskDAG
	if dag == "" {
		dag = task.TaskID
	} else {
		dag += "," + task.TaskID
	}
	if err := e.registry.UpdateTaskDAG(pctx.ProcessID, dag); err != nil {
		return nil, &DataAccessError{Msg: "updating task DAG of process " + pctx.ProcessID, Err: err}
	}
	pctx.Process.TaskDAG = dag
	return &TaskContext{TaskID: task.TaskID, Task: task, Parent: pctx}, nil
}

// failTask records the task failure, then the process failure, then
// rethrows. Persist first, propagate second.
func (e *Engine) failTask(pctx *ProcessContext, tctx *TaskContext, cause error) error {
	if err := SaveTaskError(tctx, models.ErrorModel{
		ActualErrorMessage:  cause.Error(),
		UserFriendlyMessage: string(tctx.Task.TaskType) + " task failed",
	}); err != nil {
		log.Printf("Failed to save error of task %s: %v", tctx.TaskID, err)
	}
	tctx.TaskStatus = models.TaskStatus{State: models.TaskStateFailed, Reason: cause.Error()}
	if err := SaveAndPublishTaskStatus(tctx); err != nil {
		log.Printf("Failed to save FAILED status of task %s: %v", tctx.TaskID, err)
	}
	return e.fail(pctx, tctx.TaskID, cause)
}

// fail records the process failure and returns the unified engine
// error wrapping the cause.
func (e *Engine) fail(pctx *ProcessContext, taskID string, cause error) error {
	if err := SaveProcessError(pctx, models.ErrorModel{
		ActualErrorMessage:  cause.Error(),
		UserFriendlyMessage: "process execution failed",
	}); err != nil {
		log.Printf("Failed to save error of process %s: %v", pctx.ProcessID, err)
	}
	pctx.ProcessStatus = models.ProcessStatus{State: models.ProcessStateFailed, Reason: cause.Error()}
	if err := SaveAndPublishProcessStatus(pctx); err != nil {
		log.Printf("Failed to save FAILED status of process %s: %v", pctx.ProcessID, err)
	}
	e.finalizeExperimentIfDone(context.Background(), pctx)
	return &Error{
		ExperimentID: pctx.ExperimentID,
		ProcessID:    pctx.ProcessID,
		TaskID:       taskID,
		Msg:          "process execution failed",
		Err:          cause,
	}
}

// finalizeExperimentIfDone records the experiment's terminal status
// once every process of the experiment is terminal, and removes the
// experiment's coordination node.
func (e *Engine) finalizeExperimentIfDone(ctx context.Context, pctx *ProcessContext) {
	processIDs, err := e.registry.ListProcessIDs(pctx.ExperimentID)
	if err != nil {
		log.Printf("Failed to list processes of experiment %s: %v", pctx.ExperimentID, err)
		return
	}
	var failed, canceled bool
	for _, id := range processIDs {
		process := pctx.Process
		if id != pctx.ProcessID {
			process, err = e.registry.GetProcess(id)
			if err != nil {
				log.Printf("Failed to load process %s: %v", id, err)
				return
			}
		}
		cur := process.CurrentStatus()
		if cur == nil || !cur.State.IsTerminal() {
			return
		}
		switch cur.State {
		case models.ProcessStateFailed:
			failed = true
		case models.ProcessStateCanceled:
			canceled = true
		}
	}

	state := models.ExperimentStateCompleted
	switch {
	case failed:
		state = models.ExperimentStateFailed
	case canceled:
		state = models.ExperimentStateCanceled
	}
	if err := SaveAndPublishExperimentStatus(e.registry, e.publisher, pctx.ExperimentID, pctx.GatewayID, state, ""); err != nil {
		log.Printf("Failed to record terminal status of experiment %s: %v", pctx.ExperimentID, err)
	}
	if err := e.coordinator.DeleteExperimentNode(ctx, pctx.ExperimentID); err != nil {
		log.Printf("Failed to remove coordination node of experiment %s: %v", pctx.ExperimentID, err)
	}
}

func taskOfType(pctx *ProcessContext, taskType models.TaskType) *models.TaskModel {
	for _, t := range pctx.Process.Tasks {
		if t.TaskType == taskType {
			return t
		}
	}
	return nil
}
