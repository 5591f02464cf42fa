package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"hpc-gateway/core/engine"
	"hpc-gateway/core/messaging"
	"hpc-gateway/core/models"
	"hpc-gateway/core/repository"
	"hpc-gateway/core/spec"

	"github.com/gorilla/mux"
)

// ExperimentHandler handles experiment-related HTTP requests
type ExperimentHandler struct {
	registry    *repository.Registry
	engine      *engine.Engine
	coordinator engine.Coordinator
	publisher   messaging.Publisher
}

// NewExperimentHandler creates a new experiment handler
func NewExperimentHandler(
	registry *repository.Registry,
	eng *engine.Engine,
	coordinator engine.Coordinator,
	publisher messaging.Publisher,
) *ExperimentHandler {
	return &ExperimentHandler{
		registry:    registry,
		engine:      eng,
		coordinator: coordinator,
		publisher:   publisher,
	}
}

// SubmitExperimentRequest is the request to submit an experiment
type SubmitExperimentRequest struct {
	SpecYAML string `json:"spec_yaml"`
}

// SubmitExperimentResponse is the response after submitting
type SubmitExperimentResponse struct {
	ExperimentID string    `json:"experiment_id"`
	ProcessIDs   []string  `json:"process_ids"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubmitExperiment handles POST /v1/experiments
func (h *ExperimentHandler) SubmitExperiment(w http.ResponseWriter, r *http.Request) {
	var req SubmitExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	experiment, err := spec.ParseExperimentSpec(req.SpecYAML)
	if err != nil {
		http.Error(w, "Invalid experiment spec: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.registry.CreateExperiment(experiment); err != nil {
		http.Error(w, "Failed to create experiment: "+err.Error(), http.StatusInternalServerError)
		return
	}

	processIDs := make([]string, 0, len(experiment.Processes))
	for _, proc := range experiment.Processes {
		proc.ExperimentID = experiment.ExperimentID
		if err := h.registry.CreateProcess(proc); err != nil {
			http.Error(w, "Failed to create process: "+err.Error(), http.StatusInternalServerError)
			return
		}
		processIDs = append(processIDs, proc.ProcessID)
	}

	resp := SubmitExperimentResponse{
		ExperimentID: experiment.ExperimentID,
		ProcessIDs:   processIDs,
		Status:       string(models.ExperimentStateCreated),
		CreatedAt:    experiment.CreatedAt,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// LaunchExperiment handles POST /v1/experiments/{id}/launch
func (h *ExperimentHandler) LaunchExperiment(w http.ResponseWriter, r *http.Request) {
	experimentID := mux.Vars(r)["id"]
	if err := h.engine.LaunchExperiment(r.Context(), experimentID); err != nil {
		http.Error(w, "Failed to launch experiment: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"experiment_id": experimentID,
		"status":        string(models.ExperimentStateLaunched),
	})
}

// GetExperiment handles GET /v1/experiments/{id}
func (h *ExperimentHandler) GetExperiment(w http.ResponseWriter, r *http.Request) {
	experimentID := mux.Vars(r)["id"]
	experiment, err := h.registry.GetExperiment(experimentID)
	if err != nil {
		http.Error(w, "Experiment not found", http.StatusNotFound)
		return
	}

	var status string
	if cur := experiment.CurrentStatus(); cur != nil {
		status = string(cur.State)
	}

	processes := []map[string]interface{}{}
	processIDs, err := h.registry.ListProcessIDs(experimentID)
	if err == nil {
		for _, pid := range processIDs {
			proc, err := h.registry.GetProcess(pid)
			if err != nil {
				continue
			}
			entry := map[string]interface{}{
				"process_id":       proc.ProcessID,
				"compute_resource": proc.ComputeResourceID,
			}
			if cur := proc.CurrentStatus(); cur != nil {
				entry["status"] = string(cur.State)
				entry["status_reason"] = cur.Reason
			}
			processes = append(processes, entry)
		}
	}

	response := map[string]interface{}{
		"experiment_id":         experiment.ExperimentID,
		"name":                  experiment.ExperimentName,
		"gateway_id":            experiment.GatewayID,
		"user_name":             experiment.UserName,
		"application_interface": experiment.ApplicationInterfaceID,
		"status":                status,
		"processes":             processes,
		"errors":                experiment.Errors,
		"created_at":            experiment.CreatedAt,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// CancelExperiment handles POST /v1/experiments/{id}/cancel. The
// cancel marker is written unconditionally; executing workers observe
// it at their next interrupt point.
func (h *ExperimentHandler) CancelExperiment(w http.ResponseWriter, r *http.Request) {
	experimentID := mux.Vars(r)["id"]
	experiment, err := h.registry.GetExperiment(experimentID)
	if err != nil {
		http.Error(w, "Experiment not found", http.StatusNotFound)
		return
	}
	if cur := experiment.CurrentStatus(); cur != nil && cur.State.IsTerminal() {
		http.Error(w, "Experiment already "+string(cur.State), http.StatusConflict)
		return
	}

	if err := h.coordinator.SetExperimentCancelRequest(r.Context(), experimentID); err != nil {
		http.Error(w, "Failed to request cancellation: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := engine.SaveAndPublishExperimentStatus(h.registry, h.publisher, experimentID, experiment.GatewayID,
		models.ExperimentStateCancelling, "cancel requested"); err != nil {
		log.Printf("Failed to record CANCELLING status of experiment %s: %v", experimentID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"experiment_id": experimentID,
		"status":        string(models.ExperimentStateCancelling),
	})
}

// GetProcess handles GET /v1/processes/{id}
func (h *ExperimentHandler) GetProcess(w http.ResponseWriter, r *http.Request) {
	processID := mux.Vars(r)["id"]
	proc, err := h.registry.GetProcess(processID)
	if err != nil {
		http.Error(w, "Process not found", http.StatusNotFound)
		return
	}

	tasks, _ := h.registry.GetTasksByProcess(processID)
	taskEntries := []map[string]interface{}{}
	for _, t := range tasks {
		entry := map[string]interface{}{
			"task_id":   t.TaskID,
			"task_type": string(t.TaskType),
		}
		if cur := t.CurrentStatus(); cur != nil {
			entry["status"] = string(cur.State)
		}
		taskEntries = append(taskEntries, entry)
	}

	jobs, _ := h.registry.GetJobsByProcess(processID)
	jobEntries := []map[string]interface{}{}
	for _, j := range jobs {
		entry := map[string]interface{}{
			"job_id":    j.JobID,
			"job_name":  j.JobName,
			"exit_code": j.ExitCode,
		}
		if cur := j.CurrentStatus(); cur != nil {
			entry["status"] = string(cur.State)
		}
		jobEntries = append(jobEntries, entry)
	}

	response := map[string]interface{}{
		"process_id":       proc.ProcessID,
		"experiment_id":    proc.ExperimentID,
		"compute_resource": proc.ComputeResourceID,
		"task_dag":         proc.TaskDAG,
		"tasks":            taskEntries,
		"jobs":             jobEntries,
		"errors":           proc.Errors,
		"created_at":       proc.CreatedAt,
	}
	if cur := proc.CurrentStatus(); cur != nil {
		response["status"] = string(cur.State)
		response["status_reason"] = cur.Reason
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
