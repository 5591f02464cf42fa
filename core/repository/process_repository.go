package repository

import (
	"database/sql"
	"time"

	"hpc-gateway/core/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProcessRepository handles database operations for processes
type ProcessRepository struct {
	db *DB
}

// NewProcessRepository creates a new process repository
func NewProcessRepository(db *DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

// CreateProcess creates a new process with an initial CREATED status
func (r *ProcessRepository) CreateProcess(proc *models.ProcessModel) error {
	if proc.ProcessID == "" {
		proc.ProcessID = uuid.New().String()
	}
	proc.CreatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO processes (
			id, experiment_id, application_deployment_id, application_interface_id,
			compute_resource_id, queue_name, node_count, total_cpu_count,
			wall_time_limit, total_physical_memory, task_dag,
			enable_email_notification, email_addresses, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.Exec(query,
		proc.ProcessID,
		proc.ExperimentID,
		proc.ApplicationDeploymentID,
		proc.ApplicationInterfaceID,
		proc.ComputeResourceID,
		proc.ResourceSchedule.QueueName,
		proc.ResourceSchedule.NodeCount,
		proc.ResourceSchedule.TotalCPUCount,
		proc.ResourceSchedule.WallTimeLimit,
		proc.ResourceSchedule.TotalPhysicalMemory,
		proc.TaskDAG,
		proc.EnableEmailNotification,
		pq.Array(proc.EmailAddresses),
		proc.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, in := range proc.Inputs {
		if err := insertDataObjectTx(tx, "process_inputs", proc.ProcessID, in.Name, in.Value,
			string(in.Type), in.ApplicationArgument, in.InputOrder, in.RequiredToCommandLine); err != nil {
			return err
		}
	}
	for _, out := range proc.Outputs {
		if err := insertDataObjectTx(tx, "process_outputs", proc.ProcessID, out.Name, out.Value,
			string(out.Type), out.ApplicationArgument, 0, out.RequiredToCommandLine); err != nil {
			return err
		}
	}

	status := models.ProcessStatus{
		StatusID:          uuid.New().String(),
		State:             models.ProcessStateCreated,
		TimeOfStateChange: time.Now(),
		Reason:            "process created",
	}
	if err := addProcessStatusTx(tx, proc.ProcessID, status); err != nil {
		return err
	}
	proc.Statuses = append(proc.Statuses, status)

	return tx.Commit()
}

// GetProcess retrieves a process with inputs, outputs, statuses and errors
func (r *ProcessRepository) GetProcess(id string) (*models.ProcessModel, error) {
	query := `
		SELECT id, experiment_id, application_deployment_id, application_interface_id,
			compute_resource_id, queue_name, node_count, total_cpu_count,
			wall_time_limit, total_physical_memory, task_dag,
			enable_email_notification, email_addresses, created_at
		FROM processes
		WHERE id = $1
	`
	var proc models.ProcessModel
	err := r.db.QueryRow(query, id).Scan(
		&proc.ProcessID,
		&proc.ExperimentID,
		&proc.ApplicationDeploymentID,
		&proc.ApplicationInterfaceID,
		&proc.ComputeResourceID,
		&proc.ResourceSchedule.QueueName,
		&proc.ResourceSchedule.NodeCount,
		&proc.ResourceSchedule.TotalCPUCount,
		&proc.ResourceSchedule.WallTimeLimit,
		&proc.ResourceSchedule.TotalPhysicalMemory,
		&proc.TaskDAG,
		&proc.EnableEmailNotification,
		pq.Array(&proc.EmailAddresses),
		&proc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	proc.Inputs, err = getDataObjects(r.db, "process_inputs", "parent_id", id)
	if err != nil {
		return nil, err
	}
	proc.Outputs, err = getOutputObjects(r.db, "process_outputs", "parent_id", id)
	if err != nil {
		return nil, err
	}
	proc.Statuses, err = r.GetProcessStatuses(id)
	if err != nil {
		return nil, err
	}
	proc.Errors, err = getErrors(r.db, "process_errors", "process_id", id)
	if err != nil {
		return nil, err
	}
	return &proc, nil
}

// ListProcessIDs returns the IDs of an experiment's processes in creation order
func (r *ProcessRepository) ListProcessIDs(experimentID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT id FROM processes WHERE experiment_id = $1 ORDER BY created_at ASC`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUnfinishedProcessRefs returns every process whose latest
// recorded state is not terminal. Used by the recovery sweep after a
// restart.
func (r *ProcessRepository) ListUnfinishedProcessRefs() ([]models.ProcessRef, error) {
	query := `
		SELECT p.experiment_id, p.id
		FROM processes p
		JOIN (
			SELECT DISTINCT ON (process_id) process_id, state
			FROM process_statuses
			ORDER BY process_id, time_of_state_change DESC
		) latest ON latest.process_id = p.id
		WHERE latest.state NOT IN ('COMPLETED', 'FAILED', 'CANCELED')
		ORDER BY p.created_at ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []models.ProcessRef
	for rows.Next() {
		var ref models.ProcessRef
		if err := rows.Scan(&ref.ExperimentID, &ref.ProcessID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// GetProcessStatuses returns the process's status history ordered by time
func (r *ProcessRepository) GetProcessStatuses(id string) ([]models.ProcessStatus, error) {
	query := `
		SELECT id, state, time_of_state_change, reason
		FROM process_statuses
		WHERE process_id = $1
		ORDER BY time_of_state_change ASC
	`
	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []models.ProcessStatus
	for rows.Next() {
		var s models.ProcessStatus
		if err := rows.Scan(&s.StatusID, &s.State, &s.TimeOfStateChange, &s.Reason); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// AddProcessStatus appends a status record to the process's history
func (r *ProcessRepository) AddProcessStatus(processID string, status models.ProcessStatus) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := addProcessStatusTx(tx, processID, status); err != nil {
		return err
	}
	return tx.Commit()
}

func addProcessStatusTx(tx *sql.Tx, processID string, status models.ProcessStatus) error {
	query := `
		INSERT INTO process_statuses (id, process_id, state, time_of_state_change, reason)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(query, status.StatusID, processID, status.State, status.TimeOfStateChange, status.Reason)
	return err
}

// AddProcessError appends an error record to the process
func (r *ProcessRepository) AddProcessError(processID string, errModel models.ErrorModel) error {
	return addError(r.db, "process_errors", "process_id", processID, errModel)
}

// UpdateTaskDAG stores the ordered, comma-separated task ID list
func (r *ProcessRepository) UpdateTaskDAG(processID, taskDAG string) error {
	_, err := r.db.Exec(`UPDATE processes SET task_dag = $1 WHERE id = $2`, taskDAG, processID)
	return err
}
