package repository

import (
	"database/sql"
	"time"

	"hpc-gateway/core/models"

	"github.com/google/uuid"
)

// ExperimentRepository handles database operations for experiments
type ExperimentRepository struct {
	db *DB
}

// NewExperimentRepository creates a new experiment repository
func NewExperimentRepository(db *DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

// CreateExperiment creates a new experiment with an initial CREATED status
func (r *ExperimentRepository) CreateExperiment(exp *models.ExperimentModel) error {
	if exp.ExperimentID == "" {
		exp.ExperimentID = uuid.New().String()
	}
	exp.CreatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO experiments (id, gateway_id, user_name, name, description, application_interface_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(query,
		exp.ExperimentID,
		exp.GatewayID,
		exp.UserName,
		exp.ExperimentName,
		exp.Description,
		exp.ApplicationInterfaceID,
		exp.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, in := range exp.Inputs {
		if err := insertDataObjectTx(tx, "experiment_inputs", exp.ExperimentID, in.Name, in.Value,
			string(in.Type), in.ApplicationArgument, in.InputOrder, in.RequiredToCommandLine); err != nil {
			return err
		}
	}
	for _, out := range exp.Outputs {
		if err := insertDataObjectTx(tx, "experiment_outputs", exp.ExperimentID, out.Name, out.Value,
			string(out.Type), out.ApplicationArgument, 0, out.RequiredToCommandLine); err != nil {
			return err
		}
	}

	status := models.ExperimentStatus{
		StatusID:          uuid.New().String(),
		State:             models.ExperimentStateCreated,
		TimeOfStateChange: time.Now(),
		Reason:            "experiment created",
	}
	if err := addExperimentStatusTx(tx, exp.ExperimentID, status); err != nil {
		return err
	}
	exp.Statuses = append(exp.Statuses, status)

	return tx.Commit()
}

// GetExperiment retrieves an experiment with its status and error history
func (r *ExperimentRepository) GetExperiment(id string) (*models.ExperimentModel, error) {
	query := `
		SELECT id, gateway_id, user_name, name, description, application_interface_id, created_at
		FROM experiments
		WHERE id = $1
	`
	var exp models.ExperimentModel
	err := r.db.QueryRow(query, id).Scan(
		&exp.ExperimentID,
		&exp.GatewayID,
		&exp.UserName,
		&exp.ExperimentName,
		&exp.Description,
		&exp.ApplicationInterfaceID,
		&exp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	exp.Inputs, err = r.getInputs(id)
	if err != nil {
		return nil, err
	}
	exp.Outputs, err = r.getOutputs(id)
	if err != nil {
		return nil, err
	}
	exp.Statuses, err = r.GetExperimentStatuses(id)
	if err != nil {
		return nil, err
	}
	exp.Errors, err = getErrors(r.db, "experiment_errors", "experiment_id", id)
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// GetExperimentStatuses returns the experiment's status history ordered by time
func (r *ExperimentRepository) GetExperimentStatuses(id string) ([]models.ExperimentStatus, error) {
	query := `
		SELECT id, state, time_of_state_change, reason
		FROM experiment_statuses
		WHERE experiment_id = $1
		ORDER BY time_of_state_change ASC
	`
	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []models.ExperimentStatus
	for rows.Next() {
		var s models.ExperimentStatus
		if err := rows.Scan(&s.StatusID, &s.State, &s.TimeOfStateChange, &s.Reason); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// AddExperimentStatus appends a status record to the experiment's history
func (r *ExperimentRepository) AddExperimentStatus(experimentID string, status models.ExperimentStatus) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := addExperimentStatusTx(tx, experimentID, status); err != nil {
		return err
	}
	return tx.Commit()
}

func addExperimentStatusTx(tx *sql.Tx, experimentID string, status models.ExperimentStatus) error {
	query := `
		INSERT INTO experiment_statuses (id, experiment_id, state, time_of_state_change, reason)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(query, status.StatusID, experimentID, status.State, status.TimeOfStateChange, status.Reason)
	return err
}

// AddExperimentError appends an error record to the experiment
func (r *ExperimentRepository) AddExperimentError(experimentID string, errModel models.ErrorModel) error {
	return addError(r.db, "experiment_errors", "experiment_id", experimentID, errModel)
}

func (r *ExperimentRepository) getInputs(id string) ([]models.InputDataObject, error) {
	return getDataObjects(r.db, "experiment_inputs", "experiment_id", id)
}

func (r *ExperimentRepository) getOutputs(id string) ([]models.OutputDataObject, error) {
	return getOutputObjects(r.db, "experiment_outputs", "experiment_id", id)
}
