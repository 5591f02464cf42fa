package repository

import (
	"database/sql"
	"time"

	"hpc-gateway/core/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func insertDataObjectTx(tx *sql.Tx, table, parentID, name, value, dataType, appArg string, inputOrder int, required bool) error {
	query := `
		INSERT INTO ` + table + ` (parent_id, name, value, data_type, application_argument, input_order, required_to_command_line)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(query, parentID, name, value, dataType, appArg, inputOrder, required)
	return err
}

func getDataObjects(db *DB, table, parentCol, parentID string) ([]models.InputDataObject, error) {
	query := `
		SELECT name, value, data_type, application_argument, input_order, required_to_command_line
		FROM ` + table + `
		WHERE parent_id = $1
		ORDER BY input_order ASC
	`
	rows, err := db.Query(query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inputs []models.InputDataObject
	for rows.Next() {
		var in models.InputDataObject
		if err := rows.Scan(&in.Name, &in.Value, &in.Type, &in.ApplicationArgument, &in.InputOrder, &in.RequiredToCommandLine); err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

func getOutputObjects(db *DB, table, parentCol, parentID string) ([]models.OutputDataObject, error) {
	query := `
		SELECT name, value, data_type, application_argument, required_to_command_line
		FROM ` + table + `
		WHERE parent_id = $1
	`
	rows, err := db.Query(query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outputs []models.OutputDataObject
	for rows.Next() {
		var out models.OutputDataObject
		if err := rows.Scan(&out.Name, &out.Value, &out.Type, &out.ApplicationArgument, &out.RequiredToCommandLine); err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

func addError(db *DB, table, parentCol, parentID string, errModel models.ErrorModel) error {
	if errModel.ErrorID == "" {
		errModel.ErrorID = uuid.New().String()
	}
	if errModel.CreatedAt.IsZero() {
		errModel.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO ` + table + ` (id, ` + parentCol + `, created_at, actual_error_message, user_friendly_message, transient, root_cause_error_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Exec(query,
		errModel.ErrorID,
		parentID,
		errModel.CreatedAt,
		errModel.ActualErrorMessage,
		errModel.UserFriendlyMessage,
		errModel.TransientOrPersist,
		pq.Array(errModel.RootCauseErrorIDs),
	)
	return err
}

func getErrors(db *DB, table, parentCol, parentID string) ([]models.ErrorModel, error) {
	query := `
		SELECT id, created_at, actual_error_message, user_friendly_message, transient, root_cause_error_ids
		FROM ` + table + `
		WHERE ` + parentCol + ` = $1
		ORDER BY created_at ASC
	`
	rows, err := db.Query(query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []models.ErrorModel
	for rows.Next() {
		var e models.ErrorModel
		if err := rows.Scan(&e.ErrorID, &e.CreatedAt, &e.ActualErrorMessage, &e.UserFriendlyMessage,
			&e.TransientOrPersist, pq.Array(&e.RootCauseErrorIDs)); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
