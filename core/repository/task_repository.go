package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"hpc-gateway/core/models"

	"github.com/google/uuid"
)

// TaskRepository handles database operations for tasks
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateTask creates a new task with an initial CREATED status. The
// sub-task payload is stored as a JSON document keyed by task type.
func (r *TaskRepository) CreateTask(task *models.TaskModel) error {
	if task.TaskID == "" {
		task.TaskID = uuid.New().String()
	}
	task.CreatedAt = time.Now()

	subTask, err := json.Marshal(task.SubTask)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tasks (id, process_id, task_type, sub_task_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.Exec(query, task.TaskID, task.ParentProcessID, task.TaskType, subTask, task.CreatedAt)
	if err != nil {
		return err
	}

	status := models.TaskStatus{
		StatusID:          uuid.New().String(),
		State:             models.TaskStateCreated,
		TimeOfStateChange: time.Now(),
		Reason:            "task created",
	}
	if err := addTaskStatusTx(tx, task.TaskID, status); err != nil {
		return err
	}
	task.Statuses = append(task.Statuses, status)

	return tx.Commit()
}

// GetTask retrieves a task with its status and error history
func (r *TaskRepository) GetTask(id string) (*models.TaskModel, error) {
	query := `
		SELECT id, process_id, task_type, sub_task_json, created_at
		FROM tasks
		WHERE id = $1
	`
	var task models.TaskModel
	var subTask []byte
	err := r.db.QueryRow(query, id).Scan(&task.TaskID, &task.ParentProcessID, &task.TaskType, &subTask, &task.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(subTask, &task.SubTask); err != nil {
		return nil, err
	}

	task.Statuses, err = r.GetTaskStatuses(id)
	if err != nil {
		return nil, err
	}
	task.Errors, err = getErrors(r.db, "task_errors", "task_id", id)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTasksByProcess retrieves all tasks of a process in creation order
func (r *TaskRepository) GetTasksByProcess(processID string) ([]*models.TaskModel, error) {
	rows, err := r.db.Query(`SELECT id FROM tasks WHERE process_id = $1 ORDER BY created_at ASC`, processID)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var tasks []*models.TaskModel
	for _, id := range ids {
		task, err := r.GetTask(id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// GetTaskStatuses returns the task's status history ordered by time
func (r *TaskRepository) GetTaskStatuses(id string) ([]models.TaskStatus, error) {
	query := `
		SELECT id, state, time_of_state_change, reason
		FROM task_statuses
		WHERE task_id = $1
		ORDER BY time_of_state_change ASC
	`
	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []models.TaskStatus
	for rows.Next() {
		var s models.TaskStatus
		if err := rows.Scan(&s.StatusID, &s.State, &s.TimeOfStateChange, &s.Reason); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// AddTaskStatus appends a status record to the task's history
func (r *TaskRepository) AddTaskStatus(taskID string, status models.TaskStatus) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := addTaskStatusTx(tx, taskID, status); err != nil {
		return err
	}
	return tx.Commit()
}

func addTaskStatusTx(tx *sql.Tx, taskID string, status models.TaskStatus) error {
	query := `
		INSERT INTO task_statuses (id, task_id, state, time_of_state_change, reason)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(query, status.StatusID, taskID, status.State, status.TimeOfStateChange, status.Reason)
	return err
}

// AddTaskError appends an error record to the task
func (r *TaskRepository) AddTaskError(taskID string, errModel models.ErrorModel) error {
	return addError(r.db, "task_errors", "task_id", taskID, errModel)
}
