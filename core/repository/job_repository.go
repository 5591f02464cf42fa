package repository

import (
	"database/sql"
	"time"

	"hpc-gateway/core/models"

	"github.com/google/uuid"
)

// JobRepository handles database operations for jobs
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob records a job submission attempt. The (job_id, task_id)
// pair is the composite key; job_id comes from the resource manager.
func (r *JobRepository) CreateJob(job *models.JobModel) error {
	job.CreatedAt = time.Now()
	query := `
		INSERT INTO jobs (
			job_id, task_id, process_id, job_name, job_description,
			working_dir, stdout_path, stderr_path, exit_code, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(query,
		job.JobID,
		job.TaskID,
		job.ProcessID,
		job.JobName,
		job.JobDescription,
		job.WorkingDir,
		job.StdOutPath,
		job.StdErrPath,
		job.ExitCode,
		job.CreatedAt,
	)
	return err
}

// GetJob retrieves a job by its composite key
func (r *JobRepository) GetJob(jobID, taskID string) (*models.JobModel, error) {
	query := `
		SELECT job_id, task_id, process_id, job_name, job_description,
			working_dir, stdout_path, stderr_path, exit_code, created_at
		FROM jobs
		WHERE job_id = $1 AND task_id = $2
	`
	var job models.JobModel
	err := r.db.QueryRow(query, jobID, taskID).Scan(
		&job.JobID,
		&job.TaskID,
		&job.ProcessID,
		&job.JobName,
		&job.JobDescription,
		&job.WorkingDir,
		&job.StdOutPath,
		&job.StdErrPath,
		&job.ExitCode,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Statuses, err = r.GetJobStatuses(jobID, taskID)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobsByProcess retrieves all jobs recorded for a process
func (r *JobRepository) GetJobsByProcess(processID string) ([]*models.JobModel, error) {
	rows, err := r.db.Query(`SELECT job_id, task_id FROM jobs WHERE process_id = $1 ORDER BY created_at ASC`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type key struct{ jobID, taskID string }
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.jobID, &k.taskID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var jobs []*models.JobModel
	for _, k := range keys {
		job, err := r.GetJob(k.jobID, k.taskID)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// GetJobStatuses returns the job's status history ordered by time
func (r *JobRepository) GetJobStatuses(jobID, taskID string) ([]models.JobStatus, error) {
	query := `
		SELECT id, state, time_of_state_change, reason
		FROM job_statuses
		WHERE job_id = $1 AND task_id = $2
		ORDER BY time_of_state_change ASC
	`
	rows, err := r.db.Query(query, jobID, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []models.JobStatus
	for rows.Next() {
		var s models.JobStatus
		if err := rows.Scan(&s.StatusID, &s.State, &s.TimeOfStateChange, &s.Reason); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// AddJobStatus appends a status record to the job's history
func (r *JobRepository) AddJobStatus(jobID, taskID string, status models.JobStatus) error {
	if status.StatusID == "" {
		status.StatusID = uuid.New().String()
	}
	query := `
		INSERT INTO job_statuses (id, job_id, task_id, state, time_of_state_change, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(query, status.StatusID, jobID, taskID, status.State, status.TimeOfStateChange, status.Reason)
	return err
}

// UpdateJobExitCode records the exit code reported by the resource manager
func (r *JobRepository) UpdateJobExitCode(jobID, taskID string, exitCode int) error {
	res, err := r.db.Exec(`UPDATE jobs SET exit_code = $1 WHERE job_id = $2 AND task_id = $3`, exitCode, jobID, taskID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
