package repository

import "hpc-gateway/core/models"

// Registry aggregates the per-entity repositories behind the engine's
// persistence interface.
type Registry struct {
	*ExperimentRepository
	*ProcessRepository
	*TaskRepository
	*JobRepository
	db *DB
}

// NewRegistry creates the aggregate registry over one database handle
func NewRegistry(db *DB) *Registry {
	return &Registry{
		ExperimentRepository: NewExperimentRepository(db),
		ProcessRepository:    NewProcessRepository(db),
		TaskRepository:       NewTaskRepository(db),
		JobRepository:        NewJobRepository(db),
		db:                   db,
	}
}

// CountProcessesByState returns, per state, how many processes
// currently have that state as their latest status.
func (r *Registry) CountProcessesByState() (map[models.ProcessState]int, error) {
	query := `
		SELECT state, COUNT(*) FROM (
			SELECT DISTINCT ON (process_id) process_id, state
			FROM process_statuses
			ORDER BY process_id, time_of_state_change DESC
		) latest
		GROUP BY state
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ProcessState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[models.ProcessState(state)] = count
	}
	return counts, rows.Err()
}

// CountJobsByState returns, per state, how many jobs currently have
// that state as their latest status.
func (r *Registry) CountJobsByState() (map[models.JobState]int, error) {
	query := `
		SELECT state, COUNT(*) FROM (
			SELECT DISTINCT ON (job_id, task_id) job_id, task_id, state
			FROM job_statuses
			ORDER BY job_id, task_id, time_of_state_change DESC
		) latest
		GROUP BY state
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.JobState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[models.JobState(state)] = count
	}
	return counts, rows.Err()
}
