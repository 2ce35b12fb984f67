package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobRepo handles database operations for download jobs.
type JobRepo struct {
	db *DB
}

var _ JobRepository = (*JobRepo)(nil)

func NewJobRepository(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, broadcast_id, quality, status, file_path, file_size, error_message,
       retry_count, next_attempt_at, started_at, completed_at, delete_after, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*DownloadJob, error) {
	var j DownloadJob
	err := row.Scan(
		&j.ID, &j.BroadcastID, &j.Quality, &j.Status, &j.FilePath, &j.FileSize, &j.ErrorMessage,
		&j.RetryCount, &j.NextAttemptAt, &j.StartedAt, &j.CompletedAt, &j.DeleteAfter, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts a pending job for the (broadcast, quality) pair
// unless one already exists. The unique index makes concurrent
// creation attempts collapse to one row; the boolean reports whether
// this call inserted it.
func (r *JobRepo) CreateJob(broadcastID, quality string) (*DownloadJob, bool, error) {
	id := uuid.NewString()
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO download_jobs (id, broadcast_id, quality, status)
		VALUES (?, ?, ?, ?)
	`, id, broadcastID, quality, JobPending)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert download job: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}

	job, err := r.GetJobForBroadcast(broadcastID, quality)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, fmt.Errorf("download job for broadcast %s quality %s missing after insert", broadcastID, quality)
	}

	return job, inserted > 0, nil
}

func (r *JobRepo) GetJob(id string) (*DownloadJob, error) {
	row := r.db.QueryRow(`
		SELECT `+jobColumns+`
		FROM download_jobs
		WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download job: %w", err)
	}
	return job, nil
}

func (r *JobRepo) GetJobForBroadcast(broadcastID, quality string) (*DownloadJob, error) {
	row := r.db.QueryRow(`
		SELECT `+jobColumns+`
		FROM download_jobs
		WHERE broadcast_id = ? AND quality = ?
	`, broadcastID, quality)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download job for broadcast: %w", err)
	}
	return job, nil
}

func (r *JobRepo) queryJobs(query string, args ...any) ([]DownloadJob, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query download jobs: %w", err)
	}
	defer rows.Close()

	var jobs []DownloadJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download job row: %w", err)
		}
		jobs = append(jobs, *j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating download job rows: %w", err)
	}

	return jobs, nil
}

func (r *JobRepo) GetJobsByBroadcast(broadcastID string) ([]DownloadJob, error) {
	return r.queryJobs(`
		SELECT `+jobColumns+`
		FROM download_jobs
		WHERE broadcast_id = ?
		ORDER BY created_at
	`, broadcastID)
}

// GetDispatchablePendingJobs returns pending jobs whose backoff gate
// has passed, oldest first.
func (r *JobRepo) GetDispatchablePendingJobs(now time.Time) ([]DownloadJob, error) {
	return r.queryJobs(`
		SELECT `+jobColumns+`
		FROM download_jobs
		WHERE status = ?
		  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY created_at
	`, JobPending, now.UTC())
}

// GetStuckJobs returns downloading jobs with no progress update since
// the given time.
func (r *JobRepo) GetStuckJobs(updatedBefore time.Time) ([]DownloadJob, error) {
	return r.queryJobs(`
		SELECT `+jobColumns+`
		FROM download_jobs
		WHERE status = ? AND updated_at < ?
		ORDER BY updated_at
	`, JobDownloading, updatedBefore.UTC())
}

// GetExpiredJobs returns completed jobs past their retention time.
func (r *JobRepo) GetExpiredJobs(now time.Time) ([]DownloadJob, error) {
	return r.queryJobs(`
		SELECT `+jobColumns+`
		FROM download_jobs
		WHERE status = ? AND delete_after IS NOT NULL AND delete_after < ?
		ORDER BY delete_after
	`, JobCompleted, now.UTC())
}

func (r *JobRepo) MarkDownloading(id string) error {
	_, err := r.db.Exec(`
		UPDATE download_jobs
		SET status = ?, started_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, JobDownloading, id)
	if err != nil {
		return fmt.Errorf("failed to mark job downloading: %w", err)
	}
	return nil
}

func (r *JobRepo) MarkCompleted(id, filePath string, fileSize int64) error {
	_, err := r.db.Exec(`
		UPDATE download_jobs
		SET status = ?, file_path = ?, file_size = ?, error_message = '',
		    completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, JobCompleted, filePath, fileSize, id)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

func (r *JobRepo) MarkFailed(id, errorMessage string) error {
	_, err := r.db.Exec(`
		UPDATE download_jobs
		SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, JobFailed, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func (r *JobRepo) MarkCancelled(id string) error {
	_, err := r.db.Exec(`
		UPDATE download_jobs
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, JobCancelled, id)
	if err != nil {
		return fmt.Errorf("failed to mark job cancelled: %w", err)
	}
	return nil
}

// ScheduleRetry returns a failed attempt to pending with the backoff
// gate set and the retry counter bumped. The error message is kept so
// the last failure stays visible while the job waits.
func (r *JobRepo) ScheduleRetry(id, errorMessage string, nextAttempt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE download_jobs
		SET status = ?, error_message = ?, retry_count = retry_count + 1,
		    next_attempt_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, JobPending, errorMessage, nextAttempt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to schedule job retry: %w", err)
	}
	return nil
}

// ResetJob reverts a job to a fresh pending state. Operator recovery
// path behind the force-restart endpoint.
func (r *JobRepo) ResetJob(id string) error {
	_, err := r.db.Exec(`
		UPDATE download_jobs
		SET status = ?, error_message = '', retry_count = 0,
		    next_attempt_at = NULL, started_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, JobPending, id)
	if err != nil {
		return fmt.Errorf("failed to reset job: %w", err)
	}
	return nil
}

func (r *JobRepo) DeleteJob(id string) error {
	_, err := r.db.Exec(`DELETE FROM download_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (r *JobRepo) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM download_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}
