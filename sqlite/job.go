package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/oklog/ulid/v2"
)

// Compile-time interface verification.
var _ leadscout.JobService = (*JobService)(nil)

const jobColumns = "id, kind, target, status, progress, error, created_at, started_at, finished_at"

// JobService implements leadscout.JobService using SQLite. Job IDs are
// ULIDs so lexical order is creation order.
type JobService struct {
	db *DB
}

// NewJobService creates a new JobService.
func NewJobService(db *DB) *JobService {
	return &JobService{db: db}
}

// CreateJob stores a new pending job.
func (s *JobService) CreateJob(ctx context.Context, job *leadscout.Job) error {
	if job.Kind == "" {
		return leadscout.Errorf(leadscout.EINVALID, "job kind required")
	}
	job.ID = ulid.Make().String()
	job.Status = leadscout.JobPending
	job.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, target, status, created_at) VALUES (?, ?, ?, ?, ?)
	`, job.ID, job.Kind, job.Target, job.Status, formatTime(job.CreatedAt))
	return err
}

// FindJobByID retrieves a job.
func (s *JobService) FindJobByID(ctx context.Context, id string) (*leadscout.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "job %q not found", id)
	}
	return job, err
}

// FindJobs retrieves jobs, newest first.
func (s *JobService) FindJobs(ctx context.Context, filter leadscout.JobFilter) ([]*leadscout.Job, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + jobColumns + " FROM jobs WHERE 1=1")
	if filter.Kind != nil {
		query.WriteString(" AND kind = ?")
		args = append(args, *filter.Kind)
	}
	if filter.Status != nil {
		query.WriteString(" AND status = ?")
		args = append(args, *filter.Status)
	}
	query.WriteString(" ORDER BY id DESC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*leadscout.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob applies an update to a job.
func (s *JobService) UpdateJob(ctx context.Context, id string, upd leadscout.JobUpdate) (*leadscout.Job, error) {
	job, err := s.FindJobByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.Progress != nil {
		job.Progress = *upd.Progress
	}
	if upd.Error != nil {
		job.Error = *upd.Error
	}
	if upd.StartedAt != nil {
		job.StartedAt = *upd.StartedAt
	}
	if upd.FinishedAt != nil {
		job.FinishedAt = *upd.FinishedAt
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, progress = ?, error = ?, started_at = ?, finished_at = ?
		WHERE id = ?
	`, job.Status, job.Progress, job.Error, formatTime(job.StartedAt), formatTime(job.FinishedAt), id)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func scanJob(row scanner) (*leadscout.Job, error) {
	var job leadscout.Job
	var createdAt, startedAt, finishedAt string
	if err := row.Scan(&job.ID, &job.Kind, &job.Target, &job.Status, &job.Progress, &job.Error,
		&createdAt, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	var err error
	if job.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if job.StartedAt, err = parseOptionalTime(startedAt, "started_at"); err != nil {
		return nil, err
	}
	if job.FinishedAt, err = parseOptionalTime(finishedAt, "finished_at"); err != nil {
		return nil, err
	}
	return &job, nil
}
