package leadscout

import (
	"context"
	"time"
)

// JobKind identifies the pipeline operation a job runs.
type JobKind string

// JobKind constants.
const (
	JobPipeline JobKind = "pipeline"
	JobDiscover JobKind = "discover"
	JobVet      JobKind = "vet"
	JobRevet    JobKind = "revet"
	JobCrawl    JobKind = "crawl"
	JobExtract  JobKind = "extract"
	JobEmbed    JobKind = "embed"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

// JobStatus constants.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCanceled
}

// Job is an asynchronous pipeline operation that callers poll for status.
type Job struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	Target     string    `json:"target,omitempty"`
	Status     JobStatus `json:"status"`
	Progress   string    `json:"progress,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// JobService represents a service for managing jobs.
type JobService interface {
	// CreateJob stores a new pending job and assigns its ID.
	CreateJob(ctx context.Context, job *Job) error

	// FindJobByID retrieves a job.
	// Returns ENOTFOUND if the job does not exist.
	FindJobByID(ctx context.Context, id string) (*Job, error)

	// FindJobs retrieves jobs, newest first.
	FindJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// UpdateJob applies an update to a job.
	UpdateJob(ctx context.Context, id string, upd JobUpdate) (*Job, error)
}

// JobFilter represents a filter for FindJobs.
type JobFilter struct {
	Kind   *JobKind
	Status *JobStatus

	Offset int
	Limit  int
}

// JobUpdate represents a set of job fields to update.
type JobUpdate struct {
	Status     *JobStatus
	Progress   *string
	Error      *string
	StartedAt  *time.Time
	FinishedAt *time.Time
}
