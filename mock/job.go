package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var _ leadscout.JobService = (*JobService)(nil)

// JobService is a mock implementation of leadscout.JobService.
type JobService struct {
	CreateJobFn   func(ctx context.Context, job *leadscout.Job) error
	FindJobByIDFn func(ctx context.Context, id string) (*leadscout.Job, error)
	FindJobsFn    func(ctx context.Context, filter leadscout.JobFilter) ([]*leadscout.Job, error)
	UpdateJobFn   func(ctx context.Context, id string, upd leadscout.JobUpdate) (*leadscout.Job, error)
}

func (s *JobService) CreateJob(ctx context.Context, job *leadscout.Job) error {
	return s.CreateJobFn(ctx, job)
}

func (s *JobService) FindJobByID(ctx context.Context, id string) (*leadscout.Job, error) {
	return s.FindJobByIDFn(ctx, id)
}

func (s *JobService) FindJobs(ctx context.Context, filter leadscout.JobFilter) ([]*leadscout.Job, error) {
	return s.FindJobsFn(ctx, filter)
}

func (s *JobService) UpdateJob(ctx context.Context, id string, upd leadscout.JobUpdate) (*leadscout.Job, error) {
	return s.UpdateJobFn(ctx, id, upd)
}
