package tracker

import (
	"errors"
	"fmt"

	"github.com/soundforge/studio/internal/model"
)

var (
	ErrBusy         = errors.New("tracker: a generation is already in progress")
	ErrJobNotFound  = errors.New("tracker: job not found")
	ErrJobNotQueued = errors.New("tracker: job is not queued")
	ErrQueueTimeout = errors.New("tracker: job was never picked up")
)

// JobFailure is delivered to OnFailure when a job cannot produce an asset.
type JobFailure struct {
	JobID string
	Err   error
	Job   model.JobSnapshot
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("tracker: job %s failed: %v", e.JobID, e.Err)
}

func (e *JobFailure) Unwrap() error {
	return e.Err
}
