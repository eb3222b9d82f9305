package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/soundforge/studio/internal/model"
	"github.com/soundforge/studio/internal/tracker"
)

const (
	TaskTypeGenerate = "generation:process"
	QueueGeneration  = "generation"
)

type generationTaskPayload struct {
	JobID   string                  `json:"jobId"`
	Payload model.GenerationRequest `json:"payload"`
}

// NewGenerationTask builds the task that runs jobID
func NewGenerationTask(jobID string, req model.GenerationRequest) (*asynq.Task, error) {
	data, err := json.Marshal(generationTaskPayload{JobID: jobID, Payload: req})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerate, data), nil
}

// AsynqDispatcher queues jobs through Redis instead of starting a goroutine.
// The tracker state lives in this process, so the asynq server must run
// here as well.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string, req model.GenerationRequest) error {
	task, err := NewGenerationTask(jobID, req)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	// No retries: a job runs at most once and failures are final.
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueGeneration),
		asynq.MaxRetry(0),
		asynq.TaskID(jobID),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// GenerationWorker runs queued generation jobs
type GenerationWorker struct {
	tracker *tracker.Tracker
}

func NewGenerationWorker(t *tracker.Tracker) *GenerationWorker {
	return &GenerationWorker{tracker: t}
}

// ProcessTask handles generation task processing
func (w *GenerationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload generationTaskPayload
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := taskPayload.JobID
	err := w.tracker.Run(ctx, jobID)

	var failure *tracker.JobFailure
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tracker.ErrJobNotFound), errors.Is(err, tracker.ErrJobNotQueued):
		// Canceled, or picked up by another delivery.
		log.Printf("Skipping generation task for job %s: %v", jobID, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case errors.As(err, &failure):
		return fmt.Errorf("%v: %w", failure, asynq.SkipRetry)
	default:
		return err
	}
}
