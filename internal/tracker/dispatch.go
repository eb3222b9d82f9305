package tracker

import (
	"context"
	"errors"
	"log"

	"github.com/soundforge/studio/internal/model"
)

// Dispatcher hands a queued job to something that will call Tracker.Run
// exactly once.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string, req model.GenerationRequest) error
}

// goDispatcher runs each job on its own goroutine in this process.
type goDispatcher struct {
	t *Tracker
}

func (d goDispatcher) Dispatch(ctx context.Context, jobID string, req model.GenerationRequest) error {
	d.t.wg.Add(1)
	go func() {
		defer d.t.wg.Done()
		err := d.t.Run(context.Background(), jobID)
		var failure *JobFailure
		switch {
		case err == nil:
		case errors.As(err, &failure):
			log.Printf("Generation job %s failed: %v", jobID, failure.Err)
		default:
			log.Printf("Generation job %s not run: %v", jobID, err)
		}
	}()
	return nil
}
