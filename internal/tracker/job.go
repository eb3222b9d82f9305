package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/soundforge/studio/internal/model"
)

// Completion is delivered to OnComplete once the asset is in history.
// PersistErr is set when the asset is kept in memory but the snapshot could
// not be saved.
type Completion struct {
	JobID      string
	Asset      model.MusicAsset
	PersistErr error
	Job        model.JobSnapshot
}

// Listener groups the callbacks for one job. Nil fields are skipped.
// Callbacks run on the job's executing goroutine, one at a time and in order.
type Listener struct {
	OnProgress func(jobID string, percent int)
	OnComplete func(Completion)
	OnFailure  func(*JobFailure)
}

type job struct {
	id        string
	req       model.GenerationRequest
	createdAt time.Time

	// emitMu is held while callbacks are delivered and by Cancel, so no
	// callback can start once Cancel has returned.
	emitMu   sync.Mutex
	canceled bool

	mu          sync.Mutex
	state       model.JobState
	progress    int
	errMsg      *string
	assetID     string
	startedAt   *time.Time
	completedAt *time.Time
	stop        context.CancelFunc
	expiry      *time.Timer
	listeners   []Listener
}

func (j *job) snapshot() model.JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return model.JobSnapshot{
		ID:          j.id,
		Request:     j.req,
		State:       j.state,
		Progress:    j.progress,
		Error:       j.errMsg,
		AssetID:     j.assetID,
		CreatedAt:   j.createdAt,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
	}
}

// stopExpiry disarms the queue deadline. Caller holds mu.
func (j *job) stopExpiry() {
	if j.expiry != nil {
		j.expiry.Stop()
		j.expiry = nil
	}
}

func (j *job) addListener(l Listener) {
	j.mu.Lock()
	j.listeners = append(j.listeners, l)
	j.mu.Unlock()
}

func (j *job) currentListeners() []Listener {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Listener, len(j.listeners))
	copy(out, j.listeners)
	return out
}

// deliver calls fn for every listener. Caller holds emitMu.
func (j *job) deliver(fn func(Listener)) {
	for _, l := range j.currentListeners() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("tracker: listener for job %s panicked: %v", j.id, r)
				}
			}()
			fn(l)
		}()
	}
}
