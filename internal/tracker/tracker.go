// Package tracker owns generation jobs from submission until they complete,
// fail or are canceled, and records finished assets in history.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soundforge/studio/internal/history"
	"github.com/soundforge/studio/internal/model"
)

// Generator produces the audio for a request. It reports progress through
// the callback from its own goroutine and returns the audio locator.
type Generator interface {
	Generate(ctx context.Context, jobID string, req model.GenerationRequest, progress func(percent int)) (audioURL string, err error)
}

// Estimator is implemented by generators that can tell how long a request
// will take.
type Estimator interface {
	Estimate(req model.GenerationRequest) time.Duration
}

// Option configures a Tracker
type Option func(*Tracker)

// WithConcurrency sets how many jobs may be active at once.
func WithConcurrency(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.limit = n
		}
	}
}

// WithTimeout fails a running job after d, and a queued job that no
// dispatcher has started within d. Zero disables both limits.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		t.timeout = d
	}
}

// WithDispatcher replaces the in-process goroutine dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(t *Tracker) {
		t.dispatcher = d
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

type Tracker struct {
	gen        Generator
	history    *history.History
	dispatcher Dispatcher
	limit      int
	timeout    time.Duration
	now        func() time.Time

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

func New(gen Generator, h *history.History, opts ...Option) *Tracker {
	t := &Tracker{
		gen:     gen,
		history: h,
		limit:   1,
		now:     time.Now,
		jobs:    make(map[string]*job),
	}
	t.dispatcher = goDispatcher{t: t}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start queues a job for req and dispatches it. Listeners are attached
// before dispatch so they observe every event.
func (t *Tracker) Start(ctx context.Context, req model.GenerationRequest, listeners ...Listener) (model.JobSnapshot, error) {
	j := &job{
		id:        uuid.New().String(),
		req:       req,
		createdAt: t.now(),
		state:     model.JobStateQueued,
		listeners: append([]Listener(nil), listeners...),
	}

	t.mu.Lock()
	if len(t.jobs) >= t.limit {
		t.mu.Unlock()
		return model.JobSnapshot{}, ErrBusy
	}
	t.jobs[j.id] = j
	t.mu.Unlock()

	queued := j.snapshot()
	if err := t.dispatcher.Dispatch(ctx, j.id, req); err != nil {
		t.remove(j.id)
		return model.JobSnapshot{}, fmt.Errorf("tracker: failed to dispatch job: %w", err)
	}
	if t.timeout > 0 {
		j.mu.Lock()
		if j.state == model.JobStateQueued {
			j.expiry = time.AfterFunc(t.timeout, func() { t.expire(j) })
		}
		j.mu.Unlock()
	}
	return queued, nil
}

// expire fails j if it is still queued, releasing its slot when the
// dispatched task was lost.
func (t *Tracker) expire(j *job) {
	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if j.canceled {
		return
	}

	j.mu.Lock()
	if j.state != model.JobStateQueued {
		j.mu.Unlock()
		return
	}
	// Claim the job so a late Run is refused.
	j.state = model.JobStateFailed
	j.expiry = nil
	j.mu.Unlock()

	log.Printf("Generation job %s was not started within %s", j.id, t.timeout)
	t.failLocked(j, fmt.Errorf("%w within %s", ErrQueueTimeout, t.timeout))
}

// Run executes a queued job to its end. It is called by a Dispatcher; a job
// that is not queued is refused with ErrJobNotQueued. A failed job is
// reported to listeners and returned as a *JobFailure.
func (t *Tracker) Run(ctx context.Context, jobID string) error {
	j, ok := t.lookup(jobID)
	if !ok {
		return ErrJobNotFound
	}

	var runCtx context.Context
	var stop context.CancelFunc
	if t.timeout > 0 {
		runCtx, stop = context.WithTimeout(ctx, t.timeout)
	} else {
		runCtx, stop = context.WithCancel(ctx)
	}
	defer stop()

	j.mu.Lock()
	if j.state != model.JobStateQueued {
		j.mu.Unlock()
		return ErrJobNotQueued
	}
	j.stopExpiry()
	started := t.now()
	j.state = model.JobStateRunning
	j.startedAt = &started
	j.stop = stop
	j.mu.Unlock()

	log.Printf("Starting generation job: %s", jobID)
	t.emitProgress(j, 0, true)

	audioURL, err := t.gen.Generate(runCtx, jobID, j.req, func(percent int) {
		t.emitProgress(j, percent, false)
	})
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", t.timeout, err)
	}
	if err != nil {
		return t.fail(j, err)
	}
	t.emitProgress(j, 100, false)
	return t.complete(j, audioURL)
}

// emitProgress clamps percent to [0,100] and delivers it only when it moves
// forward. force lets the initial 0 through.
func (t *Tracker) emitProgress(j *job, percent int, force bool) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if j.canceled {
		return
	}

	j.mu.Lock()
	if j.state != model.JobStateRunning || (!force && percent <= j.progress) {
		j.mu.Unlock()
		return
	}
	j.progress = percent
	j.mu.Unlock()

	j.deliver(func(l Listener) {
		if l.OnProgress != nil {
			l.OnProgress(j.id, percent)
		}
	})
}

func (t *Tracker) complete(j *job, audioURL string) error {
	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if j.canceled {
		return nil
	}

	req := j.req
	asset, err := t.history.Insert(context.Background(), func(count int) model.MusicAsset {
		return model.MusicAsset{
			Title:           fmt.Sprintf("Generation %d", count+1),
			SourcePrompt:    req.Prompt,
			Genre:           req.Genre,
			DurationSeconds: req.DurationSeconds,
			AudioURL:        audioURL,
		}
	})
	var persistErr *history.PersistenceError
	if err != nil && !errors.As(err, &persistErr) {
		return t.failLocked(j, fmt.Errorf("failed to record asset: %w", err))
	}

	completed := t.now()
	j.mu.Lock()
	j.state = model.JobStateCompleted
	j.progress = 100
	j.assetID = asset.ID
	j.completedAt = &completed
	j.mu.Unlock()
	t.remove(j.id)

	c := Completion{JobID: j.id, Asset: asset, Job: j.snapshot()}
	if persistErr != nil {
		c.PersistErr = persistErr
		log.Printf("Generation job %s completed but history was not saved: %v", j.id, persistErr)
	} else {
		log.Printf("Generation job %s completed: asset %s", j.id, asset.ID)
	}

	j.deliver(func(l Listener) {
		if l.OnComplete != nil {
			l.OnComplete(c)
		}
	})
	return nil
}

func (t *Tracker) fail(j *job, cause error) error {
	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if j.canceled {
		return nil
	}
	return t.failLocked(j, cause)
}

// failLocked marks j failed and notifies listeners. Caller holds emitMu.
func (t *Tracker) failLocked(j *job, cause error) error {
	msg := cause.Error()
	completed := t.now()
	j.mu.Lock()
	j.state = model.JobStateFailed
	j.errMsg = &msg
	j.completedAt = &completed
	j.mu.Unlock()
	t.remove(j.id)

	failure := &JobFailure{JobID: j.id, Err: cause, Job: j.snapshot()}
	j.deliver(func(l Listener) {
		if l.OnFailure != nil {
			l.OnFailure(failure)
		}
	})
	return failure
}

// Cancel stops a queued or running job and discards it. History is never
// touched. Once Cancel returns no callback for the job will start. A
// listener must not cancel its own job from inside a callback.
func (t *Tracker) Cancel(jobID string) (model.JobSnapshot, error) {
	j, ok := t.lookup(jobID)
	if !ok {
		return model.JobSnapshot{}, ErrJobNotFound
	}

	j.emitMu.Lock()
	defer j.emitMu.Unlock()

	j.mu.Lock()
	if j.state.IsTerminal() {
		j.mu.Unlock()
		return model.JobSnapshot{}, ErrJobNotFound
	}
	canceled := t.now()
	j.state = model.JobStateCanceled
	j.completedAt = &canceled
	j.stopExpiry()
	if j.stop != nil {
		j.stop()
	}
	j.mu.Unlock()
	j.canceled = true
	t.remove(jobID)

	log.Printf("Generation job %s canceled", jobID)
	return j.snapshot(), nil
}

// Subscribe attaches l to an active job.
func (t *Tracker) Subscribe(jobID string, l Listener) error {
	j, ok := t.lookup(jobID)
	if !ok {
		return ErrJobNotFound
	}
	j.addListener(l)
	return nil
}

func (t *Tracker) OnProgress(jobID string, fn func(jobID string, percent int)) error {
	return t.Subscribe(jobID, Listener{OnProgress: fn})
}

func (t *Tracker) OnComplete(jobID string, fn func(Completion)) error {
	return t.Subscribe(jobID, Listener{OnComplete: fn})
}

func (t *Tracker) OnFailure(jobID string, fn func(*JobFailure)) error {
	return t.Subscribe(jobID, Listener{OnFailure: fn})
}

// Job returns a snapshot of an active job.
func (t *Tracker) Job(jobID string) (model.JobSnapshot, bool) {
	j, ok := t.lookup(jobID)
	if !ok {
		return model.JobSnapshot{}, false
	}
	return j.snapshot(), true
}

// Active lists queued and running jobs.
func (t *Tracker) Active() []model.JobSnapshot {
	t.mu.Lock()
	jobs := make([]*job, 0, len(t.jobs))
	for _, j := range t.jobs {
		jobs = append(jobs, j)
	}
	t.mu.Unlock()

	out := make([]model.JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// Estimate returns how long req is expected to run, or zero when the
// generator cannot tell.
func (t *Tracker) Estimate(req model.GenerationRequest) time.Duration {
	if e, ok := t.gen.(Estimator); ok {
		return e.Estimate(req)
	}
	return 0
}

// IsBusy reports whether a new Start would be refused.
func (t *Tracker) IsBusy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs) >= t.limit
}

// Shutdown cancels every active job and waits for in-process runs to return.
func (t *Tracker) Shutdown(ctx context.Context) error {
	for _, s := range t.Active() {
		t.Cancel(s.ID)
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) lookup(jobID string) (*job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[jobID]
	return j, ok
}

func (t *Tracker) remove(jobID string) {
	t.mu.Lock()
	delete(t.jobs, jobID)
	t.mu.Unlock()
}
