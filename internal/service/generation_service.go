package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/soundforge/studio/internal/client"
	"github.com/soundforge/studio/internal/history"
	"github.com/soundforge/studio/internal/intake"
	"github.com/soundforge/studio/internal/model"
	"github.com/soundforge/studio/internal/tracker"
)

var ErrJobFinished = errors.New("job already finished")

const (
	CodeGenerationFailed = "GENERATION_FAILED"

	persistWarning = "History could not be saved; the track is kept in memory until the next successful save"
	downloadExpiry = time.Hour
)

// Broadcaster pushes job events to live subscribers.
type Broadcaster interface {
	BroadcastProgress(jobID string, progress int, status model.JobState)
	BroadcastComplete(jobID string, asset *model.MusicAsset, warning string)
	BroadcastError(jobID string, code, message string)
}

// GenerationService is the entry point for submitting generations and
// reading history.
type GenerationService struct {
	intake  *intake.Intake
	tracker *tracker.Tracker
	history *history.History
	records JobRecords
	hub     Broadcaster
	storage client.StorageClient

	// recordMu keeps a late progress save from overwriting a final record.
	recordMu sync.Mutex
}

// NewGenerationService wires the service. storage may be nil.
func NewGenerationService(in *intake.Intake, tr *tracker.Tracker, h *history.History, records JobRecords, hub Broadcaster, storage client.StorageClient) *GenerationService {
	return &GenerationService{
		intake:  in,
		tracker: tr,
		history: h,
		records: records,
		hub:     hub,
		storage: storage,
	}
}

// Submit validates the request and starts a generation job.
func (s *GenerationService) Submit(ctx context.Context, req *model.GenerateRequest) (*model.GenerateResponse, error) {
	genReq, err := s.intake.Submit(req.Prompt, req.Genre, req.Duration)
	if err != nil {
		return nil, err
	}

	job, err := s.tracker.Start(ctx, genReq, s.listener())
	if err != nil {
		return nil, err
	}
	s.saveRecord(ctx, job)

	log.Printf("Generation job %s queued (%s, %ds)", job.ID, genReq.Genre, genReq.DurationSeconds)
	return &model.GenerateResponse{
		JobID:             job.ID,
		Status:            job.State,
		Request:           genReq,
		EstimatedDuration: estimateSeconds(s.tracker.Estimate(genReq)),
		CreatedAt:         job.CreatedAt,
	}, nil
}

// estimateSeconds rounds d up to whole seconds.
func estimateSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func (s *GenerationService) listener() tracker.Listener {
	return tracker.Listener{
		OnProgress: func(jobID string, percent int) {
			if job, ok := s.tracker.Job(jobID); ok {
				s.saveRecord(context.Background(), job)
			}
			s.hub.BroadcastProgress(jobID, percent, model.JobStateRunning)
		},
		OnComplete: func(c tracker.Completion) {
			s.saveRecord(context.Background(), c.Job)
			warning := ""
			if c.PersistErr != nil {
				warning = persistWarning
			}
			asset := c.Asset
			s.hub.BroadcastComplete(c.JobID, &asset, warning)
		},
		OnFailure: func(f *tracker.JobFailure) {
			s.saveRecord(context.Background(), f.Job)
			s.hub.BroadcastError(f.JobID, CodeGenerationFailed, f.Err.Error())
		},
	}
}

// saveRecord stores job unless a final record for it already exists.
func (s *GenerationService) saveRecord(ctx context.Context, job model.JobSnapshot) {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	if !job.State.IsTerminal() {
		if existing, err := s.records.Get(ctx, job.ID); err == nil && existing.State.IsTerminal() {
			return
		}
	}
	if err := s.records.Save(ctx, job); err != nil {
		log.Printf("Failed to save job record %s: %v", job.ID, err)
	}
}

// Status returns the live job if it is active, else its last record.
func (s *GenerationService) Status(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	if job, ok := s.tracker.Job(jobID); ok {
		return job, nil
	}
	return s.records.Get(ctx, jobID)
}

// Cancel stops a queued or running job.
func (s *GenerationService) Cancel(ctx context.Context, jobID string) (*model.CancelResponse, error) {
	job, err := s.tracker.Cancel(jobID)
	if err != nil {
		if !errors.Is(err, tracker.ErrJobNotFound) {
			return nil, err
		}
		rec, recErr := s.records.Get(ctx, jobID)
		if recErr == nil && rec.State.IsTerminal() {
			return nil, ErrJobFinished
		}
		return nil, ErrJobNotFound
	}

	s.saveRecord(ctx, job)
	s.hub.BroadcastProgress(jobID, job.Progress, model.JobStateCanceled)

	return &model.CancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  job.State,
	}, nil
}

// JobMessage describes the current state of a job as the WebSocket message
// a new subscriber should see first.
func (s *GenerationService) JobMessage(ctx context.Context, jobID string) (interface{}, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.State {
	case model.JobStateCompleted:
		asset, err := s.history.Get(job.AssetID)
		if err != nil {
			return nil, err
		}
		return model.WSCompleteMessage{Type: model.WSMessageTypeComplete, JobID: jobID, Result: &asset}, nil
	case model.JobStateFailed:
		msg := ""
		if job.Error != nil {
			msg = *job.Error
		}
		return model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: jobID,
			Error: model.WSError{Code: CodeGenerationFailed, Message: msg},
		}, nil
	default:
		return model.WSProgressMessage{
			Type:     model.WSMessageTypeProgress,
			JobID:    jobID,
			Progress: job.Progress,
			Status:   job.State,
		}, nil
	}
}

// Options returns the genre and duration catalog offered to clients.
func (s *GenerationService) Options() *model.OptionsResponse {
	return &model.OptionsResponse{
		Genres:           append([]string(nil), model.Genres...),
		DefaultGenre:     model.DefaultGenre,
		Durations:        append([]model.DurationOption(nil), model.DurationPresets...),
		AllowedDurations: model.Durations(),
		DefaultDuration:  model.DefaultDurationSeconds,
	}
}

// ListHistory returns every asset, newest first.
func (s *GenerationService) ListHistory() *model.HistoryResponse {
	items := s.history.List()
	return &model.HistoryResponse{
		Items: items,
		Total: len(items),
	}
}

func (s *GenerationService) Get(assetID string) (model.MusicAsset, error) {
	return s.history.Get(assetID)
}

// Play hands back the locator the player should load.
func (s *GenerationService) Play(assetID string) (*model.PlayResponse, error) {
	asset, err := s.history.Get(assetID)
	if err != nil {
		return nil, err
	}
	return &model.PlayResponse{
		AssetID:  asset.ID,
		Title:    asset.Title,
		AudioURL: asset.AudioURL,
	}, nil
}

// Download returns a locator for saving the asset. Audio held in our own
// storage gets a short-lived signed URL.
func (s *GenerationService) Download(ctx context.Context, assetID string) (*model.DownloadResponse, error) {
	asset, err := s.history.Get(assetID)
	if err != nil {
		return nil, err
	}

	resp := &model.DownloadResponse{
		AssetID:  asset.ID,
		URL:      asset.AudioURL,
		Filename: downloadFilename(asset),
	}

	if s.storage != nil {
		if key, ok := s.storage.KeyFromURL(asset.AudioURL); ok {
			signed, err := s.storage.GetSignedURL(ctx, key, downloadExpiry)
			if err != nil {
				return nil, fmt.Errorf("failed to sign download: %w", err)
			}
			expires := time.Now().Add(downloadExpiry).UTC()
			resp.URL = signed
			resp.ExpiresAt = &expires
		}
	}
	return resp, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func downloadFilename(asset model.MusicAsset) string {
	ext := path.Ext(strings.SplitN(asset.AudioURL, "?", 2)[0])
	if ext == "" || len(ext) > 5 {
		ext = ".mp3"
	}
	name := strings.Trim(unsafeFilename.ReplaceAllString(asset.Title, "-"), "-")
	if name == "" {
		name = asset.ID
	}
	return name + ext
}
