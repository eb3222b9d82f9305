package generator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/soundforge/studio/internal/client"
	"github.com/soundforge/studio/internal/model"
)

// MusicAPI is the part of client.SunoClient the Suno generator needs.
type MusicAPI interface {
	GenerateMusic(ctx context.Context, req *client.GenerateMusicRequest) (*client.GenerateMusicResponse, error)
	PollMusicStatus(ctx context.Context, taskID string, interval, maxWait time.Duration, onPoll func(*client.MusicResult)) (*client.MusicResult, error)
}

// Suno submits the prompt to the generation API and polls for the result.
// Progress follows the API when it reports one and otherwise creeps up by a
// fixed step per poll, staying below 100 until the audio exists.
type Suno struct {
	api          MusicAPI
	pollInterval time.Duration
	maxWait      time.Duration
}

const (
	sunoSubmitted   = 5
	sunoPollStep    = 5
	sunoMaxProgress = 95
)

func NewSuno(api MusicAPI, pollInterval, maxWait time.Duration) *Suno {
	return &Suno{api: api, pollInterval: pollInterval, maxWait: maxWait}
}

func (s *Suno) Generate(ctx context.Context, jobID string, req model.GenerationRequest, progress func(int)) (string, error) {
	resp, err := s.api.GenerateMusic(ctx, &client.GenerateMusicRequest{
		Prompt:           req.Prompt,
		Style:            req.Genre,
		Duration:         req.DurationSeconds,
		MakeInstrumental: true,
	})
	if err != nil {
		return "", fmt.Errorf("suno: failed to submit: %w", err)
	}
	log.Printf("Generation job %s submitted to Suno as task %s", jobID, resp.TaskID)
	progress(sunoSubmitted)

	estimate := sunoSubmitted
	result, err := s.api.PollMusicStatus(ctx, resp.TaskID, s.pollInterval, s.maxWait, func(r *client.MusicResult) {
		if r.Progress > 0 {
			estimate = r.Progress
		} else {
			estimate += sunoPollStep
		}
		if estimate > sunoMaxProgress {
			estimate = sunoMaxProgress
		}
		progress(estimate)
	})
	if err != nil {
		return "", fmt.Errorf("suno: %w", err)
	}
	if result.AudioURL == "" {
		return "", fmt.Errorf("suno: task %s completed without audio", resp.TaskID)
	}
	return result.AudioURL, nil
}
