// Package generator holds the progress sources a tracker can run jobs on.
package generator

import (
	"context"
	"time"

	"github.com/soundforge/studio/internal/model"
)

// Simulated advances progress by a fixed step on a fixed interval and then
// returns a fixed audio locator. With the defaults a job takes three seconds.
type Simulated struct {
	Interval time.Duration
	Step     int
	AudioURL string
}

func NewSimulated(interval time.Duration, step int, audioURL string) *Simulated {
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	if step <= 0 {
		step = 10
	}
	return &Simulated{Interval: interval, Step: step, AudioURL: audioURL}
}

func (s *Simulated) Generate(ctx context.Context, jobID string, req model.GenerationRequest, progress func(int)) (string, error) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	percent := 0
	for percent < 100 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			percent += s.Step
			if percent > 100 {
				percent = 100
			}
			progress(percent)
		}
	}
	return s.AudioURL, nil
}

// Estimate is the number of ticks needed to reach 100.
func (s *Simulated) Estimate(req model.GenerationRequest) time.Duration {
	ticks := (100 + s.Step - 1) / s.Step
	return time.Duration(ticks) * s.Interval
}
