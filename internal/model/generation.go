package model

import "time"

// GenerationRequest is a validated intent to produce one music asset.
// Built only by the intake package and never mutated afterwards.
type GenerationRequest struct {
	Prompt          string `json:"prompt"`
	Genre           string `json:"genre"`
	DurationSeconds int    `json:"duration"`
}

// MusicAsset is a completed generation result. The JSON layout is the
// persisted history schema.
type MusicAsset struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourcePrompt    string    `json:"prompt"`
	Genre           string    `json:"genre"`
	DurationSeconds int       `json:"duration"`
	CreatedAt       time.Time `json:"createdAt"`
	AudioURL        string    `json:"audioUrl"`
}

// JobSnapshot is a point-in-time copy of a generation job
type JobSnapshot struct {
	ID          string            `json:"jobId"`
	Request     GenerationRequest `json:"request"`
	State       JobState          `json:"status"`
	Progress    int               `json:"progress"`
	Error       *string           `json:"error"`
	AssetID     string            `json:"assetId,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt"`
}
