package model

import "time"

// GenerateRequest is the body of POST /api/generations
type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	Genre    string `json:"genre"`
	Duration *int   `json:"duration"`
}

// GenerateResponse is returned when a generation job has been accepted
type GenerateResponse struct {
	JobID             string            `json:"jobId"`
	Status            JobState          `json:"status"`
	Request           GenerationRequest `json:"request"`
	EstimatedDuration int               `json:"estimatedDuration,omitempty"` // seconds; omitted when unknown
	CreatedAt         time.Time         `json:"createdAt"`
}

// CancelResponse represents the response when canceling a generation
type CancelResponse struct {
	Success bool     `json:"success"`
	JobID   string   `json:"jobId"`
	Status  JobState `json:"status"`
}

// HistoryResponse lists generated assets, newest first
type HistoryResponse struct {
	Items []MusicAsset `json:"items"`
	Total int          `json:"total"`
}

// PlayResponse tells the player which locator to load
type PlayResponse struct {
	AssetID  string `json:"assetId"`
	Title    string `json:"title"`
	AudioURL string `json:"audioUrl"`
}

// DownloadResponse carries a download locator for an asset
type DownloadResponse struct {
	AssetID   string     `json:"assetId"`
	URL       string     `json:"url"`
	Filename  string     `json:"filename"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// OptionsResponse is the catalog the prompt form is built from
type OptionsResponse struct {
	Genres           []string         `json:"genres"`
	DefaultGenre     string           `json:"defaultGenre"`
	Durations        []DurationOption `json:"durations"`
	AllowedDurations []int            `json:"allowedDurations"`
	DefaultDuration  int              `json:"defaultDuration"`
}
