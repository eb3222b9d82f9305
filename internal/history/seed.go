package history

import (
	"time"

	"github.com/soundforge/studio/internal/model"
)

// DefaultSeed is the demo list shown before anything has been generated.
func DefaultSeed(now time.Time) []model.MusicAsset {
	now = now.UTC().Truncate(time.Millisecond)
	return []model.MusicAsset{
		{
			ID:              "1",
			Title:           "Sunset Dreams",
			SourcePrompt:    "Chill lo-fi beats with piano and soft drums",
			Genre:           "Lo-Fi",
			DurationSeconds: 180,
			CreatedAt:       now.Add(-1 * time.Hour),
			AudioURL:        "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
		},
		{
			ID:              "2",
			Title:           "Epic Adventure",
			SourcePrompt:    "Orchestral epic music with powerful strings and brass",
			Genre:           "Orchestral",
			DurationSeconds: 240,
			CreatedAt:       now.Add(-2 * time.Hour),
			AudioURL:        "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3",
		},
		{
			ID:              "3",
			Title:           "Urban Vibes",
			SourcePrompt:    "Hip hop beat with deep bass and synthesizers",
			Genre:           "Hip Hop",
			DurationSeconds: 150,
			CreatedAt:       now.Add(-3 * time.Hour),
			AudioURL:        "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-3.mp3",
		},
	}
}
