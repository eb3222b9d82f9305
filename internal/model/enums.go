package model

// Job states
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// IsTerminal reports whether no further transition can leave the state.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCanceled
}

// DefaultGenre is used when a request carries no genre.
const DefaultGenre = "Custom"

// Genres offered by the product. Requests may carry other values.
var Genres = []string{
	"Lo-Fi",
	"Electronic",
	"Orchestral",
	"Jazz",
	"Hip Hop",
	"Rock",
	"Ambient",
	"Classical",
	"Pop",
	"Cinematic",
}

// Duration bounds, in seconds
const (
	MinDurationSeconds     = 30
	MaxDurationSeconds     = 300
	DurationStepSeconds    = 30
	DefaultDurationSeconds = 120
)

// Durations lists every accepted duration.
func Durations() []int {
	var out []int
	for d := MinDurationSeconds; d <= MaxDurationSeconds; d += DurationStepSeconds {
		out = append(out, d)
	}
	return out
}

// DurationOption is a preset offered next to the prompt box.
type DurationOption struct {
	Label   string `json:"label"`
	Seconds int    `json:"value"`
}

// DurationPresets are the durations offered by default. Any value from
// Durations is accepted.
var DurationPresets = []DurationOption{
	{Label: "30 seconds", Seconds: 30},
	{Label: "1 minute", Seconds: 60},
	{Label: "2 minutes", Seconds: 120},
	{Label: "3 minutes", Seconds: 180},
	{Label: "5 minutes", Seconds: 300},
}
