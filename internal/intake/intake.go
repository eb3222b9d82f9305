// Package intake turns raw user input into a validated GenerationRequest.
package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/soundforge/studio/internal/model"
)

// MaxPromptLength is counted in runes
const MaxPromptLength = 1000

// Kind classifies a validation failure
type Kind string

const (
	EmptyPrompt     Kind = "EMPTY_PROMPT"
	PromptTooLong   Kind = "PROMPT_TOO_LONG"
	InvalidGenre    Kind = "INVALID_GENRE"
	InvalidDuration Kind = "INVALID_DURATION"
)

// ValidationError is returned by Submit for any rejected input.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "intake: " + e.Message
}

// Is matches on Kind so errors.Is(err, ErrEmptyPrompt) works for any
// ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

var ErrEmptyPrompt = &ValidationError{
	Kind:    EmptyPrompt,
	Field:   "prompt",
	Message: "prompt is empty",
}

type fields struct {
	Prompt   string `validate:"required,max=1000"`
	Genre    string `validate:"required,max=64"`
	Duration int    `validate:"min=30,max=300,step30"`
}

// Intake validates generation input. Safe for concurrent use.
type Intake struct {
	validate *validator.Validate
}

// New registers the intake rules on v and returns an Intake using it.
func New(v *validator.Validate) (*Intake, error) {
	if err := v.RegisterValidation("step30", validateStep); err != nil {
		return nil, fmt.Errorf("intake: failed to register step30: %w", err)
	}
	return &Intake{validate: v}, nil
}

func validateStep(fl validator.FieldLevel) bool {
	return fl.Field().Int()%model.DurationStepSeconds == 0
}

// Submit validates the input and builds a request. A blank genre becomes
// model.DefaultGenre and a nil or zero duration becomes the default duration.
// Durations outside the allowed set are rejected, not clamped.
func (i *Intake) Submit(prompt, genre string, duration *int) (model.GenerationRequest, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return model.GenerationRequest{}, ErrEmptyPrompt
	}

	genre = strings.TrimSpace(genre)
	if genre == "" {
		genre = model.DefaultGenre
	}

	seconds := model.DefaultDurationSeconds
	if duration != nil && *duration != 0 {
		seconds = *duration
	}

	f := fields{Prompt: prompt, Genre: genre, Duration: seconds}
	if err := i.validate.Struct(&f); err != nil {
		return model.GenerationRequest{}, toValidationError(err)
	}

	return model.GenerationRequest{
		Prompt:          prompt,
		Genre:           genre,
		DurationSeconds: seconds,
	}, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("intake: %w", err)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Prompt":
		return &ValidationError{
			Kind:    PromptTooLong,
			Field:   "prompt",
			Message: fmt.Sprintf("prompt exceeds %d characters", MaxPromptLength),
		}
	case "Genre":
		return &ValidationError{
			Kind:    InvalidGenre,
			Field:   "genre",
			Message: "genre exceeds 64 characters",
		}
	default:
		return &ValidationError{
			Kind:  InvalidDuration,
			Field: "duration",
			Message: fmt.Sprintf("duration %v must be between %d and %d seconds in steps of %d",
				fe.Value(), model.MinDurationSeconds, model.MaxDurationSeconds, model.DurationStepSeconds),
		}
	}
}
