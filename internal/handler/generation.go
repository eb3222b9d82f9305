package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/soundforge/studio/internal/intake"
	"github.com/soundforge/studio/internal/model"
	"github.com/soundforge/studio/internal/service"
	"github.com/soundforge/studio/internal/tracker"
	"github.com/soundforge/studio/pkg/response"
)

type GenerationHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
}

func NewGenerationHandler(svc *service.GenerationService, v *validator.Validate) *GenerationHandler {
	return &GenerationHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/generations
// @Summary      Submit generation
// @Description  Validate a prompt and start an asynchronous music generation job
// @Tags         Generations
// @Accept       json
// @Produce      json
// @Param        request body model.GenerateRequest true "Generation request"
// @Success      202 {object} model.GenerateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Router       /api/generations [post]
func (h *GenerationHandler) Submit(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	result, err := h.service.Submit(c.Context(), &req)
	if err != nil {
		var verr *intake.ValidationError
		switch {
		case errors.Is(err, intake.ErrEmptyPrompt):
			return response.EmptyPrompt(c, "Prompt must not be empty")
		case errors.As(err, &verr):
			return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
		case errors.Is(err, tracker.ErrBusy):
			return response.Busy(c, "A generation is already in progress")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Options handles GET /api/options
// @Summary      Generation options
// @Description  Genres and durations offered by the prompt form
// @Tags         Generations
// @Produce      json
// @Success      200 {object} model.OptionsResponse
// @Router       /api/options [get]
func (h *GenerationHandler) Options(c *fiber.Ctx) error {
	return response.OK(c, h.service.Options())
}

// Status handles GET /api/generations/:jobId
// @Summary      Get generation status
// @Description  Get the current state and progress of a generation job
// @Tags         Generations
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobSnapshot
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/generations/{jobId} [get]
func (h *GenerationHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if err := h.validator.Var(jobID, "required,uuid"); err != nil {
		return response.ValidationError(c, "Invalid job ID", nil)
	}

	result, err := h.service.Status(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/generations/:jobId/cancel
// @Summary      Cancel generation
// @Description  Cancel a queued or running generation job
// @Tags         Generations
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.CancelResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/generations/{jobId}/cancel [post]
func (h *GenerationHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if err := h.validator.Var(jobID, "required,uuid"); err != nil {
		return response.ValidationError(c, "Invalid job ID", nil)
	}

	result, err := h.service.Cancel(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobFinished) {
			return response.ValidationError(c, "Job already finished", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
