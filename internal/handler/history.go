package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/soundforge/studio/internal/history"
	"github.com/soundforge/studio/internal/service"
	"github.com/soundforge/studio/pkg/response"
)

type HistoryHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
}

func NewHistoryHandler(svc *service.GenerationService, v *validator.Validate) *HistoryHandler {
	return &HistoryHandler{
		service:   svc,
		validator: v,
	}
}

// List handles GET /api/history
// @Summary      List history
// @Description  List generated tracks, newest first
// @Tags         History
// @Produce      json
// @Success      200 {object} model.HistoryResponse
// @Router       /api/history [get]
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	return response.OK(c, h.service.ListHistory())
}

// Get handles GET /api/history/:assetId
// @Summary      Get track
// @Tags         History
// @Produce      json
// @Param        assetId path string true "Asset ID"
// @Success      200 {object} model.MusicAsset
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/history/{assetId} [get]
func (h *HistoryHandler) Get(c *fiber.Ctx) error {
	assetID := c.Params("assetId")
	if err := h.validator.Var(assetID, "required,alphanum,max=64"); err != nil {
		return response.ValidationError(c, "Invalid asset ID", nil)
	}

	result, err := h.service.Get(assetID)
	if err != nil {
		return assetError(c, err)
	}
	return response.OK(c, result)
}

// Play handles POST /api/history/:assetId/play
// @Summary      Play track
// @Description  Return the audio locator the player should load
// @Tags         History
// @Produce      json
// @Param        assetId path string true "Asset ID"
// @Success      200 {object} model.PlayResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/history/{assetId}/play [post]
func (h *HistoryHandler) Play(c *fiber.Ctx) error {
	assetID := c.Params("assetId")
	if err := h.validator.Var(assetID, "required,alphanum,max=64"); err != nil {
		return response.ValidationError(c, "Invalid asset ID", nil)
	}

	result, err := h.service.Play(assetID)
	if err != nil {
		return assetError(c, err)
	}
	return response.OK(c, result)
}

// Download handles GET /api/history/:assetId/download
// @Summary      Download track
// @Description  Return a download locator; hosted audio gets a signed URL
// @Tags         History
// @Produce      json
// @Param        assetId path string true "Asset ID"
// @Success      200 {object} model.DownloadResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/history/{assetId}/download [get]
func (h *HistoryHandler) Download(c *fiber.Ctx) error {
	assetID := c.Params("assetId")
	if err := h.validator.Var(assetID, "required,alphanum,max=64"); err != nil {
		return response.ValidationError(c, "Invalid asset ID", nil)
	}

	result, err := h.service.Download(c.Context(), assetID)
	if err != nil {
		return assetError(c, err)
	}
	return response.OK(c, result)
}

func assetError(c *fiber.Ctx, err error) error {
	if errors.Is(err, history.ErrNotFound) {
		return response.NotFound(c, "Track not found")
	}
	return response.ServiceError(c, err.Error())
}
