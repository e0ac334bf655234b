package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/universalmedia/api/internal/client"
	"github.com/universalmedia/api/internal/model"
	"github.com/universalmedia/api/internal/service"
	"github.com/universalmedia/api/pkg/response"
)

// MediaHandler serves the synchronous tool paths; these block the
// caller for the full engine call and never create a task.
type MediaHandler struct {
	service   *service.MediaService
	validator *validator.Validate
}

func NewMediaHandler(svc *service.MediaService, v *validator.Validate) *MediaHandler {
	return &MediaHandler{
		service:   svc,
		validator: v,
	}
}

// CheckSupport handles POST /api/media/check-support
func (h *MediaHandler) CheckSupport(c *fiber.Ctx) error {
	var req model.CheckSupportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CheckSupport(c.Context(), req.URL)
	if err != nil {
		return engineError(c, err)
	}

	return response.OK(c, result)
}

// Metadata handles POST /api/media/metadata
func (h *MediaHandler) Metadata(c *fiber.Ctx) error {
	var req model.MetadataRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Metadata(c.Context(), req.URL)
	if err != nil {
		return engineError(c, err)
	}

	return response.OK(c, result)
}

// DownloadVideo handles POST /api/media/download/video
func (h *MediaHandler) DownloadVideo(c *fiber.Ctx) error {
	var req model.DownloadVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.DownloadVideo(c.Context(), &req)
	if err != nil {
		return engineError(c, err)
	}

	return response.OK(c, result)
}

// DownloadAudio handles POST /api/media/download/audio
func (h *MediaHandler) DownloadAudio(c *fiber.Ctx) error {
	var req model.DownloadAudioRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.DownloadAudio(c.Context(), &req)
	if err != nil {
		return engineError(c, err)
	}

	return response.OK(c, result)
}

// Subtitles handles POST /api/media/subtitles
func (h *MediaHandler) Subtitles(c *fiber.Ctx) error {
	var req model.SubtitlesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Subtitles(c.Context(), &req)
	if err != nil {
		return engineError(c, err)
	}

	return response.OK(c, result)
}

// engineError maps a structured engine failure onto the HTTP envelope
func engineError(c *fiber.Ctx, err error) error {
	var dlErr *client.DownloadError
	if errors.As(err, &dlErr) {
		if dlErr.Kind == client.ErrorKindUnsupportedURL {
			return response.ValidationError(c, dlErr.Message, fiber.Map{"kind": dlErr.Kind})
		}
		return response.EngineError(c, dlErr.Message, fiber.Map{"kind": dlErr.Kind})
	}
	return response.ServiceError(c, err.Error())
}
