package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/universalmedia/api/internal/model"
	"github.com/universalmedia/api/internal/service"
	"github.com/universalmedia/api/internal/store"
	"github.com/universalmedia/api/pkg/response"
)

type DownloadsHandler struct {
	service   *service.DownloadService
	validator *validator.Validate
}

func NewDownloadsHandler(svc *service.DownloadService, v *validator.Validate) *DownloadsHandler {
	return &DownloadsHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/downloads/start
func (h *DownloadsHandler) Start(c *fiber.Ctx) error {
	var req model.StartDownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Start(&req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/downloads/status/:taskId
func (h *DownloadsHandler) Status(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.service.GetStatus(taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Task not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// List handles GET /api/downloads
func (h *DownloadsHandler) List(c *fiber.Ctx) error {
	result, err := h.service.List(c.Query("status"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatusFilter) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/downloads/cancel/:taskId
func (h *DownloadsHandler) Cancel(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.service.Cancel(taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Task not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Check handles POST /api/downloads/check
func (h *DownloadsHandler) Check(c *fiber.Ctx) error {
	var req model.CheckDownloadsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Check(req.TaskIDs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Wait handles POST /api/downloads/wait
func (h *DownloadsHandler) Wait(c *fiber.Ctx) error {
	var req model.WaitDownloadsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	timeout := time.Duration(req.TimeoutSeconds * float64(time.Second))
	result, err := h.service.Wait(c.Context(), req.TaskIDs, req.Mode, timeout)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
