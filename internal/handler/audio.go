package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/whazzaudio/api/internal/middleware"
	"github.com/whazzaudio/api/internal/service"
	"github.com/whazzaudio/api/pkg/response"
)

type AudioHandler struct {
	service *service.AudioService
}

func NewAudioHandler(svc *service.AudioService) *AudioHandler {
	return &AudioHandler{service: svc}
}

// Upload handles POST /api/audio/upload
func (h *AudioHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	p := middleware.GetPrincipal(c)
	result, err := h.service.Upload(c.Context(), p, file.Filename, f)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Created(c, result)
}

// Status handles GET /api/audio/status/:jobId
func (h *AudioHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	p := middleware.GetPrincipal(c)
	status, err := h.service.Status(c.Context(), p, jobID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, status)
}

// Download handles GET /api/audio/download/:jobId
func (h *AudioHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	p := middleware.GetPrincipal(c)
	info, err := h.service.Download(c.Context(), p, jobID)
	if err != nil {
		return serviceError(c, err)
	}

	if err := c.SendFile(info.Path); err != nil {
		return serviceError(c, err)
	}
	// Headers are set after SendFile, which would otherwise re-derive
	// the content type from the extension and escape the filename.
	c.Set(fiber.HeaderContentType, info.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", info.Filename))
	return nil
}
