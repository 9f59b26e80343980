package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/whazzaudio/api/internal/middleware"
	"github.com/whazzaudio/api/internal/service"
	"github.com/whazzaudio/api/pkg/response"
)

type UsageHandler struct {
	service *service.UsageService
}

func NewUsageHandler(svc *service.UsageService) *UsageHandler {
	return &UsageHandler{service: svc}
}

// Summary handles GET /api/usage/summary
func (h *UsageHandler) Summary(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	summary, err := h.service.Summary(c.Context(), p)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, summary)
}

// Limits handles GET /api/usage/limits
func (h *UsageHandler) Limits(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	limits, err := h.service.CheckLimits(c.Context(), p)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, limits)
}
