package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/whazzaudio/api/internal/middleware"
	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/service"
	"github.com/whazzaudio/api/pkg/response"
)

type GuestHandler struct {
	service *service.GuestService
}

func NewGuestHandler(svc *service.GuestService) *GuestHandler {
	return &GuestHandler{service: svc}
}

// CreateSession handles POST /api/guest/session
func (h *GuestHandler) CreateSession(c *fiber.Ctx) error {
	result, err := h.service.CreateSession(c.Context(), c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Created(c, result)
}

// GetSession handles GET /api/guest/session
func (h *GuestHandler) GetSession(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if p.Type != model.PrincipalGuest {
		return response.Unauthorized(c, "Guest session required")
	}
	session, err := h.service.GetSession(c.Context(), p.GuestID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, session)
}

// DeleteSession handles DELETE /api/guest/session
func (h *GuestHandler) DeleteSession(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if p.Type != model.PrincipalGuest {
		return response.Unauthorized(c, "Guest session required")
	}
	if err := h.service.DeleteSession(c.Context(), p.GuestID); err != nil {
		return serviceError(c, err)
	}
	return response.NoContent(c)
}
