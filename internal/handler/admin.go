package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/service"
	"github.com/whazzaudio/api/pkg/response"
)

type AdminHandler struct {
	service *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{service: svc}
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	result, err := h.service.ListUsers(c.Context(), offset, limit, c.Query("search"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, result)
}

// GetUser handles GET /api/admin/users/:id
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return response.ValidationError(c, "Invalid user id", nil)
	}
	user, err := h.service.GetUser(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, user)
}

// SetUserActive handles PATCH /api/admin/users/:id/active
func (h *AdminHandler) SetUserActive(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return response.ValidationError(c, "Invalid user id", nil)
	}

	var req struct {
		IsActive bool `json:"isActive"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	user, err := h.service.SetUserActive(c.Context(), id, req.IsActive)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, user)
}

// DeleteUser handles DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return response.ValidationError(c, "Invalid user id", nil)
	}
	if err := h.service.DeleteUser(c.Context(), id); err != nil {
		return serviceError(c, err)
	}
	return response.NoContent(c)
}

// ListGuests handles GET /api/admin/guests
func (h *AdminHandler) ListGuests(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	result, err := h.service.ListGuests(c.Context(), offset, limit)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, result)
}

// ListJobs handles GET /api/admin/jobs
func (h *AdminHandler) ListJobs(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	status := model.JobStatus(c.Query("status"))
	result, err := h.service.ListJobs(c.Context(), offset, limit, status)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, result)
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, stats)
}

// RunCleanup handles POST /api/admin/cleanup
func (h *AdminHandler) RunCleanup(c *fiber.Ctx) error {
	result, err := h.service.RunCleanup(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, result)
}

func pagination(c *fiber.Ctx) (offset, limit int64) {
	offset = int64(c.QueryInt("offset", 0))
	limit = int64(c.QueryInt("limit", 50))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return offset, limit
}
