package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/whazzaudio/api/internal/auth"
	"github.com/whazzaudio/api/internal/service"
	"github.com/whazzaudio/api/internal/store"
	"github.com/whazzaudio/api/pkg/response"
)

// serviceError maps service sentinels onto the response envelope.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnsupportedFormat):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrFileTooLarge):
		return response.FileTooLarge(c, err.Error())
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrJobNotReady):
		return response.JobNotReady(c, err.Error())
	case errors.Is(err, service.ErrOutputMissing):
		return response.IntegrityError(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrInactiveUser):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		return response.Unauthorized(c, "Invalid or expired token")
	case errors.Is(err, store.ErrConflict):
		return response.Conflict(c, "Email or username already registered")
	case errors.Is(err, store.ErrNotFound):
		return response.NotFound(c, "Not found")
	default:
		return response.ServiceError(c, err.Error())
	}
}
