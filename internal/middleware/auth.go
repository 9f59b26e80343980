package middleware

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/whazzaudio/api/internal/auth"
	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/store"
	"github.com/whazzaudio/api/pkg/response"
)

const principalKey = "principal"

// HeaderGuestID carries the guest id on requests made without a token.
const HeaderGuestID = "X-Guest-ID"

// AuthMiddleware resolves the principal behind each request.
type AuthMiddleware struct {
	issuer *auth.TokenIssuer
	users  *store.UserStore
	guests *store.GuestStore
	usage  *store.UsageStore
}

func NewAuthMiddleware(issuer *auth.TokenIssuer, users *store.UserStore, guests *store.GuestStore, usage *store.UsageStore) *AuthMiddleware {
	return &AuthMiddleware{
		issuer: issuer,
		users:  users,
		guests: guests,
		usage:  usage,
	}
}

// Resolve maps the request to exactly one of registered user, guest
// session, or anonymous, and stores the result in locals. Decode
// failures and type mismatches degrade to anonymous; endpoints that
// mandate authentication layer RequireUser on top.
func (m *AuthMiddleware) Resolve() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := m.resolve(c)
		c.Locals(principalKey, p)

		if p.IsAuthenticated() {
			if err := m.usage.RecordAPICall(c.Context(), p.Key()); err != nil {
				log.Printf("Failed to record api call: %v", err)
			}
		}
		return c.Next()
	}
}

func (m *AuthMiddleware) resolve(c *fiber.Ctx) model.Principal {
	if token := bearerToken(c); token != "" {
		claims, err := m.issuer.Verify(token)
		if err == nil {
			switch claims.Type {
			case auth.TokenTypeAccess:
				userID, err := strconv.ParseInt(claims.Subject, 10, 64)
				if err != nil {
					break
				}
				user, err := m.users.Get(c.Context(), userID)
				if err != nil || !user.IsActive {
					break
				}
				return model.UserPrincipal(user)

			case auth.TokenTypeGuest:
				// Session existence is checked, expiry is not: the
				// token's own lifetime bounds the session here.
				exists, err := m.guests.Exists(c.Context(), claims.Subject)
				if err != nil || !exists {
					break
				}
				m.touchGuest(c, claims.Subject)
				return model.GuestPrincipal(claims.Subject)
			}
		}
	}

	if guestID := c.Get(HeaderGuestID); guestID != "" {
		exists, err := m.guests.Exists(c.Context(), guestID)
		if err == nil && exists {
			m.touchGuest(c, guestID)
			return model.GuestPrincipal(guestID)
		}
	}

	return model.Anonymous
}

func (m *AuthMiddleware) touchGuest(c *fiber.Ctx, guestID string) {
	if err := m.guests.Touch(c.Context(), guestID, time.Now()); err != nil {
		log.Printf("Failed to touch guest session %s: %v", guestID, err)
	}
}

// RequireUser rejects requests whose principal is not a registered user.
func (m *AuthMiddleware) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := GetPrincipal(c)
		if p.Type != model.PrincipalUser {
			return response.Unauthorized(c, "Authentication required")
		}
		return c.Next()
	}
}

// RequireAuthenticated rejects anonymous requests; guests pass.
func (m *AuthMiddleware) RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !GetPrincipal(c).IsAuthenticated() {
			return response.Unauthorized(c, "Authentication required")
		}
		return c.Next()
	}
}

// RequireAdmin rejects requests unless the principal is an admin user.
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := GetPrincipal(c)
		if p.Type != model.PrincipalUser {
			return response.Unauthorized(c, "Authentication required")
		}
		if !p.User.IsAdmin {
			return response.Forbidden(c, "Admin access required")
		}
		return c.Next()
	}
}

// GetPrincipal returns the resolved principal for the request.
func GetPrincipal(c *fiber.Ctx) model.Principal {
	if p, ok := c.Locals(principalKey).(model.Principal); ok {
		return p
	}
	return model.Anonymous
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
