package middleware

import (
	"errors"
	"log"

	"github.com/batyrai/backend/internal/telegram"
	"github.com/gofiber/fiber/v2"
)

// InitDataHeader carries the Mini App initData string.
const InitDataHeader = "X-Telegram-Init-Data"

const principalKey = "principal"

// Verifier checks Telegram initData.
type Verifier interface {
	Verify(initData string) (*telegram.Principal, error)
}

// TelegramAuth middleware to protect routes. On success the verified
// principal is stored in the request context.
func TelegramAuth(v Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := v.Verify(c.Get(InitDataHeader))
		if err != nil {
			status, code, message := AuthFailure(err)
			if status == fiber.StatusForbidden {
				log.Printf("Auth: rejected initData from %s: %v", c.IP(), err)
			}
			return c.Status(status).JSON(fiber.Map{
				"success": false,
				"message": message,
				"code":    code,
			})
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// AuthFailure maps a verification error to an HTTP status, an error
// code and a client message.
func AuthFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, telegram.ErrMissingCredentials):
		return fiber.StatusUnauthorized, "MissingCredentials", "Missing Telegram authorization data"
	case errors.Is(err, telegram.ErrInvalidSignature):
		return fiber.StatusForbidden, "InvalidSignature", "Invalid Telegram authorization data"
	default:
		return fiber.StatusForbidden, "MalformedIdentity", "Could not read Telegram user data"
	}
}

// GetPrincipal returns the verified caller, or nil outside TelegramAuth.
func GetPrincipal(c *fiber.Ctx) *telegram.Principal {
	p, ok := c.Locals(principalKey).(*telegram.Principal)
	if !ok {
		return nil
	}
	return p
}
