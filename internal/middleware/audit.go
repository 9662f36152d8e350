package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var auditSkipPaths = []string{"/api/health"}

// AuditLogger logs state-changing API calls made by verified users.
// It must run after TelegramAuth to see the principal.
func AuditLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip non-modifying requests
		method := c.Method()
		if method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return c.Next()
		}

		path := c.Path()
		for _, skip := range auditSkipPaths {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}

		principal := GetPrincipal(c)
		ip := c.IP()

		err := c.Next()

		if principal != nil {
			log.Printf("Audit: user %d (@%s) %s %s from %s -> %d",
				principal.ID, principal.Username, method, path, ip, c.Response().StatusCode())
		}
		return err
	}
}
