package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeInvalidInput           = "InvalidInput"
	CodeQuotaExceeded          = "QuotaExceeded"
	CodePrincipalNotRegistered = "PrincipalNotRegistered"
	CodeNotFound               = "NotFound"
	CodeStoreUnavailable       = "StoreUnavailable"
	CodeServiceUnavailable     = "ServiceUnavailable"
	CodeInternal               = "Internal"
)

func errorResponse(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
		"code":    code,
	})
}

// ErrorHandler renders errors that escape a handler with the same
// envelope the handlers use.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"
	code := CodeInternal

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
		code = ""
		switch status {
		case fiber.StatusNotFound:
			code = CodeNotFound
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
			code = CodeInvalidInput
		}
	} else {
		log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
		"code":    code,
	})
}
