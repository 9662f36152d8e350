package handlers

import (
	"context"
	"log"
	"time"

	"github.com/batyrai/backend/internal/clock"
	"github.com/gofiber/fiber/v2"
)

type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StorePinger reports the health of the relational store and Redis.
type StorePinger interface {
	Ping(ctx context.Context) (dbErr, redisErr error)
}

type Counter interface {
	Len() int
}

type SystemHandler struct {
	users  UserCounter
	stores StorePinger
	refs   Counter
	clock  clock.Clock
}

func NewSystemHandler(users UserCounter, stores StorePinger, refs Counter, clk clock.Clock) *SystemHandler {
	return &SystemHandler{users: users, stores: stores, refs: refs, clock: clk}
}

// Stats returns the number of users who ever opened the app.
func (h *SystemHandler) Stats(c *fiber.Ctx) error {
	total, err := h.users.Count(c.UserContext())
	if err != nil {
		log.Printf("Stats: failed to count users: %v", err)
		return errorResponse(c, fiber.StatusServiceUnavailable, CodeStoreUnavailable, "Service temporarily unavailable")
	}
	return c.JSON(fiber.Map{
		"total_unique_users": total,
		"timestamp":          h.clock.Now().Format(time.RFC3339),
	})
}

// Health reports store connectivity. Redis is required for jobs, so a
// Redis outage makes the service unhealthy.
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	dbErr, redisErr := h.stores.Ping(ctx)
	redisStatus, dbStatus := "connected", "connected"
	if redisErr != nil {
		redisStatus = "disconnected"
	}
	if dbErr != nil {
		dbStatus = "disconnected"
	}

	status := "healthy"
	code := fiber.StatusOK
	if redisErr != nil {
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	} else if dbErr != nil {
		status = "degraded"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":              status,
		"redis":               redisStatus,
		"database":            dbStatus,
		"batyr_images_cached": h.refs.Len(),
		"timestamp":           h.clock.Now().Format(time.RFC3339),
	})
}
