package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/batyrai/backend/internal/clock"
	"github.com/batyrai/backend/internal/jobs"
	"github.com/batyrai/backend/internal/middleware"
	"github.com/batyrai/backend/internal/services"
	"github.com/batyrai/backend/internal/telegram"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxPhotoBytes = 10 * 1024 * 1024

type UserRegistry interface {
	Ensure(ctx context.Context, p *telegram.Principal) error
}

type QuotaGate interface {
	TryConsume(ctx context.Context, userID int64) (services.QuotaDecision, error)
	DeniedMessage() string
	Limit() int
}

type JobCreator interface {
	Create(ctx context.Context, st jobs.Status) error
	Update(ctx context.Context, st jobs.Status) error
}

type JobRunner interface {
	Submit(job jobs.Status, photo []byte) error
	GetStatus(ctx context.Context, jobID string) (*jobs.Status, error)
}

type FaceSwapHandler struct {
	registry UserRegistry
	quota    QuotaGate
	store    JobCreator
	runner   JobRunner
	clock    clock.Clock
}

func NewFaceSwapHandler(registry UserRegistry, quota QuotaGate, store JobCreator, runner JobRunner, clk clock.Clock) *FaceSwapHandler {
	return &FaceSwapHandler{registry: registry, quota: quota, store: store, runner: runner, clock: clk}
}

// Start accepts a photo and queues a face swap job for the caller.
// The response is sent before any processing happens.
func (h *FaceSwapHandler) Start(c *fiber.Ctx) error {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		return errorResponse(c, fiber.StatusUnauthorized, "MissingCredentials", "Missing Telegram authorization data")
	}
	ctx := c.UserContext()

	if err := h.registry.Ensure(ctx, principal); err != nil {
		log.Printf("FaceSwap: failed to register user %d: %v", principal.ID, err)
		return errorResponse(c, fiber.StatusServiceUnavailable, CodeStoreUnavailable, "Service temporarily unavailable")
	}

	decision, err := h.quota.TryConsume(ctx, principal.ID)
	if errors.Is(err, services.ErrPrincipalNotRegistered) {
		return errorResponse(c, fiber.StatusForbidden, CodePrincipalNotRegistered, "User is not registered")
	}
	if err != nil {
		log.Printf("FaceSwap: quota check failed for user %d: %v", principal.ID, err)
		return errorResponse(c, fiber.StatusServiceUnavailable, CodeStoreUnavailable, "Service temporarily unavailable")
	}
	if !decision.Allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":            false,
			"message":            h.quota.DeniedMessage(),
			"code":               CodeQuotaExceeded,
			"remaining_attempts": 0,
			"daily_limit":        h.quota.Limit(),
		})
	}

	photo, err := readPhoto(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, CodeInvalidInput, err.Error())
	}

	job := jobs.Accepted(uuid.NewString(), principal.ID, h.clock.Now())
	if err := h.store.Create(ctx, job); err != nil {
		log.Printf("[Job: %s] Failed to create job: %v", job.JobID, err)
		return errorResponse(c, fiber.StatusServiceUnavailable, CodeStoreUnavailable, "Could not start the job, please try again")
	}
	if err := h.runner.Submit(job, photo); err != nil {
		log.Printf("[Job: %s] Failed to start job: %v", job.JobID, err)
		if err := h.store.Update(ctx, job.Failed(jobs.MsgServerRestarting, h.clock.Now())); err != nil {
			log.Printf("[Job: %s] Failed to record failure: %v", job.JobID, err)
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": jobs.MsgServerRestarting,
			"code":    CodeServiceUnavailable,
			"job_id":  job.JobID,
		})
	}

	log.Printf("[Job: %s] Accepted for user %d (%d attempts left)", job.JobID, principal.ID, decision.Remaining)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":            true,
		"job_id":             job.JobID,
		"status":             job.State,
		"message":            job.Message,
		"remaining_attempts": decision.Remaining,
	})
}

func readPhoto(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("user_photo")
	if err != nil {
		return nil, errors.New("user_photo file is required")
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return nil, errors.New("unsupported file type, an image is required")
	}
	if fh.Size > maxPhotoBytes {
		return nil, errors.New("photo is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("could not read the uploaded photo")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		return nil, errors.New("could not read the uploaded photo")
	}
	return data, nil
}

// Status returns the current job document. Any verified user may read
// any job; the owner id is stored but not checked.
func (h *FaceSwapHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		return errorResponse(c, fiber.StatusNotFound, CodeNotFound, "Job not found")
	}

	st, err := h.runner.GetStatus(c.UserContext(), jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		return errorResponse(c, fiber.StatusNotFound, CodeNotFound, "Job not found")
	}
	if err != nil {
		log.Printf("[Job: %s] Failed to read status: %v", jobID, err)
		return errorResponse(c, fiber.StatusServiceUnavailable, CodeStoreUnavailable, "Service temporarily unavailable")
	}
	return c.JSON(st)
}
