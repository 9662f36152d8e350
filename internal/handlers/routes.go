package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Routes groups the API handlers.
type Routes struct {
	FaceSwap *FaceSwapHandler
	System   *SystemHandler
	Region   *RegionHandler
	Voice    *VoiceHandler
}

// Register mounts every endpoint on api. auth runs before routes that
// need a verified Telegram user; audit runs after it.
func (r *Routes) Register(api fiber.Router, auth, audit fiber.Handler) {
	// Public routes
	api.Get("/health", r.System.Health)
	api.Get("/stats", r.System.Stats)
	api.Get("/region/:id", r.Region.Get)
	api.Post("/tts", r.Voice.TTS)

	// Telegram-authenticated routes
	api.Post("/start-face-swap", auth, audit, r.FaceSwap.Start)
	api.Get("/task-status/:job_id", auth, r.FaceSwap.Status)
	api.Post("/ask-assistant", auth, audit, r.Voice.AskAssistant)
}
