package handlers

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/batyrai/backend/internal/assistant"
	"github.com/batyrai/backend/internal/speech"
	"github.com/gofiber/fiber/v2"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Assistant interface {
	Ask(ctx context.Context, audio []byte, contentType string, history []assistant.Message) (*assistant.Answer, error)
}

// VoiceHandler serves text-to-speech and the voice assistant. Either
// dependency may be nil when its service is not configured.
type VoiceHandler struct {
	tts       Synthesizer
	assistant Assistant
}

func NewVoiceHandler(tts Synthesizer, asst Assistant) *VoiceHandler {
	return &VoiceHandler{tts: tts, assistant: asst}
}

type ttsRequest struct {
	Text string `json:"text"`
}

// TTS reads the given text aloud and returns MP3 audio.
func (h *VoiceHandler) TTS(c *fiber.Ctx) error {
	if h.tts == nil {
		return errorResponse(c, fiber.StatusInternalServerError, CodeServiceUnavailable, "Text-to-speech is not configured")
	}

	var req ttsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, CodeInvalidInput, "Invalid request body")
	}

	audio, err := h.tts.Synthesize(c.UserContext(), req.Text)
	switch {
	case errors.Is(err, speech.ErrEmptyText):
		return errorResponse(c, fiber.StatusBadRequest, CodeInvalidInput, "No text provided")
	case errors.Is(err, speech.ErrNotConfigured):
		return errorResponse(c, fiber.StatusInternalServerError, CodeServiceUnavailable, "Text-to-speech is not configured")
	case err != nil:
		log.Printf("TTS: synthesis failed: %v", err)
		return errorResponse(c, fiber.StatusInternalServerError, CodeInternal, "Speech synthesis failed")
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(audio)
}

// AskAssistant answers a spoken question with text and audio.
func (h *VoiceHandler) AskAssistant(c *fiber.Ctx) error {
	if h.assistant == nil {
		return errorResponse(c, fiber.StatusInternalServerError, CodeServiceUnavailable, "Assistant is not configured")
	}

	history, err := assistant.ParseHistory(c.FormValue("history_json", "[]"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, CodeInvalidInput, "Invalid JSON in history_json")
	}

	fh, err := c.FormFile("audio_file")
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, CodeInvalidInput, "audio_file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, CodeInvalidInput, "Could not read audio_file")
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, CodeInvalidInput, "Could not read audio_file")
	}

	answer, err := h.assistant.Ask(c.UserContext(), audio, fh.Header.Get("Content-Type"), history)
	if errors.Is(err, assistant.ErrBadInput) {
		log.Printf("Assistant: bad input: %v", err)
		return errorResponse(c, fiber.StatusBadRequest, CodeInvalidInput, "Could not recognize speech in the recording")
	}
	if err != nil {
		log.Printf("Assistant: request failed: %v", err)
		return errorResponse(c, fiber.StatusInternalServerError, CodeInternal, "Unexpected assistant error")
	}
	return c.JSON(answer)
}
