// Package speech talks to the Azure Speech REST API for synthesis and
// short-audio recognition.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	outputFormat = "audio-16khz-32kbitrate-mono-mp3"
	userAgent    = "batyrai-backend"

	// MinAudioBytes is the smallest upload treated as real speech.
	MinAudioBytes = 1000
)

var (
	ErrNotConfigured = errors.New("speech service is not configured")
	ErrEmptyText     = errors.New("no text provided")
	ErrAudioTooSmall = errors.New("audio file is too small or empty")
	ErrNoSpeech      = errors.New("speech could not be recognized")
)

// Client is an Azure Speech client bound to one voice and language.
type Client struct {
	key      string
	voice    string
	language string
	ttsURL   string
	sttURL   string
	client   *http.Client
}

func NewClient(key, region, voice, language string) *Client {
	return &Client{
		key:      key,
		voice:    voice,
		language: language,
		ttsURL:   fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		sttURL:   fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", region),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Synthesize renders text as MP3 audio.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c == nil || c.key == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ttsURL, strings.NewReader(c.ssml(text)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech synthesis HTTP error (%d): %s", resp.StatusCode, string(audio))
	}
	return audio, nil
}

func (c *Client) ssml(text string) string {
	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(text))
	return fmt.Sprintf(
		`<speak version="1.0" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		c.language, c.voice, escaped.String(),
	)
}

type recognitionResult struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
}

// Recognize transcribes a short utterance. Azure accepts WAV (16 kHz
// mono PCM) and OGG/Opus; contentType is the upload's media type.
func (c *Client) Recognize(ctx context.Context, audio []byte, contentType string) (string, error) {
	if c == nil || c.key == "" {
		return "", ErrNotConfigured
	}
	if len(audio) < MinAudioBytes {
		return "", ErrAudioTooSmall
	}

	q := url.Values{}
	q.Set("language", c.language)
	q.Set("format", "simple")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sttURL+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", audioContentType(contentType))
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech recognition failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech recognition HTTP error (%d): %s", resp.StatusCode, string(body))
	}

	var result recognitionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("speech recognition returned invalid JSON: %w", err)
	}

	switch result.RecognitionStatus {
	case "Success":
		if strings.TrimSpace(result.DisplayText) == "" {
			return "", ErrNoSpeech
		}
		return result.DisplayText, nil
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		return "", ErrNoSpeech
	default:
		return "", fmt.Errorf("speech recognition status %q", result.RecognitionStatus)
	}
}

func audioContentType(uploaded string) string {
	if strings.Contains(strings.ToLower(uploaded), "ogg") {
		return "audio/ogg; codecs=opus"
	}
	return "audio/wav; codecs=audio/pcm; samplerate=16000"
}
