package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Bot sends messages through the Telegram Bot API.
type Bot struct {
	token  string
	apiURL string
	client *http.Client
}

// NewBot creates a Bot API client. apiURL is normally
// https://api.telegram.org.
func NewBot(token, apiURL string) *Bot {
	return &Bot{
		token:  token,
		apiURL: apiURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendPhoto sends a photo by URL to a chat.
func (b *Bot) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	return b.call(ctx, "sendPhoto", map[string]interface{}{
		"chat_id": chatID,
		"photo":   photoURL,
		"caption": caption,
	}, nil)
}

// SendMessage sends a plain text message to a chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

// NotifyCompleted delivers a finished portrait to its owner. Telegram
// refuses some remote images, in which case the link is sent as text.
func (b *Bot) NotifyCompleted(ctx context.Context, ownerID int64, resultURL string) error {
	err := b.SendPhoto(ctx, ownerID, resultURL, "Your batyr portrait is ready!")
	if err == nil {
		return nil
	}
	if textErr := b.SendMessage(ctx, ownerID, "Your batyr portrait is ready: "+resultURL); textErr != nil {
		return fmt.Errorf("%v; fallback: %w", err, textErr)
	}
	return nil
}

// call invokes a Bot API method. When out is not nil the "result" field
// of the response is decoded into it.
func (b *Bot) call(ctx context.Context, method string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	reqURL := fmt.Sprintf("%s/bot%s/%s", b.apiURL, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var result struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("telegram %s HTTP error (%d): %s", method, resp.StatusCode, string(body))
	}
	if !result.OK {
		return fmt.Errorf("telegram %s error: %s", method, result.Description)
	}
	if out != nil && len(result.Result) > 0 {
		if err := json.Unmarshal(result.Result, out); err != nil {
			return fmt.Errorf("telegram %s returned invalid result: %w", method, err)
		}
	}
	return nil
}
