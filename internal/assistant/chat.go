package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	temperature = 0.7
	maxTokens   = 150
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient calls an Azure OpenAI chat completions deployment.
type ChatClient struct {
	apiKey     string
	endpoint   string
	apiVersion string
	deployment string
	client     *http.Client
}

func NewChatClient(apiKey, endpoint, apiVersion, deployment string) *ChatClient {
	return &ChatClient{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: apiVersion,
		deployment: deployment,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete returns the assistant reply. filtered is true when the
// content filter blocked either the prompt or the answer.
func (c *ChatClient) Complete(ctx context.Context, messages []Message) (reply string, filtered bool, err error) {
	payload := map[string]interface{}{
		"messages":    messages,
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode chat request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(c.deployment), url.QueryEscape(c.apiVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, fmt.Errorf("chat HTTP %d returned invalid JSON", resp.StatusCode)
	}

	if out.Error != nil {
		if out.Error.Code == "content_filter" {
			return "", true, nil
		}
		return "", false, fmt.Errorf("chat HTTP error (%d): %s: %s", resp.StatusCode, out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("chat HTTP error (%d)", resp.StatusCode)
	}

	if len(out.Choices) == 0 || out.Choices[0].FinishReason == "content_filter" ||
		strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", true, nil
	}
	return out.Choices[0].Message.Content, false, nil
}
