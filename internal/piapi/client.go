// Package piapi is a small client for the PiAPI face-swap task API.
package piapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	faceSwapModel    = "Qubico/image-toolkit"
	faceSwapTaskType = "face-swap"
)

// Client submits and polls face-swap tasks.
type Client struct {
	apiKey       string
	baseURL      string
	submitClient *http.Client
	pollClient   *http.Client
}

// NewClient creates a PiAPI client. baseURL is normally
// https://api.piapi.ai.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		submitClient: &http.Client{Timeout: 30 * time.Second},
		pollClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Task is the subset of a PiAPI task document the service reads.
type Task struct {
	TaskID   string
	Status   string
	ImageURL string
	Error    string
}

type taskEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
		Output struct {
			ImageURL string `json:"image_url"`
		} `json:"output"`
		Error json.RawMessage `json:"error"`
	} `json:"data"`
}

// SubmitFaceSwap creates a face-swap task putting the face from
// swapImage onto targetImage. Both are data URIs or URLs. The service
// passes the batyr portrait as targetImage and the user photo as swapImage. An empty
// task id with a nil error means the response carried no id.
func (c *Client) SubmitFaceSwap(ctx context.Context, targetImage, swapImage string) (string, error) {
	payload := map[string]interface{}{
		"model":     faceSwapModel,
		"task_type": faceSwapTaskType,
		"input": map[string]string{
			"target_image": targetImage,
			"swap_image":   swapImage,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/task", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.submitClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("piapi submit failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("piapi submit HTTP error (%d): %s", resp.StatusCode, truncate(string(body), 300))
	}

	var env taskEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("piapi submit returned invalid JSON: %w", err)
	}
	return env.Data.TaskID, nil
}

// GetTask fetches the current state of a task. Non-200 responses are
// returned as errors so callers can treat them as transient.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/task/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.pollClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piapi poll failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("piapi poll HTTP error (%d): %s", resp.StatusCode, truncate(string(body), 300))
	}

	var env taskEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("piapi poll returned invalid JSON: %w", err)
	}

	return &Task{
		TaskID:   env.Data.TaskID,
		Status:   env.Data.Status,
		ImageURL: env.Data.Output.ImageURL,
		Error:    errorText(env.Data.Error),
	}, nil
}

// errorText flattens the task error, which PiAPI sends either as a
// string or as an object with message fields.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Code       int    `json:"code"`
		Message    string `json:"message"`
		RawMessage string `json:"raw_message"`
		Detail     string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return string(raw)
	}
	for _, s := range []string{obj.RawMessage, obj.Message, obj.Detail} {
		if s != "" {
			return s
		}
	}
	if obj.Code != 0 {
		return fmt.Sprintf("error code %d", obj.Code)
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
