// Package assistant answers spoken history questions: speech is
// transcribed, answered by a chat model and read back.
package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/batyrai/backend/internal/speech"
)

// SystemPrompt sets the persona of the batyr history assistant.
const SystemPrompt = "Сен – тарих пәнінің сарапшысы, Батыр атты AI-көмекшісің. " +
	"Қысқа, құрметпен және мәні бойынша жауап бер. Отвечай 1-2 предложениями. " +
	"Сенің міндетің – білім беру."

// FilteredReply is spoken instead of an answer the content filter blocked.
const FilteredReply = "Кешіріңіз, сұранысыңыз мазмұн саясатына байланысты өңделмеді."

// maxHistory bounds how many earlier turns are sent to the model.
const maxHistory = 20

// ErrBadInput wraps every failure caused by the request itself.
var ErrBadInput = errors.New("invalid assistant request")

type Speech interface {
	Recognize(ctx context.Context, audio []byte, contentType string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Chat interface {
	Complete(ctx context.Context, messages []Message) (string, bool, error)
}

type Answer struct {
	UserText      string `json:"userText"`
	AssistantText string `json:"assistantText"`
	AudioBase64   string `json:"audioBase64"`
}

type Assistant struct {
	speech Speech
	chat   Chat
}

func New(sp Speech, chat Chat) *Assistant {
	return &Assistant{speech: sp, chat: chat}
}

// ParseHistory decodes the client's conversation history. Anything
// other than a JSON array yields an empty history; unknown roles and
// empty turns are dropped.
func ParseHistory(raw string) ([]Message, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("%w: history_json is not valid JSON", ErrBadInput)
	}
	items, ok := decoded.([]interface{})
	if !ok {
		return nil, nil
	}

	var history []Message
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		if (role != "user" && role != "assistant") || strings.TrimSpace(content) == "" {
			continue
		}
		history = append(history, Message{Role: role, Content: content})
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	return history, nil
}

// Ask runs one spoken turn.
func (a *Assistant) Ask(ctx context.Context, audio []byte, contentType string, history []Message) (*Answer, error) {
	log.Printf("Assistant: received %d bytes of audio", len(audio))

	question, err := a.speech.Recognize(ctx, audio, contentType)
	if err != nil {
		if errors.Is(err, speech.ErrAudioTooSmall) || errors.Is(err, speech.ErrNoSpeech) {
			return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		return nil, err
	}
	log.Printf("Assistant: recognized %q", truncate(question, 50))

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: question})

	reply, filtered, err := a.chat.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	if filtered {
		log.Println("Assistant: reply blocked by content filter")
		reply = FilteredReply
	}

	audioReply, err := a.speech.Synthesize(ctx, reply)
	if err != nil {
		return nil, err
	}

	return &Answer{
		UserText:      question,
		AssistantText: reply,
		AudioBase64:   base64.StdEncoding.EncodeToString(audioReply),
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
