package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/batyrai/backend/internal/clock"
)

type apiCall struct {
	method string
	body   map[string]interface{}
}

// fakeBotAPI records every Bot API call and answers getUpdates from a
// queue of raw result arrays.
type fakeBotAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	updates []string
	onEmpty func()
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, body: body})
	result := "true"
	var onEmpty func()
	if method == "getUpdates" {
		result = "[]"
		if len(f.updates) > 0 {
			result, f.updates = f.updates[0], f.updates[1:]
		} else {
			onEmpty = f.onEmpty
		}
	}
	f.mu.Unlock()

	if onEmpty != nil {
		onEmpty()
	}
	w.Write([]byte(`{"ok":true,"result":` + result + `}`))
}

func (f *fakeBotAPI) sent() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == "sendMessage" {
			out = append(out, c)
		}
	}
	return out
}

func newTestCommands(t *testing.T, api *fakeBotAPI) *Commands {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cmds := NewCommands(NewBot("42:abc", srv.URL), "https://batyrai.com", clock.Fake(time.Now()))
	cmds.followUpDelay = 0
	return cmds
}

func TestStartSendsWebAppButtonAndHint(t *testing.T) {
	api := &fakeBotAPI{}
	cmds := newTestCommands(t, api)

	msg := &Message{Chat: Chat{ID: 7}, From: &User{ID: 7, FirstName: "<Abylai>"}, Text: "/start"}
	if err := cmds.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	sent := api.sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want welcome and hint", len(sent))
	}

	welcome := sent[0].body
	if welcome["chat_id"] != float64(7) || welcome["parse_mode"] != "HTML" {
		t.Errorf("welcome = %v", welcome)
	}
	if text, _ := welcome["text"].(string); !strings.Contains(text, "&lt;Abylai&gt;") {
		t.Errorf("welcome text = %q, want escaped first name", text)
	}
	markup, _ := welcome["reply_markup"].(map[string]interface{})
	rows, _ := markup["inline_keyboard"].([]interface{})
	if len(rows) != 1 {
		t.Fatalf("reply_markup = %v, want one row", welcome["reply_markup"])
	}
	button := rows[0].([]interface{})[0].(map[string]interface{})
	webApp, _ := button["web_app"].(map[string]interface{})
	if webApp["url"] != "https://batyrai.com" || button["text"] != startButtonText {
		t.Errorf("button = %v", button)
	}

	if sent[1].body["text"] != followUpText || sent[1].body["reply_markup"] != nil {
		t.Errorf("follow-up = %v", sent[1].body)
	}
}

func TestHelpAndUnknownCommands(t *testing.T) {
	api := &fakeBotAPI{}
	cmds := newTestCommands(t, api)
	ctx := context.Background()

	for _, text := range []string{"hello", "", "/settings", "/help@BatyrAIBot"} {
		if err := cmds.Handle(ctx, &Message{Chat: Chat{ID: 9}, Text: text}); err != nil {
			t.Fatalf("Handle(%q): %v", text, err)
		}
	}

	sent := api.sent()
	if len(sent) != 1 || sent[0].body["text"] != helpText {
		t.Errorf("sent = %v, want only the help text", sent)
	}
}

func TestCommandParsing(t *testing.T) {
	tests := map[string]string{
		"/start":           "/start",
		"/START ref_123":   "/start",
		"/help@BatyrAIBot": "/help",
		"  /help  ":        "/help",
		"start":            "",
		"":                 "",
		"привет /start":    "",
	}
	for text, want := range tests {
		if got := command(text); got != want {
			t.Errorf("command(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestRunAnswersUpdatesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := &fakeBotAPI{
		updates: []string{
			`[{"update_id":10,"message":{"message_id":1,"chat":{"id":5},"text":"/help"}},{"update_id":11}]`,
		},
		onEmpty: cancel,
	}
	cmds := newTestCommands(t, api)

	done := make(chan error, 1)
	go func() { done <- cmds.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.calls) < 3 || api.calls[0].method != "deleteWebhook" {
		t.Fatalf("calls = %v", api.calls)
	}
	if api.calls[0].body["drop_pending_updates"] != true {
		t.Errorf("deleteWebhook body = %v", api.calls[0].body)
	}
	if api.calls[2].method != "sendMessage" || api.calls[2].body["text"] != helpText {
		t.Errorf("third call = %+v, want the help reply", api.calls[2])
	}
	last := api.calls[len(api.calls)-1]
	if last.method != "getUpdates" || last.body["offset"] != float64(12) {
		t.Errorf("last call = %+v, want getUpdates from offset 12", last)
	}
}
