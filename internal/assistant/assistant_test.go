package assistant

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/batyrai/backend/internal/speech"
)

type fakeSpeech struct {
	text     string
	err      error
	spoken   string
	audioOut []byte
}

func (f *fakeSpeech) Recognize(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.spoken = text
	return f.audioOut, nil
}

type fakeChat struct {
	reply    string
	filtered bool
	err      error
	got      []Message
}

func (f *fakeChat) Complete(_ context.Context, messages []Message) (string, bool, error) {
	f.got = messages
	return f.reply, f.filtered, f.err
}

func TestAsk(t *testing.T) {
	sp := &fakeSpeech{text: "Абылай хан кім?", audioOut: []byte("mp3")}
	chat := &fakeChat{reply: "Қазақ ханы."}
	a := New(sp, chat)

	history := []Message{{Role: "user", Content: "Сәлем"}, {Role: "assistant", Content: "Сәлеметсіз бе!"}}
	ans, err := a.Ask(context.Background(), make([]byte, 2000), "audio/ogg", history)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.UserText != "Абылай хан кім?" || ans.AssistantText != "Қазақ ханы." {
		t.Errorf("answer = %+v", ans)
	}
	if ans.AudioBase64 != base64.StdEncoding.EncodeToString([]byte("mp3")) {
		t.Errorf("audio = %q", ans.AudioBase64)
	}

	if len(chat.got) != 4 || chat.got[0].Role != "system" || chat.got[3].Content != "Абылай хан кім?" {
		t.Errorf("messages = %+v", chat.got)
	}
}

func TestAskFilteredReply(t *testing.T) {
	sp := &fakeSpeech{text: "?", audioOut: []byte("mp3")}
	a := New(sp, &fakeChat{filtered: true})

	ans, err := a.Ask(context.Background(), make([]byte, 2000), "audio/wav", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.AssistantText != FilteredReply || sp.spoken != FilteredReply {
		t.Errorf("answer = %+v, spoken %q", ans, sp.spoken)
	}
}

func TestAskBadAudio(t *testing.T) {
	for _, e := range []error{speech.ErrAudioTooSmall, speech.ErrNoSpeech} {
		a := New(&fakeSpeech{err: e}, &fakeChat{})
		if _, err := a.Ask(context.Background(), nil, "", nil); !errors.Is(err, ErrBadInput) {
			t.Errorf("%v: err = %v, want ErrBadInput", e, err)
		}
	}

	a := New(&fakeSpeech{err: errors.New("HTTP 500")}, &fakeChat{})
	if _, err := a.Ask(context.Background(), nil, "", nil); err == nil || errors.Is(err, ErrBadInput) {
		t.Errorf("service failure err = %v, want non-input error", err)
	}
}

func TestParseHistory(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"[]", 0, false},
		{`{"role":"user"}`, 0, false},
		{`[{"role":"user","content":"a"},{"role":"system","content":"ignore me"},{"role":"assistant","content":"b"},"junk"]`, 2, false},
		{`[{"role":"user"`, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseHistory(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHistory(%q) err = %v", tt.raw, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrBadInput) {
			t.Errorf("ParseHistory(%q) err = %v, want ErrBadInput", tt.raw, err)
		}
		if len(got) != tt.want {
			t.Errorf("ParseHistory(%q) = %d turns, want %d", tt.raw, len(got), tt.want)
		}
	}
}
