package tts

import (
	"context"
	"errors"
	"testing"

	"deskpet/core"
)

type fakeSynthesizer struct {
	audio    []byte
	err      error
	calls    int
	lastText string
}

func (f *fakeSynthesizer) Speak(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	f.lastText = text
	return f.audio, f.err
}

func TestSpeakNormalizesBeforeSynthesis(t *testing.T) {
	svc := &fakeSynthesizer{audio: []byte{1, 2, 3}}
	h := NewTTSHandler(svc, TTSHandlerConfig{}, core.NewLogger(nil))

	audio, err := h.Speak(context.Background(), "**你好**，今天天气  不错 😀")
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if len(audio) != 3 {
		t.Errorf("got %d audio bytes, want 3", len(audio))
	}
	if svc.lastText != "你好，今天天气 不错" {
		t.Errorf("synthesized %q, want normalized text", svc.lastText)
	}
}

func TestSpeakSkipsShortText(t *testing.T) {
	svc := &fakeSynthesizer{audio: []byte{1}}
	h := NewTTSHandler(svc, TTSHandlerConfig{MinTextLength: 5}, core.NewLogger(nil))

	audio, err := h.Speak(context.Background(), "嗯 ")
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if audio != nil || svc.calls != 0 {
		t.Errorf("audio=%v calls=%d, want short input skipped", audio, svc.calls)
	}
}

func TestSpeakPropagatesBackendError(t *testing.T) {
	svc := &fakeSynthesizer{err: errors.New("socket closed")}
	h := NewTTSHandler(svc, TTSHandlerConfig{}, core.NewLogger(nil))

	if _, err := h.Speak(context.Background(), "播报这段话"); err == nil {
		t.Error("expected backend error to propagate")
	}
}

func TestNormalizeSpeechText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"markdown markers", "**bold** and `code`", "bold and code"},
		{"code fence", "```go\nfmt.Println(1)\n```", "fmt.Println(1)"},
		{"emoji", "好的👌没问题", "好的没问题"},
		{"whitespace", "  a   b  ", "a b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeSpeechText(tc.in); got != tc.want {
				t.Errorf("normalizeSpeechText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
