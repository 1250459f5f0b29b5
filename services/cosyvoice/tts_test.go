package cosyvoice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"deskpet/core"
)

func TestSpeakReturnsAudioBody(t *testing.T) {
	var gotAuth string
	var gotBody map[string]json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	s := New(Config{
		APIKey:   "key-1",
		Endpoint: server.URL,
		VoiceID:  "longxiaochun",
	}, core.NewLogger(nil))

	audio, err := s.Speak(context.Background(), "你好")
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("auth header = %q", gotAuth)
	}

	var params struct {
		Voice  string  `json:"voice"`
		Format string  `json:"format"`
		Speed  float64 `json:"speed"`
	}
	if err := json.Unmarshal(gotBody["parameters"], &params); err != nil {
		t.Fatalf("parameters: %v", err)
	}
	if params.Voice != "longxiaochun" || params.Format != "mp3" || params.Speed != 1.0 {
		t.Errorf("parameters = %+v, want defaults applied", params)
	}
	if string(gotBody["model"]) != `"cosyvoice-v1"` {
		t.Errorf("model = %s", gotBody["model"])
	}
}

func TestSpeakHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	s := New(Config{APIKey: "bad", Endpoint: server.URL}, core.NewLogger(nil))
	if _, err := s.Speak(context.Background(), "你好"); err == nil {
		t.Error("expected error on non-2xx status")
	}
}

func TestSpeakEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	s := New(Config{APIKey: "key", Endpoint: server.URL}, core.NewLogger(nil))
	_, err := s.Speak(context.Background(), "你好")
	if !errors.Is(err, core.ErrNoAudio) {
		t.Errorf("err = %v, want ErrNoAudio", err)
	}
}

func TestSpeakEmptyText(t *testing.T) {
	s := New(Config{APIKey: "key"}, core.NewLogger(nil))
	if _, err := s.Speak(context.Background(), ""); err == nil {
		t.Error("expected error for empty text")
	}
}
