package volcenginev3

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deskpet/core"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func newTestService(endpoint string, doneCode int) *Service {
	return New(Config{
		AppID:       "app",
		AccessToken: "key",
		VoiceType:   "zh_female_1",
		Endpoint:    endpoint,
		DoneCode:    doneCode,
	}, core.NewLogger(nil))
}

func TestSpeakAssemblesChunksInArrivalOrder(t *testing.T) {
	var gotAppID, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAppID = r.Header.Get("X-Api-App-Id")
		gotKey = r.Header.Get("X-Api-Access-Key")
		fmt.Fprintf(w, `{"code":0,"data":"%s"}`+"\n", b64("hello "))
		fmt.Fprintln(w, `{"code":0,"sentence":{"text":"ignored"}}`)
		fmt.Fprintf(w, `{"code":0,"data":"%s"}`+"\n", b64("world"))
		fmt.Fprintln(w, `{"code":20000000,"message":"done"}`)
	}))
	defer srv.Close()

	audio, err := newTestService(srv.URL, 0).Speak(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !bytes.Equal(audio, []byte("hello world")) {
		t.Errorf("audio = %q, want %q", audio, "hello world")
	}
	if gotAppID != "app" || gotKey != "key" {
		t.Errorf("auth headers = (%q, %q), want (app, key)", gotAppID, gotKey)
	}
}

func TestSpeakVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":"%s"}`+"\n", b64("partial"))
		fmt.Fprintln(w, `{"code":4003,"message":"voice not found"}`)
	}))
	defer srv.Close()

	audio, err := newTestService(srv.URL, 0).Speak(context.Background(), "hi")
	if audio != nil {
		t.Errorf("audio = %q, want nil", audio)
	}
	var synthErr *core.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("err = %v, want *core.SynthesisError", err)
	}
	if synthErr.Code != 4003 || synthErr.Message != "voice not found" {
		t.Errorf("got code=%d msg=%q", synthErr.Code, synthErr.Message)
	}
}

func TestSpeakHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestService(srv.URL, 0).Speak(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want status 403 in message", err)
	}
}

func TestSpeakConfigurableDoneCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":"%s"}`+"\n", b64("x"))
		fmt.Fprintln(w, `{"code":777}`)
	}))
	defer srv.Close()

	audio, err := newTestService(srv.URL, 777).Speak(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !bytes.Equal(audio, []byte("x")) {
		t.Errorf("audio = %q, want x", audio)
	}
}

func TestSpeakStreamEndsWithoutDoneCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":"%s"}`+"\n", b64("tail"))
	}))
	defer srv.Close()

	audio, err := newTestService(srv.URL, 0).Speak(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !bytes.Equal(audio, []byte("tail")) {
		t.Errorf("audio = %q, want tail", audio)
	}
}

func TestSpeakNoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"code":20000000}`)
	}))
	defer srv.Close()

	_, err := newTestService(srv.URL, 0).Speak(context.Background(), "hi")
	if !errors.Is(err, core.ErrNoAudio) {
		t.Errorf("err = %v, want ErrNoAudio", err)
	}
}

func TestSpeakEmptyText(t *testing.T) {
	if _, err := newTestService("http://unused", 0).Speak(context.Background(), ""); err == nil {
		t.Error("expected error for empty text")
	}
}
