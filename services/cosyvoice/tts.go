// Package cosyvoice implements the Bailian CosyVoice synthesis backend: one
// authenticated HTTP POST whose response body is the encoded audio.
package cosyvoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"deskpet/core"

	"github.com/bytedance/sonic"
)

// Config holds configuration for the CosyVoice TTS service.
type Config struct {
	APIKey   string  `json:"api_key"`
	Endpoint string  `json:"endpoint"`
	Model    string  `json:"model"`
	VoiceID  string  `json:"voice_id"`
	Format   string  `json:"format"` // mp3, wav or pcm
	Speed    float64 `json:"speed"`
	Volume   float64 `json:"volume"`

	Timeout time.Duration `json:"-"`
}

// Service synthesizes speech via the Bailian CosyVoice HTTP API.
type Service struct {
	config Config
	logger *core.Logger
	client *http.Client

	mu sync.Mutex
}

// New creates a CosyVoice TTS service with the provided config.
func New(config Config, logger *core.Logger) *Service {
	if config.Endpoint == "" {
		config.Endpoint = "https://dashscope.aliyuncs.com/api/v1/services/audio/tts/synthesize"
	}
	if config.Model == "" {
		config.Model = "cosyvoice-v1"
	}
	if config.Format == "" {
		config.Format = "mp3"
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	if config.Volume == 0 {
		config.Volume = 1.0
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}

	if logger == nil {
		logger = core.GetLogger()
	}

	return &Service{
		config: config,
		logger: logger,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Speak synthesizes text and returns the complete audio buffer.
func (s *Service) Speak(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := sonic.Marshal(synthesizeRequest{
		Model: s.config.Model,
		Input: inputPayload{Text: text},
		Parameters: parametersPayload{
			Voice:  s.config.VoiceID,
			Speed:  s.config.Speed,
			Volume: s.config.Volume,
			Format: s.config.Format,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cosyvoice tts: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cosyvoice tts: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cosyvoice tts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cosyvoice tts: unexpected status %d: %s", resp.StatusCode, detail)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cosyvoice tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, core.ErrNoAudio
	}

	s.logger.Info("cosyvoice tts: synthesis complete", "bytes", len(audio))
	return audio, nil
}

type synthesizeRequest struct {
	Model      string            `json:"model"`
	Input      inputPayload      `json:"input"`
	Parameters parametersPayload `json:"parameters"`
}

type inputPayload struct {
	Text string `json:"text"`
}

type parametersPayload struct {
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed"`
	Volume float64 `json:"volume"`
	Format string  `json:"format"`
}
