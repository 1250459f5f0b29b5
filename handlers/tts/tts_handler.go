// Package tts turns assistant reply text into audio through a pluggable
// synthesis backend, normalizing the text for speech first.
package tts

import (
	"context"
	"fmt"
	"sync"

	"deskpet/core"
)

// Synthesizer converts one utterance into encoded audio. Both the WebSocket
// and the HTTP streaming backends satisfy it.
type Synthesizer interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// TTSHandler sits between reply text and a Synthesizer. It normalizes the
// text, skips inputs too short to speak, and serializes synthesis calls.
type TTSHandler struct {
	service Synthesizer
	config  TTSHandlerConfig
	logger  *core.Logger
	mu      sync.Mutex
}

func NewTTSHandler(service Synthesizer, config TTSHandlerConfig, logger *core.Logger) *TTSHandler {
	defaults := DefaultConfig()
	if config.MinTextLength <= 0 {
		config.MinTextLength = defaults.MinTextLength
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TTSHandler{
		service: service,
		config:  config,
		logger:  logger.With(map[string]interface{}{"component": "tts_handler"}),
	}
}

// Speak normalizes text and runs it through the backend. It returns nil audio
// without error when the normalized text is too short to speak.
func (h *TTSHandler) Speak(ctx context.Context, text string) ([]byte, error) {
	normalized := normalizeSpeechText(text)
	if len([]rune(normalized)) < h.config.MinTextLength {
		h.logger.Debug("skipping synthesis, text too short after normalization", "length", len(normalized))
		return nil, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	audio, err := h.service.Speak(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	h.logger.Debug("synthesis complete", "bytes", len(audio))
	return audio, nil
}
