package tts

import "time"

type TTSHandlerConfig struct {
	MinTextLength int           `json:"min_text_length"` // Inputs shorter than this are not worth speaking and are skipped.
	Timeout       time.Duration `json:"-"`               // Upper bound on one synthesis round trip.
}

// DefaultConfig returns a TTSHandlerConfig with sensible defaults.
func DefaultConfig() TTSHandlerConfig {
	return TTSHandlerConfig{
		MinTextLength: 1,
		Timeout:       90 * time.Second,
	}
}
