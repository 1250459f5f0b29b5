package core

import (
	"errors"
	"fmt"
)

// ErrNoAudio indicates a synthesis stream finished without yielding any data.
var ErrNoAudio = errors.New("no audio data received")

// SynthesisError is a failure reported by the TTS vendor, carrying the
// vendor's error code and a human-readable message.
type SynthesisError struct {
	Code    int32
	Message string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed (code %d): %s", e.Code, e.Message)
}
