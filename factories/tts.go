package factories

import (
	"errors"

	"deskpet/core"
	ttshandler "deskpet/handlers/tts"
	"deskpet/services/cosyvoice"
	volcengine "deskpet/services/volcengine/tts"
	volcenginev3 "deskpet/services/volcengine/ttsv3"
)

// TTSFactoryConfig holds provider-specific configs for synthesis backend
// construction. Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	VolcengineConfig   *volcengine.Config   `json:"volcengine,omitempty"`
	VolcengineV3Config *volcenginev3.Config `json:"volcengine_v3,omitempty"`
	CosyVoiceConfig    *cosyvoice.Config    `json:"cosyvoice,omitempty"`
}

// BuildSynthesizer constructs a synthesis backend from the given factory
// config. Exactly one provider config must be non-nil.
func BuildSynthesizer(config TTSFactoryConfig, logger *core.Logger) (ttshandler.Synthesizer, error) {
	set := 0
	for _, present := range []bool{
		config.VolcengineConfig != nil,
		config.VolcengineV3Config != nil,
		config.CosyVoiceConfig != nil,
	} {
		if present {
			set++
		}
	}
	if set > 1 {
		return nil, errors.New("TTSFactoryConfig: multiple provider configs specified")
	}

	switch {
	case config.VolcengineConfig != nil:
		return volcengine.New(*config.VolcengineConfig, logger), nil
	case config.VolcengineV3Config != nil:
		return volcenginev3.New(*config.VolcengineV3Config, logger), nil
	case config.CosyVoiceConfig != nil:
		return cosyvoice.New(*config.CosyVoiceConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
