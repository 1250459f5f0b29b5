package factories

import (
	"testing"

	"deskpet/core"
	"deskpet/services/cosyvoice"
	volcengine "deskpet/services/volcengine/tts"
	volcenginev3 "deskpet/services/volcengine/ttsv3"
)

func TestSettingsConfigFromJSON(t *testing.T) {
	data := []byte(`{
		"assistant_id": "pet-1",
		"tts": {"volcengine": {"voice_type": "BV001_streaming"}},
		"completion": {"base_url": "https://api.deepseek.com/v1", "model": "deepseek-chat"},
		"memory": {"importance_threshold": 70}
	}`)

	cfg, err := SettingsConfigFromJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.AssistantID != "pet-1" {
		t.Errorf("assistant id = %q", cfg.AssistantID)
	}
	if cfg.TTS.VolcengineConfig == nil || cfg.TTS.VolcengineConfig.VoiceType != "BV001_streaming" {
		t.Errorf("tts config = %+v", cfg.TTS)
	}
	if cfg.Memory.ImportanceThreshold != 70 {
		t.Errorf("threshold = %d", cfg.Memory.ImportanceThreshold)
	}
	// Unset storage paths fall back to the defaults.
	if cfg.Storage.MemoryDBPath != "data/memory.db" || cfg.Storage.ChatDBPath != "data/chat.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestInjectAPIKeysFillsOnlyEmptyFields(t *testing.T) {
	cfg := DefaultSettingsConfig()
	cfg.TTS.VolcengineConfig = &volcengine.Config{AppID: "from-json"}
	cfg.InjectAPIKeys(APIKeys{VolcAppID: "from-env", VolcAccessToken: "tok", CompletionAPIKey: "key"})

	if cfg.TTS.VolcengineConfig.AppID != "from-json" {
		t.Errorf("app id = %q, json value must win", cfg.TTS.VolcengineConfig.AppID)
	}
	if cfg.TTS.VolcengineConfig.AccessToken != "tok" {
		t.Errorf("access token = %q", cfg.TTS.VolcengineConfig.AccessToken)
	}
	if cfg.Completion.APIKey != "key" {
		t.Errorf("completion key = %q", cfg.Completion.APIKey)
	}
}

func TestBuildSynthesizerProviderSelection(t *testing.T) {
	logger := core.NewLogger(nil)

	if _, err := BuildSynthesizer(TTSFactoryConfig{}, logger); err == nil {
		t.Error("expected error with no provider config")
	}
	if _, err := BuildSynthesizer(TTSFactoryConfig{
		VolcengineConfig:   &volcengine.Config{},
		VolcengineV3Config: &volcenginev3.Config{},
	}, logger); err == nil {
		t.Error("expected error with two provider configs")
	}

	for name, config := range map[string]TTSFactoryConfig{
		"volcengine":    {VolcengineConfig: &volcengine.Config{}},
		"volcengine_v3": {VolcengineV3Config: &volcenginev3.Config{}},
		"cosyvoice":     {CosyVoiceConfig: &cosyvoice.Config{}},
	} {
		svc, err := BuildSynthesizer(config, logger)
		if err != nil || svc == nil {
			t.Errorf("%s: build = %v, %v", name, svc, err)
		}
	}
}

func TestInjectAPIKeysCosyVoice(t *testing.T) {
	cfg := DefaultSettingsConfig()
	cfg.TTS.CosyVoiceConfig = &cosyvoice.Config{VoiceID: "longxiaochun"}
	cfg.InjectAPIKeys(APIKeys{DashScopeAPIKey: "ds-key"})

	if cfg.TTS.CosyVoiceConfig.APIKey != "ds-key" {
		t.Errorf("api key = %q", cfg.TTS.CosyVoiceConfig.APIKey)
	}
}
