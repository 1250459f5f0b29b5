// Package factories turns declarative JSON settings into wired components:
// the synthesis backend, the completion client, and the local stores.
package factories

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"

	"deskpet/services/openai/completion"
)

// StorageSettings names the local database files.
type StorageSettings struct {
	MemoryDBPath string `json:"memory_db_path"`
	ChatDBPath   string `json:"chat_db_path"`
}

// MemorySettings tunes the memory lifecycle engine. Zero values mean
// engine defaults.
type MemorySettings struct {
	ImportanceThreshold int `json:"importance_threshold"`
	InjectBudget        int `json:"inject_budget"`
	RecallLimit         int `json:"recall_limit"`
}

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	AssistantID string            `json:"assistant_id"`
	TTS         TTSFactoryConfig  `json:"tts"`
	Completion  completion.Config `json:"completion"`
	Storage     StorageSettings   `json:"storage"`
	Memory      MemorySettings    `json:"memory"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with local paths.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		AssistantID: "default",
		Storage: StorageSettings{
			MemoryDBPath: "data/memory.db",
			ChatDBPath:   "data/chat.db",
		},
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig, filling
// unset storage paths with the defaults.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	if cfg.Storage.MemoryDBPath == "" {
		cfg.Storage.MemoryDBPath = "data/memory.db"
	}
	if cfg.Storage.ChatDBPath == "" {
		cfg.Storage.ChatDBPath = "data/chat.db"
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// APIKeys carries the credentials read from the environment. Keeping them out
// of settings.json lets the file be checked in.
type APIKeys struct {
	VolcAppID        string `env:"VOLC_APP_ID"`
	VolcAccessToken  string `env:"VOLC_ACCESS_TOKEN"`
	DashScopeAPIKey  string `env:"DASHSCOPE_API_KEY"`
	CompletionAPIKey string `env:"LLM_API_KEY"`
}

// LoadAPIKeys reads credentials from the environment.
func LoadAPIKeys() (APIKeys, error) {
	keys, err := env.ParseAs[APIKeys]()
	if err != nil {
		return APIKeys{}, fmt.Errorf("settings: parse env: %w", err)
	}
	return keys, nil
}

// InjectAPIKeys fills credential fields left empty in the JSON config from
// the environment keys. Values already present in the config win.
func (c *SettingsConfig) InjectAPIKeys(keys APIKeys) {
	if tts := c.TTS.VolcengineConfig; tts != nil {
		if tts.AppID == "" {
			tts.AppID = keys.VolcAppID
		}
		if tts.AccessToken == "" {
			tts.AccessToken = keys.VolcAccessToken
		}
	}
	if tts := c.TTS.VolcengineV3Config; tts != nil {
		if tts.AppID == "" {
			tts.AppID = keys.VolcAppID
		}
		if tts.AccessToken == "" {
			tts.AccessToken = keys.VolcAccessToken
		}
	}
	if tts := c.TTS.CosyVoiceConfig; tts != nil && tts.APIKey == "" {
		tts.APIKey = keys.DashScopeAPIKey
	}
	if c.Completion.APIKey == "" {
		c.Completion.APIKey = keys.CompletionAPIKey
	}
}
