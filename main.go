package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"

	"deskpet/core"
	"deskpet/factories"
	"deskpet/handlers/memory"
	"deskpet/handlers/tts"
	"deskpet/services/openai/completion"
	"deskpet/storage"

	"github.com/joho/godotenv"
)

func main() {
	var speakText string
	var outPath string
	var conversationID string
	flag.StringVar(&speakText, "speak", "", "Text to synthesize through the configured TTS backend")
	flag.StringVar(&outPath, "out", "out.wav", "File to write synthesized audio to")
	flag.StringVar(&conversationID, "conversation", "default", "Conversation scope for memory operations")
	flag.Parse()

	ctx := context.Background()
	logger := core.GetLogger()

	if err := godotenv.Load(".env.local"); err != nil {
		logger.With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}

	settings, apiKeys := loadSettingsFromEnv()
	settings.InjectAPIKeys(apiKeys)

	if speakText != "" {
		runSpeak(ctx, settings, speakText, outPath)
		return
	}

	// Without -speak, render the memory prompt block for the scope. This is
	// what the pet's chat loop prepends to its system prompt.
	runPromptPreview(ctx, settings, conversationID)
}

// loadSettingsFromEnv loads SettingsConfig from file or SETTINGS_JSON_B64 env var, and API keys from env vars.
func loadSettingsFromEnv() (factories.SettingsConfig, factories.APIKeys) {
	var settings factories.SettingsConfig
	var err error

	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, decErr := base64.StdEncoding.DecodeString(b64)
		if decErr != nil {
			core.GetLogger().With(map[string]any{"error": decErr}).Error("failed to decode SETTINGS_JSON_B64")
			settings = factories.DefaultSettingsConfig()
		} else {
			settings, err = factories.SettingsConfigFromJSON(data)
			if err != nil {
				core.GetLogger().With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
				settings = factories.DefaultSettingsConfig()
			}
		}
	} else {
		settingsPath := getEnv("SETTINGS_PATH", "./settings.json")
		settings, err = factories.SettingsConfigFromFile(settingsPath)
		if err != nil {
			core.GetLogger().With(map[string]any{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
			settings = factories.DefaultSettingsConfig()
		}
	}

	apiKeys, err := factories.LoadAPIKeys()
	if err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("failed to read API keys from env")
	}
	return settings, apiKeys
}

func runSpeak(ctx context.Context, settings factories.SettingsConfig, text, outPath string) {
	logger := core.GetLogger().With(map[string]any{"component": "speak"})

	synth, err := factories.BuildSynthesizer(settings.TTS, logger)
	if err != nil {
		logger.With(map[string]any{"error": err}).Fatal("no usable TTS backend configured")
	}
	handler := tts.NewTTSHandler(synth, tts.DefaultConfig(), logger)

	audio, err := handler.Speak(ctx, text)
	if err != nil {
		logger.With(map[string]any{"error": err}).Fatal("synthesis failed")
	}
	if audio == nil {
		logger.Warn("nothing to speak after normalization")
		return
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		logger.With(map[string]any{"error": err}).Fatal("failed to write audio file")
	}
	logger.Info("audio written", "path", outPath, "bytes", len(audio))
}

func runPromptPreview(ctx context.Context, settings factories.SettingsConfig, conversationID string) {
	logger := core.GetLogger().With(map[string]any{"component": "memory"})

	store, err := storage.NewSQLiteMemoryStore(settings.Storage.MemoryDBPath)
	if err != nil {
		logger.With(map[string]any{"error": err}).Fatal("failed to open memory store")
	}
	defer store.Close()

	var llm completion.Client
	if settings.Completion.Validate() == nil {
		client, err := completion.New(settings.Completion, logger)
		if err != nil {
			logger.With(map[string]any{"error": err}).Warn("completion client unavailable, compression disabled")
		} else {
			llm = client
		}
	}

	manager := memory.NewManager(store, llm, memory.Config{
		ImportanceThreshold: settings.Memory.ImportanceThreshold,
		InjectBudget:        settings.Memory.InjectBudget,
		RecallLimit:         settings.Memory.RecallLimit,
	}, logger)

	block, err := manager.MemoriesForPrompt(ctx, conversationID, settings.AssistantID)
	if err != nil {
		logger.With(map[string]any{"error": err}).Fatal("failed to render memory block")
	}
	os.Stdout.WriteString(block)
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
