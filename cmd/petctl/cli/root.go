// Package cli implements the petctl maintenance commands: synthesis checks,
// memory inspection, and chat history access.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"deskpet/core"
	"deskpet/factories"
	"deskpet/handlers/memory"
	"deskpet/services/openai/completion"
	"deskpet/storage"
)

var (
	settingsPath   string
	conversationID string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "petctl",
	Short: "Inspect and exercise the desk pet's TTS and memory layers",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "./settings.json", "Path to settings.json")
	RootCmd.PersistentFlags().StringVarP(&conversationID, "conversation", "c", "default", "Conversation scope")
}

func loadSettings() factories.SettingsConfig {
	// Credentials come from the environment, same as the main binary.
	_ = godotenv.Load(".env.local")

	settings, err := factories.SettingsConfigFromFile(settingsPath)
	if err != nil {
		settings = factories.DefaultSettingsConfig()
	}
	if keys, err := factories.LoadAPIKeys(); err == nil {
		settings.InjectAPIKeys(keys)
	}
	return settings
}

func openMemoryStore(settings factories.SettingsConfig) *storage.SQLiteMemoryStore {
	store, err := storage.NewSQLiteMemoryStore(settings.Storage.MemoryDBPath)
	if err != nil {
		exitErr("open memory store", err)
	}
	return store
}

func newManager(settings factories.SettingsConfig, store storage.MemoryStore) *memory.Manager {
	logger := core.GetLogger()

	var llm completion.Client
	if settings.Completion.Validate() == nil {
		if client, err := completion.New(settings.Completion, logger); err == nil {
			llm = client
		}
	}
	return memory.NewManager(store, llm, memory.Config{
		ImportanceThreshold: settings.Memory.ImportanceThreshold,
		InjectBudget:        settings.Memory.InjectBudget,
		RecallLimit:         settings.Memory.RecallLimit,
	}, logger)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
