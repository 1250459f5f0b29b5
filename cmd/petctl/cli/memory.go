package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"deskpet/storage"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage long-term memories",
}

func init() {
	list := &cobra.Command{
		Use:   "list",
		Short: "List memories in the scope, highest weight first",
		Run:   runMemoryList,
	}
	list.Flags().IntP("limit", "l", 0, "Max results (0 = all)")

	search := &cobra.Command{
		Use:   "search <substring>",
		Short: "Search memory text, case-insensitively",
		Args:  cobra.ExactArgs(1),
		Run:   runMemorySearch,
	}
	search.Flags().IntP("limit", "l", 20, "Max results")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show memory counts per category",
		Run:   runMemoryStats,
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete every memory in the scope",
		Run:   runMemoryClear,
	}

	prompt := &cobra.Command{
		Use:   "prompt",
		Short: "Render the memory block injected into the system prompt",
		Run:   runMemoryPrompt,
	}

	regen := &cobra.Command{
		Use:   "regen",
		Short: "Regenerate the scope's memories from recent chat turns",
		Long: "Reads the conversation's recent messages, asks the completion model " +
			"for a superseding memory set, and replaces the stored memories with " +
			"the candidates above the importance threshold.",
		Run: runMemoryRegen,
	}
	regen.Flags().IntP("turns", "t", 20, "Recent chat turns to analyze")

	memoryCmd.AddCommand(list, search, stats, clear, prompt, regen)
	RootCmd.AddCommand(memoryCmd)
}

func runMemoryList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	settings := loadSettings()
	store := openMemoryStore(settings)
	defer store.Close()

	memories, err := store.ListByConversation(cmd.Context(), conversationID, settings.AssistantID, limit)
	if err != nil {
		exitErr("list", err)
	}
	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}

func runMemorySearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	settings := loadSettings()
	store := openMemoryStore(settings)
	defer store.Close()

	memories, err := store.Search(cmd.Context(), conversationID, settings.AssistantID, args[0], limit)
	if err != nil {
		exitErr("search", err)
	}
	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}

func runMemoryStats(cmd *cobra.Command, args []string) {
	settings := loadSettings()
	store := openMemoryStore(settings)
	defer store.Close()

	stats, err := store.Stats(cmd.Context(), conversationID, settings.AssistantID)
	if err != nil {
		exitErr("stats", err)
	}
	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))
}

func runMemoryClear(cmd *cobra.Command, args []string) {
	settings := loadSettings()
	store := openMemoryStore(settings)
	defer store.Close()

	n, err := store.ClearAll(cmd.Context(), conversationID, settings.AssistantID)
	if err != nil {
		exitErr("clear", err)
	}
	fmt.Printf("deleted %d memories\n", n)
}

func runMemoryRegen(cmd *cobra.Command, args []string) {
	turns, _ := cmd.Flags().GetInt("turns")
	settings := loadSettings()

	chats, err := storage.NewChatStore(settings.Storage.ChatDBPath)
	if err != nil {
		exitErr("open chat store", err)
	}
	defer chats.Close()

	recent, err := chats.RecentMessages(cmd.Context(), conversationID, turns)
	if err != nil {
		exitErr("load chat turns", err)
	}
	if len(recent) == 0 {
		fmt.Println("no chat turns to analyze")
		return
	}

	store := openMemoryStore(settings)
	defer store.Close()
	manager := newManager(settings, store)

	candidates, err := manager.GenerateCandidates(cmd.Context(), conversationID, settings.AssistantID, recent)
	if err != nil {
		exitErr("generate candidates", err)
	}
	saved, err := manager.FilterAndSave(cmd.Context(), conversationID, settings.AssistantID, candidates, 0)
	if err != nil {
		exitErr("save memories", err)
	}
	fmt.Printf("regenerated %d memories from %d candidates\n", len(saved), len(candidates))
}

func runMemoryPrompt(cmd *cobra.Command, args []string) {
	settings := loadSettings()
	store := openMemoryStore(settings)
	defer store.Close()

	block, err := newManager(settings, store).MemoriesForPrompt(cmd.Context(), conversationID, settings.AssistantID)
	if err != nil {
		exitErr("prompt", err)
	}
	fmt.Print(block)
}
