package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"deskpet/storage"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Inspect chat history",
}

func init() {
	threads := &cobra.Command{
		Use:   "threads",
		Short: "List conversations, most recently active first",
		Run:   runChatThreads,
	}
	threads.Flags().IntP("limit", "l", 20, "Max results")

	log := &cobra.Command{
		Use:   "log <conversation-id>",
		Short: "Print a conversation's recent messages in order",
		Args:  cobra.ExactArgs(1),
		Run:   runChatLog,
	}
	log.Flags().IntP("limit", "l", 50, "Max messages")

	chatCmd.AddCommand(threads, log)
	RootCmd.AddCommand(chatCmd)
}

func openChatStore() *storage.ChatStore {
	settings := loadSettings()
	store, err := storage.NewChatStore(settings.Storage.ChatDBPath)
	if err != nil {
		exitErr("open chat store", err)
	}
	return store
}

func runChatThreads(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	store := openChatStore()
	defer store.Close()

	convs, err := store.ListConversations(cmd.Context(), limit)
	if err != nil {
		exitErr("threads", err)
	}
	b, _ := json.MarshalIndent(convs, "", "  ")
	fmt.Println(string(b))
}

func runChatLog(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	store := openChatStore()
	defer store.Close()

	msgs, err := store.RecentMessages(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("log", err)
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
	}
}
