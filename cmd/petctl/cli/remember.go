package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"deskpet/storage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember <text>",
		Short: "Fold a piece of information into the scope's memories",
		Long: "Saves the text directly when the category has no memories yet; " +
			"otherwise asks the completion model whether to merge it into an existing record.",
		Args: cobra.ExactArgs(1),
		Run:  runRemember,
	}

	cmd.Flags().String("category", string(storage.CategoryFact), "Memory category: fact, preference, relationship, project, event")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	categoryFlag, _ := cmd.Flags().GetString("category")
	category := storage.Category(categoryFlag)
	if !category.Valid() {
		exitErr("remember", fmt.Errorf("invalid category %q", categoryFlag))
	}

	settings := loadSettings()
	store := openMemoryStore(settings)
	defer store.Close()

	if err := newManager(settings, store).MergeOrUpdate(cmd.Context(), conversationID, settings.AssistantID, args[0], category); err != nil {
		exitErr("remember", err)
	}
	fmt.Println("ok")
}
