package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/conversa/cli/internal/infra/storage"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List locally cached sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open session storage: %w", err)
		}
		defer func() {
			_ = store.Close()
		}()

		summaries, err := store.ListSessions(context.Background(), limit, 0)
		if err != nil {
			return err
		}

		if len(summaries) == 0 {
			fmt.Println("No cached sessions.")
			return nil
		}

		fmt.Println(headerStyle.Render("KEY") + "\t" + headerStyle.Render("UPDATED") + "\t" + headerStyle.Render("MSGS") + "\t" + headerStyle.Render("TITLE"))
		for _, s := range summaries {
			fmt.Printf("%s\t%s\t%d\t%s\n", s.Key, s.UpdatedAt.Format("2006-01-02 15:04"), s.MessageCount, s.Title)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a cached session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open session storage: %w", err)
		}
		defer func() {
			_ = store.Close()
		}()

		if err := store.DeleteSession(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
