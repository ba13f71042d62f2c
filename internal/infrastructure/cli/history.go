package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/chatwork/internal/app"
	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/infrastructure/history"
)

func newHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded transcripts",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(container),
		newHistorySearchCommand(container),
		newHistoryClearCommand(container),
		newHistoryExportCommand(container),
	)
	return historyCmd
}

func newHistoryListCommand(container *app.Container) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent transcript entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTranscripts(cmd.OutOrStdout(), container, limit, "")
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "Max entries to show")
	return cmd
}

func newHistorySearchCommand(container *app.Container) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search transcripts for a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTranscripts(cmd.OutOrStdout(), container, limit, args[0])
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "Limit search results")
	return cmd
}

func newHistoryClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all transcript entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Transcripts == nil {
				return fmt.Errorf("history is disabled in config")
			}
			if err := container.Transcripts.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
}

func newHistoryExportCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dest.jsonl>",
		Short: "Export transcripts to a jsonl file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok := container.Transcripts.(*history.SQLiteStore)
			if !ok {
				return fmt.Errorf("history is disabled in config")
			}
			if err := store.ExportJSON(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", store.Path(), args[0])
			return nil
		},
	}
}

func listTranscripts(out io.Writer, container *app.Container, limit int, search string) error {
	if container.Transcripts == nil {
		return fmt.Errorf("history is disabled in config")
	}
	records, err := container.Transcripts.Records(limit, search)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No transcripts recorded yet.")
		return nil
	}
	for _, rec := range records {
		content := rec.Content
		if idx := strings.IndexByte(content, '\n'); idx >= 0 {
			content = content[:idx] + " ..."
		}
		fmt.Fprintf(out, "%s  [%s] %s: %s\n",
			rec.Timestamp.Format("2006-01-02 15:04:05"), rec.SessionKey, rec.Role, content)
		if rec.Action != "" {
			fmt.Fprintf(out, "    action=%s ok=%v\n", rec.Action, rec.ActionOK)
		}
	}
	return nil
}
