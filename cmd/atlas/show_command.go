package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/queue"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show an item's details and its ordered fetch attempt log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := args[0]
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetItem(cmd.Context(), itemID)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %s not found", itemID)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Item %s\n", item.ID)
				fmt.Fprintf(out, "  URL:      %s\n", item.SourceURL)
				fmt.Fprintf(out, "  Domain:   %s\n", item.Domain)
				fmt.Fprintf(out, "  Kind:     %s\n", item.SourceKind)
				fmt.Fprintf(out, "  Status:   %s\n", item.Status)
				fmt.Fprintf(out, "  Pathway:  %s\n", strings.Join(item.Pathway, " -> "))
				if item.QualityTier != "" {
					fmt.Fprintf(out, "  Quality:  %s (%.2f)\n", item.QualityTier, item.QualityScore)
				}
				if item.ContentHash != "" {
					fmt.Fprintf(out, "  Hash:     %s\n", item.ContentHash)
				}
				if item.ErrorMessage != "" {
					fmt.Fprintf(out, "  Error:    %s\n", item.ErrorMessage)
				}

				task, err := store.TaskForItem(cmd.Context(), item.ID)
				if err != nil {
					return err
				}
				if task != nil {
					fmt.Fprintf(out, "Task %s\n", task.ID)
					fmt.Fprintf(out, "  Status:   %s\n", task.Status)
					fmt.Fprintf(out, "  Retries:  %d\n", task.RetryCount)
					if task.ErrorCategory != "" {
						fmt.Fprintf(out, "  Category: %s\n", task.ErrorCategory)
					}
					if task.NextRetryAt != nil {
						fmt.Fprintf(out, "  Next:     %s\n", task.NextRetryAt.Local().Format(time.RFC3339))
					}
				}

				attempts, err := store.AttemptsForItem(cmd.Context(), item.ID)
				if err != nil {
					return err
				}
				if len(attempts) == 0 {
					fmt.Fprintln(out, "No fetch attempts recorded.")
					return nil
				}

				rows := make([][]string, 0, len(attempts))
				for _, attempt := range attempts {
					rows = append(rows, []string{
						attempt.StartedAt.Local().Format(time.RFC3339),
						attempt.Method,
						attempt.Outcome,
						attempt.Duration.Round(time.Millisecond).String(),
						truncate(attempt.ErrorSummary, 60),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{
						{name: "Started"},
						{name: "Method"},
						{name: "Outcome"},
						{name: "Duration", numeric: true},
						{name: "Error"},
					},
					rows,
				))
				return nil
			})
		},
	}
}
