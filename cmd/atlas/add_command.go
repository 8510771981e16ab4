package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/pathway"
	"github.com/Khamel83/atlas-sub014/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		kindFlag     string
		priorityFlag int
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Enqueue a URL for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceURL := args[0]
			domain, err := pathway.DomainOf(sourceURL)
			if err != nil {
				return fmt.Errorf("parse url: %w", err)
			}

			switch pathway.SourceKind(kindFlag) {
			case pathway.KindArticle, pathway.KindEpisode, pathway.KindPage:
			default:
				return fmt.Errorf("unknown kind %q (want article, episode, or page)", kindFlag)
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				resolver := pathway.NewResolver(cfg)
				chain := resolver.Resolve(domain, pathway.SourceKind(kindFlag), cfg.HasCredentials(domain))

				item, task, err := store.NewItem(cmd.Context(), sourceURL, domain, kindFlag, chain, priorityFlag)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s\n  item: %s\n  task: %s\n  pathway: %v\n",
					sourceURL, item.ID, task.ID, item.Pathway)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", string(pathway.KindArticle), "Content kind: article, episode, or page")
	cmd.Flags().IntVar(&priorityFlag, "priority", 0, "Scheduling priority (higher first)")
	return cmd
}
