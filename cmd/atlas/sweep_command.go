package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Khamel83/atlas-sub014/internal/contentstore"
	"github.com/Khamel83/atlas-sub014/internal/dedup"
	"github.com/Khamel83/atlas-sub014/internal/logging"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove stored garbage content (near-empty bodies, boilerplate, bare-domain titles)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			content, err := contentstore.Open(cfg)
			if err != nil {
				return err
			}
			defer content.Close()

			sweeper := dedup.NewSweeper(cfg, content, logging.NewNop())
			removed, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d garbage entries.\n", removed)
			return nil
		},
	}
}
