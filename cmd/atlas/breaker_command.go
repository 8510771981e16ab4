package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/queue"
)

func newBreakerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breaker",
		Short: "Inspect circuit breaker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newBreakerStatusCommand(ctx))
	return cmd
}

func newBreakerStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [worker-class]",
		Short: "Show breaker state for one worker class or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				if len(args) == 1 {
					breaker, err := store.BreakerFor(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if breaker == nil {
						fmt.Fprintf(out, "%s: closed (no failures recorded)\n", args[0])
						return nil
					}
					printBreaker(out, *breaker)
					return nil
				}

				breakers, err := store.Breakers(cmd.Context())
				if err != nil {
					return err
				}
				if len(breakers) == 0 {
					fmt.Fprintln(out, "No breakers tracked; all worker classes healthy.")
					return nil
				}
				for _, breaker := range breakers {
					printBreaker(out, breaker)
				}
				return nil
			})
		},
	}
}

func printBreaker(out io.Writer, breaker queue.BreakerState) {
	line := fmt.Sprintf("%s: %s (failures: %d", breaker.WorkerClass, breaker.State, breaker.FailureCount)
	if breaker.NextRetryAt != nil {
		line += fmt.Sprintf(", next retry: %s", breaker.NextRetryAt.Local().Format(time.RFC3339))
	}
	line += ")\n"
	fmt.Fprint(out, line)
}
