package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func pingCommand(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured document store answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			store, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p, ok := store.(interface{ Ping(context.Context) error })
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "PONG (embedded)")
				return nil
			}
			if err := p.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PONG")
			return nil
		},
	}
}
