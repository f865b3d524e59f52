package main

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/aalan294/campus-life-admin/pkg/engine"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/spf13/cobra"
)

func migrateCommand(cc *cliContext) *cobra.Command {
	var (
		to       string
		toDriver string
		useTLS   bool
	)
	cmd := &cobra.Command{
		Use:   "migrate [collection...]",
		Short: "Copy collections from the configured store into another one",
		Long: `Copies every collection, or only the named ones, from the configured
store into the destination. Stores that support it keep the source IDs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			ctx := cmd.Context()

			src, err := cc.openStore(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := openDestination(ctx, toDriver, to, useTLS)
			if err != nil {
				return fmt.Errorf("open destination: %w", err)
			}
			defer dst.Close()

			n, err := engine.Migrate(ctx, src, dst, args...)
			if err != nil {
				return fmt.Errorf("migrated %d documents before failing: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d documents to %s\n", n, to)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination: docstore address, redis address or data directory")
	cmd.Flags().StringVar(&toDriver, "to-driver", sdk.DriverRemote, "destination driver: remote, redis or embedded")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "use TLS for a remote destination")
	return cmd
}

func openDestination(ctx context.Context, driver, to string, useTLS bool) (sdk.Backend, error) {
	opts := sdk.Options{Driver: driver}
	switch driver {
	case sdk.DriverRemote:
		opts.Addr = to
		if useTLS {
			opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}
		}
	case sdk.DriverRedis:
		opts.Redis = sdk.RedisOptions{Addr: to, Prefix: "campus"}
	case sdk.DriverEmbedded:
		opts.DataDir = to
	default:
		return nil, fmt.Errorf("unknown destination driver %q", driver)
	}
	return sdk.Open(ctx, opts)
}
