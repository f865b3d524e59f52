package main

import (
	"fmt"

	"github.com/aalan294/campus-life-admin/internal/server"
	"github.com/aalan294/campus-life-admin/internal/vault"
	"github.com/aalan294/campus-life-admin/pkg/logger"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/spf13/cobra"
)

func docstoreCommand(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "docstore",
		Short: "Run the standalone document store daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cc.cfg
			log := logger.For("docstore")

			store, err := sdk.OpenEmbedded(cfg.Store.DataDir)
			if err != nil {
				return fmt.Errorf("failed to initialize persistence: %w", err)
			}
			collections, _ := store.Collections(cmd.Context())
			log.Info().Str("dir", cfg.Store.DataDir).Int("collections", len(collections)).Msg("Engine started")

			router := server.NewRouter(store)
			if cfg.Docstore.TLS {
				cert, err := vault.GenerateSelfSignedCert(cfg.Docstore.Hosts...)
				if err != nil {
					return fmt.Errorf("failed to generate TLS certificate: %w", err)
				}
				router.SetCertificate(cert)
				log.Info().Strs("hosts", cfg.Docstore.Hosts).Msg("TLS encryption enabled")
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- router.Listen(cfg.Docstore.Port)
			}()

			select {
			case <-cmd.Context().Done():
				log.Info().Msg("Shutdown signal received, finalizing disk writes")
				router.Stop()
			case err = <-errCh:
				log.Error().Err(err).Msg("TCP server failed")
			}

			store.Close()
			log.Info().Msg("Persistence complete")
			return err
		},
	}
}
