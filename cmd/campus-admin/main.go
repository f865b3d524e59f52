// Command campus-admin runs the campus-life admin API, the document store
// daemon and a few operator commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aalan294/campus-life-admin/internal/config"
	"github.com/aalan294/campus-life-admin/internal/manager"
	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/pkg/logger"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// cliContext carries what PersistentPreRunE prepared.
type cliContext struct {
	envFile string
	cfg     *config.Config
}

func rootCommand() *cobra.Command {
	cc := &cliContext{}

	rootCmd := &cobra.Command{
		Use:          "campus-admin",
		Short:        "Campus-life content administration",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cc.envFile, "env-file", ".env", "environment file to load before reading configuration")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(cc.envFile); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cc.cfg = cfg
		logger.Init(cfg.App.Environment, cfg.App.LogLevel)
		return nil
	}

	rootCmd.AddCommand(
		serveCommand(cc),
		docstoreCommand(cc),
		listCommand(cc),
		deleteCommand(cc),
		activateCommand(cc),
		migrateCommand(cc),
		pingCommand(cc),
	)
	return rootCmd
}

// openStore opens the configured document store.
func (cc *cliContext) openStore(ctx context.Context) (sdk.Backend, error) {
	store, err := sdk.Open(ctx, cc.cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// openManager opens the store and media backends and returns a mounted
// manager for kind. The returned func releases everything.
func (cc *cliContext) openManager(ctx context.Context, kind string) (*manager.Manager, func(), error) {
	s, ok := schema.Lookup(kind)
	if !ok {
		return nil, nil, fmt.Errorf("unknown kind %q", kind)
	}
	store, err := cc.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc, err := media.Open(ctx, cc.cfg.MediaOptions())
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open media: %w", err)
	}

	log := logger.For("cli")
	m := manager.New(s, manager.Options{
		Store:            store,
		Media:            svc,
		Logger:           &log,
		OperationTimeout: cc.cfg.App.OperationTimeout,
		URLTTL:           cc.cfg.App.URLTTL,
		ResolveFanout:    cc.cfg.App.ResolveFanout,
	})
	release := func() {
		m.Close()
		store.Close()
	}
	if err := m.Mount(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return m, release, nil
}

func printJSON(cmd *cobra.Command, v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(bytes))
}
