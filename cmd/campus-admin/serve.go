package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aalan294/campus-life-admin/internal/api"
	"github.com/aalan294/campus-life-admin/internal/dashboard"
	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/internal/observability"
	"github.com/aalan294/campus-life-admin/internal/server"
	"github.com/aalan294/campus-life-admin/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func serveCommand(cc *cliContext) *cobra.Command {
	var withDocstore bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cc, withDocstore)
		},
	}
	cmd.Flags().BoolVar(&withDocstore, "with-docstore", false, "also serve the store over TCP on DOCSTORE_PORT")
	return cmd
}

func serve(ctx context.Context, cc *cliContext, withDocstore bool) error {
	cfg := cc.cfg
	log := logger.For("serve")
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := cc.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Store close failed")
		}
		log.Info().Msg("Store closed")
	}()

	svc, err := media.Open(ctx, cfg.MediaOptions())
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		return err
	}

	dash := dashboard.New(dashboard.Services{
		Store:            store,
		Media:            svc,
		Metrics:          metrics,
		Logger:           logger.For("manager"),
		OperationTimeout: cfg.App.OperationTimeout,
		URLTTL:           cfg.App.URLTTL,
		ResolveFanout:    cfg.App.ResolveFanout,
	})
	defer dash.Close()
	if err := dash.Mount(ctx); err != nil {
		log.Warn().Err(err).Msg("Some lists could not be loaded; they will load on the next request")
	}

	h := api.NewHandler(dash, svc, store, logger.For("api"))
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           api.NewRouter(h, api.RouterOptions{CORSOrigins: cfg.App.CORSOrigins, Gatherer: registry}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.App.Environment).Msg("Admin API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var router *server.Router
	if withDocstore {
		router = server.NewRouter(store)
		go func() {
			if err := router.Listen(cfg.Docstore.Port); err != nil {
				errCh <- fmt.Errorf("docstore: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err = <-errCh:
		log.Error().Err(err).Msg("Server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("HTTP shutdown incomplete")
	}
	if router != nil {
		router.Stop()
	}
	return err
}
