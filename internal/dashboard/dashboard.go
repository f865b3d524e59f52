// Package dashboard wires one entity manager per kind from a shared set of
// services.
package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/aalan294/campus-life-admin/internal/manager"
	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/internal/observability"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Services is everything a manager talks to. It is passed explicitly; the
// dashboard keeps no global handles.
type Services struct {
	Store            sdk.DocumentStore
	Media            media.Service
	Metrics          *observability.Metrics
	Logger           zerolog.Logger
	OperationTimeout time.Duration
	URLTTL           time.Duration
	ResolveFanout    int
}

// Dashboard holds the managers in tab order.
type Dashboard struct {
	kinds    []*schema.Schema
	managers map[string]*manager.Manager
	log      zerolog.Logger
}

// New builds a manager for every kind, or for schema.All() when none are
// given.
func New(svc Services, kinds ...*schema.Schema) *Dashboard {
	if len(kinds) == 0 {
		kinds = schema.All()
	}
	d := &Dashboard{
		kinds:    kinds,
		managers: make(map[string]*manager.Manager, len(kinds)),
		log:      svc.Logger.With().Str("component", "dashboard").Logger(),
	}
	for _, s := range kinds {
		d.managers[s.Kind] = manager.New(s, manager.Options{
			Store:            svc.Store,
			Media:            svc.Media,
			Metrics:          svc.Metrics,
			Logger:           &svc.Logger,
			OperationTimeout: svc.OperationTimeout,
			URLTTL:           svc.URLTTL,
			ResolveFanout:    svc.ResolveFanout,
		})
	}
	return d
}

// Manager returns the manager of kind.
func (d *Dashboard) Manager(kind string) (*manager.Manager, bool) {
	m, ok := d.managers[kind]
	return m, ok
}

// Kinds returns the schemas in tab order.
func (d *Dashboard) Kinds() []*schema.Schema {
	return append([]*schema.Schema(nil), d.kinds...)
}

// Mount loads every list concurrently. A kind that fails to load keeps an
// empty list; the failures are joined into the returned error.
func (d *Dashboard) Mount(ctx context.Context) error {
	errs := make([]error, len(d.kinds))
	var g errgroup.Group
	for i, s := range d.kinds {
		i, s := i, s
		m := d.managers[s.Kind]
		g.Go(func() error {
			if err := m.Mount(ctx); err != nil {
				d.log.Warn().Err(err).Str("kind", s.Kind).Msg("Initial load failed")
				errs[i] = err
			}
			return nil
		})
	}
	g.Wait()

	err := errors.Join(errs...)
	if err == nil {
		d.log.Info().Int("kinds", len(d.kinds)).Msg("Dashboard mounted")
	}
	return err
}

// Close cancels the in-flight work of every manager.
func (d *Dashboard) Close() {
	for _, m := range d.managers {
		m.Close()
	}
}
