package manager

import (
	"context"
	"sync"
	"time"

	"github.com/aalan294/campus-life-admin/internal/observability"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Synchronizer keeps the local view list of one collection. Every refresh
// is a full read that replaces the list; there is no cache between reads.
type Synchronizer struct {
	schema   *schema.Schema
	store    sdk.Lister
	uploader *Uploader
	urlTTL   time.Duration
	fanout   int
	metrics  *observability.Metrics
	log      zerolog.Logger

	mu        sync.RWMutex
	records   []schema.Record
	started   uint64 // generation of the latest refresh started
	applied   uint64 // generation of the list currently held
	fetchedAt time.Time
}

// NewSynchronizer returns a Synchronizer with an empty list.
func NewSynchronizer(s *schema.Schema, store sdk.Lister, up *Uploader, urlTTL time.Duration, fanout int,
	metrics *observability.Metrics, log zerolog.Logger) *Synchronizer {
	if fanout < 1 {
		fanout = 1
	}
	return &Synchronizer{
		schema:   s,
		store:    store,
		uploader: up,
		urlTTL:   urlTTL,
		fanout:   fanout,
		metrics:  metrics,
		log:      log,
		records:  []schema.Record{},
	}
}

// Refresh reads the whole collection, resolves view URLs and replaces the
// list. On failure the previous list is kept and returned with the error.
// A refresh overtaken by a newer one, or whose context ends first, leaves
// the list alone.
func (s *Synchronizer) Refresh(ctx context.Context) ([]schema.Record, error) {
	s.mu.Lock()
	s.started++
	gen := s.started
	s.mu.Unlock()

	start := time.Now()
	records, err := s.fetch(ctx)
	s.metrics.ObserveRefresh(s.schema.Kind, time.Since(start), err)
	if err != nil {
		s.log.Warn().Err(err).Msg("Refresh failed, keeping last known list")
		return s.Records(), &OpError{Code: CodeFetch, Op: "refresh", Kind: s.schema.Kind, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.applied {
		// a newer refresh already landed
		return cloneRecords(s.records), nil
	}
	s.records = records
	s.applied = gen
	s.fetchedAt = time.Now()
	return cloneRecords(records), nil
}

func (s *Synchronizer) fetch(ctx context.Context) ([]schema.Record, error) {
	entries, err := s.store.ListAll(ctx, s.schema.Collection)
	if err != nil {
		return nil, err
	}

	records := make([]schema.Record, len(entries))
	for i, e := range entries {
		records[i] = s.schema.ToRecord(e)
	}
	s.schema.SortRecords(records)

	s.resolve(ctx, records)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// resolve fills ViewURL concurrently. A failed resolution leaves the URL
// empty; the record is still listed.
func (s *Synchronizer) resolve(ctx context.Context, records []schema.Record) {
	var g errgroup.Group
	g.SetLimit(s.fanout)

	for i := range records {
		i := i
		ref := records[i].MediaRef
		if ref == "" {
			continue
		}
		g.Go(func() error {
			u, err := s.uploader.ResolveViewURL(ctx, ref, s.urlTTL)
			if err != nil {
				s.log.Warn().Err(err).Str("id", records[i].ID).Msg("Could not resolve view url")
				return nil
			}
			records[i].ViewURL = u
			return nil
		})
	}
	g.Wait()
}

// Records returns a copy of the current list.
func (s *Synchronizer) Records() []schema.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// Record returns one record from the current list.
func (s *Synchronizer) Record(id string) (schema.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return cloneRecord(r), true
		}
	}
	return schema.Record{}, false
}

// FetchedAt returns when the current list was read.
func (s *Synchronizer) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

func cloneRecords(in []schema.Record) []schema.Record {
	out := make([]schema.Record, len(in))
	for i, r := range in {
		out[i] = cloneRecord(r)
	}
	return out
}

func cloneRecord(r schema.Record) schema.Record {
	r.Fields = copyValues(r.Fields)
	return r
}
