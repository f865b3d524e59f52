// Package manager implements the entity workflow shared by every dashboard
// panel: edit a form, upload its media, write the record, and re-read the
// collection.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/internal/observability"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults for Options.
const (
	DefaultOperationTimeout = 15 * time.Second
	DefaultResolveFanout    = 8
)

// Options are the services a Manager runs against.
type Options struct {
	Store            sdk.DocumentStore
	Media            media.Service
	Metrics          *observability.Metrics
	Logger           *zerolog.Logger
	OperationTimeout time.Duration
	URLTTL           time.Duration
	ResolveFanout    int
}

// Manager composes the form, uploader, synchronizer and gateway of one
// entity kind and tracks the lifecycle state of its records.
type Manager struct {
	schema  *schema.Schema
	opts    Options
	log     zerolog.Logger
	metrics *observability.Metrics

	draft    *Form
	uploader *Uploader
	sync     *Synchronizer
	gateway  *Gateway

	ctx    context.Context
	cancel context.CancelFunc
	busy   atomic.Bool

	mu     sync.Mutex
	states map[string]State
	status string
}

// New builds a Manager for s. Call Mount to load the initial list and Close
// to release it.
func New(s *schema.Schema, opts Options) *Manager {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = media.DefaultURLTTL
	}
	if opts.ResolveFanout <= 0 {
		opts.ResolveFanout = DefaultResolveFanout
	}
	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}
	l := base.With().Str("component", "manager").Str("kind", s.Kind).Logger()

	up := NewUploader(s.Kind, opts.Media, opts.Metrics, l)
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		schema:   s,
		opts:     opts,
		log:      l,
		metrics:  opts.Metrics,
		draft:    NewForm(s),
		uploader: up,
		sync:     NewSynchronizer(s, opts.Store, up, opts.URLTTL, opts.ResolveFanout, opts.Metrics, l),
		gateway:  NewGateway(s, opts.Store, up, l),
		ctx:      ctx,
		cancel:   cancel,
		states:   make(map[string]State),
	}
}

// Schema returns the kind this manager handles.
func (m *Manager) Schema() *schema.Schema { return m.schema }

// Mount performs the initial refresh.
func (m *Manager) Mount(ctx context.Context) error {
	_, err := m.Refresh(ctx)
	return err
}

// Close cancels in-flight remote calls. Their results are discarded and
// later calls fail with ErrClosed.
func (m *Manager) Close() {
	m.cancel()
}

// Draft returns the shared creation form.
func (m *Manager) Draft() *Form { return m.draft }

// NewDraft returns a fresh creation form, independent of Draft.
func (m *Manager) NewDraft() *Form { return NewForm(m.schema) }

// Busy reports whether a mutation is in flight.
func (m *Manager) Busy() bool { return m.busy.Load() }

// Status returns the latest transient message for the operator.
func (m *Manager) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Records returns the current view list.
func (m *Manager) Records() []schema.Record { return m.sync.Records() }

// Record returns one record of the current view list.
func (m *Manager) Record(id string) (schema.Record, bool) { return m.sync.Record(id) }

// State returns the lifecycle state of a record.
func (m *Manager) State(id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id]
}

// Refresh re-reads the collection. On failure the last known list stays
// available through Records.
func (m *Manager) Refresh(ctx context.Context) ([]schema.Record, error) {
	ctx, done, err := m.opContext(ctx, "refresh")
	if err != nil {
		return m.sync.Records(), err
	}
	defer done()

	records, err := m.sync.Refresh(ctx)
	if err != nil {
		m.setStatus(fmt.Sprintf("Failed to load %s; showing last known list", m.label()))
		return records, m.closedErr("refresh", err)
	}
	m.reconcile(records)
	return records, nil
}

// Submit validates f and creates a record from it. On success the list is
// re-read and f is reset; on failure f keeps its values and returns to
// Draft.
func (m *Manager) Submit(ctx context.Context, f *Form) (string, error) {
	if f.ID() != "" {
		return "", fmt.Errorf("%s: submit called with an edit form, use Save", m.schema.Kind)
	}
	end, err := m.begin("create")
	if err != nil {
		return "", err
	}
	defer end()

	if fe := f.Validate(); fe != nil {
		return "", &ValidationError{Kind: m.schema.Kind, Fields: fe}
	}

	ctx, done, err := m.opContext(ctx, "create")
	if err != nil {
		return "", err
	}
	defer done()

	f.setState(StateSubmitting)
	m.setStatus("Saving...")
	id, err := m.gateway.Create(ctx, f.Document(), f.File())
	m.metrics.ObserveMutation(m.schema.Kind, "create", err)
	if err != nil {
		f.setState(StateDraft)
		m.setStatus(fmt.Sprintf("Failed to create %s", m.noun()))
		return "", m.closedErr("create", err)
	}

	m.setState(id, StatePersisted)
	f.Reset()
	m.setStatus(fmt.Sprintf("%s created", m.Noun()))
	m.refreshAfter(ctx)
	return id, nil
}

// Edit opens a detached edit form for a listed record.
func (m *Manager) Edit(id string) (*Form, error) {
	rec, ok := m.sync.Record(id)
	if !ok {
		return nil, &OpError{Code: CodeNotFound, Op: "edit", Kind: m.schema.Kind, ID: id}
	}
	m.setState(id, StateEditing)
	return newEditForm(m.schema, rec), nil
}

// Save writes the changed fields of an edit form. On failure the form keeps
// its values and the record stays in Editing.
func (m *Manager) Save(ctx context.Context, f *Form) error {
	id := f.ID()
	if id == "" {
		return fmt.Errorf("%s: save called with a creation draft, use Submit", m.schema.Kind)
	}
	end, err := m.begin("update")
	if err != nil {
		return err
	}
	defer end()

	if fe := f.Validate(); fe != nil {
		return &ValidationError{Kind: m.schema.Kind, Fields: fe}
	}

	ctx, done, err := m.opContext(ctx, "update")
	if err != nil {
		return err
	}
	defer done()

	f.setState(StateSubmitting)
	changes, file := f.Changes(), f.File()
	err = m.gateway.Update(ctx, id, changes, file)
	m.metrics.ObserveMutation(m.schema.Kind, "update", err)
	if err != nil {
		f.setState(StateEditing)
		m.setStatus(fmt.Sprintf("Failed to update %s", m.noun()))
		return m.closedErr("update", err)
	}

	f.committed("")
	m.setState(id, StatePersisted)
	m.setStatus(fmt.Sprintf("%s updated", m.Noun()))
	m.refreshAfter(ctx)
	if rec, ok := m.sync.Record(id); ok && file != nil {
		f.committed(rec.MediaRef)
	}
	return nil
}

// Update applies a partial change without an edit form. Values are
// converted and validated per field; fields not supplied are untouched.
func (m *Manager) Update(ctx context.Context, id string, values map[string]any, file *media.File) error {
	partial, err := m.coercePartial(values)
	if err != nil {
		return err
	}
	end, err := m.begin("update")
	if err != nil {
		return err
	}
	defer end()

	ctx, done, err := m.opContext(ctx, "update")
	if err != nil {
		return err
	}
	defer done()

	prev := m.State(id)
	m.setState(id, StateSubmitting)
	err = m.gateway.Update(ctx, id, partial, file)
	m.metrics.ObserveMutation(m.schema.Kind, "update", err)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.setState(id, StateAbsent)
		} else {
			m.setState(id, prev)
		}
		m.setStatus(fmt.Sprintf("Failed to update %s", m.noun()))
		return m.closedErr("update", err)
	}

	m.setState(id, StatePersisted)
	m.setStatus(fmt.Sprintf("%s updated", m.Noun()))
	m.refreshAfter(ctx)
	return nil
}

// Delete removes a record. A record that is already gone counts as
// deleted: its state becomes Absent and the list is re-read, but the
// NotFound error is still returned so callers can tell.
func (m *Manager) Delete(ctx context.Context, id string) error {
	end, err := m.begin("delete")
	if err != nil {
		return err
	}
	defer end()

	ctx, done, err := m.opContext(ctx, "delete")
	if err != nil {
		return err
	}
	defer done()

	m.setState(id, StateDeleting)
	err = m.gateway.Delete(ctx, id)
	m.metrics.ObserveMutation(m.schema.Kind, "delete", err)
	switch {
	case err == nil:
		m.setStatus(fmt.Sprintf("%s deleted", m.Noun()))
	case errors.Is(err, ErrNotFound):
		m.log.Info().Str("id", id).Msg("Record already gone")
		m.setStatus(fmt.Sprintf("%s was already deleted", m.Noun()))
	default:
		m.setState(id, StatePersisted)
		m.setStatus(fmt.Sprintf("Failed to delete %s", m.noun()))
		return m.closedErr("delete", err)
	}

	m.setState(id, StateAbsent)
	m.refreshAfter(ctx)
	return err
}

// Activate makes id the only active record of this kind. The group is read
// fresh from the store before any write.
func (m *Manager) Activate(ctx context.Context, id string) error {
	end, err := m.begin("activate")
	if err != nil {
		return err
	}
	defer end()

	ctx, done, err := m.opContext(ctx, "activate")
	if err != nil {
		return err
	}
	defer done()

	// the group must come from the store; a stale list could miss an
	// active record
	records, err := m.sync.Refresh(ctx)
	if err != nil {
		m.setStatus(fmt.Sprintf("Failed to activate %s", m.noun()))
		return m.closedErr("activate", err)
	}
	m.reconcile(records)
	group := make([]string, 0, len(records))
	for _, r := range records {
		group = append(group, r.ID)
	}

	err = m.gateway.SetExclusiveActive(ctx, id, group)
	m.metrics.ObserveMutation(m.schema.Kind, "activate", err)
	if err != nil {
		m.setStatus(fmt.Sprintf("Failed to activate %s", m.noun()))
		m.refreshAfter(ctx)
		return m.closedErr("activate", err)
	}
	m.setStatus(fmt.Sprintf("%s activated", m.Noun()))
	m.refreshAfter(ctx)
	return nil
}

// ResolveViewURL returns a fresh view URL for a listed record.
func (m *Manager) ResolveViewURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	rec, ok := m.sync.Record(id)
	if !ok {
		return "", &OpError{Code: CodeNotFound, Op: "resolve", Kind: m.schema.Kind, ID: id}
	}
	ctx, done, err := m.opContext(ctx, "resolve")
	if err != nil {
		return "", err
	}
	defer done()
	if ttl <= 0 {
		ttl = m.opts.URLTTL
	}
	url, err := m.uploader.ResolveViewURL(ctx, rec.MediaRef, ttl)
	return url, m.closedErr("resolve", err)
}

// begin claims the single mutation slot.
func (m *Manager) begin(op string) (func(), error) {
	if m.ctx.Err() != nil {
		return nil, &OpError{Code: CodeClosed, Op: op, Kind: m.schema.Kind}
	}
	if !m.busy.CompareAndSwap(false, true) {
		return nil, &OpError{Code: CodeBusy, Op: op, Kind: m.schema.Kind}
	}
	return func() { m.busy.Store(false) }, nil
}

// opContext bounds a remote call by the operation timeout and by the
// manager's lifetime.
func (m *Manager) opContext(ctx context.Context, op string) (context.Context, func(), error) {
	if m.ctx.Err() != nil {
		return nil, nil, &OpError{Code: CodeClosed, Op: op, Kind: m.schema.Kind}
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.OperationTimeout)
	stop := context.AfterFunc(m.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

// refreshAfter re-reads the list after a successful mutation. A failure is
// logged; the mutation itself already succeeded.
func (m *Manager) refreshAfter(ctx context.Context) {
	records, err := m.sync.Refresh(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Refresh after mutation failed")
		return
	}
	m.reconcile(records)
}

// reconcile aligns record states with a fresh list.
func (m *Manager) reconcile(records []schema.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listed := make(map[string]bool, len(records))
	for _, r := range records {
		listed[r.ID] = true
		if m.states[r.ID] == StateAbsent {
			m.states[r.ID] = StatePersisted
		}
	}
	for id, st := range m.states {
		if listed[id] || st == StateSubmitting || st == StateDeleting {
			continue
		}
		delete(m.states, id)
	}
}

func (m *Manager) coercePartial(values map[string]any) (schema.Document, error) {
	partial := schema.Document{}
	only := map[string]bool{}
	fe := FieldErrors{}
	for name, v := range values {
		fs, ok := m.schema.Field(name)
		if !ok {
			fe[name] = "unknown field"
			continue
		}
		cv, err := m.schema.Coerce(name, v)
		if err != nil {
			fe[name] = fs.Label + " has an invalid value"
			continue
		}
		partial[name] = cv
		only[name] = true
	}
	if len(fe) > 0 {
		return nil, &ValidationError{Kind: m.schema.Kind, Fields: fe}
	}
	if rule := validateValues(m.schema, copyValues(partial), only); rule != nil {
		return nil, &ValidationError{Kind: m.schema.Kind, Fields: rule}
	}
	return partial, nil
}

func (m *Manager) closedErr(op string, err error) error {
	if err != nil && m.ctx.Err() != nil {
		return &OpError{Code: CodeClosed, Op: op, Kind: m.schema.Kind, Err: err}
	}
	return err
}

func (m *Manager) setState(id string, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = s
}

func (m *Manager) setStatus(msg string) {
	m.mu.Lock()
	m.status = msg
	m.mu.Unlock()
}

// Noun is the singular display name of the kind, e.g. "Event".
func (m *Manager) Noun() string {
	label := m.schema.Label
	if n := len(label); n > 1 && label[n-1] == 's' {
		return label[:n-1]
	}
	return label
}

func (m *Manager) noun() string {
	n := m.Noun()
	if n == "" {
		return m.schema.Kind
	}
	return string(n[0]|0x20) + n[1:]
}

func (m *Manager) label() string {
	return m.schema.Kind + "s"
}
