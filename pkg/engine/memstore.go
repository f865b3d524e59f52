package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MemStore is a thread-safe in-memory document store. Documents keep their
// insertion order within a collection.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [collection] -> ordered documents
	data      map[string]*collection
	versions  map[string]uint64
	persister *Persistence
	wg        sync.WaitGroup
	newID     func() string
}

type collection struct {
	order []string
	docs  map[string]schema.Document
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[string][]schema.Entry, p *Persistence) *MemStore {
	m := &MemStore{
		data:      make(map[string]*collection, len(initialData)),
		versions:  make(map[string]uint64),
		persister: p,
		newID:     uuid.NewString,
	}
	for name, entries := range initialData {
		c := m.collection(name)
		for _, e := range entries {
			if _, dup := c.docs[e.ID]; dup || e.ID == "" {
				continue
			}
			c.order = append(c.order, e.ID)
			c.docs[e.ID] = e.Fields.Clone()
		}
	}
	return m
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// ListAll returns every document of a collection in insertion order. An
// unknown collection is empty, not an error.
func (m *MemStore) ListAll(ctx context.Context, name string) ([]schema.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidCollection(name); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(name), nil
}

// Insert stores doc under a fresh ID and returns it.
func (m *MemStore) Insert(ctx context.Context, name string, doc schema.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidCollection(name); err != nil {
		return "", err
	}

	id := m.newID()
	m.mu.Lock()
	c := m.collection(name)
	c.order = append(c.order, id)
	c.docs[id] = doc.Clone()
	m.commit(name)
	return id, nil
}

// Put stores doc under id, replacing any existing document with that ID.
func (m *MemStore) Put(ctx context.Context, name, id string, doc schema.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidCollection(name); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("put into %s: empty id", name)
	}

	m.mu.Lock()
	c := m.collection(name)
	if _, ok := c.docs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc.Clone()
	m.commit(name)
	return nil
}

// Patch merges partial into the document stored under id.
func (m *MemStore) Patch(ctx context.Context, name, id string, partial schema.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidCollection(name); err != nil {
		return err
	}

	m.mu.Lock()
	c, ok := m.data[name]
	if !ok || c.docs[id] == nil {
		m.mu.Unlock()
		return fmt.Errorf("patch %s/%s: %w", name, id, ErrNotFound)
	}
	c.docs[id] = c.docs[id].Clone().Merge(partial)
	m.commit(name)
	return nil
}

// Remove deletes the document stored under id.
func (m *MemStore) Remove(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidCollection(name); err != nil {
		return err
	}

	m.mu.Lock()
	c, ok := m.data[name]
	if !ok || c.docs[id] == nil {
		m.mu.Unlock()
		return fmt.Errorf("remove %s/%s: %w", name, id, ErrNotFound)
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	m.commit(name)
	return nil
}

// Collections returns the names of every collection holding documents.
func (m *MemStore) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for name, c := range m.data {
		if len(c.order) > 0 {
			list = append(list, name)
		}
	}
	sort.Strings(list)
	return list, nil
}

// collection returns the named collection, creating it if needed.
// It MUST be called while holding m.mu.Lock.
func (m *MemStore) collection(name string) *collection {
	c, ok := m.data[name]
	if !ok {
		c = &collection{docs: make(map[string]schema.Document)}
		m.data[name] = c
	}
	return c
}

// snapshot creates a deep copy of a collection's documents in order.
// It MUST be called while holding m.mu.Lock or m.mu.RLock.
func (m *MemStore) snapshot(name string) []schema.Entry {
	c, ok := m.data[name]
	if !ok {
		return []schema.Entry{}
	}
	out := make([]schema.Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, schema.Entry{ID: id, Fields: c.docs[id].Clone()})
	}
	return out
}

// commit bumps the collection version, releases m.mu and persists the new
// state in the background. It MUST be called while holding m.mu.Lock.
func (m *MemStore) commit(name string) {
	m.versions[name]++
	version := m.versions[name]
	var entries []schema.Entry
	if m.persister != nil {
		entries = m.snapshot(name)
	}
	m.mu.Unlock()

	if m.persister == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.persister.SaveCollection(name, version, entries); err != nil {
			log.Error().Err(err).Str("collection", name).Msg("Failed to persist collection")
		}
	}()
}
