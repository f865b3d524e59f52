package sdk

import (
	"context"
	"encoding/json"
	"io"

	"github.com/aalan294/campus-life-admin/pkg/engine"
	"github.com/aalan294/campus-life-admin/pkg/schema"
)

var (
	// ErrNotFound is returned by every backend when a document ID does not
	// exist in its collection.
	ErrNotFound = engine.ErrNotFound
	// ErrInvalidCollection is returned for malformed collection names.
	ErrInvalidCollection = engine.ErrInvalidCollection
)

// --- Functional Interfaces (Interface Segregation) ---

// Lister reads a whole collection.
type Lister interface {
	ListAll(ctx context.Context, collection string) ([]schema.Entry, error)
}

// Inserter creates documents under store-assigned IDs.
type Inserter interface {
	Insert(ctx context.Context, collection string, doc schema.Document) (string, error)
}

// Patcher merges fields into an existing document.
type Patcher interface {
	Patch(ctx context.Context, collection, id string, partial schema.Document) error
}

// Remover deletes documents.
type Remover interface {
	Remove(ctx context.Context, collection, id string) error
}

// CollectionEnumerator allows discovering collections.
type CollectionEnumerator interface {
	Collections(ctx context.Context) ([]string, error)
}

// --- Composite Interfaces ---

// DocumentStore is everything an entity manager needs from the remote store.
type DocumentStore interface {
	Lister
	Inserter
	Patcher
	Remover
}

// Backend is a DocumentStore opened by Open. It also supports migration and
// must be closed when the process shuts down.
type Backend interface {
	DocumentStore
	CollectionEnumerator
	engine.Putter
	io.Closer
}

// Compile-time checks.
var (
	_ Backend = (*Embedded)(nil)
	_ Backend = (*Client)(nil)
	_ Backend = (*RedisStore)(nil)
)

// Embedded wraps the in-process engine so it can be used as a Backend.
type Embedded struct {
	*engine.MemStore
}

// Close waits for pending background writes.
func (e *Embedded) Close() error {
	e.Wait()
	return nil
}

// --- Collection Scope ---

// Collection pins a store to one collection.
type Collection struct {
	store DocumentStore
	name  string
}

// Scope returns a Collection bound to name.
func Scope(store DocumentStore, name string) *Collection {
	return &Collection{store: store, name: name}
}

// Name returns the pinned collection name.
func (c *Collection) Name() string { return c.name }

// List returns every document of the collection.
func (c *Collection) List(ctx context.Context) ([]schema.Entry, error) {
	return c.store.ListAll(ctx, c.name)
}

// Insert creates a document and returns its ID.
func (c *Collection) Insert(ctx context.Context, doc schema.Document) (string, error) {
	return c.store.Insert(ctx, c.name, doc)
}

// Patch merges partial into the document stored under id.
func (c *Collection) Patch(ctx context.Context, id string, partial schema.Document) error {
	return c.store.Patch(ctx, c.name, id, partial)
}

// Remove deletes the document stored under id.
func (c *Collection) Remove(ctx context.Context, id string) error {
	return c.store.Remove(ctx, c.name, id)
}

// --- Generics Support ---

// Decode converts a stored document into T.
// Values that came over the wire are maps of JSON scalars, so we re-marshal
// them into the target type.
func Decode[T any](doc schema.Document) (T, error) {
	var target T
	bytes, err := json.Marshal(doc)
	if err != nil {
		return target, err
	}
	err = json.Unmarshal(bytes, &target)
	return target, err
}

// ListAs reads a collection and decodes every document into T.
func ListAs[T any](ctx context.Context, l Lister, collection string) ([]T, error) {
	entries, err := l.ListAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		v, err := Decode[T](e.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
