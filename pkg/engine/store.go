// Package engine implements the embedded document store used for local
// development, for tests, and behind the docstore daemon.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aalan294/campus-life-admin/pkg/schema"
)

var (
	// ErrNotFound is returned when a document ID does not exist in its collection.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidCollection is returned for empty or malformed collection names.
	ErrInvalidCollection = errors.New("invalid collection name")
)

// Source is the read side needed to copy collections out of a store.
type Source interface {
	Collections(ctx context.Context) ([]string, error)
	ListAll(ctx context.Context, collection string) ([]schema.Entry, error)
}

// Sink is the write side needed to copy documents into a store.
type Sink interface {
	Insert(ctx context.Context, collection string, doc schema.Document) (string, error)
}

// Putter is implemented by stores that can write a document under a
// caller-chosen ID. Migrate prefers it so IDs survive the copy.
type Putter interface {
	Put(ctx context.Context, collection, id string, doc schema.Document) error
}

// ValidCollection checks that name can be used as a collection name by every
// backend: non-empty, no whitespace, no path separators.
func ValidCollection(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n/\\:") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}
