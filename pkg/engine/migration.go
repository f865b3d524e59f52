package engine

import (
	"context"
	"fmt"
)

// Migrate copies documents from a source store to a destination store and
// returns how many were written. It copies the named collections, or every
// source collection when none are named. This works for:
// - Embedded -> Remote (moving a dev dataset onto the shared store)
// - Remote -> Embedded (backup / offline copy)
//
// Destinations implementing Putter keep the source IDs; others assign new ones.
func Migrate(ctx context.Context, src Source, dst Sink, collections ...string) (int, error) {
	if len(collections) == 0 {
		names, err := src.Collections(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list collections: %w", err)
		}
		collections = names
	}

	putter, keepIDs := dst.(Putter)
	copied := 0
	for _, name := range collections {
		entries, err := src.ListAll(ctx, name)
		if err != nil {
			return copied, fmt.Errorf("failed to dump collection %s: %w", name, err)
		}

		for _, e := range entries {
			if keepIDs {
				err = putter.Put(ctx, name, e.ID, e.Fields)
			} else {
				_, err = dst.Insert(ctx, name, e.Fields)
			}
			if err != nil {
				return copied, fmt.Errorf("failed to write %s/%s to destination: %w", name, e.ID, err)
			}
			copied++
		}
	}
	return copied, nil
}
