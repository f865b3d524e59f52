package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/rs/zerolog"
)

// ErrNoActiveGroup is returned by SetExclusiveActive for kinds without an
// active flag.
var ErrNoActiveGroup = errors.New("kind has no active flag")

// Gateway performs the remote writes of one entity kind. A pending file is
// always uploaded before the record is written, and an upload failure
// aborts the mutation with nothing written.
type Gateway struct {
	schema   *schema.Schema
	col      *sdk.Collection
	uploader *Uploader
	log      zerolog.Logger
}

// NewGateway returns a Gateway writing to the schema's collection.
func NewGateway(s *schema.Schema, store sdk.DocumentStore, up *Uploader, log zerolog.Logger) *Gateway {
	return &Gateway{schema: s, col: sdk.Scope(store, s.Collection), uploader: up, log: log}
}

// Create stores a new record and returns its ID.
func (g *Gateway) Create(ctx context.Context, doc schema.Document, file *media.File) (string, error) {
	doc = doc.Clone()
	if doc == nil {
		doc = schema.Document{}
	}
	if err := g.attach(ctx, doc, file); err != nil {
		return "", err
	}
	if g.schema.MediaRequired && emptyRef(doc[g.schema.MediaField]) {
		return "", g.missingMedia()
	}

	id, err := g.col.Insert(ctx, toWire(doc))
	if err != nil {
		return "", &OpError{Code: CodePersist, Op: "create", Kind: g.schema.Kind, Err: err}
	}
	g.log.Info().Str("id", id).Msg("Record created")
	return id, nil
}

// Update writes only the fields in partial, plus the media reference when a
// file is attached.
func (g *Gateway) Update(ctx context.Context, id string, partial schema.Document, file *media.File) error {
	partial = partial.Clone()
	if partial == nil {
		partial = schema.Document{}
	}
	if err := g.attach(ctx, partial, file); err != nil {
		return err
	}
	if ref, ok := partial[g.schema.MediaField]; ok && g.schema.MediaRequired && emptyRef(ref) {
		return g.missingMedia()
	}
	if len(partial) == 0 {
		return nil
	}

	if err := g.col.Patch(ctx, id, toWire(partial)); err != nil {
		return g.writeErr("update", id, err)
	}
	g.log.Info().Str("id", id).Int("fields", len(partial)).Msg("Record updated")
	return nil
}

// Delete removes a record. Deleting an absent record fails with
// ErrNotFound.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	if err := g.col.Remove(ctx, id); err != nil {
		return g.writeErr("delete", id, err)
	}
	g.log.Info().Str("id", id).Msg("Record deleted")
	return nil
}

// SetExclusiveActive marks id active and every other member of group
// inactive, as independent patches in that order. The first failure stops
// the loop and whatever was written stays written; readers between the
// patches can see two active records.
func (g *Gateway) SetExclusiveActive(ctx context.Context, id string, group []string) error {
	if !g.schema.Exclusive() {
		return &OpError{Code: CodePersist, Op: "activate", Kind: g.schema.Kind, ID: id, Err: ErrNoActiveGroup}
	}
	field := g.schema.ActiveField

	if err := g.col.Patch(ctx, id, schema.Document{field: true}); err != nil {
		return g.writeErr("activate", id, err)
	}
	for _, other := range group {
		if other == id {
			continue
		}
		if err := g.col.Patch(ctx, other, schema.Document{field: false}); err != nil {
			return g.writeErr("activate", other, err)
		}
	}
	g.log.Info().Str("id", id).Int("group", len(group)).Msg("Record activated")
	return nil
}

// attach uploads file, if any, and stores its CID in doc.
func (g *Gateway) attach(ctx context.Context, doc schema.Document, file *media.File) error {
	if file == nil {
		return nil
	}
	if !g.schema.HasMedia() {
		return &ValidationError{Kind: g.schema.Kind, Fields: FieldErrors{"file": "this kind does not take media"}}
	}
	cid, err := g.uploader.Upload(ctx, *file)
	if err != nil {
		return err
	}
	doc[g.schema.MediaField] = cid
	return nil
}

func (g *Gateway) missingMedia() error {
	fs, _ := g.schema.Field(g.schema.MediaField)
	return &ValidationError{Kind: g.schema.Kind, Fields: FieldErrors{fs.Name: fs.Label + " is required"}}
}

func (g *Gateway) writeErr(op, id string, err error) error {
	if errors.Is(err, sdk.ErrNotFound) {
		return &OpError{Code: CodeNotFound, Op: op, Kind: g.schema.Kind, ID: id, Err: err}
	}
	return &OpError{Code: CodePersist, Op: op, Kind: g.schema.Kind, ID: id, Err: err}
}

func emptyRef(v any) bool {
	s, ok := v.(string)
	return !ok || s == ""
}

// toWire converts values to JSON-friendly scalars so every backend stores
// the same shape.
func toWire(doc schema.Document) schema.Document {
	out := make(schema.Document, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case time.Time:
			out[k] = t.UTC().Format(time.RFC3339)
		case fmt.Stringer:
			out[k] = t.String()
		default:
			out[k] = v
		}
	}
	return out
}
