package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"xmlport/internal/config"
	"xmlport/internal/schema"
	"xmlport/internal/store"
)

// Exporter loads entities from the store and appends their fragments to a
// document, walking recursive dependents depth-first so a consumer
// parsing top-down meets referenced categories right after the records
// that need them.
type Exporter struct {
	store *store.Store
	ser   *Serializer
	opts  config.Options
	log   zerolog.Logger
}

func New(s *store.Store, opts config.Options, log zerolog.Logger) *Exporter {
	return &Exporter{
		store: s,
		ser:   NewSerializer(s, log),
		opts:  opts,
		log:   log.With().Str("component", "exporter").Logger(),
	}
}

// Export appends the entity (kind, id) and its dependents to doc. An
// entity already present, or missing from the store, is silently skipped.
func (e *Exporter) Export(ctx context.Context, doc *Document, kind string, id int64) error {
	ent := schema.Get(kind)
	if ent == nil {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if doc.Has(kind, id) {
		return nil
	}

	rec, err := e.store.LoadRecord(ctx, ent, id)
	if errors.Is(err, store.ErrNotFound) {
		e.log.Debug().Str("kind", kind).Int64("id", id).Msg("not found, skipped")
		return nil
	}
	if err != nil {
		return err
	}

	fragment, err := e.ser.Serialize(ctx, ent, rec)
	if err != nil {
		return err
	}
	doc.Add(kind, id, fragment)
	e.log.Debug().Str("kind", kind).Int64("id", id).Msg("exported")

	switch kind {
	case "field":
		if e.opts.Categories != 0 {
			ids, err := e.store.QueryColumn(ctx,
				"SELECT category_id FROM fields_categories WHERE field_id = $1", id)
			if err != nil {
				return fmt.Errorf("field categories: %w", err)
			}
			for _, cid := range ids {
				if err := e.Export(ctx, doc, "category", store.ToID(cid)); err != nil {
					return err
				}
			}
		}
	case "content", "usernote":
		if e.opts.Categories != 0 {
			if catid := store.ToID(rec.Get("catid")); catid > 0 {
				if err := e.Export(ctx, doc, "category", catid); err != nil {
					return err
				}
			}
		}
	case "category":
		// Ancestors ride along so the full path is reconstructable on a
		// bare target instance. The root node (id 1) stays implicit.
		if parent := store.ToID(rec.Get("parent_id")); parent > 1 {
			if err := e.Export(ctx, doc, "category", parent); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExportAll appends every listed id of one kind.
func (e *Exporter) ExportAll(ctx context.Context, doc *Document, kind string, ids []int64) error {
	for _, id := range ids {
		if err := e.Export(ctx, doc, kind, id); err != nil {
			return err
		}
	}
	return nil
}
