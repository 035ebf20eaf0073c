package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"xmlport/internal/record"
	"xmlport/internal/schema"
	"xmlport/internal/store"
)

// Writer persists a fully resolved field map, merging with any
// pre-existing record sharing the kind's natural key instead of inserting
// a duplicate.
type Writer struct {
	store *store.Store
	log   zerolog.Logger
}

func NewWriter(s *store.Store, log zerolog.Logger) *Writer {
	return &Writer{store: s, log: log.With().Str("component", "writer").Logger()}
}

// Write persists rec and returns the final id and whether a new row was
// created. Persistence does not branch on the import mode: mode 0 skips
// the whole kind before extraction, and both create modes converge on
// the natural key.
func (w *Writer) Write(ctx context.Context, ent *schema.Entity, rec *record.Record, keepID bool) (int64, bool, error) {
	existing, err := w.findExisting(ctx, ent, rec)
	if err != nil {
		return 0, false, err
	}

	if existing > 0 {
		// Merge by id: the existing row is updated in place, never
		// duplicated.
		rec.Set(ent.Key, existing)
		if err := w.update(ctx, ent, rec, existing); err != nil {
			return 0, false, err
		}
		if err := w.syncGroups(ctx, ent, rec, existing); err != nil {
			return 0, false, err
		}
		return existing, false, nil
	}

	if !keepID || store.ToID(rec.Get(ent.Key)) <= 0 {
		// The target store assigns the id.
		rec.Delete(ent.Key)
	} else {
		rec.Set(ent.Key, store.ToID(rec.Get(ent.Key)))
	}
	id, err := w.insert(ctx, ent, rec)
	if err != nil {
		return 0, false, err
	}
	rec.Set(ent.Key, id)
	if err := w.syncGroups(ctx, ent, rec, id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// findExisting looks up a record sharing the natural key. A record whose
// field map lacks part of the key cannot match anything.
func (w *Writer) findExisting(ctx context.Context, ent *schema.Entity, rec *record.Record) (int64, error) {
	if len(ent.NaturalKey) == 0 {
		return 0, nil
	}
	where := make([]string, 0, len(ent.NaturalKey))
	args := make([]any, 0, len(ent.NaturalKey))
	for _, col := range ent.NaturalKey {
		v, ok := rec.Lookup(col)
		if !ok {
			return 0, nil
		}
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, convertValue(ent, col, v))
	}
	id, err := w.store.QueryID(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		ent.Key, ent.Table, strings.Join(where, " AND ")), args...)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find existing %s: %w", ent.Kind, err)
	}
	return id, nil
}

func (w *Writer) update(ctx context.Context, ent *schema.Entity, rec *record.Record, id int64) error {
	sets := make([]string, 0, rec.Len())
	args := make([]any, 0, rec.Len())
	for _, k := range rec.Keys() {
		if k == ent.Key || !ent.HasColumn(k) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", k, len(args)+1))
		args = append(args, convertValue(ent, k, rec.Get(k)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := w.store.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		ent.Table, strings.Join(sets, ", "), ent.Key, len(args)), args...)
	if err != nil {
		return fmt.Errorf("update %s/%d: %w", ent.Kind, id, err)
	}
	w.log.Debug().Str("kind", ent.Kind).Int64("id", id).Msg("updated")
	return nil
}

func (w *Writer) insert(ctx context.Context, ent *schema.Entity, rec *record.Record) (int64, error) {
	cols := make([]string, 0, rec.Len())
	vals := make([]any, 0, rec.Len())
	for _, k := range rec.Keys() {
		if !ent.HasColumn(k) {
			continue
		}
		cols = append(cols, k)
		vals = append(vals, convertValue(ent, k, rec.Get(k)))
	}
	id, err := w.store.InsertRow(ctx, ent.Table, ent.Key, cols, vals)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", ent.Kind, err)
	}
	w.log.Debug().Str("kind", ent.Kind).Int64("id", id).Msg("inserted")
	return id, nil
}

// syncGroups replaces a user's group memberships with the resolved set.
// "groups" is resolver output, not a users column.
func (w *Writer) syncGroups(ctx context.Context, ent *schema.Entity, rec *record.Record, id int64) error {
	if ent.Kind != "user" {
		return nil
	}
	groups, ok := rec.Get("groups").([]int64)
	if !ok {
		return nil
	}
	if _, err := w.store.Exec(ctx, "DELETE FROM user_usergroup_map WHERE user_id = $1", id); err != nil {
		return fmt.Errorf("clear user groups: %w", err)
	}
	for _, g := range groups {
		if _, err := w.store.Exec(ctx,
			"INSERT INTO user_usergroup_map (user_id, group_id) VALUES ($1, $2)", id, g); err != nil {
			return fmt.Errorf("map user group %d: %w", g, err)
		}
	}
	return nil
}

// convertValue coerces an extracted string into the column's storage
// type so parameter binding succeeds on both dialects.
func convertValue(ent *schema.Entity, col string, v any) any {
	var colType string
	for _, c := range ent.Columns {
		if c.Name == col {
			colType = c.Type
			break
		}
	}
	s, isStr := v.(string)
	switch colType {
	case "int", "bigint":
		if isStr {
			if s == "" {
				return nil
			}
			return store.ToID(s)
		}
	case "boolean":
		if isStr {
			return s == "1" || strings.EqualFold(s, "true")
		}
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case "timestamp":
		if isStr && (s == "" || s == schema.NullDate) {
			return nil
		}
	}
	return v
}
