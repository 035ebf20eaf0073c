package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"xmlport/internal/record"
	"xmlport/internal/schema"
	"xmlport/internal/store"
	"xmlport/internal/xmlutil"
)

// DefaultAccessLevel is the fallback when an access-level title has no
// match on the target instance ("Registered").
const DefaultAccessLevel int64 = 3

// NewTagPrefix marks a tag path that does not exist yet on the target;
// creation beyond marking is the caller's policy.
const NewTagPrefix = "new:"

// Resolver rewrites natural-key fields into numeric ids valid on the
// target store, creating missing user-group hierarchy nodes as needed.
// Resolution never removes a field: a failed lookup substitutes the
// deterministic fallback for its kind, so downstream writes never see an
// unresolved natural key.
type Resolver struct {
	store *store.Store
	log   zerolog.Logger
}

func NewResolver(s *store.Store, log zerolog.Logger) *Resolver {
	return &Resolver{store: s, log: log.With().Str("component", "resolver").Logger()}
}

// Resolve rewrites every natural-key-bearing field of rec in place.
func (r *Resolver) Resolve(ctx context.Context, ent *schema.Entity, rec *record.Record, rc *RunContext) error {
	if rec.Has("catid") {
		if ent.Kind == "content" && rc.Options.ContentCategoryForceTo > 0 {
			rec.Set("catid", rc.Options.ContentCategoryForceTo)
		} else {
			id, err := r.CategoryID(ctx, rec.GetString("catid"),
				rc.Options.Extension, rc.Options.CategoryDefault)
			if err != nil {
				return err
			}
			rec.Set("catid", id)
		}
	}

	// Created-by fields fall back to the importing user, modified-by
	// fields to unset.
	for _, col := range []string{"created_by", "created_user_id"} {
		if rec.Has(col) {
			id, err := r.UserID(ctx, rec.GetString(col), rc.UserID)
			if err != nil {
				return err
			}
			rec.Set(col, id)
		}
	}
	for _, col := range []string{"modified_by", "modified_user_id"} {
		if rec.Has(col) {
			id, err := r.UserID(ctx, rec.GetString(col), 0)
			if err != nil {
				return err
			}
			rec.Set(col, id)
		}
	}

	if rec.Has("access") {
		id, err := r.AccessID(ctx, rec.GetString("access"))
		if err != nil {
			return err
		}
		rec.Set("access", id)
	}

	// Tag paths arrive as a single <tag> or a <taglist> group; either way
	// they end up under "tags" with unresolved paths marked, in order.
	if rec.Has("tag") {
		rec.Set("tags", r.TagIDs(ctx, rec.GetStrings("tag")))
		rec.Delete("tag")
	} else if rec.Has("taglist") {
		rec.Set("tags", r.TagIDs(ctx, rec.GetStrings("taglist")))
		rec.Delete("taglist")
	}

	// Group membership paths resolve to the deepest node of each path,
	// creating missing levels on the way down.
	if rec.Has("group") || rec.Has("grouplist") {
		key := "group"
		if rec.Has("grouplist") {
			key = "grouplist"
		}
		var groups []int64
		for _, path := range rec.GetStrings(key) {
			id, err := r.UsergroupID(ctx, strings.Split(path, "/"))
			if err != nil {
				return err
			}
			groups = append(groups, id)
		}
		rec.Delete(key)
		rec.Set("groups", groups)
	}

	if v, ok := rec.Lookup("params"); ok {
		rec.Set("params", FlattenParams(v))
	}
	return nil
}

// UserID looks a user up by username, falling back to the supplied
// default id when no match exists. Not-found is an ordinary data case;
// only store failures surface as errors.
func (r *Resolver) UserID(ctx context.Context, username string, defaultID int64) (int64, error) {
	id, err := r.store.QueryID(ctx, "SELECT id FROM users WHERE username = $1", username)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Debug().Str("username", username).Int64("id", defaultID).Msg("user fallback")
		return defaultID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve user %q: %w", username, err)
	}
	r.log.Debug().Str("username", username).Int64("id", id).Msg("user resolved")
	return id, nil
}

// CategoryID resolves a category path scoped to an extension. A numeric
// value passes through as an explicit id; an unknown path falls back to
// the supplied default. Categories are never auto-created here.
func (r *Resolver) CategoryID(ctx context.Context, category, extension string, defaultID int64) (int64, error) {
	if xmlutil.IsNumeric(category) {
		return store.ToID(category), nil
	}
	id, err := r.store.QueryID(ctx,
		"SELECT id FROM categories WHERE path = $1 AND extension = $2", category, extension)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Debug().Str("path", category).Int64("id", defaultID).Msg("category fallback")
		return defaultID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve category %q: %w", category, err)
	}
	return id, nil
}

// AccessID resolves an access level. Built-in levels travel by number and
// pass through; custom levels are matched by title, with the fixed
// default level as fallback.
func (r *Resolver) AccessID(ctx context.Context, access string) (int64, error) {
	if xmlutil.IsNumeric(access) {
		return store.ToID(access), nil
	}
	id, err := r.store.QueryID(ctx, "SELECT id FROM viewlevels WHERE title = $1", access)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Debug().Str("title", access).Int64("id", DefaultAccessLevel).Msg("access fallback")
		return DefaultAccessLevel, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve access %q: %w", access, err)
	}
	return id, nil
}

// TagIDs batch-resolves tag paths in one query. The result holds, in
// first-occurrence input order, either the existing id or the
// "new:<path>" marker for paths absent on the target. A store failure
// degrades to an unresolved (nil) result rather than aborting the run.
func (r *Resolver) TagIDs(ctx context.Context, paths []string) []any {
	unique := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}
	if len(unique) == 0 {
		return nil
	}

	phs := make([]string, len(unique))
	args := make([]any, len(unique))
	for i, p := range unique {
		phs[i] = fmt.Sprintf("$%d", i+1)
		args[i] = p
	}
	rows, err := r.store.QueryRows(ctx,
		fmt.Sprintf("SELECT path, id FROM tags WHERE path IN (%s)", strings.Join(phs, ", ")),
		args...)
	if err != nil {
		r.log.Warn().Err(err).Msg("tag lookup failed, left unresolved")
		return nil
	}

	ids := make(map[string]int64, len(rows))
	for _, row := range rows {
		if p, ok := row["path"].(string); ok {
			ids[p] = store.ToID(row["id"])
		}
	}
	out := make([]any, len(unique))
	for i, p := range unique {
		if id, ok := ids[p]; ok {
			out[i] = id
		} else {
			out[i] = NewTagPrefix + p
		}
	}
	return out
}

// UsergroupID walks an ordered root-to-leaf title path, resolving or
// creating each level under its already-resolved parent, and returns the
// deepest node's id. Concurrent duplicate creation is last-writer-wins at
// the store layer.
func (r *Resolver) UsergroupID(ctx context.Context, titles []string) (int64, error) {
	var parent int64
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		id, err := r.store.QueryID(ctx,
			"SELECT id FROM usergroups WHERE title = $1 AND parent_id = $2", title, parent)
		if errors.Is(err, store.ErrNotFound) {
			id, err = r.store.InsertRow(ctx, "usergroups", "id",
				[]string{"parent_id", "lft", "rgt", "title"},
				[]any{parent, 0, 0, title})
			if err != nil {
				return 0, fmt.Errorf("create usergroup %q: %w", title, err)
			}
			r.log.Info().Str("title", title).Int64("id", id).Msg("usergroup created")
		} else if err != nil {
			return 0, fmt.Errorf("resolve usergroup %q: %w", title, err)
		}
		parent = id
	}
	return parent, nil
}

// FlattenParams canonicalizes a structured parameter blob into its
// compact encoded form before it is written back as a column value.
func FlattenParams(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		t := strings.TrimSpace(val)
		if len(t) > 0 && (t[0] == '{' || t[0] == '[') {
			var decoded any
			if err := json.Unmarshal([]byte(t), &decoded); err == nil {
				if b, err := json.Marshal(decoded); err == nil {
					return string(b)
				}
			}
		}
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
