package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"xmlport/internal/schema"
)

// Bootstrap creates the entity tables, link tables, and the fixed
// reference rows a fresh instance needs before it can accept an import.
// All statements are idempotent.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, ent := range schema.All() {
		if _, err := s.DB.ExecContext(ctx, s.tableDDL(ent)); err != nil {
			return fmt.Errorf("create table %s: %w", ent.Table, err)
		}
	}
	for _, ddl := range s.linkTableDDL() {
		if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create link table: %w", err)
		}
	}
	return s.seed(ctx)
}

func (s *Store) tableDDL(ent *schema.Entity) string {
	cols := make([]string, 0, len(ent.Columns))
	for _, c := range ent.Columns {
		if c.Name == ent.Key {
			cols = append(cols, s.Dialect.PrimaryKeyDDL(c.Name))
			continue
		}
		// Identifiers stay unquoted everywhere so PostgreSQL's lowercase
		// folding applies consistently to DDL and queries.
		cols = append(cols, fmt.Sprintf("%s %s", c.Name, s.Dialect.ColumnType(c.Type)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		ent.Table, strings.Join(cols, ",\n    "))
}

func (s *Store) linkTableDDL() []string {
	bigint := s.Dialect.ColumnType("bigint")
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS fields_categories (
    field_id    %s NOT NULL,
    category_id %s NOT NULL,
    PRIMARY KEY (field_id, category_id)
)`, bigint, bigint),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_usergroup_map (
    user_id  %s NOT NULL,
    group_id %s NOT NULL,
    PRIMARY KEY (user_id, group_id)
)`, bigint, bigint),
	}
}

// seed inserts the fixed low-numbered access levels and the root user
// group hierarchy when absent. Access level 3 ("Registered") is the
// resolution fallback for unknown titles.
func (s *Store) seed(ctx context.Context) error {
	levels := []struct {
		id    int64
		title string
	}{
		{1, "Public"},
		{2, "Special"},
		{3, "Registered"},
	}
	for _, l := range levels {
		_, err := s.QueryValue(ctx, "SELECT id FROM viewlevels WHERE id = $1", l.id)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("seed viewlevels: %w", err)
		}
		if _, err := s.Exec(ctx,
			"INSERT INTO viewlevels (id, title, ordering, rules) VALUES ($1, $2, $3, $4)",
			l.id, l.title, l.id, "[]"); err != nil {
			return fmt.Errorf("seed viewlevels: %w", err)
		}
	}

	groups := []struct {
		id     int64
		parent int64
		title  string
	}{
		{1, 0, "Public"},
		{2, 1, "Registered"},
	}
	for _, g := range groups {
		_, err := s.QueryValue(ctx, "SELECT id FROM usergroups WHERE id = $1", g.id)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("seed usergroups: %w", err)
		}
		if _, err := s.Exec(ctx,
			"INSERT INTO usergroups (id, parent_id, lft, rgt, title) VALUES ($1, $2, 0, 0, $3)",
			g.id, g.parent, g.title); err != nil {
			return fmt.Errorf("seed usergroups: %w", err)
		}
	}
	return nil
}
