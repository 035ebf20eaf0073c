// Package export turns loaded records into portable XML. The textual
// form references other entities by natural key (usernames, category
// paths, access-level titles) so a document survives being imported into
// a store with different numeric ids.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"xmlport/internal/record"
	"xmlport/internal/schema"
	"xmlport/internal/store"
	"xmlport/internal/xmlutil"
)

// Serializer encodes one record into an XML fragment. Alias fields run
// one lookup query each against the store.
type Serializer struct {
	store *store.Store
	log   zerolog.Logger
}

func NewSerializer(s *store.Store, log zerolog.Logger) *Serializer {
	return &Serializer{store: s, log: log.With().Str("component", "serializer").Logger()}
}

// Serialize renders rec as a <kind> fragment. Plain fields are emitted in
// record order, alias fields in a second pass. A store failure aborts the
// whole fragment; no partial output is returned.
func (s *Serializer) Serialize(ctx context.Context, ent *schema.Entity, rec *record.Record) (string, error) {
	var b strings.Builder
	b.WriteString("<" + ent.Kind + ">\n")

	for _, k := range rec.Keys() {
		switch ent.Classify(k) {
		case schema.ClassExcluded, schema.ClassAlias:
			continue
		case schema.ClassJSON:
			b.WriteString(setValue(k, canonicalJSON(rec.Get(k))))
		default:
			b.WriteString(setValue(k, collapseJSON(rec.Get(k))))
		}
	}

	for _, a := range ent.Aliases {
		var bound any
		if a.Bind == schema.BindValue {
			v, ok := rec.Lookup(a.Name)
			if !ok || v == nil {
				continue
			}
			bound = v
		} else {
			bound = rec.Get(ent.Key)
		}

		rows, err := s.store.QueryRows(ctx, a.Query, bound)
		if err != nil {
			return "", fmt.Errorf("alias %s.%s: %w", ent.Kind, a.Name, err)
		}
		s.log.Debug().Str("kind", ent.Kind).Str("alias", a.Name).Int("rows", len(rows)).Msg("alias lookup")

		switch {
		case len(rows) == 1:
			b.WriteString(setRow(a.Name, rows[0]))
		case len(rows) > 1:
			b.WriteString("<" + a.Name + "list>\n")
			for _, row := range rows {
				b.WriteString(setRow(a.Name, row))
			}
			b.WriteString("</" + a.Name + "list>\n")
		}
	}

	b.WriteString("</" + ent.Kind + ">")
	return b.String(), nil
}

// setRow emits one alias result row: a single-column row collapses to a
// scalar element, a multi-column row becomes a named group with one child
// per column.
func setRow(name string, row map[string]any) string {
	if len(row) == 1 {
		for _, v := range row {
			return setValue(name, v)
		}
	}
	// Column order is lost in the row map; sort for stable output.
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<" + name + ">")
	for _, k := range keys {
		b.WriteString(strings.TrimSuffix(setValue(k, row[k]), "\n"))
	}
	b.WriteString("</" + name + ">\n")
	return b.String()
}

// setValue emits one field element. Numbers are bare text, non-empty
// strings are sanitized and wrapped in CDATA, empty values emit nothing.
func setValue(k string, v any) string {
	switch {
	case v == nil:
		return ""
	case isBool(v):
		if v.(bool) {
			return "<" + k + ">1</" + k + ">\n"
		}
		return "<" + k + ">0</" + k + ">\n"
	case xmlutil.IsNumeric(v):
		return "<" + k + ">" + xmlutil.NumericString(v) + "</" + k + ">\n"
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return ""
	}
	return "<" + k + ">" + xmlutil.CData(str) + "</" + k + ">\n"
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

// canonicalJSON encodes a structured value for emission. A string that is
// already JSON is re-encoded compactly; other structured values are
// marshalled directly.
func canonicalJSON(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return collapseJSON(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(b)
	}
}

// collapseJSON canonicalizes a scalar that happens to carry an encoded
// object or array, so equivalent documents serialize identically. Plain
// text and bare numbers pass through untouched.
func collapseJSON(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	t := strings.TrimSpace(s)
	if len(t) == 0 || (t[0] != '{' && t[0] != '[') {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(t), &decoded); err != nil {
		return v
	}
	compact, err := json.Marshal(decoded)
	if err != nil {
		return v
	}
	return string(compact)
}
