// Package importer rebuilds store records from a portable XML document:
// element extraction, natural-key resolution against the target store,
// and conflict-aware persistence.
package importer

import (
	"strings"
	"time"

	"github.com/beevik/etree"

	"xmlport/internal/record"
	"xmlport/internal/schema"
)

// Extract walks one record element's children into a flat field map. A
// child without children contributes its decoded text; a child with
// children (a list-shaped field) contributes the list of its decoded
// grandchild texts in document order. Keys are element names, verbatim.
func Extract(el *etree.Element) *record.Record {
	rec := record.New()
	for _, child := range el.ChildElements() {
		key := strings.TrimSpace(child.Tag)
		grandchildren := child.ChildElements()
		if len(grandchildren) == 0 {
			rec.Set(key, strings.TrimSpace(child.Text()))
			continue
		}
		list, _ := rec.Get(key).([]string)
		for _, gc := range grandchildren {
			list = append(list, strings.TrimSpace(gc.Text()))
		}
		rec.Set(key, list)
	}
	return rec
}

// ApplyDefaults applies the fixed post-extraction defaults and normalizes
// the kind's datetime columns: lock state is always cleared on import,
// and every date field is rewritten to the canonical store format.
func ApplyDefaults(ent *schema.Entity, rec *record.Record) {
	rec.Set("checked_out", int64(0))
	rec.Set("checked_out_time", schema.NullDate)

	for _, col := range ent.DateColumns {
		if v, ok := rec.Lookup(col); ok {
			if s, ok := v.(string); ok {
				rec.Set(col, FixDate(s))
			}
		}
	}
}

// dateLayouts are tried in order when normalizing an incoming datetime.
var dateLayouts = []string{
	schema.DateFormat,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FixDate maps the sentinel zero dates (the legacy all-zero form and the
// epoch form) to the canonical null date and reformats everything else to
// the canonical datetime layout. Unparsable input is passed through.
func FixDate(date string) string {
	if date == "" || date == schema.NullDate ||
		date == "0000-00-00 00:00:00" || date == "1970-01-01 00:00:00" {
		return schema.NullDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format(schema.DateFormat)
		}
	}
	return date
}
