package export

import (
	"fmt"
	"strings"
)

// RootTag is the element wrapping every exported fragment.
const RootTag = "records"

// Document assembles fragments into one export bundle, deduplicating by
// (kind, id) so no entity is emitted twice within a run.
type Document struct {
	fragments []string
	seen      map[string]struct{}
}

func NewDocument() *Document {
	return &Document{seen: make(map[string]struct{})}
}

// Has reports whether the entity was already appended.
func (d *Document) Has(kind string, id int64) bool {
	_, ok := d.seen[fragmentKey(kind, id)]
	return ok
}

// Add appends a fragment unless the same (kind, id) is already present.
// It returns true when the fragment was appended.
func (d *Document) Add(kind string, id int64, fragment string) bool {
	key := fragmentKey(kind, id)
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	d.fragments = append(d.fragments, fragment)
	return true
}

// Len returns the number of appended fragments.
func (d *Document) Len() int {
	return len(d.fragments)
}

// String renders the complete document.
func (d *Document) String() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<" + RootTag + ">\n")
	for _, f := range d.fragments {
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("</" + RootTag + ">\n")
	return b.String()
}

func fragmentKey(kind string, id int64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}
