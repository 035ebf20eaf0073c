// Package record holds the in-memory representation of one database row
// while it travels between the store and its XML encoding. Field order is
// preserved because the textual encoding emits fields in insertion order.
package record

// Record is an ordered mapping from field name to value. Values are
// scalars (string, int64, float64, nil), one level of list ([]string,
// []any) or one level of object (map[string]any); deeper nesting is not
// representable in the wire format.
type Record struct {
	keys   []string
	values map[string]any
}

// New returns an empty record.
func New() *Record {
	return &Record{values: make(map[string]any)}
}

// Set stores a value. A new key is appended at the end; an existing key
// keeps its position.
func (r *Record) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key, or nil if absent.
func (r *Record) Get(key string) any {
	return r.values[key]
}

// Lookup returns the value and whether the key is present.
func (r *Record) Lookup(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether the key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Delete removes a key, preserving the order of the remaining fields.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Rename moves the value under key to newKey, keeping the original
// position. No-op if key is absent.
func (r *Record) Rename(key, newKey string) {
	v, ok := r.values[key]
	if !ok {
		return
	}
	delete(r.values, key)
	r.values[newKey] = v
	for i, k := range r.keys {
		if k == key {
			r.keys[i] = newKey
			break
		}
	}
}

// Keys returns the field names in insertion order. The returned slice is
// shared; callers must not modify it.
func (r *Record) Keys() []string {
	return r.keys
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// GetString returns the value for key coerced to a string, or "" when the
// key is absent, nil, or not a string.
func (r *Record) GetString(key string) string {
	s, _ := r.values[key].(string)
	return s
}

// GetStrings returns the value for key as a list of strings. A scalar
// string becomes a one-element list.
func (r *Record) GetStrings(key string) []string {
	switch v := r.values[key].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Map returns the fields as a plain map, losing order. Intended for
// logging and tests.
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}
