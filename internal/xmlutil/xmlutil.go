// Package xmlutil contains the low-level text rules shared by the encoder
// and the decoder: which code points may appear in an XML document, how
// raw text is wrapped in CDATA, and what counts as a numeric value.
package xmlutil

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// LegalRune reports whether r may appear in XML 1.0 character data.
// Legal ranges: tab, LF, CR, 0x20-0xD7FF, 0xE000-0xFFFD, 0x10000-0x10FFFF.
func LegalRune(r rune) bool {
	return r == 0x9 || r == 0xA || r == 0xD ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// Sanitize replaces every code point that is not legal in XML character
// data with a single space. Invalid UTF-8 sequences are replaced too;
// rune iteration alone would decode them as U+FFFD and let the raw bytes
// through.
func Sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, " ")
	}
	// Fast path: most values carry no control characters.
	clean := true
	for _, r := range s {
		if !LegalRune(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if LegalRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// CData wraps sanitized text in a CDATA section. A literal "]]>" inside
// the text would terminate the section early, so it is split across two
// adjacent sections.
func CData(s string) string {
	s = Sanitize(s)
	s = strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
	return "<![CDATA[" + s + "]]>"
}

// IsNumeric reports whether v is a number or a string that parses as one.
// Numeric values are emitted as bare element text, everything else goes
// through CDATA.
func IsNumeric(v any) bool {
	switch n := v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case string:
		if n == "" {
			return false
		}
		_, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return err == nil
	}
	return false
}

// NumericString formats a numeric value without an exponent and without a
// trailing ".0" for whole floats, matching the bare-digit wire form.
func NumericString(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return strings.TrimSpace(n)
	}
	return ""
}
