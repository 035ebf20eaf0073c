package importer

import (
	"reflect"
	"testing"

	"github.com/beevik/etree"

	"xmlport/internal/schema"
)

func parseRecord(t *testing.T, fragment string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(fragment); err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	return doc.Root()
}

func TestExtract_LeafFields(t *testing.T) {
	el := parseRecord(t, `<content>
		<id>12</id>
		<title><![CDATA[Hello]]></title>
		<alias> hello </alias>
	</content>`)

	rec := Extract(el)
	want := []string{"id", "title", "alias"}
	if !reflect.DeepEqual(rec.Keys(), want) {
		t.Fatalf("expected keys %v, got %v", want, rec.Keys())
	}
	if rec.Get("id") != "12" {
		t.Fatalf("expected id 12, got %v", rec.Get("id"))
	}
	if rec.Get("title") != "Hello" {
		t.Fatalf("expected CDATA text decoded, got %v", rec.Get("title"))
	}
	if rec.Get("alias") != "hello" {
		t.Fatalf("expected text trimmed, got %q", rec.Get("alias"))
	}
}

func TestExtract_ListFields(t *testing.T) {
	el := parseRecord(t, `<user>
		<username>alice</username>
		<grouplist>
			<group>Public</group>
			<group>Public/Staff</group>
		</grouplist>
	</user>`)

	rec := Extract(el)
	got := rec.GetStrings("grouplist")
	want := []string{"Public", "Public/Staff"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtract_RepeatedListsAccumulate(t *testing.T) {
	el := parseRecord(t, `<content>
		<taglist><tag>a</tag></taglist>
		<taglist><tag>b</tag><tag>c</tag></taglist>
	</content>`)

	rec := Extract(el)
	got := rec.GetStrings("taglist")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestApplyDefaults(t *testing.T) {
	rec := Extract(parseRecord(t, `<content>
		<title>x</title>
		<created>2020-05-01 10:30:00</created>
		<modified>0000-00-00 00:00:00</modified>
	</content>`))

	ApplyDefaults(schema.Content, rec)

	if rec.Get("checked_out") != int64(0) {
		t.Fatalf("expected lock cleared, got %v", rec.Get("checked_out"))
	}
	if rec.Get("checked_out_time") != schema.NullDate {
		t.Fatalf("expected lock time cleared, got %v", rec.Get("checked_out_time"))
	}
	if rec.Get("created") != "2020-05-01 10:30:00" {
		t.Fatalf("expected valid date untouched, got %v", rec.Get("created"))
	}
	if rec.Get("modified") != schema.NullDate {
		t.Fatalf("expected zero date normalized, got %v", rec.Get("modified"))
	}
}

func TestFixDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", schema.NullDate},
		{"0000-00-00 00:00:00", schema.NullDate},
		{"1970-01-01 00:00:00", schema.NullDate},
		{schema.NullDate, schema.NullDate},
		{"2021-03-04 05:06:07", "2021-03-04 05:06:07"},
		{"2021-03-04T05:06:07Z", "2021-03-04 05:06:07"},
		{"2021-03-04", "2021-03-04 00:00:00"},
		{"not a date", "not a date"},
	}
	for _, tt := range tests {
		if got := FixDate(tt.in); got != tt.want {
			t.Fatalf("FixDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	rec := Extract(parseRecord(t, `<content><alias>some-alias</alias><title>Real Title</title></content>`))
	if got := displayName(rec); got != "Real Title" {
		t.Fatalf("expected title preferred, got %q", got)
	}

	rec = Extract(parseRecord(t, `<content><id>44</id></content>`))
	if got := displayName(rec); got != "#44" {
		t.Fatalf("expected id fallback, got %q", got)
	}

	rec = Extract(parseRecord(t, `<content></content>`))
	if got := displayName(rec); got != "(unnamed)" {
		t.Fatalf("expected placeholder, got %q", got)
	}
}
