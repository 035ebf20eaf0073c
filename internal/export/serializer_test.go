package export

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmlport/internal/record"
	"xmlport/internal/schema"
	"xmlport/internal/store"
)

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewWithDB(db, &store.PostgresDialect{}), mock
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil omitted", nil, ""},
		{"empty string omitted", "", ""},
		{"int bare", int64(42), "<f>42</f>\n"},
		{"numeric string bare", "5", "<f>5</f>\n"},
		{"float bare", 3.5, "<f>3.5</f>\n"},
		{"bool true", true, "<f>1</f>\n"},
		{"bool false", false, "<f>0</f>\n"},
		{"text cdata", "hello", "<f><![CDATA[hello]]></f>\n"},
		{"control char sanitized", "a\x07b", "<f><![CDATA[a b]]></f>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, setValue("f", tt.in))
		})
	}
}

func TestCollapseJSON(t *testing.T) {
	// Encoded structures are canonicalized
	assert.Equal(t, `{"a":1,"b":2}`, collapseJSON(` { "b": 2, "a": 1 } `))
	assert.Equal(t, `[1,2]`, collapseJSON("[1, 2]"))

	// Plain text and malformed blobs pass through untouched
	assert.Equal(t, "hello", collapseJSON("hello"))
	assert.Equal(t, "{broken", collapseJSON("{broken"))
	assert.Equal(t, int64(7), collapseJSON(int64(7)))
}

func TestSerialize_PlainAndAliasFields(t *testing.T) {
	s, mock := newMockStore(t)
	ser := NewSerializer(s, zerolog.Nop())

	rec := record.New()
	rec.Set("id", int64(2))
	rec.Set("path", "news")
	rec.Set("extension", "com_content")
	rec.Set("title", "News")
	rec.Set("created_user_id", int64(42))
	rec.Set("access", int64(1))
	rec.Set("params", `{ "b": 2, "a": 1 }`)
	rec.Set("checked_out", int64(99))

	mock.ExpectQuery("SELECT username FROM users WHERE id = $1").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("admin"))
	mock.ExpectQuery("SELECT CASE WHEN v.id <= 6 THEN CAST(v.id AS TEXT) ELSE v.title END " +
		"FROM viewlevels v JOIN categories a ON v.id = a.access WHERE a.id = $1").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"access"}).AddRow("1"))

	fragment, err := ser.Serialize(context.Background(), schema.Category, rec)
	require.NoError(t, err)

	want := "<category>\n" +
		"<id>2</id>\n" +
		"<path><![CDATA[news]]></path>\n" +
		"<extension><![CDATA[com_content]]></extension>\n" +
		"<title><![CDATA[News]]></title>\n" +
		"<params><![CDATA[{\"a\":1,\"b\":2}]]></params>\n" +
		"<created_user_id><![CDATA[admin]]></created_user_id>\n" +
		"<access>1</access>\n" +
		"</category>"
	assert.Equal(t, want, fragment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSerialize_AbsentAliasValueSkipsLookup(t *testing.T) {
	s, mock := newMockStore(t)
	ser := NewSerializer(s, zerolog.Nop())

	// No created_user_id, no modified_user_id: only the key-bound access
	// alias runs, and an empty result emits nothing.
	rec := record.New()
	rec.Set("id", int64(9))
	rec.Set("path", "misc")
	rec.Set("extension", "com_content")

	mock.ExpectQuery("SELECT CASE WHEN v.id <= 6 THEN CAST(v.id AS TEXT) ELSE v.title END " +
		"FROM viewlevels v JOIN categories a ON v.id = a.access WHERE a.id = $1").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"access"}))

	fragment, err := ser.Serialize(context.Background(), schema.Category, rec)
	require.NoError(t, err)
	assert.Equal(t, "<category>\n<id>9</id>\n<path><![CDATA[misc]]></path>\n"+
		"<extension><![CDATA[com_content]]></extension>\n</category>", fragment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSerialize_MultiRowAliasWrapsList(t *testing.T) {
	s, mock := newMockStore(t)
	ser := NewSerializer(s, zerolog.Nop())

	rec := record.New()
	rec.Set("id", int64(7))
	rec.Set("username", "alice")

	mock.ExpectQuery("WITH RECURSIVE grouppath(id, path) AS (" +
		"SELECT id, title FROM usergroups WHERE parent_id = 0 " +
		"UNION ALL " +
		"SELECT g.id, gp.path || '/' || g.title FROM usergroups g " +
		"JOIN grouppath gp ON g.parent_id = gp.id) " +
		"SELECT path FROM grouppath p " +
		"JOIN user_usergroup_map m ON p.id = m.group_id WHERE m.user_id = $1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"path"}).
			AddRow("Public").
			AddRow("Public/Staff"))

	fragment, err := ser.Serialize(context.Background(), schema.User, rec)
	require.NoError(t, err)

	want := "<user>\n" +
		"<id>7</id>\n" +
		"<username><![CDATA[alice]]></username>\n" +
		"<grouplist>\n" +
		"<group><![CDATA[Public]]></group>\n" +
		"<group><![CDATA[Public/Staff]]></group>\n" +
		"</grouplist>\n" +
		"</user>"
	assert.Equal(t, want, fragment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSerialize_AliasFailureAbortsFragment(t *testing.T) {
	s, mock := newMockStore(t)
	ser := NewSerializer(s, zerolog.Nop())

	rec := record.New()
	rec.Set("id", int64(3))
	rec.Set("path", "deep")
	rec.Set("extension", "com_content")
	rec.Set("created_user_id", int64(1))

	mock.ExpectQuery("SELECT username FROM users WHERE id = $1").
		WithArgs(int64(1)).
		WillReturnError(assert.AnError)

	fragment, err := ser.Serialize(context.Background(), schema.Category, rec)
	require.Error(t, err)
	assert.Empty(t, fragment)
}
