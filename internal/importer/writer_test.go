package importer

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmlport/internal/record"
	"xmlport/internal/schema"
)

func TestWriter_Write_MergesExistingByNaturalKey(t *testing.T) {
	s, mock := newMockStore(t)
	w := NewWriter(s, zerolog.Nop())

	rec := record.New()
	rec.Set("id", "99") // foreign id from the document, ignored on merge
	rec.Set("title", "Special")
	rec.Set("ordering", "2")

	mock.ExpectQuery("SELECT id FROM viewlevels WHERE title = $1").
		WithArgs("Special").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectExec("UPDATE viewlevels SET title = $1, ordering = $2 WHERE id = $3").
		WithArgs("Special", int64(2), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, created, err := w.Write(context.Background(), schema.Viewlevel, rec, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.False(t, created)
	assert.Equal(t, int64(2), rec.Get("id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Write_InsertsWhenAbsent(t *testing.T) {
	s, mock := newMockStore(t)
	w := NewWriter(s, zerolog.Nop())

	rec := record.New()
	rec.Set("id", "99")
	rec.Set("title", "Editors")
	rec.Set("ordering", "4")

	mock.ExpectQuery("SELECT id FROM viewlevels WHERE title = $1").
		WithArgs("Editors").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	// The document id is dropped; the store assigns one
	mock.ExpectQuery("INSERT INTO viewlevels (title, ordering) VALUES ($1, $2) RETURNING id").
		WithArgs("Editors", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, created, err := w.Write(context.Background(), schema.Viewlevel, rec, false)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.True(t, created)
	assert.Equal(t, int64(7), rec.Get("id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Write_KeepID(t *testing.T) {
	s, mock := newMockStore(t)
	w := NewWriter(s, zerolog.Nop())

	rec := record.New()
	rec.Set("id", "99")
	rec.Set("title", "Editors")

	mock.ExpectQuery("SELECT id FROM viewlevels WHERE title = $1").
		WithArgs("Editors").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO viewlevels (id, title) VALUES ($1, $2) RETURNING id").
		WithArgs(int64(99), "Editors").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))

	id, created, err := w.Write(context.Background(), schema.Viewlevel, rec, true)
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Write_IncompleteNaturalKeyInserts(t *testing.T) {
	s, mock := newMockStore(t)
	w := NewWriter(s, zerolog.Nop())

	// No title: the natural key cannot match, so no lookup runs.
	rec := record.New()
	rec.Set("ordering", "1")

	mock.ExpectQuery("INSERT INTO viewlevels (ordering) VALUES ($1) RETURNING id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))

	id, created, err := w.Write(context.Background(), schema.Viewlevel, rec, false)
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Write_SyncsUserGroups(t *testing.T) {
	s, mock := newMockStore(t)
	w := NewWriter(s, zerolog.Nop())

	rec := record.New()
	rec.Set("username", "alice")
	rec.Set("groups", []int64{2, 9})

	mock.ExpectQuery("SELECT id FROM users WHERE username = $1").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec("UPDATE users SET username = $1 WHERE id = $2").
		WithArgs("alice", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM user_usergroup_map WHERE user_id = $1").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_usergroup_map (user_id, group_id) VALUES ($1, $2)").
		WithArgs(int64(5), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_usergroup_map (user_id, group_id) VALUES ($1, $2)").
		WithArgs(int64(5), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, created, err := w.Write(context.Background(), schema.User, rec, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertValue(t *testing.T) {
	assert.Equal(t, int64(5), convertValue(schema.Viewlevel, "ordering", "5"))
	assert.Nil(t, convertValue(schema.Viewlevel, "ordering", ""))
	assert.Equal(t, true, convertValue(schema.User, "block", "1"))
	assert.Equal(t, false, convertValue(schema.User, "block", "0"))
	assert.Equal(t, true, convertValue(schema.User, "block", int64(1)))
	assert.Nil(t, convertValue(schema.User, "registerDate", schema.NullDate))
	assert.Equal(t, "2020-05-01 10:30:00", convertValue(schema.User, "registerDate", "2020-05-01 10:30:00"))
	// Unknown columns pass through untouched
	assert.Equal(t, "x", convertValue(schema.Viewlevel, "nope", "x"))
}
