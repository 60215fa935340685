package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vytor/cardsched/internal/db"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository/sqlite"
)

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func seedCard(t *testing.T, dbPath string) {
	t.Helper()
	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()

	store := sqlite.NewStore(database.DB)
	ctx := context.Background()
	require.NoError(t, store.Notes().Insert(ctx, models.Note{ID: 10, GUID: "g", Fields: "hola\x1fhello"}))
	require.NoError(t, store.Cards().Insert(ctx, models.Card{
		ID: 20, NoteID: 10, DeckID: models.DefaultDeckID,
		Type: models.CardTypeNew, Queue: models.QueueNew, Due: 1,
	}))
}

func TestCLI_EmptyCollection(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	path := filepath.Join(t.TempDir(), "collection.db")

	out, err := run(t, path, "counts")
	require.NoError(t, err)
	assert.Equal(t, "new 0  learning 0  review 0\n", out)

	out, err = run(t, path, "next")
	require.NoError(t, err)
	assert.Contains(t, out, "finished")

	out, err = run(t, path, "decks")
	require.NoError(t, err)
	assert.Contains(t, out, "Default")
}

func TestCLI_StudyFlow(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	path := filepath.Join(t.TempDir(), "collection.db")
	seedCard(t, path)

	out, err := run(t, path, "next")
	require.NoError(t, err)
	assert.Contains(t, out, "card 20 (new)")
	assert.Contains(t, out, "hola")
	assert.Contains(t, out, "[4] 4d")

	_, err = run(t, path, "answer", "99", "3")
	assert.Error(t, err, "only the next card can be answered")

	out, err = run(t, path, "answer", "20", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "card 20 is now learning")

	out, err = run(t, path, "suspend", "20,21")
	require.NoError(t, err)
	assert.Contains(t, out, "changed 1 cards")
	assert.Contains(t, out, "skipped 21: not found")

	out, err = run(t, path, "unsuspend", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "changed 1 cards")
}

func TestCLI_Errors(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	path := filepath.Join(t.TempDir(), "collection.db")

	_, err := run(t, path, "set-version", "3")
	assert.Error(t, err)

	out, err := run(t, path, "set-version", "1")
	require.NoError(t, err)
	assert.Equal(t, "scheduler version is now 1\n", out)

	_, err = run(t, path, "rebuild", "abc")
	assert.ErrorContains(t, err, "invalid deck id")

	_, err = run(t, path, "rebuild", "1")
	assert.Error(t, err, "the default deck is not filtered")

	_, err = run(t, path, "unbury", "--scope", "everything")
	assert.Error(t, err)

	_, err = run(t, path, "--log-level", "LOUD", "counts")
	assert.ErrorContains(t, err, "invalid --log-level")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "999", formatCount(999))
	assert.Equal(t, "1000+", formatCount(1000))

	assert.Equal(t, "30s", formatInterval(30))
	assert.Equal(t, "10m", formatInterval(600))
	assert.Equal(t, "1.5h", formatInterval(5400))
	assert.Equal(t, "4d", formatInterval(4*86400))
	assert.Equal(t, "2.0mo", formatInterval(60*86400))
	assert.Equal(t, "1.0y", formatInterval(365*86400))

	ids, err := parseIDs([]string{"1,2", "3"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
	_, err = parseIDs([]string{"x"})
	assert.Error(t, err)
}
