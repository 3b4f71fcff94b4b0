package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/tarottimer/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tarottimer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func record(date domain.CalendarDate) *domain.DailyRecord {
	ids := make([]int, domain.HoursPerDay)
	for i := range ids {
		ids[i] = i
	}
	return &domain.DailyRecord{
		ID:       "rec-" + date.String(),
		Date:     date,
		CardIDs:  ids,
		Memos:    map[int]string{},
		DeckHash: "abc",
		SavedAt:  time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "daily_2025-10-21", Key(domain.NewDate(2025, 10, 21)))
}

func TestGetMissing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec, err := db.Get(ctx, Key(domain.NewDate(2025, 1, 1)))
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err := db.Exists(ctx, Key(domain.NewDate(2025, 1, 1)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	d := domain.NewDate(2025, 10, 20)

	rec := record(d)
	rec.Memos[9] = "morning coffee"
	rec.Insights = "steady day"
	require.NoError(t, db.Set(ctx, Key(d), rec))

	got, err := db.Get(ctx, Key(d))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, d, got.Date)
	assert.Equal(t, rec.CardIDs, got.CardIDs)
	assert.Equal(t, "morning coffee", got.Memos[9])
	assert.Equal(t, "steady day", got.Insights)
	assert.True(t, rec.SavedAt.Equal(got.SavedAt))

	ok, err := db.Exists(ctx, Key(d))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetReplaces(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	d := domain.NewDate(2025, 10, 20)

	require.NoError(t, db.Set(ctx, Key(d), record(d)))
	replacement := record(d)
	replacement.ID = "second"
	require.NoError(t, db.Set(ctx, Key(d), replacement))

	got, err := db.Get(ctx, Key(d))
	require.NoError(t, err)
	assert.Equal(t, "second", got.ID)
}

func TestPersistenceIsolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	d1 := domain.NewDate(2025, 10, 20)
	d2 := domain.NewDate(2025, 10, 21)

	require.NoError(t, db.Set(ctx, Key(d1), record(d1)))

	got, err := db.Get(ctx, Key(d2))
	require.NoError(t, err)
	assert.Nil(t, got, "writing %s must not be visible under %s", d1, d2)

	r2 := record(d2)
	r2.Insights = "new day"
	require.NoError(t, db.Set(ctx, Key(d2), r2))

	first, err := db.Get(ctx, Key(d1))
	require.NoError(t, err)
	assert.Empty(t, first.Insights, "writing %s must not alter %s", d2, d1)
}

func TestListDates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, d := range []domain.CalendarDate{
		domain.NewDate(2025, 10, 19),
		domain.NewDate(2025, 10, 21),
		domain.NewDate(2025, 10, 20),
	} {
		require.NoError(t, db.Set(ctx, Key(d), record(d)))
	}

	dates, err := db.ListDates(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, "2025-10-21", dates[0].String())
	assert.Equal(t, "2025-10-19", dates[2].String())
}

func TestRecordSource(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.RecordSource(ctx, "builtin:rider-waite", "hash1", 78)
	require.NoError(t, err)
	again, err := db.RecordSource(ctx, "builtin:rider-waite", "hash2", 78)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "hash2", sources[0].DeckHash)
	assert.Equal(t, 78, sources[0].CardCount)
	assert.True(t, sources[0].LastLoaded.Valid)
}
