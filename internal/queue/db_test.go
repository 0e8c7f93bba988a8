package queue_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-songrequest/internal/models"
	"ms-songrequest/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*queue.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Song)(nil),
		(*models.RequestHistory)(nil),
		(*models.RequestHistoryBackup)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	return &queue.DB{Bun: bunDB}, bunDB
}

func appendSong(t *testing.T, db *queue.DB, requesterID, title string) *models.Song {
	now := time.Now()
	song := &models.Song{
		Artist:      "Artist",
		Title:       title,
		Requester:   "Viewer",
		RequesterID: requesterID,
		AddedAt:     now,
	}
	history := &models.RequestHistory{
		LiveID:      "live-1",
		RequesterID: requesterID,
		Nickname:    "Viewer",
		SongTitle:   title,
		Artist:      "Artist",
		CreatedAt:   now,
	}
	_, err := db.AppendSong(context.Background(), song, history)
	assert.NoError(t, err)
	return song
}

func TestAppendSong_AllocatesMonotonicIDs(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	first := appendSong(t, db, "viewer-1", "Song A")
	second := appendSong(t, db, "viewer-2", "Song B")

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	// Deleting the tail must not let its id be reused.
	_, err := db.DeleteSong(context.Background(), second.ID)
	assert.NoError(t, err)

	third := appendSong(t, db, "viewer-3", "Song C")
	assert.Equal(t, int64(3), third.ID)
}

func TestAppendSong_WritesHistoryAndBackup(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	appendSong(t, db, "viewer-1", "Song A")

	ctx := context.Background()
	count, err := db.CountHistory(ctx, "live-1", "viewer-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	backups, err := bunDB.NewSelect().Model((*models.RequestHistoryBackup)(nil)).Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, backups)
}

func TestCurrentSong_MostRecentlyPlayed(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	first := appendSong(t, db, "viewer-1", "Song A")
	second := appendSong(t, db, "viewer-2", "Song B")

	_, err := db.CurrentSong(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = db.SetPlayed(ctx, first.ID, true, time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	_, err = db.SetPlayed(ctx, second.ID, true, time.Now())
	assert.NoError(t, err)

	current, err := db.CurrentSong(ctx)
	assert.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
}

func TestLatestUnplayedFor_SkipsPlayedEntries(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	first := appendSong(t, db, "viewer-1", "Song A")
	second := appendSong(t, db, "viewer-1", "Song B")

	_, err := db.SetPlayed(ctx, second.ID, true, time.Now())
	assert.NoError(t, err)

	song, err := db.LatestUnplayedFor(ctx, "viewer-1")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, song.ID)

	_, err = db.SetPlayed(ctx, first.ID, true, time.Now())
	assert.NoError(t, err)

	_, err = db.LatestUnplayedFor(ctx, "viewer-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRemoveSongWithHistory_ErasesLimitRowsButKeepsBackup(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	song := appendSong(t, db, "viewer-1", "Song A")

	err := db.RemoveSongWithHistory(ctx, song, "live-1")
	assert.NoError(t, err)

	count, err := db.CountHistory(ctx, "live-1", "viewer-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	backups, err := bunDB.NewSelect().Model((*models.RequestHistoryBackup)(nil)).Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, backups)

	songs, err := db.ListSongs(ctx)
	assert.NoError(t, err)
	assert.Empty(t, songs)
}

func TestDeleteAllHistory_PreservesBackup(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	appendSong(t, db, "viewer-1", "Song A")
	appendSong(t, db, "viewer-2", "Song B")

	err := db.DeleteAllHistory(ctx)
	assert.NoError(t, err)

	count, err := db.CountHistory(ctx, "live-1", "viewer-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	backups, err := bunDB.NewSelect().Model((*models.RequestHistoryBackup)(nil)).Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, backups)
}

func TestLatestHistory(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	last, err := db.LatestHistory(ctx, "live-1", "viewer-1")
	assert.NoError(t, err)
	assert.Nil(t, last)

	appendSong(t, db, "viewer-1", "Song A")

	last, err = db.LatestHistory(ctx, "live-1", "viewer-1")
	assert.NoError(t, err)
	assert.NotNil(t, last)
	assert.WithinDuration(t, time.Now(), *last, 5*time.Second)
}
