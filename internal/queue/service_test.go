package queue_test

import (
	"context"
	"testing"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
	"ms-songrequest/internal/queue"

	"github.com/stretchr/testify/assert"
)

func setupService(t *testing.T) (*queue.Service, func()) {
	db, bunDB := setupTestDB(t)
	svc := queue.NewService(db, logger.NewLogger())
	return svc, func() { bunDB.Close() }
}

func request(requesterID, title string, paid bool) models.SongInput {
	return models.SongInput{
		Artist:      "Artist",
		Title:       title,
		Requester:   "Viewer",
		RequesterID: requesterID,
		LiveID:      "live-1",
		IsPaid:      paid,
	}
}

func TestAppend_AssignsSequentialIDs(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	first, err := svc.Append(ctx, request("viewer-1", "Song A", false))
	assert.NoError(t, err)
	second, err := svc.Append(ctx, request("viewer-2", "Song B", true))
	assert.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.True(t, second.IsPaid)
}

func TestCurrent_BeforeFirstAdvance(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, queue.ErrNothingPlaying)
}

func TestAdvance_SequentialWalksSubmissionOrder(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	for _, title := range []string{"Song A", "Song B", "Song C"} {
		_, err := svc.Append(ctx, request("viewer-1", title, false))
		assert.NoError(t, err)
	}

	first, err := svc.Advance(ctx, models.AdvanceSequential)
	assert.NoError(t, err)
	assert.Equal(t, "Song A", first.Title)
	assert.True(t, first.IsPlayed)

	second, err := svc.Advance(ctx, models.AdvanceSequential)
	assert.NoError(t, err)
	assert.Equal(t, "Song B", second.Title)

	current, err := svc.Current(ctx)
	assert.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
}

func TestAdvance_ExhaustedQueueEmptiesNowPlaying(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	_, err := svc.Append(ctx, request("viewer-1", "Song A", false))
	assert.NoError(t, err)

	_, err = svc.Advance(ctx, models.AdvanceSequential)
	assert.NoError(t, err)

	// Nothing submitted after the current song: the queue is exhausted,
	// it never wraps back around.
	_, err = svc.Advance(ctx, models.AdvanceSequential)
	assert.ErrorIs(t, err, queue.ErrNoPendingSongs)

	// The finished song must not linger as now-playing.
	_, err = svc.Current(ctx)
	assert.ErrorIs(t, err, queue.ErrNothingPlaying)

	// A fresh submission and advance fills the slot again.
	_, err = svc.Append(ctx, request("viewer-1", "Song B", false))
	assert.NoError(t, err)
	next, err := svc.Advance(ctx, models.AdvanceSequential)
	assert.NoError(t, err)
	current, err := svc.Current(ctx)
	assert.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)
}

func TestSetPlayed_ManualCorrectionRefillsNowPlaying(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	song, err := svc.Append(ctx, request("viewer-1", "Song A", false))
	assert.NoError(t, err)

	_, err = svc.Advance(ctx, models.AdvanceSequential)
	assert.NoError(t, err)
	_, err = svc.Advance(ctx, models.AdvanceSequential)
	assert.ErrorIs(t, err, queue.ErrNoPendingSongs)

	_, err = svc.SetPlayed(ctx, song.ID, true)
	assert.NoError(t, err)

	current, err := svc.Current(ctx)
	assert.NoError(t, err)
	assert.Equal(t, song.ID, current.ID)
}

func TestAdvance_EmptyQueue(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	_, err := svc.Advance(context.Background(), models.AdvanceSequential)
	assert.ErrorIs(t, err, queue.ErrNoPendingSongs)
}

func TestAdvance_ShufflePicksAPendingSong(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	for _, title := range []string{"Song A", "Song B", "Song C"} {
		_, err := svc.Append(ctx, request("viewer-1", title, false))
		assert.NoError(t, err)
	}

	seen := map[int64]bool{}
	for i := 0; i < 3; i++ {
		song, err := svc.Advance(ctx, models.AdvanceShuffle)
		assert.NoError(t, err)
		assert.False(t, seen[song.ID], "shuffle advanced the same song twice")
		seen[song.ID] = true
	}

	_, err := svc.Advance(ctx, models.AdvanceShuffle)
	assert.ErrorIs(t, err, queue.ErrNoPendingSongs)
}

func TestAdvance_UnknownPolicy(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	_, err := svc.Append(ctx, request("viewer-1", "Song A", false))
	assert.NoError(t, err)

	_, err = svc.Advance(ctx, models.AdvancePolicy("round-robin"))
	assert.ErrorIs(t, err, queue.ErrUnknownPolicy)
}

func TestSetPlayed_UnknownSong(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	_, err := svc.SetPlayed(context.Background(), 42, true)
	assert.ErrorIs(t, err, queue.ErrSongNotFound)
}

func TestRemoveLatestUnplayedFor_ReturnsPaidFlagForRefund(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	_, err := svc.Append(ctx, request("viewer-1", "Song A", false))
	assert.NoError(t, err)
	_, err = svc.Append(ctx, request("viewer-1", "Song B", true))
	assert.NoError(t, err)

	song, err := svc.RemoveLatestUnplayedFor(ctx, "viewer-1", "live-1")
	assert.NoError(t, err)
	assert.Equal(t, "Song B", song.Title)
	assert.True(t, song.IsPaid)

	// The cancelled request no longer counts against limits.
	count, _, err := svc.HistoryFor(ctx, "live-1", "viewer-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRemoveLatestUnplayedFor_NothingPending(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	_, err := svc.RemoveLatestUnplayedFor(context.Background(), "viewer-1", "live-1")
	assert.ErrorIs(t, err, queue.ErrSongNotFound)
}

func TestClearAll_KeepsHistory(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	_, err := svc.Append(ctx, request("viewer-1", "Song A", false))
	assert.NoError(t, err)

	assert.NoError(t, svc.ClearAll(ctx))

	songs, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, songs)

	count, _, err := svc.HistoryFor(ctx, "live-1", "viewer-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResetLimits_ClearsHistory(t *testing.T) {
	svc, teardown := setupService(t)
	defer teardown()

	ctx := context.Background()
	_, err := svc.Append(ctx, request("viewer-1", "Song A", false))
	assert.NoError(t, err)

	assert.NoError(t, svc.ResetLimits(ctx))

	count, last, err := svc.HistoryFor(ctx, "live-1", "viewer-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Nil(t, last)
}
