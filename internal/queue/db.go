package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-songrequest/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// AppendSong allocates the next id (max + 1; gaps from deletions are
// never refilled) and inserts the song plus its history row and backup
// row in one transaction.
func (d *DB) AppendSong(ctx context.Context, song *models.Song, history *models.RequestHistory) (int64, error) {
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var last models.Song
		err := tx.NewSelect().
			Model(&last).
			Order("id DESC").
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			song.ID = 1
		case err != nil:
			return err
		default:
			song.ID = last.ID + 1
		}

		if _, err := tx.NewInsert().Model(song).Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewInsert().Model(history).Exec(ctx); err != nil {
			return err
		}

		backup := models.RequestHistoryBackup{
			LiveID:      history.LiveID,
			RequesterID: history.RequesterID,
			Nickname:    history.Nickname,
			SongTitle:   history.SongTitle,
			Artist:      history.Artist,
			Thumbnail:   history.Thumbnail,
			PlayTime:    history.PlayTime,
			CreatedAt:   history.CreatedAt,
		}
		if _, err := tx.NewInsert().Model(&backup).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return song.ID, nil
}

func (d *DB) ListSongs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	err := d.Bun.NewSelect().
		Model(&songs).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return songs, nil
}

func (d *DB) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	var song models.Song
	err := d.Bun.NewSelect().
		Model(&song).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &song, nil
}

// CurrentSong is the played entry with the most recent played_at.
func (d *DB) CurrentSong(ctx context.Context) (*models.Song, error) {
	var song models.Song
	err := d.Bun.NewSelect().
		Model(&song).
		Where("is_played = ?", true).
		Order("played_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &song, nil
}

// UnplayedSongs lists pending entries in submission order.
func (d *DB) UnplayedSongs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	err := d.Bun.NewSelect().
		Model(&songs).
		Where("is_played = ?", false).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return songs, nil
}

// SetPlayed marks or unmarks one entry as played, stamping played_at.
func (d *DB) SetPlayed(ctx context.Context, id int64, played bool, at time.Time) (int64, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Song)(nil)).
		Set("is_played = ?", played).
		Where("id = ?", id)
	if played {
		q = q.Set("played_at = ?", at)
	} else {
		q = q.Set("played_at = NULL")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteSong removes one entry by id and reports whether it existed.
func (d *DB) DeleteSong(ctx context.Context, id int64) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Song)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LatestUnplayedFor finds the requester's most recently submitted
// pending entry.
func (d *DB) LatestUnplayedFor(ctx context.Context, requesterID string) (*models.Song, error) {
	var song models.Song
	err := d.Bun.NewSelect().
		Model(&song).
		Where("requester_id = ?", requesterID).
		Where("is_played = ?", false).
		Order("added_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &song, nil
}

// RemoveSongWithHistory deletes the song and the history rows recording
// the same request, so a cancelled request stops counting against the
// requester's limits. One transaction; backup rows are left alone.
func (d *DB) RemoveSongWithHistory(ctx context.Context, song *models.Song, liveID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Song)(nil)).
			Where("id = ?", song.ID).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewDelete().
			Model((*models.RequestHistory)(nil)).
			Where("live_id = ?", liveID).
			Where("requester_id = ?", song.RequesterID).
			Where("song_title = ?", song.Title).
			Where("artist = ?", song.Artist).
			Exec(ctx)
		return err
	})
}

// DeleteAllSongs clears the queue; history and tickets are untouched.
func (d *DB) DeleteAllSongs(ctx context.Context) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Song)(nil)).
		Where("1 = 1").
		Exec(ctx)
	return err
}

// DeleteAllHistory clears the live limit-tracking table. The backup
// table keeps its rows.
func (d *DB) DeleteAllHistory(ctx context.Context) error {
	_, err := d.Bun.NewDelete().
		Model((*models.RequestHistory)(nil)).
		Where("1 = 1").
		Exec(ctx)
	return err
}

// CountHistory reports how many request rows the requester has this
// session.
func (d *DB) CountHistory(ctx context.Context, liveID, requesterID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.RequestHistory)(nil)).
		Where("live_id = ?", liveID).
		Where("requester_id = ?", requesterID).
		Count(ctx)
}

// LatestHistory returns the requester's most recent request time, nil
// when they have none.
func (d *DB) LatestHistory(ctx context.Context, liveID, requesterID string) (*time.Time, error) {
	var entry models.RequestHistory
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("live_id = ?", liveID).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry.CreatedAt, nil
}
