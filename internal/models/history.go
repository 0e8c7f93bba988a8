package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RequestHistory rows are append-only and exist solely so the admission
// evaluator can apply count/time limits. Cancelling a song deletes its
// matching rows so the cancelled request does not count against the
// requester; the backup table keeps everything.
type RequestHistory struct {
	bun.BaseModel `bun:"table:request_history"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	LiveID      string    `bun:"live_id,notnull" json:"liveId"`
	RequesterID string    `bun:"requester_id,notnull" json:"requesterId"`
	Nickname    string    `bun:"nickname" json:"nickname"`
	SongTitle   string    `bun:"song_title" json:"songTitle"`
	Artist      string    `bun:"artist" json:"artist"`
	Thumbnail   string    `bun:"thumbnail" json:"thumbnail"`
	PlayTime    int       `bun:"play_time" json:"playTime"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// RequestHistoryBackup duplicates every history row and survives limit
// resets and cancellations.
type RequestHistoryBackup struct {
	bun.BaseModel `bun:"table:request_history_backup"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	LiveID      string    `bun:"live_id,notnull" json:"liveId"`
	RequesterID string    `bun:"requester_id,notnull" json:"requesterId"`
	Nickname    string    `bun:"nickname" json:"nickname"`
	SongTitle   string    `bun:"song_title" json:"songTitle"`
	Artist      string    `bun:"artist" json:"artist"`
	Thumbnail   string    `bun:"thumbnail" json:"thumbnail"`
	PlayTime    int       `bun:"play_time" json:"playTime"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
