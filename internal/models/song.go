package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Song is one queue entry. IDs are monotonic and never reused; deleting
// an entry leaves a gap. The "now playing" entry is derived: the played
// song with the most recent PlayedAt.
type Song struct {
	bun.BaseModel `bun:"table:songs"`

	ID          int64      `bun:"id,pk" json:"id"`
	Artist      string     `bun:"artist,notnull" json:"artist"`
	Title       string     `bun:"title,notnull" json:"title"`
	Thumbnail   string     `bun:"thumbnail" json:"thumbnail"`
	PlayTime    int        `bun:"play_time" json:"playTime"` // seconds
	Requester   string     `bun:"requester,notnull" json:"requester"`
	RequesterID string     `bun:"requester_id,notnull" json:"requesterId"`
	IsPaid      bool       `bun:"is_paid" json:"isPaid"`
	IsPlayed    bool       `bun:"is_played" json:"isPlayed"`
	AddedAt     time.Time  `bun:"added_at,notnull,default:current_timestamp" json:"addedAt"`
	PlayedAt    *time.Time `bun:"played_at" json:"playedAt"`
}

// SongInput is the POST /songs request body, mirroring what the command
// interpreter submits after a successful catalog lookup.
type SongInput struct {
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail"`
	PlayTime    int    `json:"playTime"`
	Requester   string `json:"requester"`
	RequesterID string `json:"requesterId"`
	LiveID      string `json:"liveId"`
	IsPaid      bool   `json:"isPaid"`
}

// AdvancePolicy picks how Advance chooses the next song.
type AdvancePolicy string

const (
	AdvanceSequential AdvancePolicy = "sequential"
	AdvanceShuffle    AdvancePolicy = "shuffle"
)

// CatalogSong is the catalog lookup result.
type CatalogSong struct {
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	PlayTime  int    `json:"playTime"`
	Thumbnail string `json:"thumbnail"`
}
