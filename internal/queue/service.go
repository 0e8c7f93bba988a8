package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
)

var (
	// ErrSongNotFound is returned when a queue entry is absent.
	ErrSongNotFound = errors.New("song not found in queue")
	// ErrNoPendingSongs is returned by Advance when nothing is left to
	// play; callers treat now-playing as empty.
	ErrNoPendingSongs = errors.New("no pending songs in queue")
	// ErrNothingPlaying is returned by Current before the first advance.
	ErrNothingPlaying = errors.New("nothing is playing")
	// ErrUnknownPolicy rejects advance policies other than sequential
	// and shuffle.
	ErrUnknownPolicy = errors.New("unknown advance policy")
)

type DBLayer interface {
	AppendSong(ctx context.Context, song *models.Song, history *models.RequestHistory) (int64, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
	GetSong(ctx context.Context, id int64) (*models.Song, error)
	CurrentSong(ctx context.Context) (*models.Song, error)
	UnplayedSongs(ctx context.Context) ([]models.Song, error)
	SetPlayed(ctx context.Context, id int64, played bool, at time.Time) (int64, error)
	DeleteSong(ctx context.Context, id int64) (int64, error)
	LatestUnplayedFor(ctx context.Context, requesterID string) (*models.Song, error)
	RemoveSongWithHistory(ctx context.Context, song *models.Song, liveID string) error
	DeleteAllSongs(ctx context.Context) error
	DeleteAllHistory(ctx context.Context) error
	CountHistory(ctx context.Context, liveID, requesterID string) (int, error)
	LatestHistory(ctx context.Context, liveID, requesterID string) (*time.Time, error)
}

// Service owns the song queue. Every mutating operation runs under one
// mutex so concurrent submissions cannot allocate the same id and two
// entries can never become "now playing" at once.
type Service struct {
	DB  DBLayer
	Log *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
	// stopped records that playback advanced past the last pending
	// entry. While set, the derived now-playing slot reads as empty.
	stopped bool
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{
		DB:  db,
		Log: log,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Append inserts a new request at the tail of the queue together with
// its history entry, all-or-nothing.
func (s *Service) Append(ctx context.Context, input models.SongInput) (*models.Song, error) {
	now := time.Now()
	song := models.Song{
		Artist:      input.Artist,
		Title:       input.Title,
		Thumbnail:   input.Thumbnail,
		PlayTime:    input.PlayTime,
		Requester:   input.Requester,
		RequesterID: input.RequesterID,
		IsPaid:      input.IsPaid,
		AddedAt:     now,
	}
	history := models.RequestHistory{
		LiveID:      input.LiveID,
		RequesterID: input.RequesterID,
		Nickname:    input.Requester,
		SongTitle:   input.Title,
		Artist:      input.Artist,
		Thumbnail:   input.Thumbnail,
		PlayTime:    input.PlayTime,
		CreatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.DB.AppendSong(ctx, &song, &history)
	if err != nil {
		return nil, fmt.Errorf("append song: %w", err)
	}

	s.Log.LogQueue("APPEND", id, fmt.Sprintf("%s - %s (by %s)", input.Title, input.Artist, input.Requester))
	return &song, nil
}

// List returns the whole queue in submission order.
func (s *Service) List(ctx context.Context) ([]models.Song, error) {
	return s.DB.ListSongs(ctx)
}

// Current returns the entry now playing, derived as the most recently
// played song.
func (s *Service) Current(ctx context.Context) (*models.Song, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, ErrNothingPlaying
	}

	song, err := s.DB.CurrentSong(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNothingPlaying
	}
	if err != nil {
		return nil, err
	}
	return song, nil
}

// Advance moves playback to the next entry according to the policy.
// Sequential picks the first pending entry submitted after the current
// song; shuffle picks a pending entry uniformly at random. Marking the
// pick as played is what makes it the new now-playing, so the
// "unset-all-then-set-one" invariant holds by construction.
func (s *Service) Advance(ctx context.Context, policy models.AdvancePolicy) (*models.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.DB.UnplayedSongs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending songs: %w", err)
	}
	if len(pending) == 0 {
		s.stopped = true
		return nil, ErrNoPendingSongs
	}

	var next *models.Song
	switch policy {
	case models.AdvanceSequential:
		current, err := s.DB.CurrentSong(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load current song: %w", err)
		}
		for i := range pending {
			if current == nil || pending[i].ID > current.ID {
				next = &pending[i]
				break
			}
		}
		if next == nil {
			s.stopped = true
			return nil, ErrNoPendingSongs
		}
	case models.AdvanceShuffle:
		next = &pending[s.rng.Intn(len(pending))]
	default:
		return nil, ErrUnknownPolicy
	}

	now := time.Now()
	if _, err := s.DB.SetPlayed(ctx, next.ID, true, now); err != nil {
		return nil, fmt.Errorf("mark song played: %w", err)
	}
	next.IsPlayed = true
	next.PlayedAt = &now
	s.stopped = false

	s.Log.LogQueue("ADVANCE", next.ID, fmt.Sprintf("%s - %s", next.Title, next.Artist))
	return next, nil
}

// SetPlayed marks a specific entry as played or pending; the operator
// UI uses this for manual corrections.
func (s *Service) SetPlayed(ctx context.Context, id int64, played bool) (*models.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	affected, err := s.DB.SetPlayed(ctx, id, played, time.Now())
	if err != nil {
		return nil, fmt.Errorf("set played: %w", err)
	}
	if affected == 0 {
		return nil, ErrSongNotFound
	}
	if played {
		// A manual correction puts a song back into the slot.
		s.stopped = false
	}
	return s.DB.GetSong(ctx, id)
}

// RemoveByID drops one entry.
func (s *Service) RemoveByID(ctx context.Context, id int64) (*models.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	song, err := s.DB.GetSong(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.DB.DeleteSong(ctx, id); err != nil {
		return nil, fmt.Errorf("delete song %d: %w", id, err)
	}

	s.Log.LogQueue("REMOVE", id, fmt.Sprintf("%s - %s", song.Title, song.Artist))
	return song, nil
}

// RemoveLatestUnplayedFor cancels the requester's most recent pending
// entry and erases its history rows so the cancelled request never
// counts against future limits. Played entries are never candidates.
// The returned song tells callers whether a paid ticket should be
// refunded.
func (s *Service) RemoveLatestUnplayedFor(ctx context.Context, requesterID, liveID string) (*models.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	song, err := s.DB.LatestUnplayedFor(ctx, requesterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.DB.RemoveSongWithHistory(ctx, song, liveID); err != nil {
		return nil, fmt.Errorf("cancel song %d: %w", song.ID, err)
	}

	s.Log.LogQueue("CANCEL", song.ID, fmt.Sprintf("%s - %s (by %s)", song.Title, song.Artist, song.Requester))
	return song, nil
}

// ClearAll drops every queue entry. History and tickets are untouched.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.DB.DeleteAllSongs(ctx); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	s.Log.Info("QUEUE", "queue cleared")
	return nil
}

// ResetLimits wipes the live request history so every requester starts
// fresh. The backup history is preserved.
func (s *Service) ResetLimits(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.DB.DeleteAllHistory(ctx); err != nil {
		return fmt.Errorf("reset limits: %w", err)
	}
	s.Log.Info("QUEUE", "request limits reset")
	return nil
}

// HistoryFor collects the requester's standing for admission checks.
func (s *Service) HistoryFor(ctx context.Context, liveID, requesterID string) (int, *time.Time, error) {
	count, err := s.DB.CountHistory(ctx, liveID, requesterID)
	if err != nil {
		return 0, nil, err
	}
	last, err := s.DB.LatestHistory(ctx, liveID, requesterID)
	if err != nil {
		return 0, nil, err
	}
	return count, last, nil
}
