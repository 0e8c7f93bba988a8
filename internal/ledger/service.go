package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
)

var (
	// ErrTicketNotFound is returned when a ticket id is unknown.
	ErrTicketNotFound = errors.New("entitlement ticket not found")
	// ErrAlreadyConsumed is returned on a second consume of the same
	// ticket; the first and only successful consume spent it.
	ErrAlreadyConsumed = errors.New("entitlement ticket already consumed")
)

type DBLayer interface {
	InsertTickets(ctx context.Context, tickets []models.EntitlementTicket) error
	OldestUnconsumed(ctx context.Context, requesterID string) (*models.EntitlementTicket, error)
	UnconsumedFor(ctx context.Context, requesterID string) ([]models.EntitlementTicket, error)
	MarkConsumed(ctx context.Context, ticketID string, at time.Time) (int64, error)
	Exists(ctx context.Context, ticketID string) (bool, error)
}

// Service owns all entitlement ticket mutation. Issue and Consume run
// under one mutex so two concurrent submissions can neither mint
// colliding tickets nor double-spend one.
type Service struct {
	DB  DBLayer
	Log *logger.Logger

	mu sync.Mutex
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Log: log}
}

// Issue mints a single ticket and returns its id.
func (s *Service) Issue(ctx context.Context, grant models.TicketGrant) (string, error) {
	ids, err := s.IssueBatch(ctx, grant, 1)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// IssueBatch mints count tickets backed by one donation: a donation
// crossing the minimum by a multiple grants floor(total/min) tickets in
// a single insert rather than one.
func (s *Service) IssueBatch(ctx context.Context, grant models.TicketGrant, count int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("ticket count must be positive, got %d", count)
	}

	now := time.Now()
	tickets := make([]models.EntitlementTicket, 0, count)
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New().String()
		ids = append(ids, id)
		tickets = append(tickets, models.EntitlementTicket{
			ID:          id,
			RequesterID: grant.RequesterID,
			Nickname:    grant.Nickname,
			LiveID:      grant.LiveID,
			Sticker:     grant.Sticker,
			Amount:      grant.Amount,
			Combo:       grant.Combo,
			IssuedAt:    now,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.DB.InsertTickets(ctx, tickets); err != nil {
		return nil, fmt.Errorf("insert tickets: %w", err)
	}

	s.Log.LogLedger("ISSUE", ids[0], fmt.Sprintf("%d ticket(s) for %s", count, grant.RequesterID))
	return ids, nil
}

// PeekUnconsumed returns the requester's oldest live ticket without
// touching it, or nil when they hold none.
func (s *Service) PeekUnconsumed(ctx context.Context, requesterID string) (*models.EntitlementTicket, error) {
	return s.DB.OldestUnconsumed(ctx, requesterID)
}

// TicketsFor lists the requester's live tickets.
func (s *Service) TicketsFor(ctx context.Context, requesterID string) ([]models.EntitlementTicket, error) {
	return s.DB.UnconsumedFor(ctx, requesterID)
}

// Consume spends a ticket exactly once. A second call for the same id
// reports ErrAlreadyConsumed; an unknown id reports ErrTicketNotFound.
func (s *Service) Consume(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	affected, err := s.DB.MarkConsumed(ctx, ticketID, time.Now())
	if err != nil {
		return fmt.Errorf("consume ticket %s: %w", ticketID, err)
	}
	if affected == 0 {
		exists, err := s.DB.Exists(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("check ticket %s: %w", ticketID, err)
		}
		if !exists {
			return ErrTicketNotFound
		}
		return ErrAlreadyConsumed
	}

	s.Log.LogLedger("CONSUME", ticketID, "ticket spent")
	return nil
}
