package ledger

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

func (d *DB) InsertTickets(ctx context.Context, tickets []models.EntitlementTicket) error {
	_, err := d.Bun.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

// OldestUnconsumed returns the requester's oldest unconsumed ticket, or
// nil when they hold none.
func (d *DB) OldestUnconsumed(ctx context.Context, requesterID string) (*models.EntitlementTicket, error) {
	var ticket models.EntitlementTicket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("requester_id = ?", requesterID).
		Where("consumed = ?", false).
		Order("issued_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UnconsumedFor lists every live ticket the requester holds.
func (d *DB) UnconsumedFor(ctx context.Context, requesterID string) ([]models.EntitlementTicket, error) {
	var tickets []models.EntitlementTicket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("requester_id = ?", requesterID).
		Where("consumed = ?", false).
		Order("issued_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// MarkConsumed flips a ticket to consumed and reports how many rows
// changed. The WHERE consumed = false guard is what makes Consume
// idempotent-safe: a second call matches zero rows.
func (d *DB) MarkConsumed(ctx context.Context, ticketID string, at time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.EntitlementTicket)(nil)).
		Set("consumed = ?", true).
		Set("consumed_at = ?", at).
		Where("id = ?", ticketID).
		Where("consumed = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Exists reports whether a ticket id is known at all, consumed or not.
func (d *DB) Exists(ctx context.Context, ticketID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.EntitlementTicket)(nil)).
		Where("id = ?", ticketID).
		Exists(ctx)
}
