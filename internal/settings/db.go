package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-songrequest/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// Get reads the singleton settings row, seeding the defaults on first
// access.
func (d *DB) Get(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	err := d.Bun.NewSelect().
		Model(&s).
		Where("id = ?", models.SettingsID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		seeded := models.DefaultSettings()
		if _, err := d.Bun.NewInsert().Model(&seeded).Exec(ctx); err != nil {
			return nil, fmt.Errorf("seed default settings: %w", err)
		}
		return &seeded, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Put upserts the singleton settings row.
func (d *DB) Put(ctx context.Context, s *models.Settings) error {
	s.ID = models.SettingsID
	_, err := d.Bun.NewInsert().
		Model(s).
		On("CONFLICT (id) DO UPDATE").
		Set("allow_free = EXCLUDED.allow_free").
		Set("limit_by_count = EXCLUDED.limit_by_count").
		Set("max_request_count = EXCLUDED.max_request_count").
		Set("limit_by_time = EXCLUDED.limit_by_time").
		Set("request_time_limit = EXCLUDED.request_time_limit").
		Set("allow_paid = EXCLUDED.allow_paid").
		Set("paid_type = EXCLUDED.paid_type").
		Set("sticker_id = EXCLUDED.sticker_id").
		Set("min_amount = EXCLUDED.min_amount").
		Set("allow_distribution = EXCLUDED.allow_distribution").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
