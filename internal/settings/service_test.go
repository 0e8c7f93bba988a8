package settings_test

import (
	"context"
	"database/sql"
	"testing"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
	"ms-songrequest/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupService(t *testing.T) (*settings.Service, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	if _, err := db.NewCreateTable().Model((*models.Settings)(nil)).Exec(context.Background()); err != nil {
		t.Fatalf("create settings table: %v", err)
	}
	return settings.NewService(&settings.DB{Bun: db}, logger.NewLogger()), db
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestCurrent_SeedsDefaultsOnFirstRead(t *testing.T) {
	svc, _ := setupService(t)

	got, err := svc.Current(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, models.SettingsID, got.ID)
	assert.True(t, got.AllowFree)
	assert.False(t, got.AllowPaid)

	// The seeded row survives a cache-bypassing read.
	reloaded, err := svc.Reload(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, models.SettingsID, reloaded.ID)
	assert.True(t, reloaded.AllowFree)
}

func TestUpdate_PersistsAndReturnsNewPolicy(t *testing.T) {
	svc, _ := setupService(t)

	input := models.SettingsInput{
		AllowFree:       true,
		LimitByCount:    true,
		MaxRequestCount: intPtr(3),
		AllowPaid:       true,
		PaidType:        models.PaidTypeSticker,
		StickerID:       strPtr("sticker-7"),
	}
	got, err := svc.Update(context.Background(), input)
	assert.NoError(t, err)
	assert.True(t, got.LimitByCount)
	assert.Equal(t, 3, got.MaxCount())
	assert.Equal(t, "sticker-7", *got.StickerID)

	// Reload bypasses the cache and reads the stored row.
	reloaded, err := svc.Reload(context.Background())
	assert.NoError(t, err)
	assert.True(t, reloaded.AllowPaid)
	assert.Equal(t, models.PaidTypeSticker, reloaded.PaidType)
}

func TestUpdate_RejectsNegativeLimits(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Update(context.Background(), models.SettingsInput{
		LimitByCount:    true,
		MaxRequestCount: intPtr(-1),
	})
	assert.ErrorIs(t, err, models.ErrNegativeLimit)

	_, err = svc.Update(context.Background(), models.SettingsInput{
		LimitByTime:      true,
		RequestTimeLimit: intPtr(-60),
	})
	assert.ErrorIs(t, err, models.ErrNegativeLimit)
}

func TestUpdate_RejectsUnknownPaidType(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Update(context.Background(), models.SettingsInput{
		AllowPaid: true,
		PaidType:  "subscription",
	})
	assert.ErrorIs(t, err, models.ErrUnknownPaidType)
}

func TestUpdate_NotifiesListeners(t *testing.T) {
	svc, _ := setupService(t)

	var notified []models.Settings
	svc.OnChange(func(s models.Settings) { notified = append(notified, s) })

	// A failed update must not notify anyone.
	_, err := svc.Update(context.Background(), models.SettingsInput{
		LimitByCount:    true,
		MaxRequestCount: intPtr(-1),
	})
	assert.Error(t, err)
	assert.Empty(t, notified)

	_, err = svc.Update(context.Background(), models.SettingsInput{AllowFree: false})
	assert.NoError(t, err)
	assert.Len(t, notified, 1)
	assert.False(t, notified[0].AllowFree)
}

func TestCurrent_ServesFromCacheAfterUpdate(t *testing.T) {
	svc, db := setupService(t)

	_, err := svc.Update(context.Background(), models.SettingsInput{AllowFree: true, LimitByTime: true, RequestTimeLimit: intPtr(120)})
	assert.NoError(t, err)

	// Mutating the row behind the service's back is not visible until
	// the next Reload.
	_, err = db.NewUpdate().
		Model((*models.Settings)(nil)).
		Set("allow_free = ?", false).
		Where("id = ?", models.SettingsID).
		Exec(context.Background())
	assert.NoError(t, err)

	cached, err := svc.Current(context.Background())
	assert.NoError(t, err)
	assert.True(t, cached.AllowFree)

	reloaded, err := svc.Reload(context.Background())
	assert.NoError(t, err)
	assert.False(t, reloaded.AllowFree)
}
