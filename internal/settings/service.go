package settings

import (
	"context"
	"fmt"
	"sync"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
)

type DBLayer interface {
	Get(ctx context.Context) (*models.Settings, error)
	Put(ctx context.Context, s *models.Settings) error
}

// Service keeps the current settings cached and fans changes out to
// registered listeners. Listeners replace the polling reload the worker
// would otherwise have to run: every Update pushes the fresh value.
type Service struct {
	DB  DBLayer
	Log *logger.Logger

	mu        sync.RWMutex
	cached    *models.Settings
	listeners []func(models.Settings)
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Log: log}
}

// Current returns the cached settings, loading them on first use.
func (s *Service) Current(ctx context.Context) (models.Settings, error) {
	s.mu.RLock()
	if s.cached != nil {
		cached := *s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()
	return s.Reload(ctx)
}

// Reload refetches the settings row and refreshes the cache.
func (s *Service) Reload(ctx context.Context) (models.Settings, error) {
	loaded, err := s.DB.Get(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	s.cached = loaded
	s.mu.Unlock()
	return *loaded, nil
}

// Update validates and persists new settings, then notifies listeners.
func (s *Service) Update(ctx context.Context, input models.SettingsInput) (models.Settings, error) {
	if err := input.Validate(); err != nil {
		return models.Settings{}, err
	}

	current, err := s.DB.Get(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	input.Apply(current)
	if err := s.DB.Put(ctx, current); err != nil {
		return models.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	s.mu.Lock()
	s.cached = current
	listeners := make([]func(models.Settings), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.Log.Info("SETTINGS", "settings updated, notifying listeners")
	for _, notify := range listeners {
		notify(*current)
	}
	return *current, nil
}

// OnChange registers a listener invoked after every successful Update.
func (s *Service) OnChange(listener func(models.Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}
