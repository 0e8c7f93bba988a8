package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ms-songrequest/internal/config"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
)

// LiveClient is the port to the live streaming platform. The worker only
// needs to read the room and talk back into it; everything platform
// specific stays behind this interface.
type LiveClient interface {
	// Run blocks, delivering chat messages and donations until ctx is
	// cancelled.
	Run(ctx context.Context, onChat func(models.ChatMessage), onDonation func(models.DonationEvent)) error
	// Users lists the viewers currently in the live session.
	Users(ctx context.Context) ([]models.LiveUser, error)
	// SendMessage posts a message into the live chat.
	SendMessage(ctx context.Context, text string) error
}

// RESTLiveClient talks to a live-platform adapter over plain HTTP,
// polling for new chat and donation events.
type RESTLiveClient struct {
	baseURL      string
	liveID       string
	pollInterval time.Duration
	client       *http.Client
	log          *logger.Logger
}

func NewRESTLiveClient(cfg config.WorkerConfig, log *logger.Logger) *RESTLiveClient {
	return &RESTLiveClient{
		baseURL:      strings.TrimRight(cfg.LiveAPIURL, "/"),
		liveID:       cfg.LiveID,
		pollInterval: cfg.PollInterval,
		client:       &http.Client{Timeout: 10 * time.Second},
		log:          log,
	}
}

// pollBatch is one page of events from the adapter. Cursor is opaque and
// echoed back on the next poll.
type pollBatch struct {
	Cursor    string                 `json:"cursor"`
	Messages  []models.ChatMessage   `json:"messages"`
	Donations []models.DonationEvent `json:"donations"`
}

func (c *RESTLiveClient) Run(ctx context.Context, onChat func(models.ChatMessage), onDonation func(models.DonationEvent)) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			batch, err := c.poll(ctx, cursor)
			if err != nil {
				c.log.Warn("LIVE", fmt.Sprintf("Poll failed: %v", err))
				continue
			}
			cursor = batch.Cursor
			for _, msg := range batch.Messages {
				onChat(msg)
			}
			for _, d := range batch.Donations {
				onDonation(d)
			}
		}
	}
}

func (c *RESTLiveClient) poll(ctx context.Context, cursor string) (*pollBatch, error) {
	u := fmt.Sprintf("%s/v1/lives/%s/events?cursor=%s", c.baseURL, url.PathEscape(c.liveID), url.QueryEscape(cursor))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("live adapter error: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error("LIVE", fmt.Sprintf("Failed to close poll response body: %v", cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("live adapter returned status: %d", resp.StatusCode)
	}

	var batch pollBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}
	return &batch, nil
}

func (c *RESTLiveClient) Users(ctx context.Context) ([]models.LiveUser, error) {
	u := fmt.Sprintf("%s/v1/lives/%s/users", c.baseURL, url.PathEscape(c.liveID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("live adapter error: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error("LIVE", fmt.Sprintf("Failed to close users response body: %v", cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("live adapter returned status: %d", resp.StatusCode)
	}

	var users []models.LiveUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode users response: %w", err)
	}
	return users, nil
}

func (c *RESTLiveClient) SendMessage(ctx context.Context, text string) error {
	u := fmt.Sprintf("%s/v1/lives/%s/chat", c.baseURL, url.PathEscape(c.liveID))
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("live adapter error: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error("LIVE", fmt.Sprintf("Failed to close chat response body: %v", cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("live adapter returned status: %d", resp.StatusCode)
	}
	return nil
}
