package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ms-songrequest/internal/auth"
	"ms-songrequest/internal/logger"
)

// callbackTokenTTL bounds how long a signed callback token stays usable.
const callbackTokenTTL = 5 * time.Minute

// CallbackClient posts handshake outcomes back to the request service.
type CallbackClient struct {
	baseURL   string
	jwtSecret string
	subject   string
	client    *http.Client
	log       *logger.Logger
}

func NewCallbackClient(baseURL, jwtSecret, subject string, log *logger.Logger) *CallbackClient {
	return &CallbackClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		jwtSecret: jwtSecret,
		subject:   subject,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

type resolvePayload struct {
	ID   string      `json:"id"`
	Data interface{} `json:"data"`
}

type rejectPayload struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Resolve settles the correlation id with a successful result.
func (c *CallbackClient) Resolve(ctx context.Context, correlationID string, data interface{}) error {
	return c.post(ctx, "/api/v1/handshake/resolve", resolvePayload{ID: correlationID, Data: data})
}

// Reject settles the correlation id with a failure message.
func (c *CallbackClient) Reject(ctx context.Context, correlationID, message string) error {
	return c.post(ctx, "/api/v1/handshake/reject", rejectPayload{ID: correlationID, Error: message})
}

func (c *CallbackClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	token, err := auth.IssueToken(c.jwtSecret, c.subject, callbackTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to sign callback token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback error: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error("CALLBACK", fmt.Sprintf("Failed to close callback response body: %v", cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("callback returned status: %d", resp.StatusCode)
	}
	return nil
}
