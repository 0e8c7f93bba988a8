package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-songrequest/internal/ledger"
	ledgerapi "ms-songrequest/internal/ledger/api"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

type capturingPublisher struct {
	commands []models.WorkerCommand
}

func (p *capturingPublisher) PublishWorkerCommand(cmd models.WorkerCommand) error {
	p.commands = append(p.commands, cmd)
	return nil
}

func setupGrantHandler(t *testing.T) (*ledgerapi.Handler, *capturingPublisher, *ledger.Service) {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	if _, err := bunDB.NewCreateTable().Model((*models.EntitlementTicket)(nil)).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to create entitlement ticket table: %v", err)
	}

	publisher := &capturingPublisher{}
	svc := ledger.NewService(&ledger.DB{Bun: bunDB}, logger.NewLogger())
	h := &ledgerapi.Handler{Ledger: svc, Commands: publisher, Log: logger.NewLogger()}
	return h, publisher, svc
}

func grantBody(t *testing.T, userCount int) *bytes.Buffer {
	t.Helper()

	users := make([]models.LiveUser, 0, userCount)
	for n := 1; n <= userCount; n++ {
		users = append(users, models.LiveUser{
			ID:       fmt.Sprintf("viewer-%d", n),
			Nickname: fmt.Sprintf("Viewer %d", n),
		})
	}
	body, err := json.Marshal(map[string]interface{}{
		"users":  users,
		"liveId": "live-1",
	})
	assert.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestGrantPaid_TicketAndCommandPerUser(t *testing.T) {
	h, publisher, svc := setupGrantHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/users/paid", grantBody(t, 3))
	rec := httptest.NewRecorder()
	h.GrantPaid(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data struct {
			TicketIDs []string `json:"ticketIds"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.TicketIDs, 3)

	assert.Len(t, publisher.commands, 3)
	for n, cmd := range publisher.commands {
		assert.Equal(t, models.WorkerCmdInsertPaid, cmd.Type)
		assert.Equal(t, fmt.Sprintf("viewer-%d", n+1), cmd.User.ID)
		assert.True(t, cmd.SendMessage, "small selections get a chat shout-out")
	}

	// Every selected viewer holds an unconsumed manual-grant ticket.
	for n := 1; n <= 3; n++ {
		ticket, err := svc.PeekUnconsumed(context.Background(), fmt.Sprintf("viewer-%d", n))
		assert.NoError(t, err)
		if assert.NotNil(t, ticket) {
			assert.Equal(t, models.ManualGrantSticker, ticket.Sticker)
		}
	}
}

func TestGrantPaid_LargeSelectionStaysSilent(t *testing.T) {
	h, publisher, _ := setupGrantHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/users/paid", grantBody(t, 4))
	rec := httptest.NewRecorder()
	h.GrantPaid(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, publisher.commands, 4)
	for _, cmd := range publisher.commands {
		assert.False(t, cmd.SendMessage, "more than three grants must not flood chat")
	}
}

func TestGrantPaid_EmptySelectionRejected(t *testing.T) {
	h, publisher, _ := setupGrantHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/users/paid", grantBody(t, 0))
	rec := httptest.NewRecorder()
	h.GrantPaid(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, publisher.commands)
}

func TestGrantPaid_UserWithoutIDRejected(t *testing.T) {
	h, publisher, _ := setupGrantHandler(t)

	body, err := json.Marshal(map[string]interface{}{
		"users":  []models.LiveUser{{Nickname: "No ID"}},
		"liveId": "live-1",
	})
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/users/paid", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.GrantPaid(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, publisher.commands)
}
