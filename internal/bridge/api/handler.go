package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-songrequest/internal/bridge"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
	"ms-songrequest/internal/utils"
)

// CommandPublisher sends commands to the chat worker.
type CommandPublisher interface {
	PublishWorkerCommand(cmd models.WorkerCommand) error
}

type Handler struct {
	Bridge   *bridge.Bridge
	Commands CommandPublisher
	// Timeout bounds the user-list round trip. The bridge itself never
	// times out; the deadline is always the caller's.
	Timeout time.Duration
	Log     *logger.Logger
}

// ListUsers asks the chat worker for the live viewer list and waits for
// the answer to come back through the correlation bridge.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	correlationID, outcome := h.Bridge.Open()

	cmd := models.WorkerCommand{
		Type:          models.WorkerCmdUserList,
		CorrelationID: correlationID,
	}
	if err := h.Commands.PublishWorkerCommand(cmd); err != nil {
		h.Bridge.Abandon(correlationID)
		utils.WriteError(w, http.StatusBadGateway, "Could not reach chat worker", err)
		return
	}

	select {
	case result := <-outcome:
		if result.Err != nil {
			utils.WriteError(w, http.StatusBadGateway, "Chat worker reported a failure", result.Err)
			return
		}

		var users models.UserListResult
		if err := json.Unmarshal(result.Data, &users); err != nil {
			utils.WriteError(w, http.StatusBadGateway, "Invalid worker response", err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Users retrieved", users.Users))

	case <-time.After(h.Timeout):
		h.Bridge.Abandon(correlationID)
		h.Log.LogBridge("timeout", correlationID, "User list round trip exceeded deadline")
		utils.WriteError(w, http.StatusGatewayTimeout, "Chat worker did not answer in time", nil)

	case <-r.Context().Done():
		h.Bridge.Abandon(correlationID)
		h.Log.LogBridge("cancel", correlationID, "Client went away during user list round trip")
	}
}

type resolveRequest struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Resolve settles a pending correlation id with the worker's answer.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Bridge.Resolve(req.ID, req.Data); err != nil {
		if errors.Is(err, bridge.ErrTicketNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Unknown correlation id", err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Could not resolve", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Resolved", nil))
}

type rejectRequest struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Reject settles a pending correlation id with a failure.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Error == "" {
		req.Error = "worker rejected the request"
	}

	if err := h.Bridge.Reject(req.ID, fmt.Errorf("%s", req.Error)); err != nil {
		if errors.Is(err, bridge.ErrTicketNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Unknown correlation id", err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Could not reject", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Rejected", nil))
}
