package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-songrequest/internal/donation"
	"ms-songrequest/internal/ledger"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
	"ms-songrequest/internal/utils"

	"github.com/go-chi/chi/v5"
)

// CommandPublisher fans operator actions out to the chat worker.
type CommandPublisher interface {
	PublishWorkerCommand(cmd models.WorkerCommand) error
}

type Handler struct {
	Ledger    *ledger.Service
	Donations *donation.Router
	Commands  CommandPublisher
	Log       *logger.Logger
}

// ListTickets returns every ticket, consumed or not, for one requester.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	requesterID := r.URL.Query().Get("requesterId")
	if requesterID == "" {
		utils.WriteError(w, http.StatusBadRequest, "requesterId is required", nil)
		return
	}

	tickets, err := h.Ledger.TicketsFor(r.Context(), requesterID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not list tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tickets retrieved", tickets))
}

// IssueTickets feeds a donation-shaped body through the same router the
// live donation stream uses, so manual issues follow identical rules.
func (h *Handler) IssueTickets(w http.ResponseWriter, r *http.Request) {
	var event models.DonationEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if event.DonorID == "" {
		utils.WriteError(w, http.StatusBadRequest, "donorId is required", nil)
		return
	}

	h.Donations.OnDonation(r.Context(), event)
	utils.WriteJSON(w, http.StatusAccepted, utils.SuccessResponse("Donation routed", nil))
}

// ConsumeTicket marks a ticket consumed. Consuming twice is an error.
func (h *Handler) ConsumeTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")

	if err := h.Ledger.Consume(r.Context(), ticketID); err != nil {
		switch {
		case errors.Is(err, ledger.ErrTicketNotFound):
			utils.WriteError(w, http.StatusNotFound, "Ticket not found", err)
		case errors.Is(err, ledger.ErrAlreadyConsumed):
			utils.WriteError(w, http.StatusConflict, "Ticket already consumed", err)
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Could not consume ticket", err)
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket consumed", nil))
}

type grantPaidRequest struct {
	Users  []models.LiveUser `json:"users"`
	LiveID string            `json:"liveId"`
}

// announceThreshold caps how many grants still get a chat shout-out.
// Larger selections stay silent so the announcement loop cannot flood
// the room.
const announceThreshold = 3

// GrantPaid manually issues an entitlement ticket to each selected
// viewer and fans one insert-paid command per viewer out to the worker.
func (h *Handler) GrantPaid(w http.ResponseWriter, r *http.Request) {
	var req grantPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Users) == 0 {
		utils.WriteError(w, http.StatusBadRequest, "users is required", nil)
		return
	}
	for _, user := range req.Users {
		if user.ID == "" {
			utils.WriteError(w, http.StatusBadRequest, "every user needs an id", nil)
			return
		}
	}

	announce := len(req.Users) <= announceThreshold
	ticketIDs := make([]string, 0, len(req.Users))
	for i := range req.Users {
		user := req.Users[i]
		ticketID, err := h.grant(r.Context(), req.LiveID, user)
		if err != nil {
			utils.WriteError(w, http.StatusInternalServerError,
				fmt.Sprintf("Could not grant ticket to %s", user.ID), err)
			return
		}
		ticketIDs = append(ticketIDs, ticketID)

		cmd := models.WorkerCommand{
			Type:        models.WorkerCmdInsertPaid,
			User:        &req.Users[i],
			SendMessage: announce,
		}
		if err := h.Commands.PublishWorkerCommand(cmd); err != nil {
			h.Log.Error("LEDGER", fmt.Sprintf("Failed to publish insert-paid command: %v", err))
		}
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tickets granted",
		map[string][]string{"ticketIds": ticketIDs}))
}

func (h *Handler) grant(ctx context.Context, liveID string, user models.LiveUser) (string, error) {
	grant := models.TicketGrant{
		LiveID:      liveID,
		RequesterID: user.ID,
		Nickname:    user.Nickname,
		Sticker:     models.ManualGrantSticker,
	}
	return h.Ledger.Issue(ctx, grant)
}
