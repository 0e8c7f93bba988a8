package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
	"ms-songrequest/internal/queue"
	"ms-songrequest/internal/sse"
	"ms-songrequest/internal/utils"

	"github.com/go-chi/chi/v5"
)

// TicketIssuer refunds the entitlement ticket when a paid request is
// cancelled.
type TicketIssuer interface {
	Issue(ctx context.Context, grant models.TicketGrant) (string, error)
}

type Handler struct {
	Queue  *queue.Service
	Ledger TicketIssuer
	Events *sse.Emitter
	Log    *logger.Logger
}

// ListSongs returns the full queue, played and pending.
func (h *Handler) ListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.Queue.List(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not list songs", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Songs retrieved", songs))
}

// CreateSong appends a song directly, bypassing admission. Operator only.
func (h *Handler) CreateSong(w http.ResponseWriter, r *http.Request) {
	var input models.SongInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if input.Title == "" {
		utils.WriteError(w, http.StatusBadRequest, "Title is required", nil)
		return
	}

	song, err := h.Queue.Append(r.Context(), input)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not add song", err)
		return
	}

	h.Events.Emit(sse.Event{Type: sse.EventQueueChanged, Payload: song})
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Song added", song))
}

// CurrentSong returns the most recently played entry.
func (h *Handler) CurrentSong(w http.ResponseWriter, r *http.Request) {
	song, err := h.Queue.Current(r.Context())
	if err != nil {
		if errors.Is(err, queue.ErrNothingPlaying) {
			utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Nothing is playing", nil))
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Could not load current song", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Current song", song))
}

type advanceRequest struct {
	Policy models.AdvancePolicy `json:"policy"`
}

// AdvanceQueue marks the next pending song as playing.
func (h *Handler) AdvanceQueue(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Policy == "" {
		req.Policy = models.AdvanceSequential
	}

	song, err := h.Queue.Advance(r.Context(), req.Policy)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrUnknownPolicy):
			utils.WriteError(w, http.StatusBadRequest, "Unknown advance policy", err)
		case errors.Is(err, queue.ErrNoPendingSongs):
			// Queue exhausted: now-playing becomes empty.
			h.Events.Emit(sse.Event{Type: sse.EventQueueChanged})
			utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("No pending songs", nil))
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Could not advance queue", err)
		}
		return
	}

	h.Events.Emit(sse.Event{Type: sse.EventQueueChanged, Payload: song})
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Queue advanced", song))
}

type updateSongRequest struct {
	IsPlayed bool `json:"isPlayed"`
}

// UpdateSong toggles a song's played flag.
func (h *Handler) UpdateSong(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid song id", err)
		return
	}

	var req updateSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	song, err := h.Queue.SetPlayed(r.Context(), id, req.IsPlayed)
	if err != nil {
		if errors.Is(err, queue.ErrSongNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Song not found", err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Could not update song", err)
		return
	}

	h.Events.Emit(sse.Event{Type: sse.EventQueueChanged, Payload: song})
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Song updated", song))
}

// DeleteSong removes a single queue entry.
func (h *Handler) DeleteSong(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid song id", err)
		return
	}

	song, err := h.Queue.RemoveByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrSongNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Song not found", err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Could not delete song", err)
		return
	}

	h.Events.Emit(sse.Event{Type: sse.EventQueueChanged, Payload: song})
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Song deleted", song))
}

// DeleteAllSongs wipes the queue. Request history is kept.
func (h *Handler) DeleteAllSongs(w http.ResponseWriter, r *http.Request) {
	if err := h.Queue.ClearAll(r.Context()); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not clear queue", err)
		return
	}

	h.Events.Emit(sse.Event{Type: sse.EventQueueChanged})
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Queue cleared", nil))
}

// ResetLimits clears request history, resetting every viewer's free
// request count. The backup table keeps the audit trail.
func (h *Handler) ResetLimits(w http.ResponseWriter, r *http.Request) {
	if err := h.Queue.ResetLimits(r.Context()); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not reset limits", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Request limits reset", nil))
}

type deleteLatestRequest struct {
	RequesterID string `json:"requesterId"`
	LiveID      string `json:"liveId"`
}

// DeleteLatest cancels a viewer's most recent pending request. Paid
// requests are refunded with a fresh entitlement ticket.
func (h *Handler) DeleteLatest(w http.ResponseWriter, r *http.Request) {
	var req deleteLatestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RequesterID == "" {
		utils.WriteError(w, http.StatusBadRequest, "requesterId is required", nil)
		return
	}

	song, err := h.Queue.RemoveLatestUnplayedFor(r.Context(), req.RequesterID, req.LiveID)
	if err != nil {
		if errors.Is(err, queue.ErrSongNotFound) {
			utils.WriteError(w, http.StatusNotFound, "No pending request to cancel", err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Could not cancel request", err)
		return
	}

	if song.IsPaid {
		grant := models.TicketGrant{
			LiveID:      req.LiveID,
			RequesterID: song.RequesterID,
			Nickname:    song.Requester,
			Sticker:     models.ManualGrantSticker,
		}
		if _, err := h.Ledger.Issue(r.Context(), grant); err != nil {
			h.Log.Error("QUEUE", fmt.Sprintf("Failed to refund ticket for %s: %v", song.RequesterID, err))
		}
	}

	h.Events.Emit(sse.Event{Type: sse.EventQueueChanged, Payload: song})
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Request cancelled", song))
}
