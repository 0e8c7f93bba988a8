package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"ms-songrequest/internal/models"
	"ms-songrequest/internal/settings"
	"ms-songrequest/internal/utils"
)

type Handler struct {
	Settings *settings.Service
}

// GetSettings returns the current admission policy.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.Settings.Current(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not load settings", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Settings retrieved", current))
}

// UpdateSettings validates and applies a full policy update.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var input models.SettingsInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Settings.Update(r.Context(), input)
	if err != nil {
		if errors.Is(err, models.ErrNegativeLimit) || errors.Is(err, models.ErrUnknownPaidType) {
			utils.WriteError(w, http.StatusBadRequest, "Invalid settings", err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Could not update settings", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Settings updated", updated))
}
