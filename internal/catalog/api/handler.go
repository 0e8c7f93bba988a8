package api

import (
	"errors"
	"net/http"

	"ms-songrequest/internal/catalog"
	"ms-songrequest/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Catalog *catalog.Client
}

// SearchMusic resolves a free-text query against the song catalog,
// falling back to video search when no track matches.
func (h *Handler) SearchMusic(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")

	song, err := h.Catalog.Lookup(query)
	if err != nil {
		if errors.Is(err, catalog.ErrSongNotFound) {
			utils.WriteError(w, http.StatusNotFound, "No song found", err)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Catalog lookup failed", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Song found", song))
}
