package overlay

import (
	"net/http"
	"strconv"

	"ms-songrequest/internal/utils"
)

type Handler struct {
	Generator *Generator
}

// QueueQR serves the overlay QR code as a PNG. An optional size query
// parameter controls the pixel dimensions.
func (h *Handler) QueueQR(w http.ResponseWriter, r *http.Request) {
	size := 256
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 2048 {
			utils.WriteError(w, http.StatusBadRequest, "Invalid size", err)
			return
		}
		size = parsed
	}

	png, err := h.Generator.QueuePNG(size)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Could not render QR code", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	_, _ = w.Write(png)
}
