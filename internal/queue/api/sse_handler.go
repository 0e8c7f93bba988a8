package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/sse"
)

// SSEHandler streams queue and settings changes to the overlay.
type SSEHandler struct {
	Logger  *logger.Logger
	Emitter *sse.Emitter
}

func NewSSEHandler(log *logger.Logger, emitter *sse.Emitter) *SSEHandler {
	return &SSEHandler{Logger: log, Emitter: emitter}
}

// HandleEvents is the /events endpoint. It holds the connection open and
// pushes every emitted event until the client disconnects.
func (h *SSEHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Emitter.Subscribe(ctx)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	h.Logger.Info("SSE", "Client connected to queue events")

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", "Event channel closed")
				return
			}

			jsonData, err := json.Marshal(event.Payload)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", "Client disconnected from queue events")
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
