package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EpaphrasSam/verse-catch/internal/pipeline"
)

// StatsHandler reports queue depth and recent processing telemetry.
type StatsHandler struct {
	processor ChunkProcessor
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(processor ChunkProcessor) *StatsHandler {
	return &StatsHandler{processor: processor}
}

// Routes registers the stats endpoint.
func (h *StatsHandler) Routes(r chi.Router) {
	r.Get("/stats", h.Stats)
}

// StatsResponse is the body for GET /api/v1/stats. Processing entries are
// drained on read; a second immediate call returns an empty list.
type StatsResponse struct {
	QueueDepth int                           `json:"queueDepth"`
	Processing []pipeline.ProcessingMetadata `json:"processing"`
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.processor.Stats()
	if stats == nil {
		stats = []pipeline.ProcessingMetadata{}
	}
	WriteJSON(w, http.StatusOK, StatsResponse{
		QueueDepth: h.processor.QueueDepth(),
		Processing: stats,
	})
}
