package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/apperr"
	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/pipeline"
)

// ChunkProcessor accepts audio chunks and reports queue state.
type ChunkProcessor interface {
	Submit(ctx context.Context, chunk pipeline.Chunk) ([]bible.Detection, error)
	QueueDepth() int
	Stats() []pipeline.ProcessingMetadata
}

// AudioHandler accepts audio chunk uploads and returns verse detections.
type AudioHandler struct {
	processor ChunkProcessor
	publish   func([]bible.Detection)
	archive   func(timestampMs, sequence int64, audio []byte)
	log       zerolog.Logger
}

// AudioHandlerOptions configures an AudioHandler. Publish and Archive are
// optional hooks.
type AudioHandlerOptions struct {
	Processor ChunkProcessor
	Publish   func([]bible.Detection)
	Archive   func(timestampMs, sequence int64, audio []byte)
	Log       zerolog.Logger
}

// NewAudioHandler creates an audio upload handler.
func NewAudioHandler(opts AudioHandlerOptions) *AudioHandler {
	return &AudioHandler{
		processor: opts.Processor,
		publish:   opts.Publish,
		archive:   opts.Archive,
		log:       opts.Log.With().Str("handler", "audio").Logger(),
	}
}

// Routes registers the audio endpoint.
func (h *AudioHandler) Routes(r chi.Router) {
	r.Post("/audio", h.Upload)
}

// DetectionsResponse is the body returned for a processed chunk.
type DetectionsResponse struct {
	Verses []bible.Detection `json:"verses"`
}

// Upload handles POST /api/v1/audio. The multipart form carries the audio
// bytes in "audio" plus optional "timestamp", "duration", and "sequence"
// fields (milliseconds; sequence auto-assigned when omitted).
func (h *AudioHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteAppError(w, apperr.New(apperr.Validation, "invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("audio")
	if err != nil {
		WriteAppError(w, apperr.New(apperr.Validation, "missing audio file field"))
		return
	}
	audio, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		WriteAppError(w, apperr.New(apperr.Validation, "read audio field: %v", err))
		return
	}

	chunk := pipeline.Chunk{Audio: audio}
	chunk.TimestampMs = formInt64(r, "timestamp")
	chunk.DurationMs = formInt64(r, "duration")
	chunk.Sequence = formInt64(r, "sequence")

	detections, err := h.processor.Submit(r.Context(), chunk)
	if err != nil {
		hlogError(r, err, "chunk submit failed")
		WriteAppError(w, err)
		return
	}

	if h.archive != nil {
		h.archive(chunk.TimestampMs, chunk.Sequence, audio)
	}
	if len(detections) > 0 && h.publish != nil {
		h.publish(detections)
	}

	if detections == nil {
		detections = []bible.Detection{}
	}
	WriteJSON(w, http.StatusOK, DetectionsResponse{Verses: detections})
}
