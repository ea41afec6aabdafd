package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/EpaphrasSam/verse-catch/internal/apperr"
	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/database"
)

// Detector finds verse references in a transcript.
type Detector interface {
	Detect(ctx context.Context, text string) ([]bible.Detection, error)
}

// VerseSource is the translation store surface the API reads from.
type VerseSource interface {
	VerseRange(ctx context.Context, code, bookName string, chapter, start, end int) ([]database.VerseRow, error)
	ListTranslations(ctx context.Context) ([]database.Translation, error)
}

// VersesHandler serves direct detection and verse lookup requests.
type VersesHandler struct {
	detector Detector
	store    VerseSource
}

// NewVersesHandler creates a verses handler.
func NewVersesHandler(detector Detector, store VerseSource) *VersesHandler {
	return &VersesHandler{detector: detector, store: store}
}

// Routes registers verse routes on the given router.
func (h *VersesHandler) Routes(r chi.Router) {
	r.Post("/verses/detect", h.Detect)
	r.Get("/verses", h.Lookup)
	r.Get("/translations", h.Translations)
}

// DetectRequest is the body for POST /api/v1/verses/detect.
type DetectRequest struct {
	Transcription string `json:"transcription"`
}

// Detect runs verse detection on caller-supplied text, bypassing the audio
// pipeline. Useful for testing prompts and for text-only integrations.
func (h *VersesHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteAppError(w, apperr.New(apperr.Validation, "invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Transcription) == "" {
		WriteAppError(w, apperr.New(apperr.Validation, "transcription is required"))
		return
	}

	detections, err := h.detector.Detect(r.Context(), req.Transcription)
	if err != nil {
		hlogError(r, err, "detection failed")
		WriteAppError(w, err)
		return
	}
	if detections == nil {
		detections = []bible.Detection{}
	}
	WriteJSON(w, http.StatusOK, DetectionsResponse{Verses: detections})
}

// VersesResponse is the body for GET /api/v1/verses.
type VersesResponse struct {
	Translation string              `json:"translation"`
	Book        string              `json:"book"`
	Chapter     int                 `json:"chapter"`
	Verses      []database.VerseRow `json:"verses"`
}

// Lookup reads verses straight from the translation store:
// GET /api/v1/verses?translation=NIV&book=Genesis&chapter=1&verse=1&end=3
func (h *VersesHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	translation, _ := QueryString(r, "translation")
	book, ok := QueryString(r, "book")
	if !ok {
		WriteAppError(w, apperr.New(apperr.Validation, "book is required"))
		return
	}
	chapter, ok := QueryInt(r, "chapter")
	if !ok || chapter < 1 {
		WriteAppError(w, apperr.New(apperr.Validation, "chapter must be a positive integer"))
		return
	}
	verse, ok := QueryInt(r, "verse")
	if !ok || verse < 1 {
		WriteAppError(w, apperr.New(apperr.Validation, "verse must be a positive integer"))
		return
	}
	end, ok := QueryInt(r, "end")
	if !ok {
		end = verse
	}
	if end < verse {
		WriteAppError(w, apperr.New(apperr.Validation, "end must be >= verse"))
		return
	}
	if translation == "" {
		translation = "NIV"
	}

	canonical, ok := bible.BookByName(book)
	if !ok {
		WriteAppError(w, apperr.New(apperr.Validation, "unknown book %q", book))
		return
	}

	rows, err := h.store.VerseRange(r.Context(), translation, canonical.Name, chapter, verse, end)
	if err != nil {
		hlogError(r, err, "verse lookup failed")
		WriteAppError(w, apperr.Wrap(apperr.Database, err, "verse lookup"))
		return
	}
	if rows == nil {
		rows = []database.VerseRow{}
	}
	WriteJSON(w, http.StatusOK, VersesResponse{
		Translation: translation,
		Book:        canonical.Name,
		Chapter:     chapter,
		Verses:      rows,
	})
}

// Translations lists the editions loaded in the store.
func (h *VersesHandler) Translations(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListTranslations(r.Context())
	if err != nil {
		hlogError(r, err, "list translations failed")
		WriteAppError(w, apperr.Wrap(apperr.Database, err, "list translations"))
		return
	}
	if list == nil {
		list = []database.Translation{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"translations": list})
}
