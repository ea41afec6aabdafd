package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestInstrumentHandlerKeepsFlusher(t *testing.T) {
	var isFlusher bool
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/stream", func(w http.ResponseWriter, req *http.Request) {
		f, ok := w.(http.Flusher)
		isFlusher = ok
		w.WriteHeader(http.StatusOK)
		if ok {
			f.Flush()
		}
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/stream", nil))

	if !isFlusher {
		t.Fatal("instrumented writer does not implement http.Flusher")
	}
	if !rec.Flushed {
		t.Error("Flush did not reach the underlying writer")
	}
}

func TestInstrumentHandlerCapturesStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/missing", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStatusWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	if sw.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}
}
