package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/apperr"
	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/database"
)

type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// fakeStore serves verses from an in-memory map keyed by
// "code/book/chapter/verse".
type fakeStore struct {
	verses map[string]string
	err    error
}

func (f *fakeStore) VerseRange(_ context.Context, code, bookName string, chapter, start, end int) ([]database.VerseRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var rows []database.VerseRow
	for v := start; v <= end; v++ {
		key := fmt.Sprintf("%s/%s/%d/%d", code, bookName, chapter, v)
		if text, ok := f.verses[key]; ok {
			rows = append(rows, database.VerseRow{Number: v, Text: text})
		}
	}
	return rows, nil
}

func genesisStore() *fakeStore {
	return &fakeStore{verses: map[string]string{
		"NIV/Genesis/1/1": "In the beginning God created the heavens and the earth.",
		"NIV/Genesis/1/2": "Now the earth was formless and empty.",
		"NIV/Psalm/1/1":   "Blessed is the one who does not walk in step with the wicked.",
		"NIV/Psalm/1/2":   "But whose delight is in the law of the LORD.",
	}}
}

func newTestDetector(t *testing.T, model LanguageModel, store VerseStore) *Detector {
	t.Helper()
	prompts, err := NewPromptSource("", 0.6, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPromptSource: %v", err)
	}
	t.Cleanup(prompts.Close)
	return NewDetector(Options{
		Model:              model,
		Store:              store,
		Prompts:            prompts,
		MinConfidence:      0.6,
		DefaultTranslation: "NIV",
		Log:                zerolog.Nop(),
	})
}

func detectionJSON(book string, number, chapter, verse int, confidence float64) string {
	return fmt.Sprintf(`{
	  "detections": [{
	    "book": {"number": %d, "name": %q, "shortName": ""},
	    "chapter": %d,
	    "verse": %d,
	    "confidence": %v,
	    "detectionType": "explicit",
	    "translation": "NIV"
	  }]
	}`, number, book, chapter, verse, confidence)
}

func TestDetectResolvesVerseText(t *testing.T) {
	model := &fakeModel{response: detectionJSON("Genesis", 1, 1, 1, 0.95)}
	d := newTestDetector(t, model, genesisStore())

	dets, err := d.Detect(context.Background(), "In the beginning God created the heavens and the earth.")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	got := dets[0]
	if got.Text != "In the beginning God created the heavens and the earth." {
		t.Errorf("text = %q", got.Text)
	}
	if got.Source != bible.SourceModel {
		t.Errorf("source = %q, want %q", got.Source, bible.SourceModel)
	}
	if got.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.Confidence)
	}
}

func TestDetectEmbedsTextInPrompt(t *testing.T) {
	model := &fakeModel{response: `{"detections": []}`}
	d := newTestDetector(t, model, genesisStore())

	if _, err := d.Detect(context.Background(), "a sermon about creation."); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(model.prompts) != 1 {
		t.Fatalf("model called %d times, want 1", len(model.prompts))
	}
	if !contains(model.prompts[0], "a sermon about creation.") {
		t.Error("prompt does not embed the transcription")
	}
	if !contains(model.prompts[0], "0.60") {
		t.Error("prompt does not embed the confidence threshold")
	}
}

func TestDetectFiltersLowConfidence(t *testing.T) {
	model := &fakeModel{response: detectionJSON("Genesis", 1, 1, 1, 0.4)}
	d := newTestDetector(t, model, genesisStore())

	dets, err := d.Detect(context.Background(), "something vaguely biblical.")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("got %d detections, want 0 (confidence 0.4 < 0.6)", len(dets))
	}
}

func TestDetectDropsUnresolvable(t *testing.T) {
	// Book exists in the canon but the store has no text for it.
	model := &fakeModel{response: detectionJSON("Obadiah", 31, 1, 1, 0.9)}
	d := newTestDetector(t, model, genesisStore())

	dets, err := d.Detect(context.Background(), "as Obadiah says.")
	if err != nil {
		t.Fatalf("Detect: %v (unresolvable candidates are dropped, not errors)", err)
	}
	if len(dets) != 0 {
		t.Errorf("got %d detections, want 0", len(dets))
	}
}

func TestDetectFallsBackToDefaultTranslation(t *testing.T) {
	raw := `{
	  "detections": [{
	    "book": {"number": 1, "name": "Genesis", "shortName": "Gen"},
	    "chapter": 1, "verse": 1,
	    "confidence": 0.9, "detectionType": "explicit",
	    "translation": "ESV"
	  }]
	}`
	model := &fakeModel{response: raw}
	d := newTestDetector(t, model, genesisStore()) // store only has NIV

	dets, err := d.Detect(context.Background(), "in the beginning.")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1 (NIV fallback)", len(dets))
	}
}

func TestDetectRangeLookupConcatenates(t *testing.T) {
	raw := `{
	  "detections": [{
	    "book": {"number": 19, "name": "Psalm", "shortName": "Psa"},
	    "chapter": 1, "verse": 1,
	    "verseRange": {"start": 1, "end": 2},
	    "confidence": 1.0, "detectionType": "explicit",
	    "translation": "NIV"
	  }]
	}`
	model := &fakeModel{response: raw}
	d := newTestDetector(t, model, genesisStore())

	dets, err := d.Detect(context.Background(), "blessed is the one...")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	want := "Blessed is the one who does not walk in step with the wicked. But whose delight is in the law of the LORD."
	if dets[0].Text != want {
		t.Errorf("text = %q\nwant   %q", dets[0].Text, want)
	}
	if r := dets[0].Reference.VerseRange; r == nil || r.Start != 1 || r.End != 2 {
		t.Errorf("verseRange = %+v, want {1 2}", dets[0].Reference.VerseRange)
	}
}

func TestDetectStitchesContiguousSingles(t *testing.T) {
	raw := `{
	  "detections": [
	    {"book": {"number": 1, "name": "Genesis", "shortName": "Gen"},
	     "chapter": 1, "verse": 1, "confidence": 0.9,
	     "detectionType": "explicit", "translation": "NIV"},
	    {"book": {"number": 1, "name": "Genesis", "shortName": "Gen"},
	     "chapter": 1, "verse": 2, "confidence": 0.8,
	     "detectionType": "explicit", "translation": "NIV"}
	  ]
	}`
	model := &fakeModel{response: raw}
	d := newTestDetector(t, model, genesisStore())

	dets, err := d.Detect(context.Background(), "the creation account.")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1 merged range", len(dets))
	}
	r := dets[0].Reference.VerseRange
	if r == nil || r.Start != 1 || r.End != 2 {
		t.Fatalf("verseRange = %+v, want {1 2}", r)
	}
	want := "In the beginning God created the heavens and the earth. Now the earth was formless and empty."
	if dets[0].Text != want {
		t.Errorf("text = %q", dets[0].Text)
	}
	if dets[0].Confidence != 0.9 {
		t.Errorf("merged confidence = %v, want 0.9 (highest constituent)", dets[0].Confidence)
	}
}

func TestDetectEmptyInput(t *testing.T) {
	d := newTestDetector(t, &fakeModel{}, genesisStore())
	_, err := d.Detect(context.Background(), "   ")
	if !apperr.Is(err, apperr.Validation) {
		t.Errorf("err = %v, want Validation kind", err)
	}
}

func TestDetectModelFailurePropagates(t *testing.T) {
	model := &fakeModel{err: errors.New("503 overloaded")}
	d := newTestDetector(t, model, genesisStore())

	_, err := d.Detect(context.Background(), "a sermon.")
	if !apperr.Is(err, apperr.Transcription) {
		t.Errorf("err = %v, want Transcription kind", err)
	}
	// One call only: detection is never retried in this layer.
	if len(model.prompts) != 1 {
		t.Errorf("model called %d times, want 1", len(model.prompts))
	}
}

func TestDetectStoreFailureIsDatabaseError(t *testing.T) {
	model := &fakeModel{response: detectionJSON("Genesis", 1, 1, 1, 0.9)}
	d := newTestDetector(t, model, &fakeStore{err: errors.New("connection refused")})

	_, err := d.Detect(context.Background(), "in the beginning.")
	if !apperr.Is(err, apperr.Database) {
		t.Errorf("err = %v, want Database kind", err)
	}
}

func TestDetectNormalizesPsalms(t *testing.T) {
	model := &fakeModel{response: detectionJSON("Psalms", 19, 1, 1, 0.9)}
	d := newTestDetector(t, model, genesisStore()) // store keys use "Psalm"

	dets, err := d.Detect(context.Background(), "blessed is the one.")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	if dets[0].Reference.Book.Name != "Psalm" {
		t.Errorf("book name = %q, want Psalm", dets[0].Reference.Book.Name)
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
