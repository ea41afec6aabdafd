package detect

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/apperr"
	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/database"
)

// VerseStore is the read-only translation store consumed by the detector.
type VerseStore interface {
	VerseRange(ctx context.Context, code, bookName string, chapter, start, end int) ([]database.VerseRow, error)
}

// Options configures the verse detector.
type Options struct {
	Model              LanguageModel
	Store              VerseStore
	Prompts            *PromptSource
	MinConfidence      float64
	DefaultTranslation string
	Log                zerolog.Logger
}

// Detector finds Bible verse references in transcribed text. Candidates come
// from the language model, pass a confidence gate, and must resolve to verse
// text in the translation store; resolution acts as a second correctness
// gate on top of the model's own confidence.
type Detector struct {
	model         LanguageModel
	store         VerseStore
	prompts       *PromptSource
	minConfidence float64
	defaultCode   string
	log           zerolog.Logger
}

// NewDetector creates a verse detector.
func NewDetector(opts Options) *Detector {
	if opts.MinConfidence == 0 {
		opts.MinConfidence = 0.6
	}
	if opts.DefaultTranslation == "" {
		opts.DefaultTranslation = "NIV"
	}
	return &Detector{
		model:         opts.Model,
		store:         opts.Store,
		prompts:       opts.Prompts,
		minConfidence: opts.MinConfidence,
		defaultCode:   opts.DefaultTranslation,
		log:           opts.Log,
	}
}

// Detect sends the text to the language model and returns every candidate
// reference that passed the confidence threshold and resolved to verse text.
// Unresolvable candidates are dropped; vendor and parse failures are typed
// errors.
func (d *Detector) Detect(ctx context.Context, text string) ([]bible.Detection, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.Validation, "empty transcription input")
	}

	raw, err := d.model.Complete(ctx, d.prompts.Build(text))
	if err != nil {
		return nil, apperr.Wrap(apperr.Transcription, err, "verse detection request failed")
	}

	candidates, err := parseDetections(raw)
	if err != nil {
		d.log.Debug().Str("response", truncate(raw, 500)).Msg("unparseable model response")
		return nil, err
	}

	// Coarse gate on the model's own confidence before touching the store.
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= d.minConfidence {
			kept = append(kept, c)
		}
	}

	kept = stitchContiguous(kept)

	now := time.Now()
	detections := make([]bible.Detection, 0, len(kept))
	for _, ref := range kept {
		normalizeBook(&ref)
		if ref.Translation == "" {
			ref.Translation = d.defaultCode
		}

		text, resolved, err := d.resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		if text == "" {
			d.log.Debug().
				Str("book", ref.Book.Name).
				Int("chapter", ref.Chapter).
				Int("verse", ref.Verse).
				Msg("candidate dropped: verse text not found")
			continue
		}
		ref.VerseRange = resolved

		detections = append(detections, bible.Detection{
			Reference:   ref,
			Text:        text,
			Source:      bible.SourceModel,
			Confidence:  ref.Confidence,
			TimestampMs: now.UnixMilli(),
			Sequence:    now.Unix(),
		})
	}

	return detections, nil
}

// resolve fetches verse text for a candidate, falling back to the default
// translation when the requested one has no rows. Empty text means the
// candidate resolved nowhere and should be dropped.
func (d *Detector) resolve(ctx context.Context, ref bible.Reference) (string, *bible.VerseRange, error) {
	start, end := ref.Verse, ref.Verse
	if ref.VerseRange != nil {
		start, end = ref.VerseRange.Start, ref.VerseRange.End
	}

	rows, err := d.store.VerseRange(ctx, ref.Translation, ref.Book.Name, ref.Chapter, start, end)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.Database, err, "fetch verse text")
	}
	if len(rows) == 0 && ref.Translation != d.defaultCode {
		rows, err = d.store.VerseRange(ctx, d.defaultCode, ref.Book.Name, ref.Chapter, start, end)
		if err != nil {
			return "", nil, apperr.Wrap(apperr.Database, err, "fetch verse text (fallback translation)")
		}
	}
	if len(rows) == 0 {
		return "", nil, nil
	}

	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = r.Text
	}

	// The store's geometry wins over the model's claim: a range reflects the
	// verses actually returned.
	var resolved *bible.VerseRange
	if first, last := rows[0].Number, rows[len(rows)-1].Number; last > first {
		resolved = &bible.VerseRange{Start: first, End: last}
	}
	return strings.Join(parts, " "), resolved, nil
}

// stitchContiguous merges candidates from one batch whose verse numbers form
// a contiguous run in the same translation/book/chapter into a single range
// candidate. The merged candidate keeps the highest constituent confidence
// and the first constituent's detection type.
func stitchContiguous(refs []bible.Reference) []bible.Reference {
	if len(refs) < 2 {
		return refs
	}

	sorted := make([]bible.Reference, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Translation != b.Translation {
			return a.Translation < b.Translation
		}
		if a.Book.Number != b.Book.Number {
			return a.Book.Number < b.Book.Number
		}
		if a.Chapter != b.Chapter {
			return a.Chapter < b.Chapter
		}
		return refStart(a) < refStart(b)
	})

	out := sorted[:1]
	for _, ref := range sorted[1:] {
		prev := &out[len(out)-1]
		if ref.Translation == prev.Translation &&
			ref.Book.Number == prev.Book.Number &&
			ref.Chapter == prev.Chapter &&
			refStart(ref) == refEnd(*prev)+1 {
			prev.VerseRange = &bible.VerseRange{Start: refStart(*prev), End: refEnd(ref)}
			if ref.Confidence > prev.Confidence {
				prev.Confidence = ref.Confidence
			}
			continue
		}
		out = append(out, ref)
	}
	return out
}

func refStart(r bible.Reference) int {
	if r.VerseRange != nil {
		return r.VerseRange.Start
	}
	return r.Verse
}

func refEnd(r bible.Reference) int {
	if r.VerseRange != nil {
		return r.VerseRange.End
	}
	return r.Verse
}

// normalizeBook fills in missing canon fields from whichever of name or
// number the model supplied.
func normalizeBook(ref *bible.Reference) {
	if b, ok := bible.BookByName(ref.Book.Name); ok {
		ref.Book = bible.Book{Number: b.Number, Name: b.Name, ShortName: b.ShortName}
		return
	}
	if b, ok := bible.BookByNumber(ref.Book.Number); ok {
		ref.Book = bible.Book{Number: b.Number, Name: b.Name, ShortName: b.ShortName}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
