package detect

import (
	"encoding/json"
	"strings"

	"github.com/EpaphrasSam/verse-catch/internal/apperr"
	"github.com/EpaphrasSam/verse-catch/internal/bible"
)

// The vendor returns free-form text with no schema enforcement, so parsing
// is deliberately defensive: strip markdown fences, slice between the outer
// braces, then require the exact expected shape. Any leftover mismatch is a
// typed error, never a silent empty result.

// sanitizeResponse strips code-fence markers and anything outside the first
// '{' and last '}' of the model output.
func sanitizeResponse(text string) (string, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last == -1 || last < first {
		return "", apperr.New(apperr.Transcription, "no JSON object in model response")
	}
	return strings.TrimSpace(text[first : last+1]), nil
}

// parseDetections extracts the candidate references from a raw model
// response.
func parseDetections(raw string) ([]bible.Reference, error) {
	cleaned, err := sanitizeResponse(raw)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Detections *[]bible.Reference `json:"detections"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.Transcription, err, "parse verse detection results")
	}
	if parsed.Detections == nil {
		return nil, apperr.New(apperr.Transcription, "model response missing detections field")
	}
	return *parsed.Detections, nil
}
