// Package bible holds the reference and detection types shared by the
// detector, translation store, and pipeline.
package bible

// DetectionType describes how a reference was identified in the transcript.
type DetectionType string

const (
	DetectionExplicit   DetectionType = "explicit"   // "John 3:16"
	DetectionImplicit   DetectionType = "implicit"   // "as we read in the Gospel of John"
	DetectionContextual DetectionType = "contextual" // "the next verse"
)

// Book identifies one of the 66 canonical books.
type Book struct {
	Number    int    `json:"number"` // 1-66
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

// VerseRange is an inclusive run of contiguous verse numbers read as one
// continuous quotation.
type VerseRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Reference is a single candidate Bible reference.
type Reference struct {
	Book          Book          `json:"book"`
	Chapter       int           `json:"chapter"`
	Verse         int           `json:"verse"`
	VerseRange    *VerseRange   `json:"verseRange,omitempty"`
	Confidence    float64       `json:"confidence"`
	DetectionType DetectionType `json:"detectionType"`
	Translation   string        `json:"translation,omitempty"`
}

// Detection is a point-in-time detection event: a reference with its
// resolved verse text. It has no further lifecycle after creation.
type Detection struct {
	Reference        Reference `json:"reference"`
	Text             string    `json:"text,omitempty"`
	Source           string    `json:"source"` // "model", "database", "hybrid"
	Confidence       float64   `json:"confidence"`
	TimestampMs      int64     `json:"timestamp"`
	Sequence         int64     `json:"sequence"`
	ProcessingTimeMs int64     `json:"processingTime,omitempty"`
}

// SourceModel marks detections produced by the language model and verified
// against the translation store.
const SourceModel = "model"
