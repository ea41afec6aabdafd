package pipeline

import (
	"strings"

	"github.com/EpaphrasSam/verse-catch/internal/transcribe"
)

// DefaultMaxBuffer caps the rolling sentence buffer. A sermon sentence that
// somehow exceeds this is discarded rather than grown without bound.
const DefaultMaxBuffer = 8192

const noSequence = -1

// Flush is the result of feeding one fragment to the Accumulator.
// CompleteText is empty until the buffer ends in sentence-terminal
// punctuation, at which point it carries the full accumulated sentence.
type Flush struct {
	CompleteText string
	TimestampMs  int64
	Sequence     int64
}

// Accumulator joins successive transcription fragments into complete
// sentences before verse detection runs. One instance serves one audio
// stream; it is not safe for interleaved independent streams.
type Accumulator struct {
	buffer       string
	lastSequence int64
	lastTsMs     int64
	maxBuffer    int
}

// NewAccumulator creates an accumulator with the given buffer cap
// (DefaultMaxBuffer when 0).
func NewAccumulator(maxBuffer int) *Accumulator {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Accumulator{lastSequence: noSequence, maxBuffer: maxBuffer}
}

// Accumulate appends a fragment to the rolling buffer and reports whether a
// complete sentence is now available. The buffer is discarded first when the
// fragment's sequence breaks contiguity with the previous call, or when
// appending would exceed the buffer cap: gapped input never merges across a
// discontinuity.
func (a *Accumulator) Accumulate(frag transcribe.Result) Flush {
	if a.lastSequence != noSequence && frag.Sequence != a.lastSequence+1 {
		a.buffer = ""
	}

	a.lastSequence = frag.Sequence
	a.lastTsMs = frag.TimestampMs

	text := strings.TrimSpace(frag.Text)
	if text != "" {
		if len(a.buffer)+len(text)+1 > a.maxBuffer {
			a.buffer = ""
		}
		if a.buffer == "" {
			a.buffer = text
		} else {
			a.buffer += " " + text
		}
	}

	if isCompleteSentence(a.buffer) {
		out := Flush{CompleteText: a.buffer, TimestampMs: a.lastTsMs, Sequence: a.lastSequence}
		a.buffer = ""
		return out
	}

	return Flush{TimestampMs: a.lastTsMs, Sequence: a.lastSequence}
}

// isCompleteSentence reports whether text ends in sentence-terminal
// punctuation, optionally followed by whitespace.
func isCompleteSentence(text string) bool {
	text = strings.TrimRight(text, " \t\r\n")
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
