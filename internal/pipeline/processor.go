package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/apperr"
	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/metrics"
	"github.com/EpaphrasSam/verse-catch/internal/transcribe"
)

// Defaults for the processing queue.
const (
	DefaultMaxQueueSize = 10
	DefaultMaxChunkMs   = 3600000 // one hour
	metadataKeep        = 5
)

// Chunk is one discrete audio recording segment submitted for processing.
// Sequence 0 means unassigned; the processor assigns the next monotonic
// value.
type Chunk struct {
	Audio       []byte
	TimestampMs int64
	DurationMs  int64
	Sequence    int64
}

// ProcessingMetadata is per-cycle timing telemetry, kept in a bounded ring
// for observability only.
type ProcessingMetadata struct {
	TranscriptionMs int64 `json:"transcriptionTime"`
	DetectionMs     int64 `json:"detectionTime"`
	TotalMs         int64 `json:"totalTime"`
	ChunkSequence   int64 `json:"chunkSequence"`
}

// Transcriber turns one audio chunk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, meta transcribe.Metadata) (*transcribe.Result, error)
}

// VerseDetector finds verse references in a complete sentence.
type VerseDetector interface {
	Detect(ctx context.Context, text string) ([]bible.Detection, error)
}

// Options configures a Processor.
type Options struct {
	Transcriber  Transcriber
	Detector     VerseDetector
	MaxQueueSize int
	MaxChunkMs   int64
	MaxBuffer    int
	Log          zerolog.Logger
}

// Processor serializes chunk processing for one audio stream: a bounded FIFO
// with at most one chunk in flight, pipelining transcription of the current
// chunk with verse detection of the previous chunk's accumulated text.
// Detection results therefore trail submissions by one chunk; that lag is a
// deliberate throughput tradeoff.
//
// One Processor per independent audio stream. The FIFO, busy flag, and
// pending slot are owned exclusively by the Processor.
type Processor struct {
	transcriber Transcriber
	detector    VerseDetector
	acc         *Accumulator
	maxQueue    int
	maxChunkMs  int64
	log         zerolog.Logger

	mu      sync.Mutex
	queue   []Chunk
	busy    bool
	pending *transcribe.Result
	lastSeq int64
	meta    []ProcessingMetadata
}

// NewProcessor creates a chunk processor.
func NewProcessor(opts Options) *Processor {
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = DefaultMaxQueueSize
	}
	if opts.MaxChunkMs <= 0 {
		opts.MaxChunkMs = DefaultMaxChunkMs
	}
	return &Processor{
		transcriber: opts.Transcriber,
		detector:    opts.Detector,
		acc:         NewAccumulator(opts.MaxBuffer),
		maxQueue:    opts.MaxQueueSize,
		maxChunkMs:  opts.MaxChunkMs,
		log:         opts.Log,
	}
}

// Submit enqueues a chunk and, when the processor is idle, drains the queue.
// The returned detections belong to the cycle this call ran, which covers
// the previous chunk's accumulated text; an empty result means either the
// processor was already busy or no complete sentence was pending.
func (p *Processor) Submit(ctx context.Context, chunk Chunk) ([]bible.Detection, error) {
	if len(chunk.Audio) == 0 {
		return nil, apperr.New(apperr.Validation, "audio chunk has no data")
	}

	p.mu.Lock()
	if len(p.queue) >= p.maxQueue {
		p.mu.Unlock()
		return nil, apperr.New(apperr.Storage, "audio processing queue is full")
	}
	if chunk.Sequence == 0 {
		p.lastSeq++
		chunk.Sequence = p.lastSeq
	} else if chunk.Sequence > p.lastSeq {
		p.lastSeq = chunk.Sequence
	}
	p.queue = append(p.queue, chunk)
	metrics.QueueDepth.Set(float64(len(p.queue)))
	p.mu.Unlock()

	return p.drain(ctx)
}

// QueueDepth reports the number of chunks waiting (not including one in
// flight).
func (p *Processor) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stats drains and returns the telemetry ring.
func (p *Processor) Stats() []ProcessingMetadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.meta
	p.meta = nil
	return out
}

// drain processes the head of the queue unless a cycle is already running.
// The busy flag is always cleared, and a non-empty queue re-triggers itself
// as a supervised background task so no chunk is left stranded.
func (p *Processor) drain(ctx context.Context) ([]bible.Detection, error) {
	p.mu.Lock()
	if p.busy || len(p.queue) == 0 {
		p.mu.Unlock()
		return nil, nil
	}
	p.busy = true
	chunk := p.queue[0]
	p.queue = p.queue[1:]
	pending := p.pending
	metrics.QueueDepth.Set(float64(len(p.queue)))
	p.mu.Unlock()

	detections, trans, err := p.process(ctx, chunk, pending)

	p.mu.Lock()
	if trans != nil {
		p.pending = trans
	}
	p.busy = false
	again := len(p.queue) > 0
	p.mu.Unlock()

	if again {
		go p.drainBackground()
	}

	if err != nil {
		metrics.ChunksProcessedTotal.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.Transcription, err, "process audio chunk")
	}
	metrics.ChunksProcessedTotal.WithLabelValues("ok").Inc()
	return detections, nil
}

// drainBackground continues draining after a cycle left chunks queued.
// Errors here have no caller to land on, so they are logged rather than
// dropped on the floor.
func (p *Processor) drainBackground() {
	if _, err := p.drain(context.Background()); err != nil {
		p.log.Error().Err(err).Msg("background queue drain failed")
	}
}

type transOut struct {
	res *transcribe.Result
	err error
}

type detOut struct {
	detections []bible.Detection
	err        error
}

// process runs one cycle: transcribe the given chunk while concurrently
// detecting verses in the previous chunk's accumulated sentence, if one
// completed.
func (p *Processor) process(ctx context.Context, chunk Chunk, pending *transcribe.Result) ([]bible.Detection, *transcribe.Result, error) {
	if chunk.DurationMs > p.maxChunkMs {
		return nil, nil, apperr.New(apperr.FileSize,
			"audio chunk duration %dms exceeds maximum %dms", chunk.DurationMs, p.maxChunkMs)
	}

	start := time.Now()

	transCh := make(chan transOut, 1)
	go func() {
		res, err := p.transcriber.Transcribe(ctx, chunk.Audio, transcribe.Metadata{
			Sequence:    chunk.Sequence,
			TimestampMs: chunk.TimestampMs,
			DurationMs:  chunk.DurationMs,
		})
		transCh <- transOut{res: res, err: err}
	}()

	// Pipelining: while this chunk transcribes, run detection on the
	// previous chunk's text if the accumulator completed a sentence.
	var detCh chan detOut
	if pending != nil {
		if flush := p.acc.Accumulate(*pending); flush.CompleteText != "" {
			detCh = make(chan detOut, 1)
			go func(text string) {
				detections, err := p.detector.Detect(ctx, text)
				detCh <- detOut{detections: detections, err: err}
			}(flush.CompleteText)
		}
	}

	// Transcription started first; await it first.
	trans := <-transCh
	transcriptionMs := time.Since(start).Milliseconds()
	if trans.err != nil {
		if detCh != nil {
			<-detCh // let the in-flight detection finish before bailing
		}
		return nil, nil, trans.err
	}
	metrics.TranscriptionDuration.Observe(float64(transcriptionMs) / 1000)

	if detCh == nil {
		// First chunk, or no complete sentence yet: store the transcript
		// for the next cycle and return nothing.
		return nil, trans.res, nil
	}

	det := <-detCh
	detectionMs := time.Since(start).Milliseconds() - transcriptionMs
	if det.err != nil {
		return nil, trans.res, det.err
	}
	metrics.DetectionDuration.Observe(float64(detectionMs) / 1000)

	totalMs := time.Since(start).Milliseconds()
	p.recordMetadata(ProcessingMetadata{
		TranscriptionMs: transcriptionMs,
		DetectionMs:     detectionMs,
		TotalMs:         totalMs,
		ChunkSequence:   chunk.Sequence,
	})

	// Stamp detections with the chunk whose arrival released them.
	detections := det.detections
	for i := range detections {
		detections[i].TimestampMs = trans.res.TimestampMs
		detections[i].Sequence = trans.res.Sequence
		detections[i].ProcessingTimeMs = totalMs
	}
	metrics.VersesDetectedTotal.Add(float64(len(detections)))

	return detections, trans.res, nil
}

func (p *Processor) recordMetadata(m ProcessingMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta = append(p.meta, m)
	if len(p.meta) > metadataKeep {
		p.meta = p.meta[len(p.meta)-metadataKeep:]
	}
}
