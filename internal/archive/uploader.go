package archive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Store is the object store an uploader writes to.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
}

// AsyncUploader archives chunk audio in the background without blocking
// chunk submission. Uploads are fire-and-forget: when the buffer is full
// the chunk is skipped with a warning, since the archive is a convenience
// copy, not the system of record.
type AsyncUploader struct {
	store    Store
	ch       chan uploadJob
	log      zerolog.Logger
	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type uploadJob struct {
	key  string
	data []byte
}

// NewAsyncUploader creates an async uploader with the given buffer size.
func NewAsyncUploader(store Store, bufferSize int, log zerolog.Logger) *AsyncUploader {
	return &AsyncUploader{
		store: store,
		ch:    make(chan uploadJob, bufferSize),
		log:   log.With().Str("component", "chunk-archiver").Logger(),
	}
}

// EnqueueChunk adds a chunk upload job keyed by timestamp and sequence.
// Non-blocking; drops with a warning when the buffer is full or the
// uploader is stopped.
func (u *AsyncUploader) EnqueueChunk(timestampMs, sequence int64, audio []byte) {
	if u.stopped.Load() {
		return
	}
	key := fmt.Sprintf("%d-%d.wav", timestampMs, sequence)
	data := make([]byte, len(audio))
	copy(data, audio)
	select {
	case u.ch <- uploadJob{key: key, data: data}:
	default:
		u.log.Warn().Str("key", key).Msg("archive queue full, skipping chunk")
	}
}

// Start launches worker goroutines.
func (u *AsyncUploader) Start(workers int) {
	for i := 0; i < workers; i++ {
		u.wg.Add(1)
		go u.worker()
	}
	u.log.Info().Int("workers", workers).Int("buffer", cap(u.ch)).Msg("chunk archiver started")
}

// Stop signals workers to drain queued uploads and waits for them.
func (u *AsyncUploader) Stop() {
	u.stopped.Store(true)
	u.stopOnce.Do(func() { close(u.ch) })
	u.wg.Wait()
}

func (u *AsyncUploader) worker() {
	defer u.wg.Done()
	for job := range u.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := u.store.Save(ctx, job.key, job.data, "audio/wav"); err != nil {
			u.log.Error().Err(err).Str("key", job.key).Msg("chunk archive upload failed")
		}
		cancel()
	}
}
