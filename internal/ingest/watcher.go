// Package ingest feeds the processing pipeline from a watched drop
// directory, as an alternative to pushing chunks over the HTTP API. Capture
// tooling writes finished audio segments into the directory; the watcher
// submits them in order and removes them once processed.
package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/pipeline"
)

// Submitter accepts audio chunks for processing.
type Submitter interface {
	Submit(ctx context.Context, chunk pipeline.Chunk) ([]bible.Detection, error)
}

// FileWatcher monitors a drop directory for new audio files and submits
// them to the pipeline. Files are removed after successful processing;
// failed files stay in place for inspection and retry on restart.
type FileWatcher struct {
	submitter Submitter
	watchDir  string
	publish   func([]bible.Detection)
	log       zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesProcessed atomic.Int64
	filesSkipped   atomic.Int64
	status         atomic.Value // string: "starting", "watching", "stopped"
}

// WatcherOptions configures a FileWatcher.
type WatcherOptions struct {
	WatchDir  string
	Submitter Submitter
	Publish   func([]bible.Detection) // called with each non-empty detection batch
	Log       zerolog.Logger
}

// NewFileWatcher creates a watcher for the given drop directory.
func NewFileWatcher(opts WatcherOptions) *FileWatcher {
	fw := &FileWatcher{
		submitter:      opts.Submitter,
		watchDir:       opts.WatchDir,
		publish:        opts.Publish,
		log:            opts.Log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
	}
	fw.status.Store("starting")
	return fw
}

// Start begins watching. Audio files already sitting in the drop directory
// are submitted first, in filename order, before live events are handled.
func (fw *FileWatcher) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	fw.watcher = w
	fw.ctx, fw.cancel = context.WithCancel(ctx)

	if err := w.Add(fw.watchDir); err != nil {
		w.Close()
		return err
	}

	fw.log.Info().Str("watch_dir", fw.watchDir).Msg("file watcher initialized")

	go func() {
		fw.drainExisting()
		fw.status.Store("watching")
		fw.watchLoop()
	}()

	return nil
}

// Stop closes the watcher and cancels in-flight processing.
func (fw *FileWatcher) Stop() {
	fw.status.Store("stopped")
	if fw.cancel != nil {
		fw.cancel()
	}
	if fw.watcher != nil {
		fw.watcher.Close()
	}
	fw.log.Info().
		Int64("files_processed", fw.filesProcessed.Load()).
		Int64("files_skipped", fw.filesSkipped.Load()).
		Msg("file watcher stopped")
}

// WatcherStatus is reported on the health endpoint.
type WatcherStatus struct {
	Status         string `json:"status"`
	WatchDir       string `json:"watchDir"`
	FilesProcessed int64  `json:"filesProcessed"`
	FilesSkipped   int64  `json:"filesSkipped"`
}

// Status returns the current watcher state.
func (fw *FileWatcher) Status() WatcherStatus {
	s, _ := fw.status.Load().(string)
	return WatcherStatus{
		Status:         s,
		WatchDir:       fw.watchDir,
		FilesProcessed: fw.filesProcessed.Load(),
		FilesSkipped:   fw.filesSkipped.Load(),
	}
}

// drainExisting submits files left over from a previous run, in filename
// order so chunk order is preserved across restarts.
func (fw *FileWatcher) drainExisting() {
	var paths []string
	_ = filepath.WalkDir(fw.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if isAudioFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)

	for _, path := range paths {
		select {
		case <-fw.ctx.Done():
			return
		default:
		}
		fw.processFile(path)
	}

	if len(paths) > 0 {
		fw.log.Info().Int("files", len(paths)).Msg("drained existing drop files")
	}
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isAudioFile(event.Name) {
				continue
			}
			fw.scheduleProcess(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces file processing by 500ms. This coalesces rapid
// Create+Write events and ensures the file is fully written before reading.
func (fw *FileWatcher) scheduleProcess(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if t, ok := fw.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	fw.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()

		fw.processFile(path)
	})
}

// processFile reads one audio file, submits it as a chunk, broadcasts any
// detections, and removes the file on success.
func (fw *FileWatcher) processFile(path string) {
	audio, err := os.ReadFile(path)
	if err != nil {
		fw.log.Warn().Err(err).Str("path", path).Msg("failed to read audio file")
		fw.filesSkipped.Add(1)
		return
	}
	if len(audio) == 0 {
		fw.filesSkipped.Add(1)
		return
	}

	timestampMs := time.Now().UnixMilli()
	if info, err := os.Stat(path); err == nil {
		timestampMs = info.ModTime().UnixMilli()
	}

	detections, err := fw.submitter.Submit(fw.ctx, pipeline.Chunk{
		Audio:       audio,
		TimestampMs: timestampMs,
	})
	if err != nil {
		fw.log.Warn().Err(err).Str("path", path).Msg("failed to process dropped file")
		fw.filesSkipped.Add(1)
		return
	}

	if len(detections) > 0 && fw.publish != nil {
		fw.publish(detections)
	}

	if err := os.Remove(path); err != nil {
		fw.log.Warn().Err(err).Str("path", path).Msg("failed to remove processed file")
	}
	fw.filesProcessed.Add(1)
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3", ".ogg", ".webm", ".m4a", ".flac":
		return true
	}
	return false
}
