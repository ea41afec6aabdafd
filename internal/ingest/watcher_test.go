package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/pipeline"
)

type fakeSubmitter struct {
	mu         sync.Mutex
	chunks     []pipeline.Chunk
	detections []bible.Detection
	err        error
}

func (f *fakeSubmitter) Submit(ctx context.Context, chunk pipeline.Chunk) ([]bible.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunk)
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

func (f *fakeSubmitter) submitted() []pipeline.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pipeline.Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out
}

func writeDropFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWatcherDrainsExistingFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeDropFile(t, dir, "chunk-0002.wav", "second")
	writeDropFile(t, dir, "chunk-0001.wav", "first")
	writeDropFile(t, dir, "notes.txt", "not audio")

	sub := &fakeSubmitter{}
	fw := NewFileWatcher(WatcherOptions{
		WatchDir:  dir,
		Submitter: sub,
		Log:       zerolog.Nop(),
	})
	if err := fw.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	waitFor(t, func() bool { return len(sub.submitted()) == 2 },
		"existing files were not drained")

	chunks := sub.submitted()
	if string(chunks[0].Audio) != "first" || string(chunks[1].Audio) != "second" {
		t.Errorf("drain order = %q,%q; want filename order", chunks[0].Audio, chunks[1].Audio)
	}

	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "chunk-0001.wav"))
		return os.IsNotExist(err)
	}, "processed file was not removed")

	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("non-audio file should be left alone: %v", err)
	}
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	sub := &fakeSubmitter{}

	var mu sync.Mutex
	var published [][]bible.Detection
	sub.detections = []bible.Detection{{Source: bible.SourceModel}}

	fw := NewFileWatcher(WatcherOptions{
		WatchDir:  dir,
		Submitter: sub,
		Publish: func(batch []bible.Detection) {
			mu.Lock()
			published = append(published, batch)
			mu.Unlock()
		},
		Log: zerolog.Nop(),
	})
	if err := fw.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	waitFor(t, func() bool { return fw.Status().Status == "watching" },
		"watcher never reached watching state")

	path := writeDropFile(t, dir, "chunk-0003.wav", "live")

	waitFor(t, func() bool { return len(sub.submitted()) == 1 },
		"new file was not submitted")
	waitFor(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, "processed file was not removed")

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 {
		t.Errorf("published %d batches, want 1", len(published))
	}
}

func TestWatcherKeepsFileOnSubmitError(t *testing.T) {
	dir := t.TempDir()
	path := writeDropFile(t, dir, "chunk-0001.wav", "audio")

	sub := &fakeSubmitter{err: errors.New("queue full")}
	fw := NewFileWatcher(WatcherOptions{
		WatchDir:  dir,
		Submitter: sub,
		Log:       zerolog.Nop(),
	})
	if err := fw.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	waitFor(t, func() bool { return fw.Status().FilesSkipped == 1 },
		"failed file was not counted as skipped")

	if _, err := os.Stat(path); err != nil {
		t.Errorf("failed file should remain for retry: %v", err)
	}
}

func TestWatcherSkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeDropFile(t, dir, "chunk-0001.wav", "")

	sub := &fakeSubmitter{}
	fw := NewFileWatcher(WatcherOptions{
		WatchDir:  dir,
		Submitter: sub,
		Log:       zerolog.Nop(),
	})
	if err := fw.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	waitFor(t, func() bool { return fw.Status().FilesSkipped == 1 },
		"empty file was not skipped")
	if got := len(sub.submitted()); got != 0 {
		t.Errorf("empty file was submitted %d times, want 0", got)
	}
}

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"chunk.wav", true},
		{"chunk.WAV", true},
		{"chunk.mp3", true},
		{"chunk.webm", true},
		{"chunk.flac", true},
		{"chunk.json", false},
		{"chunk.wav.tmp", false},
		{"chunk", false},
	}
	for _, tt := range tests {
		if got := isAudioFile(tt.path); got != tt.want {
			t.Errorf("isAudioFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
