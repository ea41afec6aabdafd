package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
	block chan struct{} // when set, Save waits before returning
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]byte)}
}

func (f *fakeStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved[key] = data
	return nil
}

func (f *fakeStore) get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.saved[key]
	return data, ok
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestAsyncUploaderArchivesChunk(t *testing.T) {
	store := newFakeStore()
	u := NewAsyncUploader(store, 8, zerolog.Nop())
	u.Start(1)

	u.EnqueueChunk(1000, 1, []byte("audio-bytes"))
	u.Stop()

	data, ok := store.get("1000-1.wav")
	if !ok {
		t.Fatalf("chunk not archived; stored keys: %v", keysOf(store))
	}
	if string(data) != "audio-bytes" {
		t.Errorf("archived data = %q, want %q", data, "audio-bytes")
	}
}

func TestAsyncUploaderCopiesAudio(t *testing.T) {
	store := newFakeStore()
	u := NewAsyncUploader(store, 8, zerolog.Nop())

	audio := []byte("original")
	u.EnqueueChunk(1000, 1, audio)
	audio[0] = 'X' // caller may reuse its buffer after enqueue

	u.Start(1)
	u.Stop()

	data, _ := store.get("1000-1.wav")
	if string(data) != "original" {
		t.Errorf("archived data = %q, want snapshot taken at enqueue time", data)
	}
}

func TestAsyncUploaderDropsWhenFull(t *testing.T) {
	store := newFakeStore()
	store.block = make(chan struct{})
	u := NewAsyncUploader(store, 1, zerolog.Nop())
	u.Start(1)

	// One job in flight (blocked), one in the buffer; the rest must drop
	// without blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := int64(1); i <= 10; i++ {
			u.EnqueueChunk(1000, i, []byte("a"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("EnqueueChunk blocked on a full buffer")
	}

	close(store.block)
	u.Stop()

	if n := store.count(); n > 2 {
		t.Errorf("archived %d chunks, want at most 2 (rest dropped)", n)
	}
}

func TestAsyncUploaderEnqueueAfterStopIsNoop(t *testing.T) {
	store := newFakeStore()
	u := NewAsyncUploader(store, 8, zerolog.Nop())
	u.Start(1)
	u.Stop()

	u.EnqueueChunk(1000, 1, []byte("a")) // must not panic on closed channel

	if n := store.count(); n != 0 {
		t.Errorf("archived %d chunks after stop, want 0", n)
	}
}

func TestAsyncUploaderSurvivesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("bucket gone")
	u := NewAsyncUploader(store, 8, zerolog.Nop())
	u.Start(2)

	for i := int64(1); i <= 4; i++ {
		u.EnqueueChunk(1000, i, []byte("a"))
	}
	u.Stop() // workers must drain and exit despite failures
}

func keysOf(f *fakeStore) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.saved))
	for k := range f.saved {
		keys = append(keys, k)
	}
	return keys
}

