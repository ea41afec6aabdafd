package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/apperr"
)

// Default ceilings: ephemeral disk quota and the vendor payload limit.
const (
	DefaultMaxTempBytes    = 500 << 20 // 500MB
	DefaultMaxPayloadBytes = 25 << 20  // 25MB, Whisper API limit
)

const maxRetries = 3

// Metadata is the caller-supplied chunk context, passed through unchanged so
// downstream stages can correlate results to the originating chunk.
type Metadata struct {
	Sequence    int64
	TimestampMs int64
	DurationMs  int64
}

// Result is one transcribed chunk.
type Result struct {
	Text        string `json:"text"`
	TimestampMs int64  `json:"timestamp"`
	Sequence    int64  `json:"sequence"`
	DurationMs  int64  `json:"duration"`
}

// AdapterOptions configures the transcription adapter.
type AdapterOptions struct {
	Provider        Provider
	TempDir         string
	MaxTempBytes    int64
	MaxPayloadBytes int64
	RetryDelay      time.Duration
	Log             zerolog.Logger
}

// Adapter wraps a speech-to-text provider with size validation, a scoped
// temp file for the audio bytes, and bounded retry on transient network
// failures.
type Adapter struct {
	provider        Provider
	tempDir         string
	maxTempBytes    int64
	maxPayloadBytes int64
	retryDelay      time.Duration
	log             zerolog.Logger
}

// NewAdapter creates a transcription adapter.
func NewAdapter(opts AdapterOptions) *Adapter {
	if opts.MaxTempBytes == 0 {
		opts.MaxTempBytes = DefaultMaxTempBytes
	}
	if opts.MaxPayloadBytes == 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Adapter{
		provider:        opts.Provider,
		tempDir:         opts.TempDir,
		maxTempBytes:    opts.MaxTempBytes,
		maxPayloadBytes: opts.MaxPayloadBytes,
		retryDelay:      opts.RetryDelay,
		log:             opts.Log,
	}
}

// Transcribe sends one audio chunk to the provider and returns the text with
// the caller's metadata unchanged. The temp file written for the vendor call
// is removed on every exit path.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, meta Metadata) (*Result, error) {
	size := int64(len(audio))
	if size > a.maxTempBytes {
		return nil, apperr.New(apperr.FileSize,
			"audio size %dMB exceeds temp storage limit of %dMB", size>>20, a.maxTempBytes>>20)
	}
	if size > a.maxPayloadBytes {
		return nil, apperr.New(apperr.FileSize,
			"audio size %dMB exceeds vendor payload limit of %dMB", size>>20, a.maxPayloadBytes>>20)
	}

	if err := os.MkdirAll(a.tempDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "create temp dir")
	}

	// Best-effort free space pre-check: warn and proceed when it cannot be
	// determined, fail only when space is known to be insufficient.
	if avail, err := diskFree(a.tempDir); err != nil {
		a.log.Warn().Err(err).Str("dir", a.tempDir).Msg("could not check temp dir free space")
	} else if avail < size {
		return nil, apperr.New(apperr.Storage, "insufficient space in temporary storage")
	}

	path := filepath.Join(a.tempDir, fmt.Sprintf("chunk-%d-%d.wav", meta.Sequence, time.Now().UnixNano()))
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "write temp audio file")
	}
	defer os.Remove(path)

	resp, err := a.transcribeWithRetry(ctx, path)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:        strings.TrimSpace(resp.Text),
		TimestampMs: meta.TimestampMs,
		Sequence:    meta.Sequence,
		DurationMs:  meta.DurationMs,
	}, nil
}

// transcribeWithRetry calls the provider, retrying transient network resets
// up to maxRetries times with linearly increasing backoff. Any other failure
// class propagates immediately.
func (a *Adapter) transcribeWithRetry(ctx context.Context, path string) (*Response, error) {
	retries := 0
	for {
		resp, err := a.provider.Transcribe(ctx, path)
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) || retries >= maxRetries {
			return nil, apperr.Wrap(apperr.Transcription, err, "speech-to-text request failed")
		}

		retries++
		delay := a.retryDelay * time.Duration(retries)
		a.log.Warn().Err(err).
			Int("attempt", retries+1).
			Dur("backoff", delay).
			Msg("transient transcription failure, retrying")

		select {
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.Transcription, ctx.Err(), "transcription cancelled during backoff")
		case <-time.After(delay):
		}
	}
}

// isTransient reports whether err is a connection-reset class failure worth
// retrying. Everything else (auth, payload, timeouts) is surfaced as-is.
func isTransient(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return strings.Contains(err.Error(), "connection reset")
}
