package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/api"
	"github.com/EpaphrasSam/verse-catch/internal/archive"
	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/broadcast"
	"github.com/EpaphrasSam/verse-catch/internal/config"
	"github.com/EpaphrasSam/verse-catch/internal/database"
	"github.com/EpaphrasSam/verse-catch/internal/detect"
	"github.com/EpaphrasSam/verse-catch/internal/ingest"
	"github.com/EpaphrasSam/verse-catch/internal/pipeline"
	"github.com/EpaphrasSam/verse-catch/internal/transcribe"
)

var version = "dev"

const eventRingSize = 256

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "http", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace..error)")
	flag.StringVar(&overrides.DatabaseURL, "db", "", "database connection URL")
	flag.StringVar(&overrides.WatchDir, "watch-dir", "", "audio drop directory")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("verse-catch starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Translation store
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	// Transcription
	whisper := transcribe.NewWhisperClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel, cfg.WhisperTimeout)
	adapter := transcribe.NewAdapter(transcribe.AdapterOptions{
		Provider:   whisper,
		TempDir:    cfg.TempDir,
		RetryDelay: cfg.RetryDelay,
		Log:        log.With().Str("component", "transcribe").Logger(),
	})

	// Verse detection
	prompts, err := detect.NewPromptSource(cfg.PromptFile, cfg.MinConfidence, log.With().Str("component", "prompts").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load prompt template")
	}
	defer prompts.Close()

	model := detect.NewChatModel(cfg.DetectAPIKey, cfg.DetectBaseURL, cfg.DetectModel, cfg.DetectTimeout)
	detector := detect.NewDetector(detect.Options{
		Model:              model,
		Store:              db,
		Prompts:            prompts,
		MinConfidence:      cfg.MinConfidence,
		DefaultTranslation: cfg.DefaultTranslation,
		Log:                log.With().Str("component", "detect").Logger(),
	})

	// Pipeline
	processor := pipeline.NewProcessor(pipeline.Options{
		Transcriber:  adapter,
		Detector:     detector,
		MaxQueueSize: cfg.MaxQueueSize,
		MaxChunkMs:   cfg.MaxChunkMs,
		MaxBuffer:    cfg.MaxAccumBuffer,
		Log:          log.With().Str("component", "pipeline").Logger(),
	})

	// Broadcast
	bus := broadcast.NewEventBus(eventRingSize)

	var mqtt *broadcast.MQTTPublisher
	if cfg.MQTTBrokerURL != "" {
		mqtt, err = broadcast.ConnectMQTT(broadcast.MQTTOptions{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
	}

	publish := func(detections []bible.Detection) {
		bus.Publish(broadcast.EventVersesDetected, detections)
		if mqtt != nil {
			mqtt.PublishDetections(detections)
		}
	}

	// Chunk archive
	var archiveFn func(timestampMs, sequence int64, audio []byte)
	var archiveStore archive.Store
	switch {
	case cfg.S3Bucket != "":
		store, err := archive.NewS3Store(archive.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure chunk archive")
		}
		if err := store.HeadBucket(ctx); err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.S3Bucket).Msg("archive bucket check failed")
		}
		archiveStore = store
	case cfg.ArchiveDir != "":
		archiveStore = archive.NewLocalStore(cfg.ArchiveDir)
	}
	if archiveStore != nil {
		uploader := archive.NewAsyncUploader(archiveStore, 64, log)
		uploader.Start(2)
		defer uploader.Stop()
		archiveFn = uploader.EnqueueChunk
	}

	// Drop-folder ingest
	var watcher *ingest.FileWatcher
	if cfg.WatchDir != "" {
		watcher = ingest.NewFileWatcher(ingest.WatcherOptions{
			WatchDir:  cfg.WatchDir,
			Submitter: processor,
			Publish:   publish,
			Log:       log,
		})
		if err := watcher.Start(ctx); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.WatchDir).Msg("failed to start file watcher")
		}
		defer watcher.Stop()
	}

	// HTTP server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:    cfg,
		DB:        db,
		Processor: processor,
		Detector:  detector,
		Store:     db,
		Bus:       bus,
		MQTT:      connOrNil(mqtt),
		Watcher:   watcherOrNil(watcher),
		Publish:   publish,
		Archive:   archiveFn,
		Version:   version,
		StartTime: startTime,
		Log:       httpLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("verse-catch stopped")
}

// connOrNil avoids handing the server a typed nil interface.
func connOrNil(m *broadcast.MQTTPublisher) api.ConnectionReporter {
	if m == nil {
		return nil
	}
	return m
}

func watcherOrNil(w *ingest.FileWatcher) api.WatcherReporter {
	if w == nil {
		return nil
	}
	return w
}
