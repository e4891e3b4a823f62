package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickyjim626/interpreter-client/internal/audio"
	"github.com/rickyjim626/interpreter-client/internal/config"
	"github.com/rickyjim626/interpreter-client/internal/history"
	"github.com/rickyjim626/interpreter-client/internal/interpreter"
	"github.com/rickyjim626/interpreter-client/internal/metrics"
	"github.com/rickyjim626/interpreter-client/internal/pipeline"
	"github.com/rickyjim626/interpreter-client/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "interpreter-client"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	inputPath := flag.String("input", "", "Path to a WAV file to interpret")
	realtime := flag.Bool("realtime", false, "Pace file playback at recording speed")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "An input WAV file is required (-input)")
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Client starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.String("input", *inputPath),
	)

	logger.Info("Configuration loaded",
		slog.String("base_url", cfg.API.BaseURL),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("segment_duration", cfg.Audio.SegmentDuration),
		slog.Float64("overlap_duration", cfg.Audio.OverlapDuration),
		slog.String("audio_format", cfg.Audio.Format),
		slog.String("target_language", cfg.Session.TargetLanguage),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	recorder := metrics.NewRecorder()

	// Audio source and assembly
	source, err := audio.NewFileSource(audio.FileSourceConfig{
		Path:     *inputPath,
		Realtime: *realtime,
	})
	if err != nil {
		logger.Error("Failed to open audio source", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if source.SampleRate() != cfg.Audio.SampleRate {
		logger.Warn("Input sample rate differs from configuration",
			slog.Int("input", source.SampleRate()),
			slog.Int("configured", cfg.Audio.SampleRate),
		)
	}

	assembler := audio.NewAssembler(audio.AssemblerConfig{
		SampleRate:      source.SampleRate(),
		SegmentDuration: cfg.Audio.GetSegmentDuration(),
		OverlapDuration: cfg.Audio.GetOverlapDuration(),
	})

	encoder, err := audio.NewEncoder(cfg.Audio.Format)
	if err != nil {
		logger.Error("Failed to create encoder", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Session client
	client, err := interpreter.NewClient(interpreter.Config{
		BaseURL:       cfg.API.BaseURL,
		AudioFormat:   encoder.Format(),
		Timeout:       cfg.API.GetTimeoutDuration(),
		MaxRetries:    cfg.API.MaxRetries,
		MaxConcurrent: cfg.API.MaxConcurrent,
		OnRetry:       appMetrics.RecordSubmitRetry,
	}, interpreter.EnvToken(cfg.API.TokenEnv), logger)
	if err != nil {
		logger.Error("Failed to create session client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Session history (if enabled)
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			logger.Error("Failed to open history store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("Session history enabled", slog.String("path", cfg.History.Path))
	}

	correlator := pipeline.NewCorrelator(logger, recorder)

	var sink pipeline.HistorySink
	if store != nil {
		sink = store
	}

	p, err := pipeline.New(pipeline.Config{
		Session: interpreter.SessionConfig{
			TargetLanguage:    cfg.Session.TargetLanguage,
			TranslationPreset: cfg.Session.TranslationPreset,
			OverlapDuration:   cfg.Audio.OverlapDuration,
			EnableTranslation: cfg.Session.EnableTranslation,
		},
		StopTimeout: cfg.Session.GetStopFlushTimeout(),
	}, pipeline.Deps{
		Source:     source,
		Assembler:  assembler,
		Encoder:    encoder,
		Client:     client,
		Correlator: correlator,
		Recorder:   recorder,
		Metrics:    appMetrics,
		History:    sink,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize monitoring HTTP server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(server.HTTPServerConfig{
			Enabled: cfg.HTTP.Enabled,
			Address: cfg.HTTP.Address,
			Port:    cfg.HTTP.Port,
		}, logger, p, client, recorder, appMetrics)
	}

	if err := p.Start(ctx); err != nil {
		logger.Error("Failed to start pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Interpretation running, press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	session, err := p.Stop(stopCtx)
	if err != nil {
		logger.Error("Error stopping pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	printTranscript(session)
	printReport(recorder.Report())

	logger.Info("Client stopped", slog.String("session_id", session.ID))
}

// printTranscript writes the final ordered transcript to stdout.
func printTranscript(session *pipeline.Session) {
	fmt.Printf("\nSession %s (%s -> %s, %.1fs of audio)\n",
		session.ID, orUnknown(session.SourceLanguage), session.TargetLanguage,
		session.TotalDuration.Seconds())

	for _, entry := range session.Segments {
		switch entry.Status {
		case pipeline.StatusCompleted:
			fmt.Printf("[%7.2f - %7.2f] %s\n", entry.StartTime, entry.EndTime, entry.OriginalText)
			if entry.TranslatedText != "" {
				fmt.Printf("%19s %s\n", "->", entry.TranslatedText)
			}
		case pipeline.StatusFailed:
			fmt.Printf("[%7.2f - %7.2f] (failed: %s)\n", entry.StartTime, entry.EndTime, entry.Error)
		default:
			fmt.Printf("[%7.2f - %7.2f] (no result)\n", entry.StartTime, entry.EndTime)
		}
	}
}

// printReport writes the per-segment timing summary to stdout.
func printReport(report metrics.Report) {
	fmt.Printf("\nSegments: %d  avg encode: %.1fms  avg round trip: %.1fms  avg end to end: %.1fms\n",
		report.Aggregates.Segments,
		report.Aggregates.AvgEncodingMs,
		report.Aggregates.AvgRoundTripMs,
		report.Aggregates.AvgEndToEndMs,
	)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
