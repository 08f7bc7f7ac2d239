package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david-morgenstern/filebrowser/internal/handlers"
	"github.com/david-morgenstern/filebrowser/internal/history"
	"github.com/david-morgenstern/filebrowser/internal/logging"
	"github.com/david-morgenstern/filebrowser/internal/memory"
	"github.com/david-morgenstern/filebrowser/internal/middleware"
	"github.com/david-morgenstern/filebrowser/internal/probe"
	"github.com/david-morgenstern/filebrowser/internal/startup"
	"github.com/david-morgenstern/filebrowser/internal/subtitles"
	"github.com/david-morgenstern/filebrowser/internal/transcoder"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	logging.ConfigureOutput()
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize watch history store
	storeStart := time.Now()
	store, err := history.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize watch history store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn("Failed to close history store: %v", err)
		}
	}()
	startup.LogHistoryInit(time.Since(storeStart))

	// Initialize probe, transcoder, and subtitle extractor
	startup.LogTranscoderInit(config.TranscodingEnabled, config.MaxSessions)

	var (
		prober    probe.MetadataProber
		manager   *transcoder.Manager
		extractor *subtitles.Extractor
	)
	if config.TranscodingEnabled {
		prober = probe.NewFFProbe(config.FFprobePath, config.ProbeTimeout)
		launcher := transcoder.NewFFmpegLauncher(config.FFmpegPath)
		manager = transcoder.New(prober, launcher, store, config.MaxSessions)
		extractor = subtitles.NewExtractor(config.FFmpegPath, 0)
	}

	// Initialize handlers
	h := handlers.New(store, prober, manager, extractor, config)
	startup.LogThumbnailInit(config.ThumbnailsEnabled)

	// Setup router
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply metrics middleware
	meteredHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Apply compression middleware
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(meteredHandler)

	// Create server. WriteTimeout stays zero: transcode streams run for the
	// length of the source material.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port so scrapes never contend with streams
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, manager)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func handleShutdown(srv, metricsSrv *http.Server, manager *transcoder.Manager) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if manager != nil {
		startup.LogShutdownStep("Terminating encoder sessions")
		manager.Cleanup()
		startup.LogShutdownStepComplete("Encoder sessions terminated")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
