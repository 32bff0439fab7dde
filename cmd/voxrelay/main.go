package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxrelay/voxrelay/internal/api"
	"github.com/voxrelay/voxrelay/internal/artifact"
	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/dispatch"
	"github.com/voxrelay/voxrelay/internal/janitor"
	"github.com/voxrelay/voxrelay/internal/job"
	"github.com/voxrelay/voxrelay/internal/logging"
	"github.com/voxrelay/voxrelay/internal/synth"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.NewWithFile(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	logger.Info("starting voxrelay", "version", "0.1.0")

	// Warn if bearer token auth is disabled
	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"max_text_length", cfg.MaxTextLength,
		"synth_timeout", cfg.SynthTimeout,
		"artifact_dir", cfg.ArtifactDir,
		"artifact_retention", cfg.ArtifactRetention,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	// Build the synthesis chain. Order matters: the first registered engine
	// is the primary, the rest are fallbacks.
	chain := synth.NewChain()

	modelPath := cfg.PiperModel
	if modelPath == "" && cfg.VoicesDir != "" {
		modelPath, err = synth.DiscoverModel(cfg.VoicesDir)
		if err != nil {
			logger.Warn("voice model discovery failed", "voices_dir", cfg.VoicesDir, "error", err)
		} else {
			logger.Info("discovered voice model", "model", modelPath)
		}
	}

	if modelPath != "" {
		piperEngine := synth.NewPiperEngine(synth.PiperConfig{
			BinaryPath:   cfg.PiperPath,
			ModelPath:    modelPath,
			DefaultVoice: cfg.DefaultVoice,
		}, logger)
		defer piperEngine.Close()

		if err := chain.Register(piperEngine); err != nil {
			logger.Warn("failed to register piper engine", "error", err)
		} else {
			logger.Info("piper engine registered", "model", modelPath, "ready", piperEngine.Ready())
		}
	} else {
		logger.Warn("no piper model configured, local synthesis unavailable")
	}

	if cfg.RemoteURL != "" {
		remoteEngine := synth.NewRemoteEngine(synth.RemoteConfig{
			URL:    cfg.RemoteURL,
			APIKey: cfg.RemoteAPIKey,
			Voice:  cfg.RemoteVoice,
		}, logger)

		if err := chain.Register(remoteEngine); err != nil {
			logger.Warn("failed to register remote engine", "error", err)
		} else {
			logger.Info("remote engine registered", "url", cfg.RemoteURL)
		}
	}

	if chain.Len() == 0 {
		logger.Warn("no synthesis engines configured, all requests will be rejected")
	}

	// Artifact storage
	artifacts, err := artifact.NewStore(cfg.ArtifactDir)
	if err != nil {
		logger.Error("failed to create artifact store", "error", err, "dir", cfg.ArtifactDir)
		os.Exit(1)
	}

	// Job store and dispatcher
	store := job.NewStore()
	dispatcher := dispatch.New(store, chain, artifacts, dispatch.Options{
		MaxTextLength:  cfg.MaxTextLength,
		DefaultVoice:   cfg.DefaultVoice,
		AttemptTimeout: cfg.SynthTimeout,
	}, logger)

	// Janitor expires finished jobs and sweeps stale ones
	jn := janitor.New(store, artifacts, cfg.ArtifactRetention, cfg.StaleJobAfter, cfg.SweepInterval, logger)
	dispatcher.SetTerminalCallback(jn.ScheduleDelete)
	go jn.Run(ctx)

	// Create and start HTTP server
	server := api.New(cfg, logger, dispatcher, store, chain, artifacts)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
}
