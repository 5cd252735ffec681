package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	httpapi "guildgate/internal/api/http"
	"guildgate/internal/bootstrap"
	"guildgate/internal/config"
	"guildgate/internal/jobs"
	"guildgate/internal/logger"
	"guildgate/internal/platform"
	"guildgate/internal/scheduler"
	"guildgate/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting guildgate verification server...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "redirect_uri", cfg.Discord.RedirectURI)

	ctx := context.Background()

	// Initialize Storage
	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open storage", "error", err)
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer stores.Close()

	// Initialize Queue
	verificationQueue, closeQueue, err := bootstrap.OpenQueue(cfg)
	if err != nil {
		logger.Error("Failed to open verification queue", "error", err)
		log.Fatalf("Failed to open verification queue: %v", err)
	}
	defer closeQueue()

	// Connect to Discord
	session, err := platform.NewDiscordSession(cfg.Discord.BotToken)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	if err := session.Open(); err != nil {
		logger.Error("Failed to open Discord gateway", "error", err)
		log.Fatalf("Failed to open Discord gateway: %v", err)
	}
	defer session.Close()
	logger.Info("Discord gateway connected", "guilds", len(session.State.Guilds))

	// Initialize Services
	discordClient := platform.NewDiscordClient(session)
	verificationSvc := service.NewVerificationService(stores.GuildConfigs, stores.Records, discordClient)

	// Initialize job runner and scheduler
	jobRunner := jobs.NewJobRunner(verificationQueue, &jobs.Services{Verification: verificationSvc}, cfg)
	sched, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.Start()

	// Set up HTTP server
	router := mux.NewRouter()
	callbackHandler := httpapi.NewOAuthCallbackHandler(bootstrap.IdentityProvider(cfg), bootstrap.StateCodec(cfg), verificationQueue)
	httpapi.RegisterRoutes(router, callbackHandler)

	server := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Finish the drain in progress; anything still queued in memory is lost
	sched.Stop()
	logger.Info("Server stopped")
}
