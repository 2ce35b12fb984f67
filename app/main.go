package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/krailo/streamwatch/app/api"
	"github.com/krailo/streamwatch/app/breaker"
	"github.com/krailo/streamwatch/app/cfg"
	"github.com/krailo/streamwatch/app/config"
	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/downloads"
	"github.com/krailo/streamwatch/app/lifecycle"
	"github.com/krailo/streamwatch/app/monitor"
	"github.com/krailo/streamwatch/app/notifier"
	"github.com/krailo/streamwatch/app/tasks"
	"github.com/krailo/streamwatch/app/youtube"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	log.Printf("Starting StreamWatch %s...", appCfg.Version)

	// Database connection
	log.Println("Opening database...")
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Printf("Database ready (schema version %d, dirty: %v)", version, dirty)

	if err := os.MkdirAll(appCfg.DownloadDir, 0755); err != nil {
		log.Fatal("Failed to create download directory:", err)
	}

	// Initialize repositories
	channelRepo := database.NewChannelRepository(db)
	broadcastRepo := database.NewBroadcastRepository(db)
	jobRepo := database.NewJobRepository(db)
	breakerRepo := database.NewBreakerRepository(db)

	// Register configured channels in database
	log.Printf("Loading channel configurations from %s...", appCfg.ChannelsDir)
	loader := config.NewLoader(appCfg.ChannelsDir)
	configs, err := loader.LoadAll()
	if err != nil {
		log.Fatal("Failed to load channel configurations:", err)
	}

	registeredCount := 0
	for configFile, channelCfg := range configs {
		id, created, err := channelRepo.UpsertChannel(
			channelCfg.Channel.ID, channelCfg.Channel.Name, channelCfg.Channel.URL,
			channelCfg.Settings.CheckInterval)
		if err != nil {
			log.Printf("Warning: Failed to register channel %s: %v", configFile, err)
			continue
		}
		if err := channelRepo.SetChannelActive(channelCfg.Channel.ID, channelCfg.Settings.Enabled); err != nil {
			log.Printf("Warning: Failed to set channel state %s: %v", configFile, err)
		}
		if created {
			log.Printf("Registered channel: %s (ID: %s, DB ID: %s)", channelCfg.Channel.Name, channelCfg.Channel.ID, id)
		}
		registeredCount++
	}
	log.Printf("Successfully registered %d/%d channels", registeredCount, len(configs))

	// Initialize core components
	httpClient := &http.Client{Timeout: 60 * time.Second}

	quotaBreaker := breaker.New("youtube_api", breakerRepo)

	feedSource := youtube.NewRSSFeedSource(httpClient, appCfg.UserAgent,
		time.Duration(appCfg.FeedTimeout)*time.Second)
	probeSource := youtube.NewYtdlpProbeSource(time.Duration(appCfg.ProbeTimeout) * time.Second)

	var apiSource youtube.APISource
	dataAPI := youtube.NewDataAPISource(httpClient, appCfg.YouTubeAPIKey, appCfg.UserAgent,
		time.Duration(appCfg.ProbeTimeout)*time.Second)
	if dataAPI.Available() {
		apiSource = dataAPI
		log.Println("YouTube Data API source enabled")
	} else {
		log.Println("YouTube Data API source disabled (YOUTUBE_API_KEY not set)")
	}

	poller := monitor.NewPoller(feedSource, probeSource, apiSource, quotaBreaker)
	detector := monitor.NewDetector(broadcastRepo)
	machine := lifecycle.NewMachine(broadcastRepo)
	machine.Subscribe(tasks.NewIntervalTuner(channelRepo, broadcastRepo))

	telegram := notifier.NewTelegram(httpClient, appCfg.TelegramBotToken, appCfg.TelegramChatID, broadcastRepo)
	if telegram.Enabled() {
		machine.Subscribe(telegram)
		log.Println("Telegram notifications enabled")
	}

	orchestrator := downloads.NewOrchestrator(jobRepo, broadcastRepo, downloads.NewYtdlpDownloader(),
		probeSource, machine, telegram, appCfg.DownloadDir, appCfg.MaxHeight)
	machine.Subscribe(orchestrator)

	monitorService := monitor.NewService(channelRepo, broadcastRepo, poller, detector, machine)

	// Initialize and start scheduler
	log.Printf("Starting background scheduler with %d workers...", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(channelRepo, broadcastRepo, monitorService, orchestrator)
	orchestrator.SetDispatcher(scheduler.DispatchDownload)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize HTTP server
	log.Println("Initializing HTTP server...")
	apiHandler := api.NewHandler(channelRepo, broadcastRepo, jobRepo, orchestrator, quotaBreaker, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	// Create HTTP server with timeouts
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("StreamWatch started successfully!")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	log.Println("StreamWatch shutdown complete")
}
