package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"stampchat/auth"
	"stampchat/blob"
	"stampchat/composition"
	"stampchat/httpapi"
	"stampchat/internal"
	"stampchat/moderation"
	"stampchat/repositories"
	"stampchat/runtime"
	"stampchat/runtime/workers"
	"stampchat/search"
	"stampchat/services"
	"stampchat/sink"
	"stampchat/ws"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer fires before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if config.DebugPort > 0 && logger.Enabled(ctx, slog.LevelDebug) {
		url := fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort)
		logger.Info("Debug store inspector available", "url", url)
		internal.StartDebugServer(db, config.DebugPort, nil)
	}

	index, err := search.Open(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open search index: %w", err)
	}
	defer func() {
		logger.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Repositories
	groupRepository := repositories.NewGroupRepository(db, logger)
	messageRepository := repositories.NewMessageRepository(db, logger)
	userRepository := repositories.NewUserRepository(db)

	// 4. Supervision & Orchestration
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(workers.NewHealthWorker(logger, config.MetricInterval))
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(logger, supervisor, registry,
		messageRepository, groupRepository,
		config.BufferSize, config.DeliveryTimeout)
	orchestrator.AddSinks(sink.NewSearchSink(index, logger,
		config.SearchBatchSize, config.SearchBufferTimeout))

	// 5. Composition pipeline with embedded censored vocabularies
	censoredWords, languages, err := moderation.LoadEmbedded()
	if err != nil {
		return exitConfig, fmt.Errorf("failed to load censored words: %w", err)
	}
	logger.Info("Loaded censored vocabularies", "languages", languages)
	moderator, err := moderation.NewModerator(censoredWords, charReplacement)
	if err != nil {
		return exitConfig, err
	}
	pipeline := composition.NewPipeline(moderator, logger)

	// 6. Services
	tokens := auth.NewTokenManager(config.AuthSecret, "stampchat", config.AuthTokenDuration)
	notifier := auth.NewNotifier(config.BufferSize)
	authService := services.NewAuthService(userRepository, tokens, notifier)
	directoryService := services.NewDirectoryService(groupRepository, orchestrator, logger)
	chatService := services.NewChatService(groupRepository, pipeline, orchestrator, logger)

	resolver, err := blob.NewDiskResolver(config.BlobDir, config.BlobBaseURL, logger)
	if err != nil {
		return exitRuntime, err
	}

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting orchestrator...")
	orchestrator.Start(ctx)

	// 8. HTTP server (JSON API + websocket + blobs)
	apiServer := httpapi.NewServer(authService, directoryService, chatService,
		resolver, index, tokens, resolver.Root(), logger)
	wsHandler := ws.NewHandler(chatService, tokens, logger)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: apiServer.Handler(wsHandler),
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 10. Graceful Shutdown: stop accepting, drain sockets, then workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}
	return options
}
