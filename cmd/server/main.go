package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ptcgsim/battle-server-go/internal/card"
	"github.com/ptcgsim/battle-server-go/internal/config"
	"github.com/ptcgsim/battle-server-go/internal/repository"
	"github.com/ptcgsim/battle-server-go/internal/server"
	"github.com/ptcgsim/battle-server-go/internal/session"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting battle server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Load card master data and deck lists
	library, err := card.NewLibrary(cfg.Cards.Path, cfg.Cards.DeckDir, logger)
	if err != nil {
		logger.Fatal("failed to load card library", zap.Error(err))
	}

	// Optional battle-result persistence
	var recorder session.ResultRecorder
	if cfg.Database.URL != "" {
		store, storeErr := repository.NewResultStore(ctx, cfg.Database.URL, logger)
		if storeErr != nil {
			logger.Warn("failed to initialize result store, results will not be recorded", zap.Error(storeErr))
		} else {
			defer store.Close()
			recorder = store
		}
	}

	// Initialize session manager
	sessionMgr := session.NewManager(library, recorder, session.Config{
		GracePeriod:         cfg.Server.GracePeriod,
		AITurnTimeout:       cfg.Server.AITurnTimeout,
		ConfidenceThreshold: cfg.Cards.ConfidenceThreshold,
		ReplayDir:           cfg.Server.ReplayDir,
	}, logger)
	logger.Info("session manager initialized",
		zap.Duration("grace_period", cfg.Server.GracePeriod),
		zap.Duration("ai_turn_timeout", cfg.Server.AITurnTimeout),
	)

	// Start finished-session eviction sweep
	go sessionMgr.CleanupFinished(ctx)

	// Start WebSocket server
	battleServer := server.NewBattleServer(cfg.Server.WebSocket, sessionMgr, library, logger)
	go func() {
		if serveErr := battleServer.ListenAndServe(); serveErr != nil {
			logger.Error("websocket server error", zap.Error(serveErr))
		}
	}()

	logger.Info("battle server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.Int("cards", library.Count()),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	sessionMgr.CloseAll()

	logger.Info("battle server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
