package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/w2w-relay/internal/config"
	"github.com/aman-zulfiqar/w2w-relay/internal/flags"
	"github.com/aman-zulfiqar/w2w-relay/internal/server"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the relay daemon.
// It builds the engine and serves the operator API until SIGINT/SIGTERM.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	engine, err := swapengine.NewEngine(ctx, swapengine.EngineConfigFromConfig(cfg), logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize relay engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.WithError(err).Warn("engine close")
		}
	}()

	// Flags CRUD is only served when the engine runs against Redis.
	flagStore, _ := engine.Flags().(*flags.Store)
	if flagStore == nil {
		logger.Warn("REDIS_ADDR not set; relay switches and outcome cache disabled")
	}

	h := &server.Handlers{
		Engine:  engine,
		Flags:   flagStore,
		DevMode: cfg.DevMode,
		Logger:  logger,
		Timeout: cfg.RequestTimeout,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:           cfg.HTTPAddr,
			DevMode:        cfg.DevMode,
			APIKey:         cfg.APIKey,
			AdminAPIKey:    cfg.AdminAPIKey,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"addr":     cfg.HTTPAddr,
		"executor": engine.Executor().Address().Hex(),
		"operator": engine.Executor().Operator().Hex(),
	}).Info("relay api starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("relay api failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("wait for shutdown")
	}
}
