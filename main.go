package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"custseg/app"
	"custseg/config"
	chttp "custseg/http"
	"custseg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Load data and train; nothing is served until this succeeds
	a, err := app.Build(ctx, cfg, lg.Logger)
	if err != nil {
		lg.Error("startup failed", zap.Error(err))
		lg.Close()
		os.Exit(1)
	}
	defer a.Close()

	go func() {
		err := config.Watch(ctx, *configPath, lg.Logger, func(next *config.Config) {
			if err := lg.SetLevel(next.Log.Level); err != nil {
				lg.Warn("ignoring log level", zap.Error(err))
			}
		})
		if err != nil {
			lg.Warn("config watch stopped", zap.Error(err))
		}
	}()

	// 4. Start HTTP server
	server, err := chttp.NewServer(chttp.ServerConfig{
		Port:         cfg.Http.Port,
		Timeout:      cfg.Http.Timeout,
		MaxBodyBytes: cfg.Http.MaxBodyBytes,
	}, a, lg.Logger)
	if err != nil {
		lg.Error("create server", zap.Error(err))
		return
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Handle graceful shutdown
	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			lg.Error("HTTP server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		lg.Warn("server forced to shutdown", zap.Error(err))
	}
	lg.Info("exiting")
}
