// Command mindscope trains the depression risk models on startup and serves
// predictions over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuminosukeSato/mindscope/internal/config"
	"github.com/YuminosukeSato/mindscope/internal/dataset"
	"github.com/YuminosukeSato/mindscope/internal/registry"
	"github.com/YuminosukeSato/mindscope/internal/server"
	"github.com/YuminosukeSato/mindscope/pkg/log"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	var (
		configPath  string
		envPath     string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "Path to configuration file")
	flag.StringVar(&envPath, "env", ".env", "Path to .env file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("mindscope\nVersion: %s\nCommit: %s\n", version, commit)
		return
	}

	if err := run(configPath, envPath); err != nil {
		log.GetLoggerWithName("main").Error("startup failed", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return err
	}
	if err := log.SetupLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("main")
	logger.Info("starting mindscope", "version", version, "commit", commit)
	cfg.LogSummary(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	raw, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return err
	}
	prepared, err := dataset.Prepare(raw)
	if err != nil {
		return err
	}
	reg, err := registry.Build(ctx, prepared, cfg.Training)
	if err != nil {
		return err
	}
	logger.Info("startup training finished",
		log.RunIDKey, reg.RunID(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return server.New(cfg.Server, reg).Start(ctx)
}
