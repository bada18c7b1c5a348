package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"chatmatch/internal/app"
	"chatmatch/internal/config"
	"chatmatch/internal/logging"
)

const shutdownTimeout = 30 * time.Second

// options holds the parsed command line
type options struct {
	configPath string
	overrides  config.Overrides
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, args, stderr)
}

// serve runs the server until ctx is cancelled
func serve(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfigWithPrecedence(opts.configPath, opts.overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown requested, stopping gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// parseFlags reads the command line. Only flags that were actually set
// become overrides, so unset flags never mask file or environment values.
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := pflag.NewFlagSet("chatmatch", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.StringP("config", "c", os.Getenv(config.EnvPrefix+"CONFIG_FILE"), "path to a JSON, JSONC, YAML or TOML config file")
	host := fs.String("host", "", "listen host")
	port := fs.IntP("port", "p", 0, "listen port")
	origins := fs.StringArray("allowed-origin", nil, "origin allowed to open chat connections (repeatable, \"*\" allows all)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")
	statsDB := fs.String("stats-db", "", "enable anonymous session statistics in this SQLite file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts := &options{configPath: *configPath}
	if fs.Changed("host") {
		opts.overrides.Host = host
	}
	if fs.Changed("port") {
		opts.overrides.Port = port
	}
	if fs.Changed("allowed-origin") {
		opts.overrides.AllowedOrigins = *origins
	}
	if fs.Changed("log-level") {
		opts.overrides.LogLevel = logLevel
	}
	if fs.Changed("stats-db") {
		opts.overrides.StatsDB = statsDB
	}
	return opts, nil
}
