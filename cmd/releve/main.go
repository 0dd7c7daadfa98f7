// Command releve surveys a catalog site for launch dates or retail
// price ranges across a roster of models, resumably.
//
// Usage:
//
//	releve -config releve.yaml                      # run from YAML config
//	releve -roster roster.csv -source gsmarena      # run with flags
//	releve -roster roster.csv -mode retry-errors -error-list errors.txt
//	releve -config releve.yaml -mcp                 # serve operator tools on stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/releve"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to releve.yaml config file")
	rosterPath := flag.String("roster", "", "path to the roster CSV")
	source := flag.String("source", "", "catalog source: gsmarena, amazon, flipkart")
	mode := flag.String("mode", "", "run mode: fresh, resume, retry-errors")
	errorList := flag.String("error-list", "", "label list for retry-errors mode")
	stateDB := flag.String("state-db", "", "SQLite state database path")
	controlAddr := flag.String("control-addr", "", "operator HTTP listen address (empty = off)")
	controlToken := flag.String("control-token", "", "bearer token for the operator surface")
	headless := flag.Bool("headless", false, "run Chrome headless")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio instead of running")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := buildConfig(*configPath, *rosterPath, *source, *mode, *errorList, *stateDB, *controlAddr, *controlToken, *headless)
	if err != nil {
		logger.Error("releve: fatal", "error", err)
		os.Exit(1)
	}
	if cfg.Roster == "" {
		fmt.Fprintln(os.Stderr, "usage: releve -config <file> | -roster <csv> [-source <s>] [-mode <m>]")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *mcpMode); err != nil {
		logger.Error("releve: fatal", "error", err)
		os.Exit(1)
	}
}

// buildConfig loads the YAML file when given and lets flags override it.
func buildConfig(configPath, roster, source, mode, errorList, stateDB, controlAddr, controlToken string, headless bool) (*releve.Config, error) {
	cfg := &releve.Config{}
	if configPath != "" {
		loaded, err := releve.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if roster != "" {
		cfg.Roster = roster
	}
	if source != "" {
		cfg.Source = source
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if errorList != "" {
		cfg.ErrorList = errorList
	}
	if stateDB != "" {
		cfg.StateDB = stateDB
	}
	if controlAddr != "" {
		cfg.Control.Addr = controlAddr
	}
	if controlToken != "" {
		cfg.Control.Token = controlToken
	}
	if headless {
		cfg.Browser.Headless = true
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *releve.Config, mcpMode bool) error {
	svc, err := releve.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Control.Addr != "" {
		go func() {
			if err := svc.ServeControl(ctx, cfg.Control.Addr, cfg.Control.Token); err != nil {
				logger.Error("control surface failed", "error", err)
			}
		}()
	}

	if mcpMode {
		return svc.ServeMCP(ctx, version)
	}

	// An interrupt is a normal exit: the run finalizer has already
	// flushed progress, and resume picks up where this run stopped.
	if _, err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
