// Command alttext runs the alt-text generation pipeline against a local
// asset store: batch generation, a directory import, and an HTTP gateway
// with a queue worker for UI-driven generation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/pixelforge/alttext"
	"github.com/pixelforge/alttext/cms"
	"github.com/pixelforge/alttext/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file (optional, env vars apply on top)")
	dbPath     = flag.String("db", "", "Path to the asset database (overrides config store_path)")
	envMode    = flag.String("env", "development", "Logger mode: development or production")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: alttext [flags] <command> [command flags]

Commands:
  generate [container]   Generate alt text for image assets
  import <dir>           Register a directory of images in the asset store
  serve                  Run the trigger/check HTTP gateway and queue worker

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	log, err := newLogger(*envMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := alttext.LoadConfig(*configPath)
	if err != nil {
		log.Fatalw("could not load config", "error", err)
	}
	if *dbPath != "" {
		cfg.StorePath = *dbPath
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var cmdErr error
	switch flag.Arg(0) {
	case "generate":
		cmdErr = runGenerate(ctx, cfg, log, flag.Args()[1:])
	case "import":
		cmdErr = runImport(ctx, cfg, log, flag.Args()[1:])
	case "serve":
		cmdErr = runServe(ctx, cfg, log)
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil && ctx.Err() == nil {
		log.Fatalw("command failed", "error", cmdErr)
	}
}

func newLogger(mode string) (*zap.SugaredLogger, error) {
	var zcfg zap.Config
	if strings.HasPrefix(strings.ToLower(mode), "prod") {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func openStore(ctx context.Context, cfg *alttext.Config) (*store.DB, error) {
	return store.New(ctx, cfg.StorePath)
}

// nullQueue rejects dispatch attempts on code paths that run without a
// queue connection.
type nullQueue struct{}

func (nullQueue) Enqueue(context.Context, cms.Job) error {
	return fmt.Errorf("no queue configured, run with a redis connection")
}
