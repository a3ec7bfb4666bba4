package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/luxbridge/luxbridge/internal/bridge"
	"github.com/luxbridge/luxbridge/internal/config"
	"github.com/luxbridge/luxbridge/internal/lifecycle"
	"github.com/luxbridge/luxbridge/internal/logging"
	"github.com/luxbridge/luxbridge/internal/observability"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "luxbridged: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML config (defaults apply when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", "luxbridged").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	driver, err := bridge.DriverFromConfig(cfg.Driver)
	if err != nil {
		return err
	}

	var svc *bridge.Service
	link := bridge.NewHostLink(cfg.LinkInterface, func(ev lifecycle.Event) {
		svc.Submit(ev)
	}, logger)

	svc, err = bridge.NewService(cfg, driver, link, logger)
	if err != nil {
		return err
	}

	if cfg.Ops.ListenAddr != "" {
		ops := observability.NewOpsServer(cfg.Ops, svc.Status, logger)
		ops.Start()
		defer func() {
			if err := ops.Shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("ops shutdown failed")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return svc.Run(ctx)
}
