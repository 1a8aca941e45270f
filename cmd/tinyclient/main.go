package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/tinyclients/internal/app"
	"github.com/samvad-hq/tinyclients/internal/config"
	"github.com/samvad-hq/tinyclients/internal/logger"
	"github.com/samvad-hq/tinyclients/pkg/rest"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "tinyclient: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := cli.App{
		Name:    "tinyclient",
		Usage:   "command line client for FireEye AX, Nessus and VxStream sandboxes",
		Version: rest.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "result format: json or yaml",
				Value:   "json",
			},
		},
	}
	cliApp.Commands = []*cli.Command{
		fireEyeCommand(),
		nessusCommand(),
		vxStreamCommand(),
		serveCommand(),
	}
	return cliApp.RunContext(ctx, args)
}

// withApp loads config, sets up logging and hands fn a ready App.
func withApp(cctx *cli.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("tinyclient starting", "config", redacted(cfg))

	a, err := app.New(cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize clients", "error", err.Error())
		return err
	}
	defer a.Close()

	return fn(cctx.Context, a)
}

// redacted summarizes cfg without credentials.
func redacted(cfg *config.Config) map[string]any {
	return map[string]any{
		"app_name":             cfg.AppName,
		"app_env":              cfg.Env,
		"log_level":            cfg.LogLevel,
		"http_timeout_seconds": cfg.HTTPTimeoutSeconds,
		"token_store":          cfg.TokenStore,
		"token_store_path":     cfg.TokenStorePath,
		"gateway_addr":         cfg.GatewayAddr,
		"fireeye_base_url":     cfg.FireEye.BaseURL,
		"nessus_base_url":      cfg.Nessus.BaseURL,
		"vxstream_base_url":    cfg.VxStream.BaseURL,
	}
}
