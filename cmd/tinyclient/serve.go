package main

import (
	"context"
	"time"

	"github.com/samvad-hq/tinyclients/internal/app"
	"github.com/samvad-hq/tinyclients/internal/gateway"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides GATEWAY_ADDR"},
		},
		Action: func(cctx *cli.Context) error {
			return withApp(cctx, func(ctx context.Context, a *app.App) error {
				cfg := a.Config()
				store, err := gateway.NewCookieStore(cfg.SessionSecret)
				if err != nil {
					return err
				}
				srv, err := gateway.NewServer(a, store, cfg.SessionName)
				if err != nil {
					return err
				}
				addr := cfg.GatewayAddr
				if v := cctx.String("addr"); v != "" {
					addr = v
				}
				return srv.Run(ctx, addr, time.Duration(cfg.GatewayShutdownSeconds)*time.Second)
			})
		},
	}
}
