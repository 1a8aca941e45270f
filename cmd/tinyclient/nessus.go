package main

import (
	"context"
	"fmt"

	"github.com/samvad-hq/tinyclients/internal/app"
	"github.com/samvad-hq/tinyclients/pkg/nessus"
	"github.com/samvad-hq/tinyclients/pkg/rest"
	"github.com/urfave/cli/v2"
)

func nessusCommand() *cli.Command {
	dataFlag := &cli.StringFlag{Name: "data", Usage: "scan document as JSON or @path", Required: true}

	return &cli.Command{
		Name:  "nessus",
		Usage: "Nessus scanner",
		Subcommands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "create a scan",
				Flags: []cli.Flag{dataFlag},
				Action: runNessus(func(ctx context.Context, cctx *cli.Context, ns *nessus.Client) (*rest.Result, error) {
					data, err := jsonArg(cctx.String("data"))
					if err != nil {
						return nil, err
					}
					return ns.Submit(ctx, data)
				}),
			},
			{
				Name:  "submit-url",
				Usage: "create a scan targeting URLs",
				Flags: []cli.Flag{dataFlag},
				Action: runNessus(func(ctx context.Context, cctx *cli.Context, ns *nessus.Client) (*rest.Result, error) {
					data, err := jsonArg(cctx.String("data"))
					if err != nil {
						return nil, err
					}
					return ns.SubmitURL(ctx, data)
				}),
			},
			{
				Name:  "scans",
				Usage: "list scans",
				Action: runNessus(func(ctx context.Context, cctx *cli.Context, ns *nessus.Client) (*rest.Result, error) {
					return ns.Scans(ctx)
				}),
			},
			{
				Name:      "launch",
				Usage:     "launch a scan",
				ArgsUsage: "<scan-id>",
				Action: runNessus(func(ctx context.Context, cctx *cli.Context, ns *nessus.Client) (*rest.Result, error) {
					id, err := firstArg(cctx, "scan id")
					if err != nil {
						return nil, err
					}
					return ns.Launch(ctx, id)
				}),
			},
			{
				Name:      "status",
				Usage:     "print the scan state",
				ArgsUsage: "<scan-id>",
				Action: func(cctx *cli.Context) error {
					return withApp(cctx, func(ctx context.Context, a *app.App) error {
						id, err := firstArg(cctx, "scan id")
						if err != nil {
							return err
						}
						ns, err := a.Nessus()
						if err != nil {
							return err
						}
						res, err := ns.Status(ctx, id)
						if err != nil {
							return err
						}
						fmt.Fprintln(cctx.App.Writer, nessus.ScanState(res))
						return nil
					})
				},
			},
			{
				Name:      "results",
				Usage:     "show scan results",
				ArgsUsage: "<scan-id>",
				Action: runNessus(func(ctx context.Context, cctx *cli.Context, ns *nessus.Client) (*rest.Result, error) {
					id, err := firstArg(cctx, "scan id")
					if err != nil {
						return nil, err
					}
					return ns.Results(ctx, id)
				}),
			},
		},
	}
}

func runNessus(fn func(ctx context.Context, cctx *cli.Context, ns *nessus.Client) (*rest.Result, error)) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		return withApp(cctx, func(ctx context.Context, a *app.App) error {
			ns, err := a.Nessus()
			if err != nil {
				return err
			}
			res, err := fn(ctx, cctx, ns)
			if err != nil {
				return err
			}
			return printResult(cctx, res)
		})
	}
}
