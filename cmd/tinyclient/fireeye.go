package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samvad-hq/tinyclients/internal/app"
	"github.com/samvad-hq/tinyclients/pkg/fireeye"
	"github.com/samvad-hq/tinyclients/pkg/rest"
	"github.com/samvad-hq/tinyclients/pkg/session"
	"github.com/urfave/cli/v2"
)

func fireEyeCommand() *cli.Command {
	return &cli.Command{
		Name:  "fireeye",
		Usage: "FireEye AX appliance",
		Subcommands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "show appliance configuration",
				Action: runFireEye(func(ctx context.Context, cctx *cli.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
					return fe.Config(ctx, store)
				}),
			},
			{
				Name:      "submit",
				Usage:     "submit sample files",
				ArgsUsage: "<file>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "options", Usage: "submission options as JSON or @path"},
				},
				Action: runFireEye(runFireEyeSubmit),
			},
			{
				Name:  "submit-url",
				Usage: "submit URLs for analysis",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "options", Usage: "submission document as JSON or @path", Required: true},
				},
				Action: runFireEye(func(ctx context.Context, cctx *cli.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
					options, err := jsonArg(cctx.String("options"))
					if err != nil {
						return nil, err
					}
					return fe.SubmitURL(ctx, store, options)
				}),
			},
			{
				Name:      "status",
				Usage:     "show submission status",
				ArgsUsage: "<submission-id>",
				Action: runFireEye(func(ctx context.Context, cctx *cli.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
					id, err := firstArg(cctx, "submission id")
					if err != nil {
						return nil, err
					}
					return fe.Status(ctx, store, id)
				}),
			},
			{
				Name:      "results",
				Usage:     "show submission results",
				ArgsUsage: "<submission-id>",
				Action: runFireEye(func(ctx context.Context, cctx *cli.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
					id, err := firstArg(cctx, "submission id")
					if err != nil {
						return nil, err
					}
					return fe.Results(ctx, store, id)
				}),
			},
			{
				Name:  "logout",
				Usage: "invalidate the cached API token",
				Action: runFireEye(func(ctx context.Context, cctx *cli.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
					return nil, fe.Logout(ctx, store)
				}),
			},
		},
	}
}

type fireEyeAction func(ctx context.Context, cctx *cli.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error)

func runFireEye(fn fireEyeAction) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		return withApp(cctx, func(ctx context.Context, a *app.App) error {
			fe, err := a.FireEye()
			if err != nil {
				return err
			}
			store, err := a.Tokens()
			if err != nil {
				return err
			}
			res, err := fn(ctx, cctx, fe, store)
			if err != nil {
				return err
			}
			return printResult(cctx, res)
		})
	}
}

func runFireEyeSubmit(ctx context.Context, cctx *cli.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
	if cctx.NArg() == 0 {
		return nil, fmt.Errorf("need to provide at least one sample file")
	}
	options, err := jsonArg(cctx.String("options"))
	if err != nil {
		return nil, err
	}

	files := make([]fireeye.File, 0, cctx.NArg())
	for _, path := range cctx.Args().Slice() {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		files = append(files, fireeye.File{Name: filepath.Base(path), Reader: f})
	}
	return fe.Submit(ctx, store, options, files)
}
