package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/tinyclients/internal/app"
	"github.com/samvad-hq/tinyclients/pkg/rest"
	"github.com/samvad-hq/tinyclients/pkg/vxstream"
	"github.com/urfave/cli/v2"
)

func vxStreamCommand() *cli.Command {
	paramFlag := &cli.StringSliceFlag{Name: "param", Aliases: []string{"p"}, Usage: "form field as key=value, repeatable"}

	return &cli.Command{
		Name:  "vxstream",
		Usage: "VxStream sandbox",
		Subcommands: []*cli.Command{
			{
				Name:  "state",
				Usage: "show sandbox system state",
				Action: runVx(func(ctx context.Context, cctx *cli.Context, vx *vxstream.Client) (*rest.Result, error) {
					return vx.State(ctx)
				}),
			},
			{
				Name:  "stats",
				Usage: "show sandbox statistics",
				Action: runVx(func(ctx context.Context, cctx *cli.Context, vx *vxstream.Client) (*rest.Result, error) {
					return vx.Stats(ctx)
				}),
			},
			{
				Name:      "submit",
				Usage:     "submit a sample file",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{paramFlag},
				Action: runVx(func(ctx context.Context, cctx *cli.Context, vx *vxstream.Client) (*rest.Result, error) {
					path, err := firstArg(cctx, "sample file")
					if err != nil {
						return nil, err
					}
					data, err := formParams(cctx.StringSlice("param"))
					if err != nil {
						return nil, err
					}
					f, err := os.Open(path)
					if err != nil {
						return nil, err
					}
					defer f.Close()
					return vx.Submit(ctx, vxstream.File{Name: filepath.Base(path), Reader: f}, data)
				}),
			},
			{
				Name:      "submit-url",
				Usage:     "submit a URL for analysis",
				ArgsUsage: "<url>",
				Flags:     []cli.Flag{paramFlag},
				Action: runVx(func(ctx context.Context, cctx *cli.Context, vx *vxstream.Client) (*rest.Result, error) {
					target, err := firstArg(cctx, "url")
					if err != nil {
						return nil, err
					}
					data, err := formParams(cctx.StringSlice("param"))
					if err != nil {
						return nil, err
					}
					data.Set(vxstream.FieldAnalyzeURL, target)
					return vx.SubmitURL(ctx, data)
				}),
			},
			{
				Name:      "status",
				Usage:     "show analysis state of a sample",
				ArgsUsage: "<sha256>",
				Action: runVx(func(ctx context.Context, cctx *cli.Context, vx *vxstream.Client) (*rest.Result, error) {
					sha, err := firstArg(cctx, "sha256")
					if err != nil {
						return nil, err
					}
					return vx.Status(ctx, sha)
				}),
			},
			{
				Name:      "results",
				Usage:     "fetch the analysis report of a sample",
				ArgsUsage: "<sha256>",
				Action: runVx(func(ctx context.Context, cctx *cli.Context, vx *vxstream.Client) (*rest.Result, error) {
					sha, err := firstArg(cctx, "sha256")
					if err != nil {
						return nil, err
					}
					return vx.Results(ctx, sha)
				}),
			},
		},
	}
}

func runVx(fn func(ctx context.Context, cctx *cli.Context, vx *vxstream.Client) (*rest.Result, error)) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		return withApp(cctx, func(ctx context.Context, a *app.App) error {
			vx, err := a.VxStream()
			if err != nil {
				return err
			}
			res, err := fn(ctx, cctx, vx)
			if err != nil {
				return err
			}
			return printResult(cctx, res)
		})
	}
}

func formParams(pairs []string) (url.Values, error) {
	data := url.Values{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", pair)
		}
		data.Add(k, v)
	}
	return data, nil
}
