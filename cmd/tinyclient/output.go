package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samvad-hq/tinyclients/pkg/rest"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func printResult(cctx *cli.Context, res *rest.Result) error {
	return writeResult(cctx.App.Writer, cctx.String("output"), res)
}

func writeResult(w io.Writer, format string, res *rest.Result) error {
	if res == nil {
		return nil
	}
	if !res.IsJSON() {
		_, err := w.Write(res.Raw)
		return err
	}
	return writeValue(w, format, res.Value)
}

func writeValue(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// jsonArg decodes a JSON document given inline or as @path.
func jsonArg(raw string) (any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	data := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		b, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return nil, err
		}
		data = b
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse JSON argument: %w", err)
	}
	return v, nil
}

// firstArg returns the single positional argument or a usage error.
func firstArg(cctx *cli.Context, name string) (string, error) {
	s := cctx.Args().First()
	if s == "" {
		return "", fmt.Errorf("need to provide %s as an argument", name)
	}
	return s, nil
}
