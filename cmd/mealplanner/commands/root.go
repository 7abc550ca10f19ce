// Package commands builds the mealplanner command tree.
package commands

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// Streams is the process I/O handed to every lambda.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	// Environ replaces os.Environ when loading configuration.
	Environ func() []string
}

type cliApp struct {
	streams Streams
}

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, streams Streams) error {
	if streams.Stdin == nil {
		streams.Stdin = os.Stdin
	}
	if streams.Stdout == nil {
		streams.Stdout = os.Stdout
	}
	a := &cliApp{streams: streams}

	cmd := &cli.Command{
		Name:   "mealplanner",
		Usage:  "FatSecret and Tandoor lambdas speaking JSON on stdin/stdout",
		Writer: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "directory holding the SQLite database",
			},
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "default user for token commands",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to the output envelope",
			},
		},
		Commands: []*cli.Command{
			a.generateKeyCommand(),
			a.validateEncryptionCommand(),
			a.metricsCommand(),
			a.fatsecretCommand(),
			a.tandoorCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// flagsNotConfig are root flags that select behavior instead of config keys.
var flagsNotConfig = map[string]bool{"config": true, "jq": true, "help": true}

// extractAndTransformFlags maps set flags onto config keys, parent flags
// included: --log-level becomes log_level, --callback--addr callback.addr.
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		if flagsNotConfig[name] || !cmd.IsSet(name) {
			continue
		}
		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
