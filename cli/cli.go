package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "hostrun"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Drive a test-host process and report per-test results",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run tests through a test-host process",
		ArgsUsage: "[--] HOST [ARGS...]",
		Action:    app.run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"C"},
				Usage:   "Working directory for the test host (default: current directory)",
			},
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Test identity to run (repeatable; default: ids from hostrun.yaml)",
			},
			&cli.BoolFlag{
				Name:  "coverage",
				Usage: "Request quiet coverage instrumentation from the host",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Kill the test host after this duration (0 disables)",
			},
			&cli.BoolFlag{
				Name:  "no-record",
				Usage: "Skip recording the session to history",
			},
		},
		Description: `Run tests through a test-host process.

The host command is taken from the arguments (after an optional --), or
from the "host" entry of hostrun.yaml in the working directory. The host
is told which test identities to execute and streams back one JSON event
per line; hostrun turns the stream into per-test results, diagnostics
and coverage records.

Examples:
  hostrun run --id TestA --id TestB -- lua test-host.lua
  hostrun run --coverage            # host and ids from hostrun.yaml`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous sessions",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Filter by relative path (e.g., spec/unit)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
