package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
)

// These values are set at compile-time.
var (
	Version  = ""
	Revision = ""
)

// Run runs the commandline application.
func Run() error {
	return newApp().Run(os.Args)
}

// newApp returns a new commandline application.
func newApp() *cli.App {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		info := platformInfo()

		fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", Version, Revision)
		fmt.Fprintf(cCtx.App.Writer, "Platform: %s, %s\n", info.OS, info.Stack)
	}

	return &cli.App{
		Name:                   "autopair",
		Usage:                  "Automatic Bluetooth Classic pairing.",
		Version:                Version + " (" + Revision + ")",
		Description:            "Scan for, and pair with, Bluetooth Classic devices without user interaction.",
		Copyright:              "(c) bluetuith-org.",
		Compiled:               time.Now(),
		EnableBashCompletion:   true,
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "list-adapters",
				Aliases: []string{"l"},
				Usage:   "List available adapters.",
				Action: func(*cli.Context, bool) error {
					adapters, err := listAdapters()
					if err != nil {
						return err
					}

					rows := make([][]string, 0, len(adapters))
					for _, adapter := range adapters {
						rows = append(rows, []string{adapter.Name, adapter.Address, strconv.FormatBool(adapter.Powered)})
					}

					fmt.Print(formatTable([]string{"Name", "Address", "Powered"}, rows))

					return nil
				},
			},
			&cli.StringFlag{
				Name:    "adapter",
				Aliases: []string{"a"},
				EnvVars: []string{"AUTOPAIR_ADAPTER"},
				Usage:   "Specify an adapter to use. (For example, hci0)",
			},
			&cli.StringFlag{
				Name:    "pin",
				Aliases: []string{"p"},
				EnvVars: []string{"AUTOPAIR_PIN"},
				Usage:   "Specify the PIN to answer pairing requests with. (Default is 0000)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"v"},
				EnvVars: []string{"AUTOPAIR_LOG_LEVEL"},
				Usage:   "Specify the log level. (debug, info, warn or error)",
			},
			&cli.DurationFlag{
				Name:    "wait-timeout",
				Aliases: []string{"t"},
				EnvVars: []string{"AUTOPAIR_WAIT_TIMEOUT"},
				Usage:   "Specify how long to wait for a pairing outcome. (For example, 30s)",
			},
			&cli.BoolFlag{
				Name:    "no-warning",
				Aliases: []string{"w"},
				EnvVars: []string{"AUTOPAIR_NO_WARNING"},
				Usage:   "Do not display warnings.",
			},
			&cli.BoolFlag{
				Name:    "generate",
				Aliases: []string{"g"},
				Usage:   "Generate configuration.",
				Action: func(cliCtx *cli.Context, _ bool) error {
					cfg, k, err := loadConfig(cliCtx)
					if err != nil {
						return err
					}

					return cfg.GenerateAndSave(k)
				},
			},
		},
		Commands: []*cli.Command{
			scanCommand(),
			pairCommand(),
			unpairCommand(),
			listCommand(),
			agentCommand(),
			provisionCommand(),
		},
		Action: func(cliCtx *cli.Context) error {
			if cliCtx.Bool("list-adapters") || cliCtx.Bool("generate") {
				return nil
			}

			return cli.ShowAppHelp(cliCtx)
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}
