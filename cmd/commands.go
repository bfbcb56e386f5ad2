package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/config"
	"github.com/bluetuith-org/autopair/printer"
)

// DefaultScanDuration is the default duration of a scan.
const DefaultScanDuration = 15 * time.Second

// scanCommand returns the command to scan for devices.
func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan for devices and list them.",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Value:   DefaultScanDuration,
				Usage:   "Specify how long to scan for.",
			},
		},
		Action: func(cliCtx *cli.Context) error {
			ctx, stop := signalContext(cliCtx)
			defer stop()

			s, err := startSession(ctx, cliCtx, nil)
			if err != nil {
				return err
			}
			defer s.stop()

			events, unsubscribe := s.orchestrator.Subscribe()
			defer unsubscribe()

			if err := s.orchestrator.Scan(true); err != nil {
				return err
			}

			timer := time.NewTimer(cliCtx.Duration("duration"))
			defer timer.Stop()

		Scan:
			for {
				select {
				case <-ctx.Done():
					break Scan

				case <-timer.C:
					break Scan

				case event, ok := <-events:
					if !ok {
						break Scan
					}

					if event.Kind == pairing.EventDeviceFound {
						printInfo(formatEvent(event))
					}

					if event.Kind == pairing.EventDiscoveryFinished {
						break Scan
					}
				}
			}

			_ = s.orchestrator.Scan(false)

			fmt.Print(devicesTable(s.orchestrator.Devices()))

			return nil
		},
	}
}

// pairCommand returns the command to pair with a device.
func pairCommand() *cli.Command {
	return &cli.Command{
		Name:      "pair",
		Usage:     "Pair with a device, answering its pairing request automatically.",
		ArgsUsage: "ADDRESS",
		Action: func(cliCtx *cli.Context) error {
			address, err := parseAddress(cliCtx.Args().First())
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cliCtx)
			defer stop()

			s, err := startSession(ctx, cliCtx, printResolution)
			if err != nil {
				return err
			}
			defer s.stop()

			events, unsubscribe := s.orchestrator.Subscribe()
			defer unsubscribe()

			result, err := s.orchestrator.Pair(address, "")
			if err != nil {
				return err
			}

			if result == pairing.AlreadyBonded {
				printInfo("Device " + address.String() + " is already paired")
				return nil
			}

			return waitForOutcome(ctx, events, address, s.cfg.Values.WaitTimeout)
		},
	}
}

// unpairCommand returns the command to remove a device's bond.
func unpairCommand() *cli.Command {
	return &cli.Command{
		Name:      "unpair",
		Usage:     "Remove the pairing of a device.",
		ArgsUsage: "ADDRESS",
		Action: func(cliCtx *cli.Context) error {
			address, err := parseAddress(cliCtx.Args().First())
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cliCtx)
			defer stop()

			s, err := startSession(ctx, cliCtx, nil)
			if err != nil {
				return err
			}
			defer s.stop()

			if err := s.orchestrator.Unpair(address); err != nil {
				return err
			}

			printInfo("Device " + address.String() + " was unpaired")

			return nil
		},
	}
}

// listCommand returns the command to list paired devices.
func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List paired devices.",
		Action: func(cliCtx *cli.Context) error {
			ctx, stop := signalContext(cliCtx)
			defer stop()

			s, err := startSession(ctx, cliCtx, nil)
			if err != nil {
				return err
			}
			defer s.stop()

			devices, err := s.orchestrator.ListBonded()
			if err != nil {
				return err
			}

			if len(devices) == 0 {
				if !s.cfg.Values.NoWarning {
					printWarn("No paired devices were found")
				}

				return nil
			}

			fmt.Print(devicesTable(devices))

			return nil
		},
	}
}

// agentCommand returns the command to answer pairing requests until interrupted.
func agentCommand() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Answer every pairing request automatically, until interrupted.",
		Action: func(cliCtx *cli.Context) error {
			ctx, stop := signalContext(cliCtx)
			defer stop()

			s, err := startSession(ctx, cliCtx, printResolution)
			if err != nil {
				return err
			}
			defer s.stop()

			if err := s.cfg.Watch(func(values config.Values, err error) {
				if err != nil {
					s.logger.Warn("cannot reload the configuration", "error", err)
					return
				}

				if values.PIN != s.orchestrator.Session().PIN() {
					s.orchestrator.SetPIN(values.PIN)
					printInfo("PIN updated")
				}
			}); err != nil {
				s.logger.Warn("cannot watch the configuration file", "error", err)
			}
			defer s.cfg.Unwatch()

			events, unsubscribe := s.orchestrator.Subscribe()
			defer unsubscribe()

			printInfo("Waiting for pairing requests")

			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-events:
					if !ok {
						return nil
					}

					printEvent(event)
				}
			}
		},
	}
}

// provisionCommand returns the command to provision a printer.
func provisionCommand() *cli.Command {
	return &cli.Command{
		Name:  "provision",
		Usage: "Provision a printer with PIN authentication and the configured PIN.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"P"},
				EnvVars: []string{"AUTOPAIR_PRINTER_PORT"},
				Usage:   "Specify the serial port of the printer. (For example, /dev/rfcomm0)",
			},
			&cli.IntFlag{
				Name:    "baud",
				Aliases: []string{"b"},
				EnvVars: []string{"AUTOPAIR_PRINTER_BAUD"},
				Usage:   "Specify the baud rate of the serial port.",
			},
			&cli.BoolFlag{
				Name:    "list-ports",
				Aliases: []string{"L"},
				Usage:   "List available serial ports.",
			},
		},
		Action: func(cliCtx *cli.Context) error {
			if cliCtx.Bool("list-ports") {
				ports, err := printer.ListPorts()
				if err != nil {
					return err
				}

				fmt.Println("List of serial ports:")
				for _, port := range ports {
					fmt.Println("- " + port)
				}

				return nil
			}

			cfg, _, err := loadConfig(cliCtx)
			if err != nil {
				return err
			}

			values := cfg.Values
			if cliCtx.IsSet("port") {
				values.PrinterPort = cliCtx.String("port")
			}
			if cliCtx.IsSet("baud") {
				values.PrinterBaud = cliCtx.Int("baud")
			}

			if err := printer.Provision(printer.Options{
				Port:     values.PrinterPort,
				BaudRate: values.PrinterBaud,
				Commands: values.PrinterCommands,
				PIN:      values.PIN,
				Delay:    200 * time.Millisecond,
			}); err != nil {
				return err
			}

			printInfo("Printer on " + values.PrinterPort + " was provisioned")

			return nil
		},
	}
}

// waitForOutcome shows a spinner until the pairing with the device succeeds or fails,
// or the timeout expires.
func waitForOutcome(ctx context.Context, events <-chan pairing.Event, address bluetooth.MacAddress, timeout time.Duration) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("Pairing with "+address.String()),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	defer bar.Finish()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline.C:
			return fault.Wrap(errorkinds.ErrBondFailed,
				fctx.With(context.Background(),
					"error_at", "cli-wait-outcome",
					"address", address.String(),
				),
				ftag.With(ftag.Cancelled),
				fmsg.With(fmt.Sprintf("No pairing outcome within %s", timeout)),
			)

		case <-ticker.C:
			_ = bar.Add(1)

		case event, ok := <-events:
			if !ok {
				return ctx.Err()
			}

			if event.Address != address {
				continue
			}

			switch event.Kind {
			case pairing.EventPairingSucceeded:
				_ = bar.Finish()
				printInfo("Paired with " + address.String())

				return nil

			case pairing.EventPairingFailed:
				_ = bar.Finish()

				return fault.Wrap(errorkinds.ErrBondFailed,
					fctx.With(context.Background(),
						"error_at", "cli-wait-outcome",
						"address", address.String(),
					),
					ftag.With(ftag.Internal),
					fmsg.With("Pairing with "+address.String()+" failed"),
				)
			}
		}
	}
}

// printResolution prints a resolved pairing challenge.
func printResolution(challenge pairing.Challenge, resolution pairing.Resolution) {
	message := fmt.Sprintf("Answered %s request from %s with %s",
		strings.ReplaceAll(challenge.Variant.String(), "-", " "),
		challenge.Address.String(),
		resolution.Action.String(),
	)

	printInfo(message)
}

// printEvent prints a pairing event.
func printEvent(event pairing.Event) {
	if event.Kind == pairing.EventPairingFailed {
		printWarn(formatEvent(event))
		return
	}

	printInfo(formatEvent(event))
}

// parseAddress parses a device address argument.
func parseAddress(arg string) (bluetooth.MacAddress, error) {
	if arg == "" {
		return bluetooth.MacAddress{}, fault.Wrap(errorkinds.ErrDeviceNotFound,
			fctx.With(context.Background(), "error_at", "cli-parse-address"),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("No device address specified"),
		)
	}

	address, err := bluetooth.ParseMAC(arg)
	if err != nil {
		return address, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "cli-parse-address",
				"address", arg,
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Invalid device address '"+arg+"', expected a format like AA:BB:CC:DD:EE:FF"),
		)
	}

	return address, nil
}

// signalContext returns a context that is cancelled on an interrupt or termination signal.
func signalContext(cliCtx *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
}
