// Package printer provisions a printer for PIN-authenticated pairing.
//
// Provisioning is done once, out of band, by sending vendor setup commands to
// the printer over a serial transport: a USB CDC port or a bound RFCOMM device.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"go.bug.st/serial"

	"github.com/bluetuith-org/autopair/api/pairing"
)

// PINPlaceholder is replaced with the PIN in every command template.
const PINPlaceholder = "{{pin}}"

// DefaultBaudRate is the default baud rate of the serial port.
const DefaultBaudRate = 9600

// DefaultCommands sets the security mode to PIN authentication and the PIN,
// using the Zebra Set-Get-Do command language.
var DefaultCommands = []string{
	`! U1 setvar "bluetooth.authentication" "setpin"`,
	`! U1 setvar "bluetooth.bluetooth_pin" "` + PINPlaceholder + `"`,
}

// ErrNoPort is returned if no serial port was provided.
var ErrNoPort = errors.New("no serial port specified")

// Port describes a serial port connection to the printer.
type Port interface {
	io.WriteCloser
}

// openPort opens a serial port.
var openPort = func(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// Options holds the provisioning options.
type Options struct {
	// Port is the name of the serial port, for example "/dev/rfcomm0" or "/dev/ttyACM0".
	Port string

	// BaudRate is the baud rate of the serial port.
	BaudRate int

	// Commands are the command templates sent to the printer, in order.
	Commands []string

	// PIN is the PIN the printer is provisioned with.
	PIN string

	// Delay is the time to wait between commands.
	Delay time.Duration
}

// Provision sends the setup commands to the printer.
func Provision(opts Options) error {
	if opts.Port == "" {
		return ErrNoPort
	}

	if err := pairing.ValidatePIN(opts.PIN); err != nil {
		return err
	}

	commands := RenderCommands(opts.Commands, opts.PIN)

	baudRate := opts.BaudRate
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := openPort(opts.Port, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "printer-open-port",
				"port", opts.Port,
			),
			ftag.With(ftag.NotFound),
			fmsg.With("Cannot open the printer port"),
		)
	}
	defer port.Close()

	for i, command := range commands {
		if i > 0 && opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}

		if _, err := port.Write([]byte(command + "\r\n")); err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(),
					"error_at", "printer-write-command",
					"port", opts.Port,
				),
				ftag.With(ftag.Internal),
				fmsg.With(fmt.Sprintf("Cannot send command %d of %d to the printer", i+1, len(commands))),
			)
		}
	}

	return nil
}

// RenderCommands replaces the PIN placeholder in every command template.
// If no templates are provided, the default commands are used.
func RenderCommands(commands []string, pin string) []string {
	if len(commands) == 0 {
		commands = DefaultCommands
	}

	rendered := make([]string, 0, len(commands))
	for _, command := range commands {
		command = strings.TrimSpace(command)
		if command == "" {
			continue
		}

		rendered = append(rendered, strings.ReplaceAll(command, PINPlaceholder, pin))
	}

	return rendered
}

// ListPorts returns the names of all serial ports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "printer-list-ports"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot list serial ports"),
		)
	}

	return ports, nil
}
