package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/printer"
)

// The default configuration values.
const (
	DefaultPIN         = "0000"
	DefaultWaitTimeout = 60 * time.Second
)

// Values describes the possible configuration values that a user can
// modify and supply to the application.
type Values struct {
	Adapter         string        `koanf:"adapter"`
	PIN             string        `koanf:"pin"`
	LogLevel        string        `koanf:"log-level"`
	NoWarning       bool          `koanf:"no-warning"`
	WaitTimeout     time.Duration `koanf:"wait-timeout"`
	PrinterPort     string        `koanf:"printer-port"`
	PrinterBaud     int           `koanf:"printer-baud"`
	PrinterCommands []string      `koanf:"printer-commands"`

	Level slog.Level
}

// validateValues validates all configuration values.
func (v *Values) validateValues() error {
	for _, validate := range []func() error{
		v.validatePIN,
		v.validateLogLevel,
		v.validateWaitTimeout,
		v.validatePrinter,
	} {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

// validatePIN validates the PIN used to answer pairing challenges.
func (v *Values) validatePIN() error {
	if v.PIN == "" {
		v.PIN = DefaultPIN
	}

	if err := pairing.ValidatePIN(v.PIN); err != nil {
		return fmt.Errorf("invalid PIN '%s': %w", v.PIN, err)
	}

	return nil
}

// validateLogLevel validates the log level.
func (v *Values) validateLogLevel() error {
	if v.LogLevel == "" {
		v.Level = slog.LevelInfo
		return nil
	}

	if err := v.Level.UnmarshalText([]byte(strings.ToUpper(v.LogLevel))); err != nil {
		return fmt.Errorf(
			"provided log level '%s' is incorrect.\nValid levels are 'debug, info, warn, error'",
			v.LogLevel,
		)
	}

	return nil
}

// validateWaitTimeout validates the time to wait for a pairing outcome.
func (v *Values) validateWaitTimeout() error {
	switch {
	case v.WaitTimeout == 0:
		v.WaitTimeout = DefaultWaitTimeout

	case v.WaitTimeout < 0:
		return fmt.Errorf("wait timeout '%s' must be positive", v.WaitTimeout)
	}

	return nil
}

// validatePrinter validates the printer provisioning values.
func (v *Values) validatePrinter() error {
	if v.PrinterBaud < 0 {
		return fmt.Errorf("printer baud rate '%d' must be positive", v.PrinterBaud)
	}

	if v.PrinterBaud == 0 {
		v.PrinterBaud = printer.DefaultBaudRate
	}

	if len(v.PrinterCommands) == 0 {
		v.PrinterCommands = printer.DefaultCommands
	}

	for _, command := range v.PrinterCommands {
		if strings.Contains(command, printer.PINPlaceholder) {
			return nil
		}
	}

	return fmt.Errorf("no printer command contains the PIN placeholder '%s'", printer.PINPlaceholder)
}
