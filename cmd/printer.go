package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
)

// columnGap is the number of spaces between table columns.
const columnGap = 2

// printInfo prints an informational message to the screen.
func printInfo(message string) {
	message = "[+] " + message

	color.New(color.FgGreen, color.Bold).Println(message)
}

// printWarn prints a warning to the screen.
func printWarn(message string) {
	message = "[-] " + message

	color.New(color.FgYellow, color.Bold).Println(message)
}

// printError prints an error to the screen, along with the advice to recover from it.
func printError(err error) {
	message := "[!] " + errorkinds.Message(err)
	if message != "[!] "+err.Error() {
		message += " (" + err.Error() + ")"
	}

	color.New(color.FgRed, color.Bold).Println(message)

	switch remediation := errorkinds.RemediationFor(err); remediation {
	case errorkinds.RemediationEnableRadio, errorkinds.RemediationGrantPermission, errorkinds.RemediationInstallAdapter:
		printWarn(remediation.String())

	default:
		if errors.Is(err, errorkinds.ErrPairingInProgress) {
			printWarn("Wait for the current pairing attempt to finish")
		}
	}
}

// titleCase title-cases an enumeration name, for example "pairing_succeeded" to "Pairing Succeeded".
func titleCase(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)

	return cases.Title(language.Und).String(name)
}

// devicesTable formats a list of devices as a table.
func devicesTable(devices []pairing.Device) string {
	rows := make([][]string, 0, len(devices))
	for _, device := range devices {
		rows = append(rows, []string{
			device.Address.String(),
			device.DisplayName(),
			device.Type(),
			titleCase(device.Bond.String()),
			titleCase(device.Status.String()),
		})
	}

	return formatTable([]string{"Address", "Name", "Type", "Bond", "Status"}, rows)
}

// formatTable formats rows into padded columns. Column widths are measured
// in terminal cells, so that wide device names stay aligned.
func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}

	var sb strings.Builder

	writeRow := func(row []string) {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}

			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}

			sb.WriteString(runewidth.FillRight(cell, widths[i]+columnGap))
		}

		sb.WriteString("\n")
	}

	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}

	return sb.String()
}

// formatEvent formats a pairing event as a single line.
func formatEvent(event pairing.Event) string {
	name := titleCase(event.Kind.String())

	switch event.Kind {
	case pairing.EventDeviceFound:
		device := pairing.Device{Address: event.Address, Name: event.Name, Class: event.Class}

		return fmt.Sprintf("%s: %s (%s, %s)", name, device.DisplayName(), event.Address.String(), device.Type())

	case pairing.EventDiscoveryFinished:
		return name
	}

	return fmt.Sprintf("%s: %s", name, event.Address.String())
}
