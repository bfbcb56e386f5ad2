package cmd

import (
	"strings"
	"testing"

	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"

	"github.com/bluetuith-org/autopair/api/pairing"
)

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"pairing_succeeded": "Pairing Succeeded",
		"bonded":            "Bonded",
		"set-pin":           "Set Pin",
	}

	for name, expected := range tests {
		if title := titleCase(name); title != expected {
			t.Errorf("titleCase(%q) = %q, want %q", name, title, expected)
		}
	}
}

func TestFormatTable(t *testing.T) {
	table := formatTable(
		[]string{"Name", "Type"},
		[][]string{{"プリンター", "Printer"}, {"Keyboard", "Keyboard"}},
	)

	lines := strings.Split(strings.TrimSuffix(table, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	// The wide name occupies 10 cells, so every second column starts at cell 12.
	for _, line := range lines {
		if !strings.Contains(line, "  ") {
			t.Errorf("expected padded columns in %q", line)
		}
	}

	if !strings.HasPrefix(lines[0], "Name        Type") {
		t.Errorf("unexpected header: %q", lines[0])
	}
}

func TestParseAddress(t *testing.T) {
	if _, err := parseAddress(""); err == nil {
		t.Errorf("expected an error for an empty address")
	}

	if _, err := parseAddress("not-an-address"); err == nil {
		t.Errorf("expected an error for an invalid address")
	}

	address, err := parseAddress("00:11:22:33:44:55")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if address.String() != "00:11:22:33:44:55" {
		t.Errorf("unexpected address: %s", address.String())
	}
}

func TestFormatEvent(t *testing.T) {
	address, _ := bluetooth.ParseMAC("00:11:22:33:44:55")

	if line := formatEvent(pairing.PairingFailed(address)); line != "Pairing Failed: 00:11:22:33:44:55" {
		t.Errorf("unexpected line: %q", line)
	}

	if line := formatEvent(pairing.DiscoveryFinished()); line != "Discovery Finished" {
		t.Errorf("unexpected line: %q", line)
	}
}
