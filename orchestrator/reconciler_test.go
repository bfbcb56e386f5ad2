package orchestrator

import (
	"errors"
	"testing"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current    pairing.Status
		input      statusInput
		next       pairing.Status
		transition bool
	}{
		{pairing.StatusIdle, inputPairRequest, pairing.StatusPairing, true},
		{pairing.StatusFailed, inputPairRequest, pairing.StatusPairing, true},
		{pairing.StatusSucceeded, inputPairRequest, pairing.StatusSucceeded, false},
		{pairing.StatusPairing, inputPairRequest, pairing.StatusPairing, false},
		{pairing.StatusPairing, inputSucceeded, pairing.StatusSucceeded, true},
		{pairing.StatusPairing, inputFailed, pairing.StatusFailed, true},
		{pairing.StatusIdle, inputSucceeded, pairing.StatusIdle, false},
		{pairing.StatusIdle, inputFailed, pairing.StatusIdle, false},
		{pairing.StatusSucceeded, inputFailed, pairing.StatusSucceeded, false},
		{pairing.StatusFailed, inputSucceeded, pairing.StatusFailed, false},
	}

	for _, test := range tests {
		next, ok := nextStatus(test.current, test.input)
		if next != test.next || ok != test.transition {
			t.Errorf("nextStatus(%s, %d) = (%s, %v), want (%s, %v)",
				test.current, test.input, next, ok, test.next, test.transition,
			)
		}
	}
}

func TestReconcilerPairPath(t *testing.T) {
	r := NewReconciler()
	address := mustParseMAC(t, "00:11:22:33:44:55")

	r.Apply(pairing.DeviceFound(address, "Printer", 0x040680, pairing.BondNone))

	if err := r.BeginPair(address); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.BeginPair(address); !errors.Is(err, errorkinds.ErrPairingInProgress) {
		t.Fatalf("expected a pairing in progress error, got %v", err)
	}

	r.ResolvePair(address, pairing.BondingStarted, nil)

	device, _ := r.Device(address)
	if device.Status != pairing.StatusPairing || device.Bond != pairing.BondBonding {
		t.Fatalf("unexpected device after the pair request: %+v", device)
	}

	r.Apply(pairing.PairingSucceeded(address))

	device, _ = r.Device(address)
	if device.Status != pairing.StatusSucceeded || device.Bond != pairing.BondBonded {
		t.Fatalf("unexpected device after success: %+v", device)
	}

	if device.Name != "Printer" {
		t.Errorf("expected the discovered name to be kept, got %q", device.Name)
	}
}

func TestReconcilerFailedPair(t *testing.T) {
	r := NewReconciler()
	address := mustParseMAC(t, "00:11:22:33:44:55")

	_ = r.BeginPair(address)
	r.ResolvePair(address, pairing.BondingStarted, nil)
	r.Apply(pairing.PairingFailed(address))

	device, _ := r.Device(address)
	if device.Status != pairing.StatusFailed || device.Bond != pairing.BondNone {
		t.Fatalf("unexpected device after failure: %+v", device)
	}

	// A late success must not move a failed device without a new pair request.
	r.Apply(pairing.PairingSucceeded(address))

	device, _ = r.Device(address)
	if device.Status != pairing.StatusFailed || device.Bond != pairing.BondBonded {
		t.Fatalf("unexpected device after a late success: %+v", device)
	}

	if err := r.BeginPair(address); err != nil {
		t.Fatalf("expected a retry to be accepted, got %v", err)
	}
}

func TestReconcilerRejectedPair(t *testing.T) {
	r := NewReconciler()
	address := mustParseMAC(t, "00:11:22:33:44:55")

	_ = r.BeginPair(address)
	r.ResolvePair(address, pairing.BondingStarted, errorkinds.ErrBondFailed)

	device, _ := r.Device(address)
	if device.Status != pairing.StatusFailed {
		t.Fatalf("expected a failed status, got %s", device.Status)
	}
}

func TestReconcilerAlreadyBonded(t *testing.T) {
	r := NewReconciler()
	address := mustParseMAC(t, "00:11:22:33:44:55")

	_ = r.BeginPair(address)
	r.ResolvePair(address, pairing.AlreadyBonded, nil)

	device, _ := r.Device(address)
	if device.Status != pairing.StatusSucceeded || device.Bond != pairing.BondBonded {
		t.Fatalf("unexpected device: %+v", device)
	}
}

func TestReconcilerIgnoresUnknownFailure(t *testing.T) {
	r := NewReconciler()

	r.Apply(pairing.PairingFailed(mustParseMAC(t, "00:11:22:33:44:55")))

	if devices := r.Devices(); len(devices) != 0 {
		t.Fatalf("expected no devices, got %+v", devices)
	}
}

func TestReconcilerBeginScan(t *testing.T) {
	r := NewReconciler()

	bonded := mustParseMAC(t, "00:00:00:00:00:01")
	found := mustParseMAC(t, "00:00:00:00:00:02")
	pairingNow := mustParseMAC(t, "00:00:00:00:00:03")

	r.LoadBonded([]pairing.Device{{Address: bonded, Name: "Keyboard"}})
	r.Apply(pairing.DeviceFound(found, "Speaker", 0, pairing.BondNone))
	r.Apply(pairing.DeviceFound(pairingNow, "Printer", 0, pairing.BondNone))
	_ = r.BeginPair(pairingNow)

	r.BeginScan(r.PrepareScan())

	devices := r.Devices()
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %+v", devices)
	}

	if devices[0].Address != bonded || devices[1].Address != pairingNow {
		t.Errorf("unexpected devices or order: %+v", devices)
	}

	if _, ok := r.Device(found); ok {
		t.Errorf("expected the unbonded device to be cleared")
	}
}

func TestReconcilerDeduplicatesFoundDevices(t *testing.T) {
	r := NewReconciler()
	address := mustParseMAC(t, "00:11:22:33:44:55")

	r.Apply(pairing.DeviceFound(address, "", 0, pairing.BondNone))
	r.Apply(pairing.DeviceFound(address, "Printer", 0x040680, pairing.BondNone))
	r.Apply(pairing.DeviceFound(address, "Renamed", 0x000100, pairing.BondBonded))

	devices := r.Devices()
	if len(devices) != 1 {
		t.Fatalf("expected a single record, got %+v", devices)
	}

	if devices[0].Name != "Printer" || devices[0].Class != 0x040680 || devices[0].Bond != pairing.BondBonded {
		t.Errorf("unexpected record: %+v", devices[0])
	}
}

func TestReconcilerRemove(t *testing.T) {
	r := NewReconciler()

	first := mustParseMAC(t, "00:00:00:00:00:01")
	second := mustParseMAC(t, "00:00:00:00:00:02")

	r.LoadBonded([]pairing.Device{{Address: first}, {Address: second}})
	r.Remove(first)
	r.Remove(first)

	devices := r.Devices()
	if len(devices) != 1 || devices[0].Address != second {
		t.Fatalf("unexpected devices: %+v", devices)
	}
}

func TestReconcilerKeepsDevicesFoundDuringScanStart(t *testing.T) {
	r := NewReconciler()

	stale := mustParseMAC(t, "00:00:00:00:00:01")
	fresh := mustParseMAC(t, "00:00:00:00:00:02")

	r.Apply(pairing.DeviceFound(stale, "Speaker", 0, pairing.BondNone))
	r.Apply(pairing.DeviceFound(fresh, "Printer", 0, pairing.BondNone))

	generation := r.PrepareScan()
	r.Apply(pairing.DeviceFound(fresh, "Printer", 0, pairing.BondNone))
	r.BeginScan(generation)

	devices := r.Devices()
	if len(devices) != 1 || devices[0].Address != fresh {
		t.Fatalf("expected only the device found by the new scan, got %+v", devices)
	}
}

func TestReconcilerSucceededIsTerminal(t *testing.T) {
	r := NewReconciler()
	address := mustParseMAC(t, "00:11:22:33:44:55")

	_ = r.BeginPair(address)
	r.ResolvePair(address, pairing.AlreadyBonded, nil)

	if err := r.BeginPair(address); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	device, _ := r.Device(address)
	if device.Status != pairing.StatusSucceeded {
		t.Fatalf("expected a succeeded status after a new pair request, got %s", device.Status)
	}

	r.ResolvePair(address, pairing.BondingStarted, errorkinds.ErrAdapterDisabled)
	r.Apply(pairing.PairingFailed(address))

	device, _ = r.Device(address)
	if device.Status != pairing.StatusSucceeded {
		t.Errorf("expected the succeeded status to be kept, got %s", device.Status)
	}
}
