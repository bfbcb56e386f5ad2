package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/platform"
)

func startTestOrchestrator(t *testing.T, f *fakePlatform) *Orchestrator {
	t.Helper()

	o := New(f, Options{PIN: "0000", Logger: discardLogger()})
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = o.Stop() })

	return o
}

func waitForStatus(t *testing.T, o *Orchestrator, address bluetooth.MacAddress, status pairing.Status) {
	t.Helper()

	eventually(t, func() bool {
		device, ok := o.Device(address)
		return ok && device.Status == status
	})
}

func TestOrchestratorPairDiscoveredDevice(t *testing.T) {
	f := newFakePlatform()
	o := startTestOrchestrator(t, f)

	var (
		resolved []pairing.Resolution
		mu       sync.Mutex
	)
	o.responder.OnResolved(func(_ pairing.Challenge, resolution pairing.Resolution) {
		mu.Lock()
		defer mu.Unlock()

		resolved = append(resolved, resolution)
	})

	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	address := mustParseMAC(t, "00:11:22:33:44:55")

	if err := o.Scan(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.signals <- platform.DeviceFoundSignal{Device: platform.DeviceInfo{Address: address, Name: "Printer", Class: 0x040680}}
	nextEvent(t, events, pairing.EventDeviceFound)

	result, err := o.Pair(address, "0000")
	if err != nil || result != pairing.BondingStarted {
		t.Fatalf("expected bonding to start, got %s, %v", result, err)
	}

	if o.Session().Discovery() != DiscoveryStopped {
		t.Errorf("expected discovery to be cancelled by the pair request")
	}

	device, _ := o.Device(address)
	if device.Status != pairing.StatusPairing {
		t.Errorf("expected a pairing status, got %s", device.Status)
	}

	resolution := f.challenge(t, pairing.Challenge{Address: address, Variant: pairing.VariantPIN})
	if resolution.Action != pairing.ResolveSetPIN || resolution.PIN != "0000" || !resolution.SuppressDefault {
		t.Fatalf("unexpected resolution: %+v", resolution)
	}

	f.bondChanged(address, pairing.BondBonding, pairing.BondBonded)

	if event := nextEvent(t, events, pairing.EventPairingSucceeded); event.Address != address {
		t.Errorf("unexpected event: %+v", event)
	}

	waitForStatus(t, o, address, pairing.StatusSucceeded)

	device, _ = o.Device(address)
	if device.Bond != pairing.BondBonded || device.Name != "Printer" {
		t.Errorf("unexpected device: %+v", device)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(resolved) != 1 {
		t.Errorf("expected a single resolved challenge, got %d", len(resolved))
	}
}

func TestOrchestratorPairBondedDevice(t *testing.T) {
	f := newFakePlatform()
	address := mustParseMAC(t, "00:11:22:33:44:55")
	f.bonds[address] = pairing.BondBonded

	o := startTestOrchestrator(t, f)

	var challenged bool
	o.responder.OnResolved(func(pairing.Challenge, pairing.Resolution) {
		challenged = true
	})

	result, err := o.Pair(address, "0000")
	if err != nil || result != pairing.AlreadyBonded {
		t.Fatalf("expected an already bonded result, got %s, %v", result, err)
	}

	device, _ := o.Device(address)
	if device.Status != pairing.StatusSucceeded || device.Bond != pairing.BondBonded {
		t.Errorf("unexpected device: %+v", device)
	}

	if f.count("create-bond") != 0 || challenged {
		t.Errorf("expected no bonding for a bonded device")
	}
}

func TestOrchestratorUnrecognizedChallenge(t *testing.T) {
	f := newFakePlatform()
	startTestOrchestrator(t, f)

	resolution := f.challenge(t, pairing.Challenge{
		Address: mustParseMAC(t, "00:11:22:33:44:55"),
		Variant: pairing.ChallengeVariant(99),
	})

	if resolution.Action != pairing.ResolveConfirm || !resolution.SuppressDefault {
		t.Errorf("expected a generic confirmation, got %+v", resolution)
	}
}

func TestOrchestratorPairFailure(t *testing.T) {
	f := newFakePlatform()
	o := startTestOrchestrator(t, f)

	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	address := mustParseMAC(t, "00:11:22:33:44:55")

	if _, err := o.Pair(address, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := o.Pair(address, ""); err == nil {
		t.Errorf("expected a second pair request to be refused")
	}

	f.bondChanged(address, pairing.BondBonding, pairing.BondNone)

	nextEvent(t, events, pairing.EventPairingFailed)
	expectNoEvent(t, events)

	waitForStatus(t, o, address, pairing.StatusFailed)

	if _, err := o.Pair(address, ""); err != nil {
		t.Errorf("expected a retry to be accepted, got %v", err)
	}
}

func TestOrchestratorUnpairIsNotAFailure(t *testing.T) {
	f := newFakePlatform()
	address := mustParseMAC(t, "00:11:22:33:44:55")
	f.bonded = []platform.DeviceInfo{{Address: address, Name: "Keyboard"}}
	f.bonds[address] = pairing.BondBonded

	o := startTestOrchestrator(t, f)

	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	if _, ok := o.Device(address); !ok {
		t.Fatalf("expected the bonded device to be loaded")
	}

	if err := o.Unpair(address); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.bondChanged(address, pairing.BondBonded, pairing.BondNone)
	expectNoEvent(t, events)

	if _, ok := o.Device(address); ok {
		t.Errorf("expected the device to be removed")
	}
}

func TestOrchestratorScanKeepsBondedDevices(t *testing.T) {
	f := newFakePlatform()
	bonded := mustParseMAC(t, "00:00:00:00:00:01")
	found := mustParseMAC(t, "00:00:00:00:00:02")
	f.bonded = []platform.DeviceInfo{{Address: bonded, Name: "Keyboard"}}

	o := startTestOrchestrator(t, f)

	if err := o.Scan(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.signals <- platform.DeviceFoundSignal{Device: platform.DeviceInfo{Address: found}}
	eventually(t, func() bool {
		_, ok := o.Device(found)
		return ok
	})

	f.signals <- platform.DiscoveryFinishedSignal{}
	eventually(t, func() bool {
		return o.Session().Discovery() == DiscoveryStopped
	})

	if err := o.Scan(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	devices := o.Devices()
	if len(devices) != 1 || devices[0].Address != bonded {
		t.Errorf("expected only the bonded device, got %+v", devices)
	}

	if err := o.Scan(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrchestratorStop(t *testing.T) {
	f := newFakePlatform()

	o := New(f, Options{Logger: discardLogger()})
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.count("register-agent") != 1 {
		t.Errorf("expected a single agent registration")
	}

	events, _ := o.Subscribe()

	if err := o.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.count("unregister-agent") != 1 {
		t.Errorf("expected a single agent unregistration")
	}

	if err := o.Wait(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	})
}

func TestOrchestratorPairKeepsSucceededStatus(t *testing.T) {
	f := newFakePlatform()
	address := mustParseMAC(t, "00:11:22:33:44:55")
	f.bonds[address] = pairing.BondBonded

	o := startTestOrchestrator(t, f)

	if result, err := o.Pair(address, ""); err != nil || result != pairing.AlreadyBonded {
		t.Fatalf("expected an already bonded result, got %s, %v", result, err)
	}

	f.powered = false

	if _, err := o.Pair(address, ""); !errors.Is(err, errorkinds.ErrAdapterDisabled) {
		t.Fatalf("expected a disabled adapter, got %v", err)
	}

	device, _ := o.Device(address)
	if device.Status != pairing.StatusSucceeded || device.Bond != pairing.BondBonded {
		t.Errorf("expected the paired device to stay succeeded, got %+v", device)
	}
}

func TestOrchestratorFailedScanKeepsDevices(t *testing.T) {
	f := newFakePlatform()
	found := mustParseMAC(t, "00:11:22:33:44:55")

	o := startTestOrchestrator(t, f)

	if err := o.Scan(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.signals <- platform.DeviceFoundSignal{Device: platform.DeviceInfo{Address: found}}
	eventually(t, func() bool {
		_, ok := o.Device(found)
		return ok
	})

	if err := o.Scan(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.powered = false

	if err := o.Scan(true); !errors.Is(err, errorkinds.ErrAdapterDisabled) {
		t.Fatalf("expected a disabled adapter, got %v", err)
	}

	if _, ok := o.Device(found); !ok {
		t.Errorf("expected the found device to stay visible after a refused scan")
	}
}
