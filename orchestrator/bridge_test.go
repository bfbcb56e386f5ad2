package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/platform"
)

func TestBridgeOrdering(t *testing.T) {
	b := NewBridge(0, discardLogger())
	defer b.Close()

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	address := mustParseMAC(t, "00:11:22:33:44:55")

	b.Publish(pairing.DeviceFound(address, "Printer", 0, pairing.BondNone))
	b.Publish(pairing.PairingSucceeded(address))
	b.Publish(pairing.DiscoveryFinished())

	kinds := []pairing.EventKind{
		pairing.EventDeviceFound,
		pairing.EventPairingSucceeded,
		pairing.EventDiscoveryFinished,
	}

	for i, kind := range kinds {
		event := nextEvent(t, events, kind)
		if event.Seq != uint64(i+1) {
			t.Errorf("expected sequence %d for %s, got %d", i+1, kind, event.Seq)
		}
	}
}

func TestBridgeSubscribeAfterClose(t *testing.T) {
	b := NewBridge(0, discardLogger())
	b.Close()
	b.Close()

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected a closed channel")
		}

	case <-time.After(time.Second):
		t.Fatalf("expected the channel to be closed")
	}

	// Publishing after close is a no-op.
	b.Publish(pairing.DiscoveryFinished())
}

func TestBridgeDiscoveryRegistration(t *testing.T) {
	session := NewSession("")
	b := NewBridge(0, discardLogger())
	defer b.Close()

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	found := platform.DeviceFoundSignal{
		Device: platform.DeviceInfo{Address: mustParseMAC(t, "00:11:22:33:44:55"), Name: "Printer"},
	}

	// Without a registered listener, discovery signals are dropped.
	b.Dispatch(found)
	expectNoEvent(t, events)

	listener := NewDiscoveryListener(session, b)
	b.RegisterDiscovery(listener)
	b.RegisterDiscovery(listener)

	b.Dispatch(found)

	event := nextEvent(t, events, pairing.EventDeviceFound)
	if event.Name != "Printer" {
		t.Errorf("unexpected event: %+v", event)
	}

	expectNoEvent(t, events)

	if !b.UnregisterDiscovery() {
		t.Errorf("expected a registered listener")
	}

	if b.UnregisterDiscovery() {
		t.Errorf("expected no registered listener")
	}
}

func TestBridgeRun(t *testing.T) {
	b := NewBridge(0, discardLogger())
	defer b.Close()

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	signals := make(chan platform.Signal, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, signals)
	}()

	address := mustParseMAC(t, "00:11:22:33:44:55")
	signals <- platform.BondStateChangedSignal{Address: address, Previous: pairing.BondBonding, New: pairing.BondBonded}

	if event := nextEvent(t, events, pairing.EventPairingSucceeded); event.Address != address {
		t.Errorf("unexpected event: %+v", event)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

	case <-time.After(time.Second):
		t.Fatalf("expected the bridge to stop")
	}
}

func TestClassifyBondTransition(t *testing.T) {
	tests := []struct {
		previous, state pairing.BondState
		kind            pairing.EventKind
		outcome         bool
	}{
		{pairing.BondBonding, pairing.BondBonded, pairing.EventPairingSucceeded, true},
		{pairing.BondNone, pairing.BondBonded, pairing.EventPairingSucceeded, true},
		{pairing.BondBonding, pairing.BondNone, pairing.EventPairingFailed, true},
		{pairing.BondNone, pairing.BondBonding, pairing.EventNone, false},
		{pairing.BondBonded, pairing.BondNone, pairing.EventNone, false},
		{pairing.BondNone, pairing.BondNone, pairing.EventNone, false},
	}

	for _, test := range tests {
		kind, ok := ClassifyBondTransition(test.state, test.previous)
		if kind != test.kind || ok != test.outcome {
			t.Errorf("ClassifyBondTransition(%s, %s) = (%s, %v), want (%s, %v)",
				test.state, test.previous, kind, ok, test.kind, test.outcome,
			)
		}
	}
}

func TestBondObserver(t *testing.T) {
	rec := &recorder{}
	observer := NewBondObserver(rec)
	address := mustParseMAC(t, "00:11:22:33:44:55")

	// Unpairing a bonded device is not an outcome.
	observer.OnBondStateChanged(platform.BondStateChangedSignal{Address: address, Previous: pairing.BondBonded, New: pairing.BondNone})
	if events := rec.all(); len(events) != 0 {
		t.Fatalf("unexpected events: %+v", events)
	}

	observer.OnBondStateChanged(platform.BondStateChangedSignal{Address: address, Previous: pairing.BondNone, New: pairing.BondBonding})
	observer.OnBondStateChanged(platform.BondStateChangedSignal{Address: address, Previous: pairing.BondBonding, New: pairing.BondNone})

	events := rec.all()
	if len(events) != 1 || events[0].Kind != pairing.EventPairingFailed || events[0].Address != address {
		t.Fatalf("expected exactly one failed event, got %+v", events)
	}
}

func TestDiscoveryListener(t *testing.T) {
	rec := &recorder{}
	session := NewSession("")
	session.setDiscovery(DiscoveryRunning)

	listener := NewDiscoveryListener(session, rec)
	address := mustParseMAC(t, "00:11:22:33:44:55")

	listener.OnDeviceFound(platform.DeviceFoundSignal{Device: platform.DeviceInfo{Address: address, Class: 0x040680}})
	listener.OnDeviceFound(platform.DeviceFoundSignal{Device: platform.DeviceInfo{Address: address, Class: 0x040680}})
	listener.OnDiscoveryFinished(platform.DiscoveryFinishedSignal{})

	events := rec.all()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}

	if events[2].Kind != pairing.EventDiscoveryFinished {
		t.Errorf("expected a finished event last, got %s", events[2].Kind)
	}

	if session.Discovery() != DiscoveryStopped {
		t.Errorf("expected the discovery session to be stopped")
	}
}

func TestBridgeCloseWithStalledSubscriber(t *testing.T) {
	b := NewBridge(1, discardLogger())

	_, unsubscribe := b.Subscribe()

	published := make(chan struct{})
	go func() {
		defer close(published)

		for range 3 {
			b.Publish(pairing.DiscoveryFinished())
		}
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		b.Close()
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("expected close to return while a subscriber is not reading")
	}

	unsubscribe()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the publisher to finish once the subscriber left")
	}
}

func TestBridgeUnsubscribeDuringClose(t *testing.T) {
	done := make(chan struct{})

	go func() {
		defer close(done)

		for range 50 {
			b := NewBridge(0, discardLogger())

			_, unsubscribe := b.Subscribe()
			b.Publish(pairing.DiscoveryFinished())

			var wg sync.WaitGroup
			wg.Add(2)

			go func() {
				defer wg.Done()
				unsubscribe()
			}()

			go func() {
				defer wg.Done()
				b.Close()
			}()

			wg.Wait()
			b.Publish(pairing.DiscoveryFinished())
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected unsubscribe and close to complete")
	}
}
