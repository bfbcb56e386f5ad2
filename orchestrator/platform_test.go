package orchestrator

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"

	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/platform"
)

// fakePlatform is an in-memory platform that records every call.
type fakePlatform struct {
	available error
	powered   bool
	bonded    []platform.DeviceInfo
	bonds     map[bluetooth.MacAddress]pairing.BondState

	startErr  error
	bondErr   error
	removeErr error

	calls   []string
	handler platform.ChallengeHandler
	signals chan platform.Signal

	mu sync.Mutex
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		powered: true,
		bonds:   make(map[bluetooth.MacAddress]pairing.BondState),
		signals: make(chan platform.Signal, 64),
	}
}

func (f *fakePlatform) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
}

func (f *fakePlatform) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}

	return n
}

func (f *fakePlatform) Available() error {
	return f.available
}

func (f *fakePlatform) Powered() (bool, error) {
	return f.powered, nil
}

func (f *fakePlatform) BondedDevices() ([]platform.DeviceInfo, error) {
	f.record("bonded-devices")

	return f.bonded, nil
}

func (f *fakePlatform) BondState(address bluetooth.MacAddress) (pairing.BondState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.bonds[address], nil
}

func (f *fakePlatform) StartDiscovery() error {
	f.record("start-discovery")

	return f.startErr
}

func (f *fakePlatform) StopDiscovery() error {
	f.record("stop-discovery")

	return nil
}

func (f *fakePlatform) CreateBond(address bluetooth.MacAddress) error {
	f.record("create-bond")

	if f.bondErr != nil {
		return f.bondErr
	}

	f.mu.Lock()
	f.bonds[address] = pairing.BondBonding
	f.mu.Unlock()

	return nil
}

func (f *fakePlatform) RemoveBond(address bluetooth.MacAddress) error {
	f.record("remove-bond")

	if f.removeErr != nil {
		return f.removeErr
	}

	f.mu.Lock()
	delete(f.bonds, address)
	f.mu.Unlock()

	return nil
}

func (f *fakePlatform) RegisterAgent(handler platform.ChallengeHandler) error {
	f.record("register-agent")

	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()

	return nil
}

func (f *fakePlatform) UnregisterAgent() error {
	f.record("unregister-agent")

	f.mu.Lock()
	f.handler = nil
	f.mu.Unlock()

	return nil
}

func (f *fakePlatform) Signals() <-chan platform.Signal {
	return f.signals
}

// challenge delivers a pairing challenge to the registered handler.
func (f *fakePlatform) challenge(t *testing.T, challenge pairing.Challenge) pairing.Resolution {
	t.Helper()

	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()

	if handler == nil {
		t.Fatalf("no challenge handler is registered")
	}

	return handler.HandleChallenge(challenge)
}

// bondChanged sends a bond state change.
func (f *fakePlatform) bondChanged(address bluetooth.MacAddress, previous, state pairing.BondState) {
	f.mu.Lock()
	f.bonds[address] = state
	f.mu.Unlock()

	f.signals <- platform.BondStateChangedSignal{Address: address, Previous: previous, New: state}
}

// recorder collects published events.
type recorder struct {
	events []pairing.Event
	mu     sync.Mutex
}

func (r *recorder) Publish(event pairing.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) all() []pairing.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]pairing.Event(nil), r.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustParseMAC(t *testing.T, address string) bluetooth.MacAddress {
	t.Helper()

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return mac
}

// nextEvent waits for the next event of the given kind, skipping others.
func nextEvent(t *testing.T, events <-chan pairing.Event, kind pairing.EventKind) pairing.Event {
	t.Helper()

	timeout := time.After(2 * time.Second)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", kind)
			}

			if event.Kind == kind {
				return event
			}

		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

// expectNoEvent checks that no event arrives within a short period.
func expectNoEvent(t *testing.T, events <-chan pairing.Event) {
	t.Helper()

	select {
	case event, ok := <-events:
		if ok {
			t.Fatalf("unexpected event: %+v", event)
		}

	case <-time.After(100 * time.Millisecond):
	}
}

// eventually polls the condition until it holds or a deadline passes.
func eventually(t *testing.T, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition was not met in time")
}
