// Package orchestrator implements automatic Bluetooth Classic pairing.
//
// The orchestrator scans for devices, requests bonds, answers every pairing
// challenge without user interaction and reports outcomes as a single ordered
// stream of events. It is platform-independent, and talks to the radio
// through a platform.Platform.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
	"golang.org/x/sync/errgroup"

	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/platform"
)

// Options holds the orchestrator options.
type Options struct {
	// PIN is the PIN supplied to PIN-request challenges.
	PIN string

	// Logger is the logger used by all components.
	// If nil, the default logger is used.
	Logger *slog.Logger

	// EventCapacity is the buffer size of each event subscription.
	EventCapacity int
}

// Orchestrator wires the pairing components together and owns their lifetime.
type Orchestrator struct {
	platform platform.Platform
	logger   *slog.Logger

	session    *Session
	bridge     *Bridge
	gateway    *Gateway
	responder  *Responder
	reconciler *Reconciler

	group  *errgroup.Group
	cancel context.CancelFunc

	started bool
	mu      sync.Mutex
}

// New returns a new orchestrator for the provided platform.
func New(p platform.Platform, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	session := NewSession(opts.PIN)
	bridge := NewBridge(opts.EventCapacity, logger.With("component", "bridge"))

	return &Orchestrator{
		platform:   p,
		logger:     logger,
		session:    session,
		bridge:     bridge,
		gateway:    NewGateway(p, session, bridge, logger.With("component", "gateway")),
		responder:  NewResponder(session, logger.With("component", "responder")),
		reconciler: NewReconciler(),
	}
}

// Start registers the pairing responder, loads the bonded devices and
// starts routing platform signals. It returns once everything is running.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return nil
	}

	if err := o.platform.RegisterAgent(o.responder); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "orchestrator-register-agent",
			),
			ftag.With(ftag.Internal),
			fmsg.WithDesc("Cannot register the pairing agent", "Cannot register the pairing agent"),
		)
	}

	bonded, err := o.gateway.ListBondedDevices()
	if err != nil {
		o.logger.Warn("cannot load bonded devices", "error", err)
	} else {
		o.reconciler.LoadBonded(bonded)
	}

	// Subscribe before any signal is routed, so that no event is missed.
	events, unsubscribe := o.bridge.Subscribe()

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return o.bridge.Run(ctx, o.platform.Signals())
	})
	group.Go(func() error {
		defer unsubscribe()

		o.reconcile(ctx, events)

		return nil
	})

	o.group = group
	o.cancel = cancel
	o.started = true

	o.logger.Info("pairing orchestrator started", "pin_length", len(o.session.PIN()))

	return nil
}

// Wait waits for the orchestrator to stop.
func (o *Orchestrator) Wait() error {
	o.mu.Lock()
	group := o.group
	o.mu.Unlock()

	if group == nil {
		return nil
	}

	return group.Wait()
}

// Stop stops discovery, unregisters the pairing responder and closes all event subscriptions.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		o.bridge.Close()
		return nil
	}

	_ = o.gateway.StopDiscovery()

	if err := o.platform.UnregisterAgent(); err != nil {
		o.logger.Debug("unregistering the pairing agent returned an error", "error", err)
	}

	o.cancel()
	o.bridge.Close()
	o.started = false

	o.logger.Info("pairing orchestrator stopped")

	return nil
}

// Scan starts or stops device discovery. Once a scan has been accepted, every
// device that is not bonded is cleared from the device list.
func (o *Orchestrator) Scan(start bool) error {
	if !start {
		return o.gateway.StopDiscovery()
	}

	generation := o.reconciler.PrepareScan()
	if err := o.gateway.StartDiscovery(); err != nil {
		return err
	}

	o.reconciler.BeginScan(generation)

	return nil
}

// Pair requests a bond with the device. A non-empty PIN replaces the
// configured PIN. The outcome is delivered later as an event.
func (o *Orchestrator) Pair(address bluetooth.MacAddress, pin string) (pairing.BondResult, error) {
	if err := o.reconciler.BeginPair(address); err != nil {
		return pairing.BondingStarted, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "orchestrator-pair",
				"address", address.String(),
			),
			ftag.With(ftag.AlreadyExists),
			fmsg.With("Device is already being paired"),
		)
	}

	result, err := o.gateway.RequestBond(address, pin)
	o.reconciler.ResolvePair(address, result, err)

	return result, err
}

// Unpair removes an existing bond and drops the device from the device list.
func (o *Orchestrator) Unpair(address bluetooth.MacAddress) error {
	if err := o.gateway.RemoveBond(address); err != nil {
		return err
	}

	o.reconciler.Remove(address)

	return nil
}

// ListBonded returns the platform's current bonded set, and merges it into the device list.
func (o *Orchestrator) ListBonded() ([]pairing.Device, error) {
	devices, err := o.gateway.ListBondedDevices()
	if err != nil {
		return nil, err
	}

	o.reconciler.LoadBonded(devices)

	return devices, nil
}

// Devices returns a snapshot of the reconciled device list.
func (o *Orchestrator) Devices() []pairing.Device {
	return o.reconciler.Devices()
}

// Device returns the reconciled record of a single device.
func (o *Orchestrator) Device(address bluetooth.MacAddress) (pairing.Device, bool) {
	return o.reconciler.Device(address)
}

// Subscribe subscribes to the event stream.
func (o *Orchestrator) Subscribe() (<-chan pairing.Event, func()) {
	return o.bridge.Subscribe()
}

// SetPIN sets the PIN supplied to subsequent PIN-request challenges.
func (o *Orchestrator) SetPIN(pin string) {
	o.session.SetPIN(pin)
}

// OnChallengeResolved sets a function to be called after every resolved challenge.
// It must be set before Start.
func (o *Orchestrator) OnChallengeResolved(fn ResolvedFunc) {
	o.responder.OnResolved(fn)
}

// Session returns the shared session.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// reconcile applies every published event to the device list.
func (o *Orchestrator) reconcile(ctx context.Context, events <-chan pairing.Event) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}

			o.reconciler.Apply(event)
		}
	}
}
