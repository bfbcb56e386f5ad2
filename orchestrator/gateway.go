package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/platform"
)

// Gateway is a thin wrapper over the platform adapter. Its operations only
// report whether a request was accepted; outcomes arrive later through the bridge.
type Gateway struct {
	platform  platform.Platform
	session   *Session
	bridge    *Bridge
	discovery *DiscoveryListener
	logger    *slog.Logger

	mu sync.Mutex
}

// NewGateway returns a new adapter gateway.
func NewGateway(p platform.Platform, session *Session, bridge *Bridge, logger *slog.Logger) *Gateway {
	return &Gateway{
		platform:  p,
		session:   session,
		bridge:    bridge,
		discovery: NewDiscoveryListener(session, bridge),
		logger:    logger,
	}
}

// ListBondedDevices returns the platform's current bonded set.
func (g *Gateway) ListBondedDevices() ([]pairing.Device, error) {
	if err := g.platform.Available(); err != nil {
		return nil, wrapError(err, errorkinds.ErrAdapterUnavailable, "gateway-list-bonded", nil,
			"Cannot list bonded devices",
		)
	}

	infos, err := g.platform.BondedDevices()
	if err != nil {
		return nil, wrapError(err, errorkinds.ErrAdapterUnavailable, "gateway-list-bonded", nil,
			"Cannot list bonded devices",
		)
	}

	devices := make([]pairing.Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, pairing.Device{
			Address: info.Address,
			Name:    info.Name,
			Class:   info.Class,
			Bond:    pairing.BondBonded,
		})
	}

	return devices, nil
}

// StartDiscovery cancels any running discovery session, registers the
// discovery listener and requests a new scan.
func (g *Gateway) StartDiscovery() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkAdapter("gateway-start-discovery", nil); err != nil {
		return err
	}

	if g.session.Discovery() == DiscoveryRunning {
		g.stopDiscovery()
	}

	g.bridge.RegisterDiscovery(g.discovery)

	if err := g.platform.StartDiscovery(); err != nil {
		g.bridge.UnregisterDiscovery()

		return wrapError(err, errorkinds.ErrDiscoveryFailed, "gateway-start-discovery", nil,
			"Cannot start device discovery",
		)
	}

	g.session.setDiscovery(DiscoveryRunning)
	g.logger.Debug("discovery started")

	return nil
}

// StopDiscovery cancels the scan and unregisters the discovery listener.
// It is safe to call when discovery is already stopped.
func (g *Gateway) StopDiscovery() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopDiscovery()

	return nil
}

// RequestBond cancels any running discovery, stores the PIN for the pairing
// responder and issues a bond request, unless the device is already bonded.
// It never waits for the bond to complete.
func (g *Gateway) RequestBond(address bluetooth.MacAddress, pin string) (pairing.BondResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkAdapter("gateway-request-bond", &address); err != nil {
		return pairing.BondingStarted, err
	}

	g.stopDiscovery()
	g.session.SetPIN(pin)

	state, err := g.platform.BondState(address)
	if err != nil {
		return pairing.BondingStarted, wrapError(err, errorkinds.ErrBondFailed, "gateway-bond-state", &address,
			"Cannot fetch the bond state of the device",
		)
	}

	if state == pairing.BondBonded {
		g.logger.Debug("device is already bonded", "address", address.String())
		return pairing.AlreadyBonded, nil
	}

	if err := g.platform.CreateBond(address); err != nil {
		return pairing.BondingStarted, wrapError(err, errorkinds.ErrBondFailed, "gateway-create-bond", &address,
			"Cannot pair with device",
		)
	}

	g.logger.Debug("bonding started", "address", address.String())

	return pairing.BondingStarted, nil
}

// RemoveBond removes an existing bond.
func (g *Gateway) RemoveBond(address bluetooth.MacAddress) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.platform.RemoveBond(address); err != nil {
		return fault.Wrap(fmt.Errorf("%w: %w", errorkinds.ErrUnpairFailed, err),
			fctx.With(context.Background(),
				"error_at", "gateway-remove-bond",
				"address", address.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.WithDesc("Cannot remove device", "Cannot remove device"),
		)
	}

	return nil
}

// stopDiscovery stops a running scan and unregisters the discovery listener.
// Failures are logged, since stopping is a best-effort cleanup.
func (g *Gateway) stopDiscovery() {
	registered := g.bridge.UnregisterDiscovery()
	previous := g.session.setDiscovery(DiscoveryStopped)

	if !registered && previous == DiscoveryStopped {
		return
	}

	if err := g.platform.StopDiscovery(); err != nil {
		g.logger.Debug("stopping discovery returned an error", "error", err)
	}
}

// checkAdapter checks whether the adapter is present and powered on.
func (g *Gateway) checkAdapter(errorAt string, address *bluetooth.MacAddress) error {
	if err := g.platform.Available(); err != nil {
		return wrapError(err, errorkinds.ErrAdapterUnavailable, errorAt, address,
			"Bluetooth adapter is not available",
		)
	}

	powered, err := g.platform.Powered()
	if err != nil {
		return wrapError(err, errorkinds.ErrAdapterUnavailable, errorAt, address,
			"Cannot fetch adapter state",
		)
	}

	if !powered {
		return wrapError(errorkinds.ErrAdapterDisabled, errorkinds.ErrAdapterDisabled, errorAt, address,
			"Bluetooth adapter is powered off",
		)
	}

	return nil
}

// wrapError wraps a platform error. Adapter-level failures (unavailable,
// disabled, permission denied) keep their kind, so that callers can choose the
// correct remediation with errorkinds.RemediationFor. Any other failure is
// reported as the fallback kind. The message is the user-facing description.
func wrapError(err, fallback error, errorAt string, address *bluetooth.MacAddress, message string) error {
	tag := ftag.Internal
	kind := fallback

	for _, adapterKind := range []error{
		errorkinds.ErrPermissionDenied,
		errorkinds.ErrAdapterDisabled,
		errorkinds.ErrAdapterUnavailable,
	} {
		if errors.Is(err, adapterKind) {
			kind = adapterKind
			break
		}
	}

	switch kind {
	case errorkinds.ErrPermissionDenied:
		tag = ftag.PermissionDenied

	case errorkinds.ErrAdapterUnavailable:
		tag = ftag.NotFound
	}

	if !errors.Is(err, kind) {
		err = fmt.Errorf("%w: %w", kind, err)
	}

	metadata := []string{"error_at", errorAt}
	if address != nil {
		metadata = append(metadata, "address", address.String())
	}

	return fault.Wrap(err,
		fctx.With(context.Background(), metadata...),
		ftag.With(tag),
		fmsg.WithDesc(message, message),
	)
}
