package orchestrator

import (
	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/platform"
)

// Emitter describes an interface to forward pairing events.
type Emitter interface {
	Publish(event pairing.Event)
}

// DiscoveryListener forwards "device found" and "discovery finished" signals.
// Its registration is owned by the discovery session. It does not deduplicate
// found devices, the reconciler does.
type DiscoveryListener struct {
	session *Session
	emitter Emitter
}

// NewDiscoveryListener returns a new discovery listener.
func NewDiscoveryListener(session *Session, emitter Emitter) *DiscoveryListener {
	return &DiscoveryListener{session: session, emitter: emitter}
}

// OnDeviceFound forwards a found device as an event.
func (d *DiscoveryListener) OnDeviceFound(signal platform.DeviceFoundSignal) {
	device := signal.Device
	d.emitter.Publish(pairing.DeviceFound(device.Address, device.Name, device.Class, device.Bond))
}

// OnDiscoveryFinished marks the discovery session as stopped and forwards a finished event.
func (d *DiscoveryListener) OnDiscoveryFinished(platform.DiscoveryFinishedSignal) {
	d.session.setDiscovery(DiscoveryStopped)
	d.emitter.Publish(pairing.DiscoveryFinished())
}

// BondObserver classifies bond state transitions into pairing outcomes.
type BondObserver struct {
	emitter Emitter
}

// NewBondObserver returns a new bond state observer.
func NewBondObserver(emitter Emitter) *BondObserver {
	return &BondObserver{emitter: emitter}
}

// OnBondStateChanged emits a pairing outcome event if the transition is one.
func (b *BondObserver) OnBondStateChanged(signal platform.BondStateChangedSignal) {
	kind, ok := ClassifyBondTransition(signal.New, signal.Previous)
	if !ok {
		return
	}

	switch kind {
	case pairing.EventPairingSucceeded:
		b.emitter.Publish(pairing.PairingSucceeded(signal.Address))

	case pairing.EventPairingFailed:
		b.emitter.Publish(pairing.PairingFailed(signal.Address))
	}
}

// ClassifyBondTransition returns the outcome of a bond state transition:
//   - any transition to BONDED is a success.
//   - BONDING to NONE is a failure.
//
// Every other transition (NONE to BONDING, BONDED to NONE on unpair, NONE to NONE)
// is informational and has no outcome.
func ClassifyBondTransition(newState, previous pairing.BondState) (pairing.EventKind, bool) {
	switch {
	case newState == pairing.BondBonded:
		return pairing.EventPairingSucceeded, true

	case newState == pairing.BondNone && previous == pairing.BondBonding:
		return pairing.EventPairingFailed, true
	}

	return pairing.EventNone, false
}
