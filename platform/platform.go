// Package platform describes the boundary between the pairing core and
// the platform-provided Bluetooth stack.
//
// Every operation that crosses into the radio only reports that the request
// was accepted. The eventual outcome is delivered later, out of band, as a
// Signal on the channel returned by Platform.Signals.
package platform

import (
	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"

	"github.com/bluetuith-org/autopair/api/pairing"
)

// DeviceInfo holds a platform snapshot of a device.
type DeviceInfo struct {
	Address bluetooth.MacAddress
	Name    string
	Class   uint32
	Bond    pairing.BondState
}

// ChallengeHandler resolves pairing challenges. The platform calls
// HandleChallenge synchronously, within the signal-handling window of the
// pairing request, and answers the remote device with the returned resolution.
type ChallengeHandler interface {
	HandleChallenge(challenge pairing.Challenge) pairing.Resolution
}

// Platform describes a function call interface to the platform Bluetooth adapter.
type Platform interface {
	// Available reports whether an adapter is present.
	Available() error

	// Powered reports whether the adapter's radio is on.
	Powered() (bool, error)

	// BondedDevices returns the platform's current bonded set.
	BondedDevices() ([]DeviceInfo, error)

	// BondState returns the current bond state of a device.
	BondState(address bluetooth.MacAddress) (pairing.BondState, error)

	// StartDiscovery requests a new scan.
	StartDiscovery() error

	// StopDiscovery cancels a running scan.
	StopDiscovery() error

	// CreateBond requests a bond with the device. It returns once the
	// platform has accepted the request, not when bonding completes.
	CreateBond(address bluetooth.MacAddress) error

	// RemoveBond removes an existing bond.
	RemoveBond(address bluetooth.MacAddress) error

	// RegisterAgent registers the handler for pairing challenges, with
	// priority over any other handler on the system.
	RegisterAgent(handler ChallengeHandler) error

	// UnregisterAgent unregisters the handler for pairing challenges.
	UnregisterAgent() error

	// Signals returns the stream of platform signals.
	Signals() <-chan Signal
}
