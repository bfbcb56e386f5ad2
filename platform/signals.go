package platform

import (
	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"

	"github.com/bluetuith-org/autopair/api/pairing"
)

// Signal represents a single platform signal.
// It is implemented by DeviceFoundSignal, DiscoveryFinishedSignal and BondStateChangedSignal.
type Signal interface {
	signal()
}

// DeviceFoundSignal is sent when a device was reported by a running scan.
// The platform may send it several times for the same address within a scan.
type DeviceFoundSignal struct {
	Device DeviceInfo
}

// DiscoveryFinishedSignal is sent when a scan has ended.
type DiscoveryFinishedSignal struct{}

// BondStateChangedSignal is sent when the bond state of a device has changed.
type BondStateChangedSignal struct {
	Address  bluetooth.MacAddress
	New      pairing.BondState
	Previous pairing.BondState
}

func (DeviceFoundSignal) signal()       {}
func (DiscoveryFinishedSignal) signal() {}
func (BondStateChangedSignal) signal()  {}
