package pairing

import (
	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
)

// BondState describes the platform's bond state for a device.
type BondState byte

// The different bond states.
const (
	BondNone BondState = iota
	BondBonding
	BondBonded
)

// bondStateNames holds names of the different bond states.
var bondStateNames = map[BondState]string{
	BondNone:    "none",
	BondBonding: "bonding",
	BondBonded:  "bonded",
}

// String returns the name of the bond state.
func (b BondState) String() string {
	if name, ok := bondStateNames[b]; ok {
		return name
	}

	return "unknown"
}

// Status describes the client-side pairing status of a device.
type Status byte

// The different pairing statuses.
const (
	StatusIdle Status = iota
	StatusPairing
	StatusSucceeded
	StatusFailed
)

// statusNames holds names of the different pairing statuses.
var statusNames = map[Status]string{
	StatusIdle:      "idle",
	StatusPairing:   "pairing",
	StatusSucceeded: "succeeded",
	StatusFailed:    "failed",
}

// String returns the name of the pairing status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return "unknown"
}

// Device holds the canonical record of a device.
type Device struct {
	// Address holds the Bluetooth MAC address of the device.
	// This is the unique key of the record.
	Address bluetooth.MacAddress `json:"address"`

	// Name holds the display name of the device, and may be empty
	// if the name is not known yet.
	Name string `json:"name,omitempty"`

	// Class holds the device type class specifier.
	Class uint32 `json:"class,omitempty"`

	// Bond holds the most recently observed bond state.
	Bond BondState `json:"bond_state"`

	// Status holds the client-side pairing status.
	Status Status `json:"status"`
}

// Type returns the type name of the device, derived from its class.
func (d Device) Type() string {
	return bluetooth.DeviceTypeFromClass(d.Class)
}

// DisplayName returns the name of the device, or its address if the name is unknown.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}

	return d.Address.String()
}

// BondResult describes the synchronous outcome of a bond request.
type BondResult byte

// The different bond request results.
const (
	BondingStarted BondResult = iota
	AlreadyBonded
)

// String returns the name of the bond result.
func (b BondResult) String() string {
	switch b {
	case AlreadyBonded:
		return "already bonded"

	case BondingStarted:
		return "bonding started"
	}

	return "unknown"
}
