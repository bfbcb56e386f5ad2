package pairing

import (
	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
)

// EventKind represents the kind of a pairing event.
type EventKind byte

// The different kinds of pairing events.
const (
	EventNone EventKind = iota // The zero value for this type.
	EventDeviceFound
	EventDiscoveryFinished
	EventPairingSucceeded
	EventPairingFailed
)

// eventNames holds names of the different event kinds.
var eventNames = map[EventKind]string{
	EventNone:              "",
	EventDeviceFound:       "device_found",
	EventDiscoveryFinished: "discovery_finished",
	EventPairingSucceeded:  "pairing_succeeded",
	EventPairingFailed:     "pairing_failed",
}

// String returns the name of the event kind.
func (e EventKind) String() string {
	return eventNames[e]
}

// Event represents a single event delivered to the orchestration caller.
type Event struct {
	// Seq holds the position of the event within the live stream.
	Seq uint64 `json:"seq"`

	// Kind holds the kind of the event.
	Kind EventKind `json:"kind"`

	// Address holds the address of the device the event refers to.
	// It is empty for discovery-finished events.
	Address bluetooth.MacAddress `json:"address,omitempty"`

	// Name holds the device name reported with a device-found event.
	Name string `json:"name,omitempty"`

	// Class holds the device class reported with a device-found event.
	Class uint32 `json:"class,omitempty"`

	// Bond holds the bond state snapshot carried by the event.
	Bond BondState `json:"bond_state"`
}

// DeviceFound returns a device-found event.
func DeviceFound(address bluetooth.MacAddress, name string, class uint32, bond BondState) Event {
	return Event{Kind: EventDeviceFound, Address: address, Name: name, Class: class, Bond: bond}
}

// DiscoveryFinished returns a discovery-finished event.
func DiscoveryFinished() Event {
	return Event{Kind: EventDiscoveryFinished}
}

// PairingSucceeded returns a pairing-succeeded event.
func PairingSucceeded(address bluetooth.MacAddress) Event {
	return Event{Kind: EventPairingSucceeded, Address: address, Bond: BondBonded}
}

// PairingFailed returns a pairing-failed event.
func PairingFailed(address bluetooth.MacAddress) Event {
	return Event{Kind: EventPairingFailed, Address: address, Bond: BondNone}
}
