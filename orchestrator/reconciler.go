package orchestrator

import (
	"sync"

	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
)

// statusInput describes an input to the pairing status state machine.
type statusInput byte

// The different state machine inputs.
const (
	inputPairRequest statusInput = iota
	inputSucceeded
	inputFailed
)

// nextStatus returns the status reached from the current status on the given input,
// and whether the input causes a transition at all.
//
//	IDLE/FAILED --(pair request)--> PAIRING
//	PAIRING --(succeeded)--> SUCCEEDED
//	PAIRING --(failed)--> FAILED
//
// SUCCEEDED is terminal. A FAILED status only goes back to PAIRING on an explicit pair request.
func nextStatus(current pairing.Status, input statusInput) (pairing.Status, bool) {
	switch input {
	case inputPairRequest:
		if current == pairing.StatusIdle || current == pairing.StatusFailed {
			return pairing.StatusPairing, true
		}

	case inputSucceeded:
		if current == pairing.StatusPairing {
			return pairing.StatusSucceeded, true
		}

	case inputFailed:
		if current == pairing.StatusPairing {
			return pairing.StatusFailed, true
		}
	}

	return current, false
}

// Reconciler merges discovery results, the bonded snapshot and pairing
// outcomes into one canonical record per device address.
type Reconciler struct {
	devices map[bluetooth.MacAddress]*pairing.Device
	order   []bluetooth.MacAddress

	// seen holds the scan generation each device was last found in.
	seen       map[bluetooth.MacAddress]uint64
	generation uint64

	mu sync.Mutex
}

// NewReconciler returns a new device list reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		devices: make(map[bluetooth.MacAddress]*pairing.Device),
		seen:    make(map[bluetooth.MacAddress]uint64),
	}
}

// LoadBonded merges the bonded snapshot into the device set.
func (r *Reconciler) LoadBonded(devices []pairing.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range devices {
		device := r.upsert(d.Address, d.Name, d.Class)
		device.Bond = pairing.BondBonded
	}
}

// PrepareScan opens a new scan generation and returns it. Devices found
// from now on belong to the new generation.
func (r *Reconciler) PrepareScan() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++

	return r.generation
}

// BeginScan clears all devices that are not bonded and were not found within
// the given scan generation. It must only be called once the scan was accepted.
// Devices that are being paired are kept until their outcome arrives.
func (r *Reconciler) BeginScan(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := r.order[:0]
	for _, address := range r.order {
		device := r.devices[address]
		if device.Bond != pairing.BondBonded && device.Status != pairing.StatusPairing &&
			r.seen[address] < generation {
			delete(r.devices, address)
			delete(r.seen, address)
			continue
		}

		order = append(order, address)
	}

	r.order = order
}

// BeginPair marks the device as being paired. The device is added to the set if it is not known.
// A device that has already been paired successfully keeps its status.
// It returns an error if a pairing request is already in progress for the device.
func (r *Reconciler) BeginPair(address bluetooth.MacAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device := r.upsert(address, "", 0)
	if device.Status == pairing.StatusPairing {
		return errorkinds.ErrPairingInProgress
	}

	r.transition(device, inputPairRequest)

	return nil
}

// ResolvePair applies the synchronous result of a pair request.
func (r *Reconciler) ResolvePair(address bluetooth.MacAddress, result pairing.BondResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[address]
	if !ok {
		return
	}

	switch {
	case err != nil:
		r.transition(device, inputFailed)

	case result == pairing.AlreadyBonded:
		device.Bond = pairing.BondBonded
		r.transition(device, inputSucceeded)

	case device.Status == pairing.StatusPairing && device.Bond != pairing.BondBonded:
		device.Bond = pairing.BondBonding
	}
}

// Apply merges an event into the device set.
func (r *Reconciler) Apply(event pairing.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Kind {
	case pairing.EventDeviceFound:
		device := r.upsert(event.Address, event.Name, event.Class)
		device.Bond = event.Bond
		r.seen[event.Address] = r.generation

	case pairing.EventPairingSucceeded:
		device := r.upsert(event.Address, "", 0)
		device.Bond = pairing.BondBonded
		r.transition(device, inputSucceeded)

	case pairing.EventPairingFailed:
		device, ok := r.devices[event.Address]
		if !ok {
			return
		}

		device.Bond = pairing.BondNone
		r.transition(device, inputFailed)
	}
}

// Remove removes a device from the set.
func (r *Reconciler) Remove(address bluetooth.MacAddress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[address]; !ok {
		return
	}

	delete(r.devices, address)
	delete(r.seen, address)

	for i, a := range r.order {
		if a == address {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Device returns the record of a device.
func (r *Reconciler) Device(address bluetooth.MacAddress) (pairing.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[address]
	if !ok {
		return pairing.Device{}, false
	}

	return *device, true
}

// Devices returns a snapshot of the device set, in the order the devices were first observed.
func (r *Reconciler) Devices() []pairing.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]pairing.Device, 0, len(r.order))
	for _, address := range r.order {
		devices = append(devices, *r.devices[address])
	}

	return devices
}

// upsert returns the record for the address, creating it if necessary.
// The first known name and class are kept.
func (r *Reconciler) upsert(address bluetooth.MacAddress, name string, class uint32) *pairing.Device {
	device, ok := r.devices[address]
	if !ok {
		device = &pairing.Device{Address: address}
		r.devices[address] = device
		r.order = append(r.order, address)
	}

	if device.Name == "" {
		device.Name = name
	}
	if device.Class == 0 {
		device.Class = class
	}

	return device
}

// transition applies a state machine input to the device.
func (r *Reconciler) transition(device *pairing.Device, input statusInput) bool {
	next, ok := nextStatus(device.Status, input)
	if ok {
		device.Status = next
	}

	return ok
}
