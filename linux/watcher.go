//go:build linux

package linux

import (
	"maps"
	"slices"

	"github.com/godbus/dbus/v5"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
	dbh "github.com/bluetuith-org/autopair/linux/internal/dbushelper"
	"github.com/bluetuith-org/autopair/platform"
)

// watch converts Bluez signals to platform signals until the DBus connection is closed.
func (p *Platform) watch(ch chan *dbus.Signal) {
	for signal := range ch {
		select {
		case <-p.done:
			return

		default:
		}

		p.parseSignalData(signal)
	}
}

// parseSignalData parses Bluez DBus signal data.
func (p *Platform) parseSignalData(signal *dbus.Signal) {
	if len(signal.Body) < 2 {
		return
	}

	switch signal.Name {
	case dbh.DbusSignalPropertyChangedIface:
		iface, ok := signal.Body[0].(string)
		if !ok {
			return
		}

		propertyMap, ok := signal.Body[1].(map[string]dbus.Variant)
		if !ok {
			return
		}

		switch iface {
		case dbh.BluezAdapterIface:
			p.adapterChanged(signal.Path, propertyMap)

		case dbh.BluezDeviceIface:
			p.deviceChanged(signal, propertyMap)
		}

	case dbh.DbusSignalInterfacesAddedIface:
		objectPath, ok := signal.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}

		nestedPropertyMap, ok := signal.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return
		}

		if values, ok := nestedPropertyMap[dbh.BluezAdapterIface]; ok {
			p.adapterAdded(objectPath, values)
		}

		if values, ok := nestedPropertyMap[dbh.BluezDeviceIface]; ok {
			p.deviceAdded(objectPath, maps.Clone(values))
		}

	case dbh.DbusSignalInterfacesRemovedIface:
		objectPath, ok := signal.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}

		ifaceNames, ok := signal.Body[1].([]string)
		if !ok {
			return
		}

		if slices.Contains(ifaceNames, dbh.BluezAdapterIface) {
			p.adapterRemoved(objectPath)
		}

		if slices.Contains(ifaceNames, dbh.BluezDeviceIface) {
			p.deviceRemoved(signal, objectPath)
		}
	}
}

// adapterChanged handles adapter property changes. A scan that ends,
// whether requested or not, is reported as finished.
func (p *Platform) adapterChanged(path dbus.ObjectPath, propertyMap map[string]dbus.Variant) {
	if string(path) != p.adapter.Load() {
		return
	}

	if discovering, ok := dbh.Property[bool](propertyMap, "Discovering"); ok && !discovering {
		p.discovering.Store(false)
		p.emit(platform.DiscoveryFinishedSignal{})
	}

	if powered, ok := dbh.Property[bool](propertyMap, "Powered"); ok {
		p.logger.Info("adapter power state changed", "powered", powered)
	}
}

// adapterAdded binds to the adapter if no adapter was bound yet and it matches.
func (p *Platform) adapterAdded(path dbus.ObjectPath, values map[string]dbus.Variant) {
	if p.adapter.Load() != "" || !p.adapterMatches(path, values) {
		return
	}

	if p.adapter.CompareAndSwap("", string(path)) {
		p.logger.Info("adapter added", "path", path)
	}
}

// adapterRemoved unbinds the adapter.
func (p *Platform) adapterRemoved(path dbus.ObjectPath) {
	if !p.adapter.CompareAndSwap(string(path), "") {
		return
	}

	p.logger.Warn("adapter removed", "path", path, "error", errorkinds.ErrAdapterUnavailable)

	if p.discovering.Swap(false) {
		p.emit(platform.DiscoveryFinishedSignal{})
	}
}

// deviceAdded caches a new device, and reports it as found while a scan is running.
func (p *Platform) deviceAdded(path dbus.ObjectPath, values map[string]dbus.Variant) {
	if !dbh.IsChildPath(dbus.ObjectPath(p.adapter.Load()), path) {
		return
	}

	info, ok := p.storeDevice(path, values)
	if !ok || !p.discovering.Load() {
		return
	}

	p.emit(platform.DeviceFoundSignal{Device: info})
}

// deviceChanged handles device property changes. A changed pairing property
// updates the bond state, and a changed signal strength or name while a scan
// is running reports the device as found again.
func (p *Platform) deviceChanged(signal *dbus.Signal, propertyMap map[string]dbus.Variant) {
	if !dbh.IsChildPath(dbus.ObjectPath(p.adapter.Load()), signal.Path) {
		return
	}

	address, ok := p.paths.Address(signal.Path)
	if !ok {
		p.logger.Debug("cannot handle device property change",
			"error", dbh.WrapSignalError(errorkinds.ErrDeviceNotFound, signal,
				"Bluez event handler error",
				"error_at", "pchanged-device-address",
			),
		)

		return
	}

	paired, pairedOk := dbh.Property[bool](propertyMap, "Paired")
	bonded, bondedOk := dbh.Property[bool](propertyMap, "Bonded")

	switch {
	case (pairedOk && paired) || (bondedOk && bonded):
		p.setBond(address, pairing.BondBonded)

	case pairedOk && !paired:
		if state, _ := p.bonds.Load(address); state == pairing.BondBonded {
			p.setBond(address, pairing.BondNone)
		}
	}

	info, _ := p.devices.Load(address)
	info.Address = address

	if name, ok := dbh.Property[string](propertyMap, "Name"); ok && name != "" {
		info.Name = name
	} else if alias, ok := dbh.Property[string](propertyMap, "Alias"); ok && info.Name == "" {
		info.Name = alias
	}

	if class, ok := dbh.Property[uint32](propertyMap, "Class"); ok {
		info.Class = class
	}

	info.Bond, _ = p.bonds.Load(address)
	p.devices.Store(address, info)

	_, rssiChanged := propertyMap["RSSI"]
	_, nameChanged := propertyMap["Name"]
	if (rssiChanged || nameChanged) && p.discovering.Load() {
		p.emit(platform.DeviceFoundSignal{Device: info})
	}
}

// deviceRemoved removes a device from the cache.
func (p *Platform) deviceRemoved(signal *dbus.Signal, path dbus.ObjectPath) {
	address, ok := p.paths.Address(path)
	if !ok {
		p.logger.Debug("cannot handle device removal",
			"error", dbh.WrapSignalError(errorkinds.ErrDeviceNotFound, signal,
				"Bluez event handler error",
				"error_at", "premoved-device-address",
			),
		)

		return
	}

	p.paths.Remove(path)
	p.devices.Delete(address)

	if state, ok := p.bonds.Load(address); ok && state == pairing.BondBonded {
		p.setBond(address, pairing.BondNone)
	}

	p.bonds.Delete(address)
}
