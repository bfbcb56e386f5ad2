//go:build linux

package dbushelper

import (
	"path/filepath"
	"strings"

	bluetooth "github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
	"github.com/godbus/dbus/v5"
	"github.com/puzpuzpuz/xsync/v3"
)

// devicePathPrefix is the prefix of the last element of a Bluez device path,
// for example "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
const devicePathPrefix = "dev_"

// PathConverter maps Bluez DBus device paths to Bluetooth addresses.
type PathConverter struct {
	paths *xsync.MapOf[dbus.ObjectPath, bluetooth.MacAddress]
}

// NewPathConverter returns a new path converter.
func NewPathConverter() *PathConverter {
	return &PathConverter{paths: xsync.NewMapOf[dbus.ObjectPath, bluetooth.MacAddress]()}
}

// Add adds a mapping of a Bluez DBus path and a Bluetooth address.
func (p *PathConverter) Add(path dbus.ObjectPath, address bluetooth.MacAddress) {
	p.paths.Store(path, address)
}

// Remove removes a mapping of a Bluez DBus path.
func (p *PathConverter) Remove(path dbus.ObjectPath) {
	p.paths.Delete(path)
}

// Address returns the Bluetooth address that is mapped to the provided Bluez DBus path.
// If the path is not mapped, the address is parsed from the path itself.
func (p *PathConverter) Address(path dbus.ObjectPath) (bluetooth.MacAddress, bool) {
	if address, ok := p.paths.Load(path); ok {
		return address, true
	}

	address, err := AddressFromPath(path)
	if err != nil {
		return bluetooth.MacAddress{}, false
	}

	p.paths.Store(path, address)

	return address, true
}

// DbusPath returns the Bluez DBus path that is mapped to the provided Bluetooth address.
func (p *PathConverter) DbusPath(address bluetooth.MacAddress) (dbus.ObjectPath, bool) {
	var dpath dbus.ObjectPath

	p.paths.Range(func(path dbus.ObjectPath, addr bluetooth.MacAddress) bool {
		if address == addr {
			dpath = path

			return false
		}

		return true
	})

	return dpath, dpath != ""
}

// AddressFromPath parses a Bluetooth address from a Bluez DBus device path.
func AddressFromPath(path dbus.ObjectPath) (bluetooth.MacAddress, error) {
	element := filepath.Base(string(path))
	element = strings.TrimPrefix(element, devicePathPrefix)

	return bluetooth.ParseMAC(strings.ReplaceAll(element, "_", ":"))
}

// DevicePath returns the Bluez DBus path of a device under the provided adapter path.
func DevicePath(adapterPath dbus.ObjectPath, address bluetooth.MacAddress) dbus.ObjectPath {
	element := devicePathPrefix + strings.ReplaceAll(address.String(), ":", "_")

	return dbus.ObjectPath(string(adapterPath) + "/" + element)
}

// IsChildPath returns whether the path is a direct child of the parent path.
func IsChildPath(parent, path dbus.ObjectPath) bool {
	return filepath.Dir(string(path)) == string(parent)
}
