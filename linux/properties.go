//go:build linux

package linux

import (
	bluetooth "github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
	"github.com/godbus/dbus/v5"

	"github.com/bluetuith-org/autopair/api/pairing"
	dbh "github.com/bluetuith-org/autopair/linux/internal/dbushelper"
	"github.com/bluetuith-org/autopair/platform"
)

// AdapterInfo holds the properties of a Bluetooth adapter.
type AdapterInfo struct {
	Name        string               `codec:"-"`
	Address     bluetooth.MacAddress `codec:"Address"`
	Alias       string               `codec:"Alias"`
	Powered     bool                 `codec:"Powered"`
	Discovering bool                 `codec:"Discovering"`
}

// deviceProperties holds the Device1 properties used by the pairing core.
type deviceProperties struct {
	Address bluetooth.MacAddress `codec:"Address"`
	Name    string               `codec:"Name"`
	Alias   string               `codec:"Alias"`
	Class   uint32               `codec:"Class"`
	Paired  bool                 `codec:"Paired"`
	Bonded  bool                 `codec:"Bonded"`
}

// decodeDevice decodes a Device1 property map.
func decodeDevice(path dbus.ObjectPath, variants map[string]dbus.Variant) (deviceProperties, error) {
	var props deviceProperties

	if err := dbh.DecodeVariantMap(variants, &props, "Address"); err != nil {
		return props, err
	}

	if props.Address.IsNil() {
		address, err := dbh.AddressFromPath(path)
		if err != nil {
			return props, err
		}

		props.Address = address
	}

	return props, nil
}

// info converts the properties to a platform device snapshot.
func (d deviceProperties) info() platform.DeviceInfo {
	name := d.Name
	if name == "" {
		name = d.Alias
	}

	bond := pairing.BondNone
	if d.Paired || d.Bonded {
		bond = pairing.BondBonded
	}

	return platform.DeviceInfo{
		Address: d.Address,
		Name:    name,
		Class:   d.Class,
		Bond:    bond,
	}
}
