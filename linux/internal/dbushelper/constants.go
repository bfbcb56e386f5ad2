//go:build linux

package dbushelper

import (
	"github.com/godbus/dbus/v5"
	"github.com/rs/xid"
)

// The DBus specific bus and property names.
const (
	DbusGetPropertiesIface  = "org.freedesktop.DBus.Properties.Get"
	DbusObjectManagerIface  = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	DbusIntrospectableIface = "org.freedesktop.DBus.Introspectable"

	DbusSignalAddMatchIface          = "org.freedesktop.DBus.AddMatch"
	DbusSignalPropertyChangedIface   = "org.freedesktop.DBus.Properties.PropertiesChanged"
	DbusSignalInterfacesAddedIface   = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	DbusSignalInterfacesRemovedIface = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"

	BluezBusName      = "org.bluez"
	BluezAdapterIface = "org.bluez.Adapter1"
	BluezDeviceIface  = "org.bluez.Device1"

	BluezAgentIface        = "org.bluez.Agent1"
	BluezAgentManagerIface = "org.bluez.AgentManager1"
	BluezAgentManagerPath  = dbus.ObjectPath("/org/bluez")

	// BluezAgentCapability is the IO capability the agent registers with.
	// It allows every challenge variant to be routed to the agent.
	BluezAgentCapability = "KeyboardDisplay"

	// BluezSignalMatch matches every signal sent by the Bluez daemon.
	BluezSignalMatch = "type='signal', sender='org.bluez'"
)

// The Bluez error names returned to or received from the Bluez daemon.
const (
	BluezErrorRejected      = "org.bluez.Error.Rejected"
	BluezErrorCanceled      = "org.bluez.Error.Canceled"
	BluezErrorAlreadyExists = "org.bluez.Error.AlreadyExists"
	BluezErrorNotReady      = "org.bluez.Error.NotReady"
	BluezErrorNotAuthorized = "org.bluez.Error.NotAuthorized"
	BluezErrorNotPermitted  = "org.bluez.Error.NotPermitted"
	BluezErrorDoesNotExist  = "org.bluez.Error.DoesNotExist"
	BluezErrorFailed        = "org.bluez.Error.Failed"
	BluezErrorInProgress    = "org.bluez.Error.InProgress"

	DbusErrorAccessDenied  = "org.freedesktop.DBus.Error.AccessDenied"
	DbusErrorServiceAbsent = "org.freedesktop.DBus.Error.ServiceUnknown"
	DbusErrorNoOwner       = "org.freedesktop.DBus.Error.NameHasNoOwner"
	DbusErrorUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"
	DbusErrorUnknownMethod = "org.freedesktop.DBus.Error.UnknownMethod"
)

// NewAgentPath returns a randomized path for registering a Bluez Agent.
func NewAgentPath() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/agent/autopair" + xid.New().String())
}
