//go:build linux

package linux

import (
	"log/slog"
	"strconv"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/bluetuith-org/autopair/api/pairing"
	dbh "github.com/bluetuith-org/autopair/linux/internal/dbushelper"
	"github.com/bluetuith-org/autopair/platform"
)

// agent describes a Bluez agent connection.
// Note that, all public methods are exported to the Bluez Agent Manager
// via the system bus, and hence is called by the Agent Manager only.
// Every request is answered synchronously by the challenge handler.
type agent struct {
	systemBus *dbus.Conn
	path      dbus.ObjectPath
	paths     *dbh.PathConverter

	handler platform.ChallengeHandler
	logger  *slog.Logger

	registered atomic.Bool
}

// newAgent returns a new Bluez agent.
func newAgent(systemBus *dbus.Conn, paths *dbh.PathConverter, handler platform.ChallengeHandler, logger *slog.Logger) *agent {
	return &agent{
		systemBus: systemBus,
		path:      dbh.NewAgentPath(),
		paths:     paths,
		handler:   handler,
		logger:    logger,
	}
}

// setup exports all the agent's methods to the Bluez DBus interface,
// registers the agent and requests it to be the default agent, so that
// no other agent on the system handles pairing requests.
func (a *agent) setup() error {
	if err := a.systemBus.Export(a, a.path, dbh.BluezAgentIface); err != nil {
		return err
	}

	node := &introspect.Node{
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    dbh.BluezAgentIface,
				Methods: introspect.Methods(a),
			},
		},
	}

	if err := a.systemBus.Export(introspect.NewIntrospectable(node), a.path, dbh.DbusIntrospectableIface); err != nil {
		return err
	}

	if err := a.callAgentManager("RegisterAgent", a.path, dbh.BluezAgentCapability).Store(); err != nil {
		return err
	}

	a.registered.Store(true)

	if err := a.callAgentManager("RequestDefaultAgent", a.path).Store(); err != nil {
		_ = a.remove()

		return err
	}

	return nil
}

// remove unregisters the agent.
func (a *agent) remove() error {
	if !a.registered.Swap(false) {
		return nil
	}

	return a.callAgentManager("UnregisterAgent", a.path).Store()
}

// RequestPinCode answers a legacy PIN request with the configured PIN.
func (a *agent) RequestPinCode(devicePath dbus.ObjectPath) (string, *dbus.Error) {
	resolution, ok := a.resolve(devicePath, pairing.VariantPIN, 0)
	if !ok || resolution.Action != pairing.ResolveSetPIN || resolution.PIN == "" {
		return "", dbh.RejectedError()
	}

	return resolution.PIN, nil
}

// RequestPasskey answers a passkey request with the configured PIN, as a number.
func (a *agent) RequestPasskey(devicePath dbus.ObjectPath) (uint32, *dbus.Error) {
	resolution, ok := a.resolve(devicePath, pairing.VariantPasskey, 0)
	if !ok || resolution.Action != pairing.ResolveSetPIN {
		return 0, dbh.RejectedError()
	}

	passkey, err := strconv.ParseUint(resolution.PIN, 10, 32)
	if err != nil {
		a.logger.Warn("configured PIN cannot be used as a passkey", "error", err)
		return 0, dbh.RejectedError()
	}

	return uint32(passkey), nil
}

// DisplayPinCode is called when the device's PIN should be displayed.
func (a *agent) DisplayPinCode(devicePath dbus.ObjectPath, pincode string) *dbus.Error {
	if _, ok := a.resolve(devicePath, pairing.VariantDisplayPIN, 0); !ok {
		return dbh.RejectedError()
	}

	return nil
}

// DisplayPasskey is called when the device's passkey should be displayed.
func (a *agent) DisplayPasskey(devicePath dbus.ObjectPath, passkey uint32, _ uint16) *dbus.Error {
	if _, ok := a.resolve(devicePath, pairing.VariantDisplayPasskey, passkey); !ok {
		return dbh.RejectedError()
	}

	return nil
}

// RequestConfirmation confirms pairing with the device using the provided passkey.
func (a *agent) RequestConfirmation(devicePath dbus.ObjectPath, passkey uint32) *dbus.Error {
	return a.confirm(devicePath, pairing.VariantPasskeyConfirmation, passkey)
}

// RequestAuthorization authorizes pairing with a device.
func (a *agent) RequestAuthorization(devicePath dbus.ObjectPath) *dbus.Error {
	return a.confirm(devicePath, pairing.VariantConsent, 0)
}

// AuthorizeService authorizes a Bluetooth service of an already paired device.
// This is not a pairing challenge, every service is authorized.
func (a *agent) AuthorizeService(devicePath dbus.ObjectPath, uuidstr string) *dbus.Error {
	address, ok := a.paths.Address(devicePath)
	if !ok {
		return dbh.RejectedError()
	}

	profile, err := uuid.Parse(uuidstr)
	if err != nil {
		a.logger.Debug("cannot parse service UUID", "uuid", uuidstr, "error", err)
	}

	a.logger.Info("service authorized", "address", address.String(), "uuid", profile.String())

	return nil
}

// Cancel is called when the Bluez agent request was cancelled.
func (a *agent) Cancel() *dbus.Error {
	a.logger.Debug("pairing request cancelled")

	return nil
}

// Release is called when the Bluez agent is unregistered.
func (a *agent) Release() *dbus.Error {
	a.registered.Store(false)
	a.logger.Debug("agent released")

	return nil
}

// confirm answers a confirmation challenge.
func (a *agent) confirm(devicePath dbus.ObjectPath, variant pairing.ChallengeVariant, passkey uint32) *dbus.Error {
	resolution, ok := a.resolve(devicePath, variant, passkey)
	if !ok || resolution.Action != pairing.ResolveConfirm {
		return dbh.RejectedError()
	}

	return nil
}

// resolve passes a challenge to the challenge handler.
func (a *agent) resolve(devicePath dbus.ObjectPath, variant pairing.ChallengeVariant, passkey uint32) (pairing.Resolution, bool) {
	address, ok := a.paths.Address(devicePath)
	if !ok {
		a.logger.Warn("pairing request from an unknown device", "path", devicePath, "variant", variant.String())
		return pairing.Resolution{}, false
	}

	return a.handler.HandleChallenge(pairing.Challenge{
		Address: address,
		Variant: variant,
		Passkey: passkey,
	}), true
}

// callAgentManager calls the AgentManager1 interface with the provided arguments.
func (a *agent) callAgentManager(method string, args ...any) *dbus.Call {
	return a.systemBus.Object(dbh.BluezBusName, dbh.BluezAgentManagerPath).Call(dbh.BluezAgentManagerIface+"."+method, 0, args...)
}
