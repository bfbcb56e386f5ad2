//go:build linux

// Package linux implements the pairing platform on top of the Bluez daemon, via DBus.
package linux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	bluetooth "github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
	"github.com/bluetuith-org/bluetooth-classic/api/platforminfo"
	"github.com/godbus/dbus/v5"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
	dbh "github.com/bluetuith-org/autopair/linux/internal/dbushelper"
	"github.com/bluetuith-org/autopair/platform"
)

// signalBufferSize is the buffer size of the platform signal channel.
const signalBufferSize = 64

// managedObjects describes the result of the ObjectManager.GetManagedObjects call.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Platform describes a Linux Bluez DBus session bound to a single adapter.
type Platform struct {
	systemBus *dbus.Conn
	agent     *agent
	logger    *slog.Logger

	adapterName string
	adapter     atomic.String

	paths   *dbh.PathConverter
	bonds   *xsync.MapOf[bluetooth.MacAddress, pairing.BondState]
	devices *xsync.MapOf[bluetooth.MacAddress, platform.DeviceInfo]

	discovering atomic.Bool
	signals     chan platform.Signal
	done        chan struct{}

	closeOnce sync.Once
}

// Info returns information about the platform.
func Info() platforminfo.PlatformInfo {
	return platforminfo.NewPlatformInfo("BlueZ (DBus)")
}

// New connects to the Bluez daemon and binds to the named adapter.
// The adapter may be named by its interface name (for example "hci0") or its address.
// If no name is provided, the first adapter is used.
func New(adapterName string, logger *slog.Logger) (*Platform, error) {
	if logger == nil {
		logger = slog.Default()
	}

	systemBus, err := dbus.SystemBus()
	if err != nil {
		return nil, fault.Wrap(classify(err, errorkinds.ErrAdapterUnavailable),
			fctx.With(context.Background(), "error_at", "start-systembus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot initialize system DBus"),
		)
	}

	p := &Platform{
		systemBus:   systemBus,
		logger:      logger,
		adapterName: adapterName,
		paths:       dbh.NewPathConverter(),
		bonds:       xsync.NewMapOf[bluetooth.MacAddress, pairing.BondState](),
		devices:     xsync.NewMapOf[bluetooth.MacAddress, platform.DeviceInfo](),
		signals:     make(chan platform.Signal, signalBufferSize),
		done:        make(chan struct{}),
	}

	if err := p.refresh(); err != nil {
		_ = systemBus.Close()

		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "refresh-objects"),
			ftag.With(ftag.Internal),
			fmsg.With("Error while initializing object cache"),
		)
	}

	p.systemBus.BusObject().Call(dbh.DbusSignalAddMatchIface, 0, dbh.BluezSignalMatch)

	ch := make(chan *dbus.Signal, signalBufferSize)
	p.systemBus.Signal(ch)

	go p.watch(ch)

	return p, nil
}

// Close unregisters the agent and closes the DBus connection.
// The signal channel is not closed.
func (p *Platform) Close() error {
	var err error

	p.closeOnce.Do(func() {
		close(p.done)

		if p.agent != nil {
			_ = p.agent.remove()
		}

		if cerr := p.systemBus.Close(); cerr != nil {
			err = fault.Wrap(cerr,
				fctx.With(context.Background(), "error_at", "stop-systembus"),
				ftag.With(ftag.Internal),
				fmsg.With("Error while closing system bus"),
			)
		}
	})

	return err
}

// Adapters returns a list of known adapters.
func (p *Platform) Adapters() ([]AdapterInfo, error) {
	objects, err := p.managedObjects()
	if err != nil {
		return nil, err
	}

	adapters := make([]AdapterInfo, 0, 1)
	for _, path := range sortedPaths(objects) {
		values, ok := objects[path][dbh.BluezAdapterIface]
		if !ok {
			continue
		}

		var adapter AdapterInfo
		if err := dbh.DecodeVariantMap(values, &adapter, "Address"); err != nil {
			return nil, err
		}

		adapter.Name = filepath.Base(string(path))
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

// Available reports whether the adapter is present.
func (p *Platform) Available() error {
	if p.adapter.Load() == "" {
		return errorkinds.ErrAdapterUnavailable
	}

	if _, err := p.adapterProperty("Address"); err != nil {
		return classify(err, errorkinds.ErrAdapterUnavailable)
	}

	return nil
}

// Powered reports whether the adapter's radio is on.
func (p *Platform) Powered() (bool, error) {
	value, err := p.adapterProperty("Powered")
	if err != nil {
		return false, classify(err, errorkinds.ErrAdapterUnavailable)
	}

	powered, ok := value.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: unexpected 'Powered' property type %s", errorkinds.ErrAdapterUnavailable, value.Signature())
	}

	return powered, nil
}

// BondedDevices returns the bonded devices of the adapter.
func (p *Platform) BondedDevices() ([]platform.DeviceInfo, error) {
	objects, err := p.managedObjects()
	if err != nil {
		return nil, err
	}

	adapterPath := dbus.ObjectPath(p.adapter.Load())

	var devices []platform.DeviceInfo
	for _, path := range sortedPaths(objects) {
		values, ok := objects[path][dbh.BluezDeviceIface]
		if !ok || !dbh.IsChildPath(adapterPath, path) {
			continue
		}

		props, err := decodeDevice(path, values)
		if err != nil {
			p.logger.Debug("cannot decode device properties", "path", path, "error", err)
			continue
		}

		if info := props.info(); info.Bond == pairing.BondBonded {
			devices = append(devices, info)
		}
	}

	return devices, nil
}

// BondState returns the current bond state of a device.
func (p *Platform) BondState(address bluetooth.MacAddress) (pairing.BondState, error) {
	if state, ok := p.bonds.Load(address); ok {
		return state, nil
	}

	var value dbus.Variant

	err := p.systemBus.Object(dbh.BluezBusName, p.devicePath(address)).
		Call(dbh.DbusGetPropertiesIface, 0, dbh.BluezDeviceIface, "Paired").
		Store(&value)
	if err != nil {
		switch dbh.ErrorName(err) {
		case dbh.DbusErrorUnknownObject, dbh.BluezErrorDoesNotExist:
			return pairing.BondNone, nil
		}

		return pairing.BondNone, classify(err, nil)
	}

	if paired, ok := value.Value().(bool); ok && paired {
		return pairing.BondBonded, nil
	}

	return pairing.BondNone, nil
}

// StartDiscovery starts a BR/EDR scan on the adapter.
func (p *Platform) StartDiscovery() error {
	filter := map[string]dbus.Variant{
		"Transport": dbus.MakeVariant("bredr"),
	}

	if err := p.callAdapter("SetDiscoveryFilter", filter).Store(); err != nil {
		p.logger.Debug("cannot set discovery filter", "error", err)
	}

	if err := p.callAdapter("StartDiscovery").Store(); err != nil {
		return classify(err, nil)
	}

	p.discovering.Store(true)

	return nil
}

// StopDiscovery stops a running scan.
func (p *Platform) StopDiscovery() error {
	p.discovering.Store(false)

	if err := p.callAdapter("StopDiscovery").Store(); err != nil {
		switch dbh.ErrorName(err) {
		case dbh.BluezErrorFailed, dbh.BluezErrorNotReady:
			return nil
		}

		return classify(err, nil)
	}

	return nil
}

// CreateBond dispatches a Device1.Pair call and returns without waiting for its completion.
// The bond state is reported as BONDING until the call returns.
func (p *Platform) CreateBond(address bluetooth.MacAddress) error {
	path := p.devicePath(address)
	done := make(chan *dbus.Call, 1)

	p.setBond(address, pairing.BondBonding)

	call := p.systemBus.Object(dbh.BluezBusName, path).Go(dbh.BluezDeviceIface+".Pair", 0, done)
	if call.Err != nil {
		p.bonds.Store(address, pairing.BondNone)

		return classifyDevice(call.Err)
	}

	go p.waitBond(address, done)

	return nil
}

// RemoveBond removes the device, and therefore its bond, from the adapter.
func (p *Platform) RemoveBond(address bluetooth.MacAddress) error {
	if err := p.callAdapter("RemoveDevice", p.devicePath(address)).Store(); err != nil {
		return classifyDevice(err)
	}

	p.setBond(address, pairing.BondNone)

	return nil
}

// RegisterAgent exports the pairing agent and registers it as the default agent.
func (p *Platform) RegisterAgent(handler platform.ChallengeHandler) error {
	if p.agent != nil {
		return nil
	}

	a := newAgent(p.systemBus, p.paths, handler, p.logger.With("component", "agent"))
	if err := a.setup(); err != nil {
		return fault.Wrap(classify(err, nil),
			fctx.With(context.Background(), "error_at", "agent-initialize"),
			ftag.With(ftag.Internal),
			fmsg.With("Error while initializing Bluez agent"),
		)
	}

	p.agent = a

	return nil
}

// UnregisterAgent unregisters the pairing agent.
func (p *Platform) UnregisterAgent() error {
	if p.agent == nil {
		return errorkinds.ErrAgentNotSet
	}

	return p.agent.remove()
}

// Signals returns the stream of platform signals.
func (p *Platform) Signals() <-chan platform.Signal {
	return p.signals
}

// waitBond waits for a dispatched Pair call to return, and reports the resulting bond state.
func (p *Platform) waitBond(address bluetooth.MacAddress, done chan *dbus.Call) {
	select {
	case <-p.done:
		return

	case call := <-done:
		if call.Err == nil || dbh.ErrorName(call.Err) == dbh.BluezErrorAlreadyExists {
			p.setBond(address, pairing.BondBonded)
			return
		}

		p.logger.Info("pair call returned an error", "address", address.String(), "error", call.Err)
		p.setBond(address, pairing.BondNone)
	}
}

// setBond stores the bond state of a device and emits a signal if the state has changed.
func (p *Platform) setBond(address bluetooth.MacAddress, state pairing.BondState) {
	previous, loaded := p.bonds.LoadAndStore(address, state)
	if !loaded {
		previous = pairing.BondNone
	}

	if previous == state {
		return
	}

	p.emit(platform.BondStateChangedSignal{
		Address:  address,
		New:      state,
		Previous: previous,
	})
}

// emit sends a signal, unless the platform is closed.
func (p *Platform) emit(signal platform.Signal) {
	select {
	case <-p.done:
	case p.signals <- signal:
	}
}

// refresh selects the adapter and caches its devices.
func (p *Platform) refresh() error {
	objects, err := p.managedObjects()
	if err != nil {
		return err
	}

	for _, path := range sortedPaths(objects) {
		values, ok := objects[path][dbh.BluezAdapterIface]
		if !ok || !p.adapterMatches(path, values) {
			continue
		}

		p.adapter.Store(string(path))

		break
	}

	adapterPath := dbus.ObjectPath(p.adapter.Load())
	if adapterPath == "" {
		p.logger.Warn("no matching Bluetooth adapter found", "adapter", p.adapterName)
		return nil
	}

	for path, object := range objects {
		values, ok := object[dbh.BluezDeviceIface]
		if !ok || !dbh.IsChildPath(adapterPath, path) {
			continue
		}

		p.storeDevice(path, values)
	}

	return nil
}

// storeDevice caches a device and its bond state, and returns its snapshot.
func (p *Platform) storeDevice(path dbus.ObjectPath, values map[string]dbus.Variant) (platform.DeviceInfo, bool) {
	props, err := decodeDevice(path, values)
	if err != nil {
		p.logger.Debug("cannot decode device properties", "path", path, "error", err)
		return platform.DeviceInfo{}, false
	}

	info := props.info()

	p.paths.Add(path, info.Address)
	p.devices.Store(info.Address, info)
	if _, ok := p.bonds.Load(info.Address); !ok {
		p.bonds.Store(info.Address, info.Bond)
	}

	return info, true
}

// adapterMatches returns whether the adapter object matches the configured adapter name.
func (p *Platform) adapterMatches(path dbus.ObjectPath, values map[string]dbus.Variant) bool {
	if p.adapterName == "" || filepath.Base(string(path)) == p.adapterName {
		return true
	}

	name, err := bluetooth.ParseMAC(p.adapterName)
	if err != nil {
		return false
	}

	address, ok := dbh.Property[string](values, "Address")
	if !ok {
		return false
	}

	adapterAddress, err := bluetooth.ParseMAC(address)

	return err == nil && adapterAddress == name
}

// devicePath returns the DBus path of a device on the adapter.
func (p *Platform) devicePath(address bluetooth.MacAddress) dbus.ObjectPath {
	if path, ok := p.paths.DbusPath(address); ok {
		return path
	}

	return dbh.DevicePath(dbus.ObjectPath(p.adapter.Load()), address)
}

// managedObjects returns all objects managed by the Bluez daemon.
func (p *Platform) managedObjects() (managedObjects, error) {
	objects := make(managedObjects)

	if err := p.systemBus.Object(dbh.BluezBusName, "/").
		Call(dbh.DbusObjectManagerIface, 0).
		Store(&objects); err != nil {
		return nil, classify(err, errorkinds.ErrAdapterUnavailable)
	}

	return objects, nil
}

// adapterProperty returns a single property of the adapter.
func (p *Platform) adapterProperty(name string) (dbus.Variant, error) {
	var value dbus.Variant

	err := p.systemBus.Object(dbh.BluezBusName, dbus.ObjectPath(p.adapter.Load())).
		Call(dbh.DbusGetPropertiesIface, 0, dbh.BluezAdapterIface, name).
		Store(&value)

	return value, err
}

// callAdapter calls the Adapter1 interface with the provided arguments.
func (p *Platform) callAdapter(method string, args ...any) *dbus.Call {
	return p.systemBus.Object(dbh.BluezBusName, dbus.ObjectPath(p.adapter.Load())).
		Call(dbh.BluezAdapterIface+"."+method, 0, args...)
}

// classify maps a DBus error to its error kind. If the error cannot
// be classified, it is joined with the fallback kind, if any.
func classify(err, fallback error) error {
	if mapped, ok := dbh.MapError(err); ok || fallback == nil || errors.Is(err, fallback) {
		return mapped
	}

	return fmt.Errorf("%w: %w", fallback, err)
}

// classifyDevice classifies an error returned by a call on a device object.
// An unknown device object is reported as a missing device, not a missing adapter.
func classifyDevice(err error) error {
	if dbh.ErrorName(err) == dbh.DbusErrorUnknownObject {
		return fmt.Errorf("%w: %w", errorkinds.ErrDeviceNotFound, err)
	}

	return classify(err, nil)
}

// sortedPaths returns the object paths in order.
func sortedPaths(objects managedObjects) []dbus.ObjectPath {
	paths := make([]dbus.ObjectPath, 0, len(objects))
	for path := range objects {
		paths = append(paths, path)
	}

	slices.Sort(paths)

	return paths
}
