//go:build linux

package cmd

import (
	"log/slog"

	"github.com/bluetuith-org/bluetooth-classic/api/platforminfo"

	"github.com/bluetuith-org/autopair/linux"
	"github.com/bluetuith-org/autopair/platform"
)

// adapterInfo holds the adapter properties that are listed to the user.
type adapterInfo struct {
	Name, Address string
	Powered       bool
}

// newPlatform returns the Bluez platform bound to the named adapter, and a function to close it.
func newPlatform(adapter string, logger *slog.Logger) (platform.Platform, func() error, error) {
	p, err := linux.New(adapter, logger)
	if err != nil {
		return nil, nil, err
	}

	return p, p.Close, nil
}

// listAdapters returns all adapters known to the platform.
func listAdapters() ([]adapterInfo, error) {
	p, err := linux.New("", slog.Default())
	if err != nil {
		return nil, err
	}
	defer p.Close()

	adapters, err := p.Adapters()
	if err != nil {
		return nil, err
	}

	infos := make([]adapterInfo, 0, len(adapters))
	for _, adapter := range adapters {
		infos = append(infos, adapterInfo{
			Name:    adapter.Name,
			Address: adapter.Address.String(),
			Powered: adapter.Powered,
		})
	}

	return infos, nil
}

// platformInfo returns information about the platform.
func platformInfo() platforminfo.PlatformInfo {
	return linux.Info()
}
