//go:build !linux

package cmd

import (
	"log/slog"

	"github.com/bluetuith-org/bluetooth-classic/api/errorkinds"
	"github.com/bluetuith-org/bluetooth-classic/api/platforminfo"

	"github.com/bluetuith-org/autopair/platform"
)

// adapterInfo holds the adapter properties that are listed to the user.
type adapterInfo struct {
	Name, Address string
	Powered       bool
}

// newPlatform returns an error, since no platform is supported on this operating system.
func newPlatform(string, *slog.Logger) (platform.Platform, func() error, error) {
	return nil, nil, errorkinds.ErrNotSupported
}

// listAdapters returns an error, since no platform is supported on this operating system.
func listAdapters() ([]adapterInfo, error) {
	return nil, errorkinds.ErrNotSupported
}

// platformInfo returns information about the platform.
func platformInfo() platforminfo.PlatformInfo {
	return platforminfo.NewPlatformInfo("unsupported")
}
