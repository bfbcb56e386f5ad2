//go:build linux

package dbushelper

import (
	"context"
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"

	"github.com/bluetuith-org/autopair/api/errorkinds"
)

// errorNames maps DBus error names to error kinds.
var errorNames = map[string]error{
	DbusErrorAccessDenied:   errorkinds.ErrPermissionDenied,
	BluezErrorNotAuthorized: errorkinds.ErrPermissionDenied,
	BluezErrorNotPermitted:  errorkinds.ErrPermissionDenied,

	BluezErrorNotReady: errorkinds.ErrAdapterDisabled,

	DbusErrorServiceAbsent: errorkinds.ErrAdapterUnavailable,
	DbusErrorNoOwner:       errorkinds.ErrAdapterUnavailable,
	DbusErrorUnknownObject: errorkinds.ErrAdapterUnavailable,

	BluezErrorDoesNotExist: errorkinds.ErrDeviceNotFound,
}

// ErrorName returns the DBus error name of the error, if any.
func ErrorName(err error) string {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name
	}

	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil {
		return dbusErrPtr.Name
	}

	return ""
}

// MapError classifies a DBus error. Errors with a known name are joined
// with their error kind, and the returned boolean is true.
func MapError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	kind, ok := errorNames[ErrorName(err)]
	if !ok {
		return err, false
	}

	if errors.Is(err, kind) {
		return err, true
	}

	return fmt.Errorf("%w: %w", kind, err), true
}

// RejectedError returns the error sent to the Bluez daemon when a challenge is rejected.
func RejectedError() *dbus.Error {
	return dbus.NewError(BluezErrorRejected, nil)
}

// WrapSignalError wraps an error that occurred while handling a DBus signal with the signal data.
func WrapSignalError(err error, signal *dbus.Signal, message string, metadata ...string) error {
	md := append([]string{"signal-name", signal.Name, "signal-path", string(signal.Path)}, metadata...)

	return fault.Wrap(err,
		fctx.With(context.Background(), md...),
		ftag.With(ftag.Internal),
		fmsg.With(message),
	)
}
