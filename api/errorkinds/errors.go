package errorkinds

import (
	"errors"

	"github.com/Southclaws/fault/fmsg"
)

// The different pairing-related error types.
var (
	ErrAdapterUnavailable = errors.New("no Bluetooth adapter is available")
	ErrAdapterDisabled    = errors.New("the Bluetooth adapter is powered off")
	ErrPermissionDenied   = errors.New("not authorized to use the Bluetooth adapter")

	ErrDiscoveryFailed = errors.New("device discovery could not be started")
	ErrBondFailed      = errors.New("the bonding request was rejected")
	ErrUnpairFailed    = errors.New("the bond could not be removed")

	ErrUnknownChallengeVariant = errors.New("unrecognized pairing challenge variant")
	ErrPairingInProgress       = errors.New("a pairing request is already in progress for this device")

	ErrDeviceNotFound = errors.New("device not found")
	ErrAgentNotSet    = errors.New("no pairing agent is registered")
	ErrInvalidPIN     = errors.New("the PIN must be 1 to 16 decimal digits")
)

// Remediation describes what a caller should do to recover
// from a failed initiation call.
type Remediation int

// The different remediation types.
const (
	RemediationNone Remediation = iota
	RemediationEnableRadio
	RemediationGrantPermission
	RemediationInstallAdapter
	RemediationRetry
)

// remediationText holds the user-facing advice for each remediation.
var remediationText = map[Remediation]string{
	RemediationNone:            "",
	RemediationEnableRadio:     "Turn on the Bluetooth adapter and try again",
	RemediationGrantPermission: "Grant this user access to the Bluetooth service (for example, add it to the 'bluetooth' group)",
	RemediationInstallAdapter:  "Connect a Bluetooth adapter and make sure the Bluetooth daemon is running",
	RemediationRetry:           "Retry the operation",
}

// String returns the user-facing advice for the remediation.
func (r Remediation) String() string {
	return remediationText[r]
}

// RemediationFor classifies an initiation error, so that a disabled radio,
// a missing permission and a generic failure can be told apart.
func RemediationFor(err error) Remediation {
	switch {
	case err == nil:
		return RemediationNone

	case errors.Is(err, ErrAdapterDisabled):
		return RemediationEnableRadio

	case errors.Is(err, ErrPermissionDenied):
		return RemediationGrantPermission

	case errors.Is(err, ErrAdapterUnavailable):
		return RemediationInstallAdapter
	}

	return RemediationRetry
}

// Message returns the outermost user-facing description attached to the error
// with fmsg.WithDesc, and falls back to the error string otherwise.
// Remediation advice is never part of the message, see RemediationFor.
func Message(err error) string {
	if err == nil {
		return ""
	}

	if issues := fmsg.GetIssues(err); len(issues) > 0 {
		return issues[0]
	}

	return err.Error()
}
