package pairing

import (
	"github.com/bluetuith-org/autopair/api/errorkinds"
)

// MaxPINLength is the maximum length of a Bluetooth PIN.
const MaxPINLength = 16

// ValidatePIN checks whether the PIN can be used to answer every PIN-request
// challenge variant, including passkey requests.
func ValidatePIN(pin string) error {
	if pin == "" || len(pin) > MaxPINLength {
		return errorkinds.ErrInvalidPIN
	}

	for _, c := range pin {
		if c < '0' || c > '9' {
			return errorkinds.ErrInvalidPIN
		}
	}

	return nil
}
