package pairing

import (
	"strconv"

	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
)

// ChallengeVariant describes the confirmation mechanism requested
// by the pairing negotiation. The values follow the numbering used by
// the Android pairing-request broadcast, so that raw variant codes can be
// passed through unchanged.
type ChallengeVariant int

// The different challenge variants.
const (
	VariantPIN                 ChallengeVariant = 0
	VariantPasskey             ChallengeVariant = 1
	VariantPasskeyConfirmation ChallengeVariant = 2
	VariantConsent             ChallengeVariant = 3
	VariantDisplayPasskey      ChallengeVariant = 4
	VariantDisplayPIN          ChallengeVariant = 5
	VariantOOBConsent          ChallengeVariant = 6
	VariantPIN16Digits         ChallengeVariant = 7
)

// variantNames holds names of the known challenge variants.
var variantNames = map[ChallengeVariant]string{
	VariantPIN:                 "pin",
	VariantPasskey:             "passkey",
	VariantPasskeyConfirmation: "passkey-confirmation",
	VariantConsent:             "consent",
	VariantDisplayPasskey:      "display-passkey",
	VariantDisplayPIN:          "display-pin",
	VariantOOBConsent:          "oob-consent",
	VariantPIN16Digits:         "pin-16-digits",
}

// String returns the name of the challenge variant.
func (c ChallengeVariant) String() string {
	if name, ok := variantNames[c]; ok {
		return name
	}

	return "unrecognized(" + strconv.Itoa(int(c)) + ")"
}

// VariantClass groups challenge variants by how they are resolved.
type VariantClass byte

// The different variant classes.
const (
	ClassUnrecognized VariantClass = iota
	ClassPINRequest
	ClassConfirmation
)

// Class returns the resolution class of the variant.
func (c ChallengeVariant) Class() VariantClass {
	switch c {
	case VariantPIN, VariantPasskey, VariantPIN16Digits:
		return ClassPINRequest

	case VariantPasskeyConfirmation, VariantConsent:
		return ClassConfirmation
	}

	return ClassUnrecognized
}

// Challenge holds a single pairing challenge. It only exists while
// the platform's pairing request is being handled.
type Challenge struct {
	Address bluetooth.MacAddress
	Variant ChallengeVariant

	// Passkey holds the passkey sent along with confirmation
	// and display variants, if any.
	Passkey uint32
}

// ResolutionAction describes how a challenge was answered.
type ResolutionAction byte

// The different resolution actions.
const (
	ResolveConfirm ResolutionAction = iota
	ResolveSetPIN
)

// String returns the name of the resolution action.
func (r ResolutionAction) String() string {
	if r == ResolveSetPIN {
		return "set-pin"
	}

	return "confirm"
}

// Resolution holds the answer to a pairing challenge.
type Resolution struct {
	Action ResolutionAction

	// PIN holds the PIN to reply with, if Action is ResolveSetPIN.
	PIN string

	// SuppressDefault indicates that the platform's own handling
	// (and its confirmation UI) must not run for this challenge.
	SuppressDefault bool
}
