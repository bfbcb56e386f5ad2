package orchestrator

import (
	"fmt"
	"log/slog"

	"github.com/bluetuith-org/bluetooth-classic/api/bluetooth"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/bluetuith-org/autopair/api/errorkinds"
	"github.com/bluetuith-org/autopair/api/pairing"
)

// ResolvedFunc is called after a challenge has been resolved.
type ResolvedFunc func(challenge pairing.Challenge, resolution pairing.Resolution)

// Responder answers pairing challenges automatically, using the session's
// configured PIN. It is registered for the lifetime of the process.
//
// Every challenge is resolved exactly once, synchronously, and the default
// platform handling is always suppressed. A fault while resolving is logged
// and answered with a generic confirmation; it never reaches the platform.
type Responder struct {
	session  *Session
	logger   *slog.Logger
	resolved ResolvedFunc

	open *xsync.MapOf[bluetooth.MacAddress, pairing.ChallengeVariant]
}

// NewResponder returns a new pairing responder.
func NewResponder(session *Session, logger *slog.Logger) *Responder {
	return &Responder{
		session: session,
		logger:  logger,
		open:    xsync.NewMapOf[bluetooth.MacAddress, pairing.ChallengeVariant](),
	}
}

// OnResolved sets a function to be called after every resolved challenge.
func (r *Responder) OnResolved(fn ResolvedFunc) {
	r.resolved = fn
}

// HandleChallenge resolves a pairing challenge.
func (r *Responder) HandleChallenge(challenge pairing.Challenge) (resolution pairing.Resolution) {
	address := challenge.Address.String()

	// The first challenge for an address owns its open entry.
	if variant, loaded := r.open.LoadOrStore(challenge.Address, challenge.Variant); loaded {
		r.logger.Warn("overlapping pairing challenge",
			"address", address,
			"open_variant", variant.String(),
			"variant", challenge.Variant.String(),
		)
	} else {
		defer r.open.Delete(challenge.Address)
	}

	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("pairing challenge resolution failed",
				"address", address,
				"variant", challenge.Variant.String(),
				"error", fmt.Sprint(v),
			)

			resolution = fallbackResolution()
		}
	}()

	resolution = r.resolve(challenge)

	r.logger.Info("pairing challenge resolved",
		"address", address,
		"variant", challenge.Variant.String(),
		"action", resolution.Action.String(),
	)

	r.notify(challenge, resolution)

	return resolution
}

// notify calls the resolution callback. A fault within the callback
// does not change the resolution.
func (r *Responder) notify(challenge pairing.Challenge, resolution pairing.Resolution) {
	if r.resolved == nil {
		return
	}

	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("pairing challenge callback failed",
				"address", challenge.Address.String(),
				"error", fmt.Sprint(v),
			)
		}
	}()

	r.resolved(challenge, resolution)
}

// Open returns whether a challenge is currently being resolved for the device.
func (r *Responder) Open(address bluetooth.MacAddress) bool {
	_, ok := r.open.Load(address)

	return ok
}

// resolve dispatches on the challenge variant.
func (r *Responder) resolve(challenge pairing.Challenge) pairing.Resolution {
	switch challenge.Variant.Class() {
	case pairing.ClassPINRequest:
		return pairing.Resolution{
			Action:          pairing.ResolveSetPIN,
			PIN:             r.session.PIN(),
			SuppressDefault: true,
		}

	case pairing.ClassConfirmation:
		return pairing.Resolution{
			Action:          pairing.ResolveConfirm,
			SuppressDefault: true,
		}
	}

	r.logger.Warn("attempting generic confirmation",
		"address", challenge.Address.String(),
		"variant", challenge.Variant.String(),
		"error", errorkinds.ErrUnknownChallengeVariant,
	)

	return fallbackResolution()
}

// fallbackResolution returns a generic confirmation.
func fallbackResolution() pairing.Resolution {
	return pairing.Resolution{
		Action:          pairing.ResolveConfirm,
		SuppressDefault: true,
	}
}
