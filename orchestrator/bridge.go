package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cskr/pubsub/v2"
	"go.uber.org/atomic"

	"github.com/bluetuith-org/autopair/api/pairing"
	"github.com/bluetuith-org/autopair/platform"
)

// eventTopic is the single topic all pairing events are published to,
// which keeps the stream ordered for every subscriber.
const eventTopic = "pairing"

// DefaultEventCapacity is the default buffer size of each subscription.
const DefaultEventCapacity = 16

// Bridge routes platform signals to the listeners and delivers their events
// to subscribers as a single live stream. Delivery is at-least-once and FIFO
// per listener; nothing is buffered across restarts.
type Bridge struct {
	ps     *pubsub.PubSub[string, pairing.Event]
	seq    uint64
	logger *slog.Logger

	discovery atomic.Pointer[DiscoveryListener]
	bonds     *BondObserver
	closed    atomic.Bool

	// mu orders subscription changes against Close.
	// pubMu orders publications, and is never held with mu.
	mu    sync.Mutex
	pubMu sync.Mutex
}

// NewBridge returns a new event bridge.
func NewBridge(capacity int, logger *slog.Logger) *Bridge {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}

	b := &Bridge{
		ps:     pubsub.New[string, pairing.Event](capacity),
		logger: logger,
	}
	b.bonds = NewBondObserver(b)

	return b
}

// Publish assigns the event its position in the stream and delivers it to all subscribers.
// A subscriber that does not read its channel delays Publish, but never Subscribe or Close.
func (b *Bridge) Publish(event pairing.Event) {
	if b.closed.Load() {
		return
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if b.closed.Load() {
		return
	}

	b.seq++
	event.Seq = b.seq

	b.ps.Pub(event, eventTopic)
}

// Subscribe subscribes to the event stream, and returns the event channel
// and a function to unsubscribe from it.
func (b *Bridge) Subscribe() (<-chan pairing.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		ch := make(chan pairing.Event)
		close(ch)

		return ch, func() {}
	}

	ch := b.ps.Sub(eventTopic)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			// Drain the channel so that a pending delivery cannot block the
			// unsubscription. The channel is closed once unsubscribed.
			go func() {
				for range ch {
				}
			}()

			b.mu.Lock()
			defer b.mu.Unlock()

			if !b.closed.Load() {
				b.ps.Unsub(ch, eventTopic)
			}
		})
	}

	return ch, unsubscribe
}

// RegisterDiscovery registers the discovery listener.
// A previously registered listener is replaced, never duplicated.
func (b *Bridge) RegisterDiscovery(listener *DiscoveryListener) {
	b.discovery.Store(listener)
}

// UnregisterDiscovery unregisters the discovery listener, and
// returns whether a listener was registered.
func (b *Bridge) UnregisterDiscovery() bool {
	return b.discovery.Swap(nil) != nil
}

// Dispatch routes a platform signal to its listener.
func (b *Bridge) Dispatch(signal platform.Signal) {
	switch s := signal.(type) {
	case platform.DeviceFoundSignal:
		if listener := b.discovery.Load(); listener != nil {
			listener.OnDeviceFound(s)
		}

	case platform.DiscoveryFinishedSignal:
		if listener := b.discovery.Load(); listener != nil {
			listener.OnDiscoveryFinished(s)
		}

	case platform.BondStateChangedSignal:
		b.bonds.OnBondStateChanged(s)

	default:
		b.logger.Warn("unknown platform signal", "signal", s)
	}
}

// Run dispatches signals until the context is cancelled or the signal channel is closed.
func (b *Bridge) Run(ctx context.Context, signals <-chan platform.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case signal, ok := <-signals:
			if !ok {
				return nil
			}

			b.Dispatch(signal)
		}
	}
}

// Close shuts the bridge down. All subscriptions are closed once
// the publication in progress, if any, has been delivered.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Swap(true) {
		return
	}

	b.discovery.Store(nil)

	go func() {
		b.pubMu.Lock()
		defer b.pubMu.Unlock()

		b.ps.Shutdown()
	}()
}
