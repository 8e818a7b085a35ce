package presentation

import (
	"context"
	"math/big"

	"github.com/PixelPet-dev/xlayerslot/game"
)

// EventKind tags a feed event.
type EventKind string

const (
	EventSpinStarted EventKind = "spin_started"
	EventOutcome     EventKind = "outcome"
)

// Event is one entry on the live presentation feed.
type Event struct {
	Kind    EventKind     `json:"kind"`
	Bet     string        `json:"bet,omitempty"`
	Outcome *game.Outcome `json:"outcome,omitempty"`
	Reveal  *Reveal       `json:"reveal,omitempty"`
}

// Feed is a minimal pub/sub of presentation events. It implements the
// orchestrator's sink, so spins and reveals stream to the active
// listener (a websocket client or the CLI renderer).
type Feed struct {
	ch chan Event
}

// NewFeed creates a feed with a buffered channel.
func NewFeed(buffer int) *Feed {
	return &Feed{
		ch: make(chan Event, buffer),
	}
}

// SpinStarted publishes the reel-start event.
func (f *Feed) SpinStarted(bet *big.Int) {
	f.send(Event{Kind: EventSpinStarted, Bet: bet.String()})
}

// OutcomeReady publishes the outcome with its reveal plan.
func (f *Feed) OutcomeReady(o game.Outcome) {
	reveal := PlanReveal(o)
	f.send(Event{Kind: EventOutcome, Outcome: &o, Reveal: &reveal})
}

// send publishes non-blocking, dropping when listeners are slow.
func (f *Feed) send(ev Event) {
	select {
	case f.ch <- ev:
	default:
	}
}

// Listen returns a channel plus a cancel function to stop listening.
func (f *Feed) Listen(ctx context.Context) (<-chan Event, context.CancelFunc) {
	listenerCtx, cancel := context.WithCancel(ctx)
	out := make(chan Event, cap(f.ch))

	go func() {
		defer close(out)
		for {
			select {
			case <-listenerCtx.Done():
				return
			case ev, ok := <-f.ch:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-listenerCtx.Done():
					return
				}
			}
		}
	}()

	return out, cancel
}
