package engine

import (
	"context"
	"strings"

	"github.com/tphakala/audioroute/internal/logger"
)

// Event is a bit set of notifications raised on the audio thread.
type Event uint32

const (
	// EventPlaybackStopped is raised when playback ran out of recorded
	// frames and the engine left the playback mode.
	EventPlaybackStopped Event = 1 << iota
	// EventRecordingStopped is raised when the recorder filled up and
	// recording was switched off.
	EventRecordingStopped
	// EventCrossfadeSettled is raised when an output fade completed.
	EventCrossfadeSettled
)

var eventNames = [...]string{"playback-stopped", "recording-stopped", "crossfade-settled"}

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for i, name := range eventNames {
		if e&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// notify records ev and wakes the dispatcher without blocking.
func (e *Engine) notify(ev Event) {
	e.events.Or(uint32(ev))
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers fn to receive events from Dispatch. Subscribers run
// on the dispatcher goroutine, never on the audio thread.
func (e *Engine) Subscribe(fn func(Event)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// Dispatch delivers events to subscribers until ctx is done. Events raised
// faster than they are dispatched are coalesced.
func (e *Engine) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.wake:
		}
		ev := Event(e.events.Swap(0))
		if ev == 0 {
			continue
		}
		e.log.Debug("routing event",
			logger.String("event", ev.String()),
			logger.String("state", e.state.Load().String()))

		e.subMu.Lock()
		subs := e.subscribers
		e.subMu.Unlock()
		for _, fn := range subs {
			fn(ev)
		}
	}
}
