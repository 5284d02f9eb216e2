package api

import (
	"github.com/TaelanSakay/PlayGround/modules/canvas"
	"golang.org/x/time/rate"
)

// Verdict is the outcome of admitting one inbound websocket event.
type Verdict int

const (
	// Admit lets the event through.
	Admit Verdict = iota
	// Drop discards the event without telling the client.
	Drop
	// Reject discards the event and reports an error to the client.
	Reject
)

// eventLimiter throttles the events of a single connection. Cursor
// traffic is lossy, so excess cursor moves are dropped silently.
type eventLimiter struct {
	limiter *rate.Limiter
}

func newEventLimiter(perSecond float64, burst int) *eventLimiter {
	return &eventLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *eventLimiter) admit(eventType string) Verdict {
	if l.limiter.Allow() {
		return Admit
	}
	if eventType == canvas.EventCursorMove {
		return Drop
	}
	return Reject
}
