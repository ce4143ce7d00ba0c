// Package event defines the events fired by the verification gateway.
package event

import (
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/robinbraemer/event"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

// Manager dispatches gateway events to subscribers.
type Manager = event.Manager

// NewManager returns a new event manager.
func NewManager(log logr.Logger) Manager { return event.New(event.WithLogger(log)) }

// Subscribe registers a handler for an event type.
func Subscribe[T event.Event](mgr Manager, priority int, fn func(T)) (unsubscribe func()) {
	return event.Subscribe(mgr, priority, fn)
}

// ReadyEvent is fired once the gateway accepts connections.
type ReadyEvent struct {
	Addr net.Addr
}

// PlayerAdmittedEvent is fired when a new connection passed the
// admission pipeline and a verification session was constructed.
type PlayerAdmittedEvent struct {
	Addr     net.Addr
	Protocol proto.Protocol
}

// PlayerVerifiedEvent is fired when a session ends successfully.
type PlayerVerifiedEvent struct {
	Addr     net.Addr
	Username string
	UUID     uuid.UUID
}

// VerificationFailedEvent is fired when a session ends with a failure.
type VerificationFailedEvent struct {
	Addr     net.Addr
	Username string
	Err      error
}

// PlayerBlacklistedEvent is fired when an address is promoted
// to the blacklist after repeated failures.
type PlayerBlacklistedEvent struct {
	Addr net.Addr
}

// AttackStartEvent is fired when the admission rate crosses
// the attack threshold.
type AttackStartEvent struct{}

// AttackEndEvent is fired when an ongoing attack subsides.
type AttackEndEvent struct {
	Duration time.Duration
	// PeakRate is the highest observed admissions per second.
	PeakRate int
}
