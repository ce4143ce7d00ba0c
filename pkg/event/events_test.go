package event

import (
	"net"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
)

func TestSubscribeAndFire(t *testing.T) {
	mgr := NewManager(logr.Discard())

	var got []string
	Subscribe(mgr, 0, func(e *PlayerVerifiedEvent) {
		got = append(got, "low:"+e.Username)
	})
	// Higher priority subscribers run first.
	Subscribe(mgr, 10, func(e *PlayerVerifiedEvent) {
		got = append(got, "high:"+e.Username)
	})

	mgr.Fire(&PlayerVerifiedEvent{
		Addr:     &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 25565},
		Username: "Steve",
	})
	assert.Equal(t, []string{"high:Steve", "low:Steve"}, got)
}

func TestUnsubscribe(t *testing.T) {
	mgr := NewManager(logr.Discard())

	var fired int
	unsub := Subscribe(mgr, 0, func(*AttackStartEvent) { fired++ })
	mgr.Fire(&AttackStartEvent{})
	unsub()
	mgr.Fire(&AttackStartEvent{})
	assert.Equal(t, 1, fired)
}

func TestSubscribersAreIndependentPerType(t *testing.T) {
	mgr := NewManager(logr.Discard())

	var start, end int
	Subscribe(mgr, 0, func(*AttackStartEvent) { start++ })
	Subscribe(mgr, 0, func(*AttackEndEvent) { end++ })

	mgr.Fire(&AttackStartEvent{})
	assert.Equal(t, 1, start)
	assert.Zero(t, end)
}
