package admission

import (
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chumb3x/sonar/pkg/event"
	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/version"
	"github.com/Chumb3x/sonar/pkg/store"
	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

func testPipeline(t *testing.T, cfg Config) (*Pipeline, *store.Verified, *store.Blacklist, event.Manager) {
	t.Helper()
	verified, err := store.NewVerified(128, nil)
	require.NoError(t, err)
	blacklist := store.NewBlacklist(time.Minute)
	t.Cleanup(blacklist.Stop)
	events := event.NewManager(logr.Discard())
	p := New(cfg, verified, blacklist, events, logr.Discard())
	t.Cleanup(p.Shutdown)
	return p, verified, blacklist, events
}

func defaultConfig() Config {
	return Config{
		MaxVerifyingPlayers:      4,
		MaxOnlinePerIP:           3,
		MaxQueuePolls:            30,
		ReconnectDelay:           50 * time.Millisecond,
		MinPlayersForAttack:      100,
		BlacklistThreshold:       2,
		AttackBlacklistThreshold: 1,
	}
}

func addr(ip string) net.Addr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: 25565}
}

var okProtocol = version.Minecraft_1_20_2.Protocol

func TestPipelineAdmit(t *testing.T) {
	p, _, _, _ := testPipeline(t, defaultConfig())
	assert.Equal(t, Admit, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
	assert.Equal(t, 1, p.Verifying())

	p.Release(addr("10.0.0.1"), false)
	assert.Zero(t, p.Verifying())
}

func TestPipelineLockdown(t *testing.T) {
	p, _, _, _ := testPipeline(t, defaultConfig())
	p.SetLockdown(true)
	assert.Equal(t, RejectLockdown, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
	p.SetLockdown(false)
	assert.Equal(t, Admit, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
}

func TestPipelineInvalidProtocol(t *testing.T) {
	p, _, _, _ := testPipeline(t, defaultConfig())
	d := p.Check(addr("10.0.0.1"), proto.Protocol(1), nil, nil)
	assert.Equal(t, RejectInvalidProtocol, d)
	assert.True(t, d.Rejected())
}

func TestPipelineFastReconnect(t *testing.T) {
	p, _, _, _ := testPipeline(t, defaultConfig())
	assert.Equal(t, Admit, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
	p.Release(addr("10.0.0.1"), false)

	assert.Equal(t, RejectTooFastReconnect, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, Admit, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
}

func TestPipelineBlacklisted(t *testing.T) {
	p, _, blacklist, _ := testPipeline(t, defaultConfig())
	blacklist.Add("10.0.0.1")
	assert.Equal(t, RejectBlacklisted, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
	assert.Equal(t, Admit, p.Check(addr("10.0.0.2"), okProtocol, nil, nil))
}

func TestPipelineVerifiedBypass(t *testing.T) {
	p, verified, blacklist, _ := testPipeline(t, defaultConfig())
	require.NoError(t, verified.Add("10.0.0.1", uuid.OfflinePlayerUUID("Steve")))
	// Bypass skips the reconnect and blacklist gates entirely.
	blacklist.Add("10.0.0.1")

	assert.Equal(t, Bypass, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
	assert.Equal(t, RejectAlreadyVerifying, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))

	p.Release(addr("10.0.0.1"), false)
	assert.Equal(t, Bypass, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
}

func TestPipelineOnlineCap(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxOnlinePerIP = 1
	p, verified, _, _ := testPipeline(t, cfg)
	require.NoError(t, verified.Add("10.0.0.1", uuid.OfflinePlayerUUID("Steve")))

	p.MarkOnline(addr("10.0.0.1"))
	assert.Equal(t, RejectTooManyOnline, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))

	p.MarkOffline(addr("10.0.0.1"))
	assert.Equal(t, Bypass, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
}

func TestPipelineQueue(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxVerifyingPlayers = 1
	p, _, _, _ := testPipeline(t, cfg)

	assert.Equal(t, Admit, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))

	var promoted bool
	d := p.Check(addr("10.0.0.2"), okProtocol, func() { promoted = true }, nil)
	assert.Equal(t, Queued, d)
	assert.Equal(t, 1, p.QueueLen())

	// Queue is full once it matches the verifying capacity.
	assert.Equal(t, RejectTooManyPlayers, p.Check(addr("10.0.0.3"), okProtocol, nil, nil))

	// No free slot yet, nothing is promoted.
	p.PollQueue()
	assert.False(t, promoted)

	p.Release(addr("10.0.0.1"), false)
	p.PollQueue()
	assert.True(t, promoted)
	assert.Zero(t, p.QueueLen())
	assert.Equal(t, 1, p.Verifying())
}

func TestPipelineShutdownRejectsQueued(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxVerifyingPlayers = 1
	p, _, _, _ := testPipeline(t, cfg)

	assert.Equal(t, Admit, p.Check(addr("10.0.0.1"), okProtocol, nil, nil))
	var rejected bool
	assert.Equal(t, Queued, p.Check(addr("10.0.0.2"), okProtocol, nil, func() { rejected = true }))

	p.Shutdown()
	assert.True(t, rejected)
}

func TestPipelineBlacklistPromotion(t *testing.T) {
	p, _, blacklist, events := testPipeline(t, defaultConfig())
	var fired int
	event.Subscribe(events, 0, func(*event.PlayerBlacklistedEvent) { fired++ })

	p.Release(addr("10.0.0.1"), true)
	assert.False(t, blacklist.Has("10.0.0.1"))
	assert.Zero(t, fired)

	p.Release(addr("10.0.0.1"), true)
	assert.True(t, blacklist.Has("10.0.0.1"))
	assert.Equal(t, 1, fired)

	// A success clears the failure streak.
	p.Release(addr("10.0.0.2"), true)
	p.Release(addr("10.0.0.2"), false)
	p.Release(addr("10.0.0.2"), true)
	assert.False(t, blacklist.Has("10.0.0.2"))
}
