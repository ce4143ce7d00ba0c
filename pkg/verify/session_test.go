package verify

import (
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.minekube.com/common/minecraft/component"

	"github.com/Chumb3x/sonar/pkg/limbo"
	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/packet"
	pconfig "github.com/Chumb3x/sonar/pkg/proto/packet/config"
	"github.com/Chumb3x/sonar/pkg/proto/state"
	"github.com/Chumb3x/sonar/pkg/proto/version"
	"github.com/Chumb3x/sonar/pkg/util/errs"
	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

type fakeConn struct {
	protocol    proto.Protocol
	state       *state.Registry
	written     []proto.Packet
	closed      bool
	compression int
}

var _ Conn = (*fakeConn)(nil)

func newFakeConn(protocol proto.Protocol) *fakeConn {
	return &fakeConn{protocol: protocol, state: state.Login, compression: -1}
}

func (c *fakeConn) Protocol() proto.Protocol { return c.protocol }
func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(203, 0, 113, 7), Port: 40000}
}
func (c *fakeConn) State() *state.Registry     { return c.state }
func (c *fakeConn) SetState(s *state.Registry) { c.state = s }
func (c *fakeConn) SetCompressionThreshold(threshold int) error {
	c.compression = threshold
	return nil
}
func (c *fakeConn) WritePacket(p proto.Packet) error {
	c.written = append(c.written, p)
	return nil
}
func (c *fakeConn) BufferPacket(p proto.Packet) error {
	c.written = append(c.written, p)
	return nil
}
func (c *fakeConn) Flush() error { return nil }
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) keepAliveToken(t *testing.T) int64 {
	t.Helper()
	for i := len(c.written) - 1; i >= 0; i-- {
		if ka, ok := c.written[i].(*packet.KeepAlive); ok {
			return ka.RandomID
		}
	}
	t.Fatal("no keep alive packet written")
	return 0
}

func testConfig(checkCollisions bool) *Config {
	return &Config{
		MaxMovementTicks:     8,
		MaxIgnoredTicks:      2,
		ReadTimeout:          3500 * time.Millisecond,
		MaxLoginPackets:      256,
		CompressionThreshold: -1,
		CheckCollisions:      checkCollisions,
		MaxBrandLength:       64,
		ValidName:            regexp.MustCompile(`^[a-zA-Z0-9_.*!]+$`),
		ValidBrand:           regexp.MustCompile(`^[!-~ ]+$`),
		ValidLocale:          regexp.MustCompile(`^[a-zA-Z_]+$`),
		SuccessMessage:       &component.Text{Content: "verified"},
		FailedMessage:        &component.Text{Content: "failed"},
	}
}

func testLimbo(t *testing.T) *limbo.Limbo {
	t.Helper()
	l, err := limbo.Prepare(8, 3)
	require.NoError(t, err)
	return l
}

func ctx(conn *fakeConn, p proto.Packet) *proto.PacketContext {
	return &proto.PacketContext{
		Direction: proto.ServerBound,
		Protocol:  conn.protocol,
		Packet:    p,
	}
}

// fallY returns the absolute Y position expected after the given fall tick.
func fallY(l *limbo.Limbo, tick int) float64 {
	y := float64(l.SpawnY)
	for i := 0; i <= tick; i++ {
		y -= l.Motions[i]
	}
	return y
}

func TestSessionHappyPathModern(t *testing.T) {
	l := testLimbo(t)
	conn := newFakeConn(version.Minecraft_1_20_2.Protocol)
	var result *Result
	s := NewSession(conn, l, testConfig(false), logr.Discard(), func(r Result) { result = &r })
	s.Activated()

	s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Alice"}))
	require.IsType(t, &packet.ServerLoginSuccess{}, conn.written[0])
	assert.Equal(t, StateAwaitConfigOrJoin, s.State())

	s.HandlePacket(ctx(conn, &packet.LoginAcknowledged{}))
	assert.Same(t, state.Config, conn.state)
	require.IsType(t, l.RegistrySync, conn.written[1])
	require.IsType(t, &pconfig.FinishedUpdate{}, conn.written[2])

	// Client settings arrive during the configuration state.
	s.HandlePacket(ctx(conn, &packet.ClientSettings{Locale: "en_US"}))
	s.HandlePacket(ctx(conn, &pconfig.FinishedUpdate{}))
	assert.Same(t, state.Play, conn.state)
	assert.Equal(t, StateAwaitKeepAlive, s.State())

	// The join sequence ends with the platform and a keep alive.
	require.IsType(t, &packet.JoinGame{}, conn.written[3])
	require.IsType(t, &packet.Abilities{}, conn.written[4])
	pos, ok := conn.written[5].(*packet.PlayerPosAndLook)
	require.True(t, ok)
	assert.Equal(t, float64(l.SpawnY), pos.Y)
	require.IsType(t, &packet.ChunkData{}, conn.written[6])
	require.IsType(t, &packet.UpdateSectionBlocks{}, conn.written[7])

	s.HandlePacket(ctx(conn, &packet.KeepAlive{RandomID: conn.keepAliveToken(t)}))
	assert.Equal(t, StateFalling, s.State())

	for tick := 1; tick <= 8; tick++ {
		s.HandlePacket(ctx(conn, &packet.PlayerPosition{
			X: limbo.SpawnX, Y: fallY(l, tick), Z: limbo.SpawnZ,
		}))
	}
	assert.Equal(t, StateSuccess, s.State())
	assert.True(t, conn.closed)
	require.NotNil(t, result)
	require.NoError(t, result.Err)
	assert.Equal(t, "Alice", result.Username)
	assert.Equal(t, uuid.OfflinePlayerUUID("Alice"), result.UUID)
	require.IsType(t, &packet.Disconnect{}, conn.written[len(conn.written)-1])
}

func TestSessionHappyPathLegacy(t *testing.T) {
	l := testLimbo(t)
	conn := newFakeConn(version.Minecraft_1_8.Protocol)
	cfg := testConfig(false)
	cfg.CompressionThreshold = 256
	var result *Result
	s := NewSession(conn, l, cfg, logr.Discard(), func(r Result) { result = &r })
	s.Activated()

	s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Bob"}))
	sc, ok := conn.written[0].(*packet.SetCompression)
	require.True(t, ok)
	assert.Equal(t, 256, sc.Threshold)
	assert.Equal(t, 256, conn.compression)
	require.IsType(t, &packet.ServerLoginSuccess{}, conn.written[1])
	// Pre 1.20.2 there is no configuration state, the join
	// sequence follows the login success directly.
	assert.Same(t, state.Play, conn.state)
	assert.Equal(t, StateAwaitClientSettings, s.State())

	s.HandlePacket(ctx(conn, &packet.ClientSettings{Locale: "de_DE"}))
	assert.Equal(t, StateAwaitKeepAlive, s.State())

	s.HandlePacket(ctx(conn, &packet.KeepAlive{RandomID: conn.keepAliveToken(t)}))
	for tick := 1; tick <= 8; tick++ {
		s.HandlePacket(ctx(conn, &packet.PlayerPosition{
			X: limbo.SpawnX, Y: fallY(l, tick), Z: limbo.SpawnZ,
		}))
	}
	assert.Equal(t, StateSuccess, s.State())
	require.NotNil(t, result)
	require.NoError(t, result.Err)
}

func startFalling(t *testing.T, s *Session, conn *fakeConn) {
	t.Helper()
	s.Activated()
	s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Mallory"}))
	s.HandlePacket(ctx(conn, &packet.ClientSettings{Locale: "en_US"}))
	s.HandlePacket(ctx(conn, &packet.KeepAlive{RandomID: conn.keepAliveToken(t)}))
	require.Equal(t, StateFalling, s.State())
}

func requireFailure(t *testing.T, result *Result, kind string) {
	t.Helper()
	require.NotNil(t, result)
	var verr *errs.VerificationError
	require.ErrorAs(t, result.Err, &verr)
	assert.Equal(t, kind, verr.Kind)
}

func TestSessionGravityViolation(t *testing.T) {
	l := testLimbo(t)
	conn := newFakeConn(version.Minecraft_1_18.Protocol)
	var result *Result
	s := NewSession(conn, l, testConfig(false), logr.Discard(), func(r Result) { result = &r })
	startFalling(t, s, conn)

	for tick := 1; tick <= 3; tick++ {
		s.HandlePacket(ctx(conn, &packet.PlayerPosition{
			X: limbo.SpawnX, Y: fallY(l, tick), Z: limbo.SpawnZ,
		}))
	}
	// Hovering at the tick 3 position is not a valid fall.
	s.HandlePacket(ctx(conn, &packet.PlayerPosition{
		X: limbo.SpawnX, Y: fallY(l, 3) + 1.5, Z: limbo.SpawnZ,
	}))
	assert.Equal(t, StateFailed, s.State())
	requireFailure(t, result, KindGravityViolation)
	assert.True(t, conn.closed)
}

func TestSessionLagAbsorption(t *testing.T) {
	l := testLimbo(t)
	conn := newFakeConn(version.Minecraft_1_18.Protocol)
	var result *Result
	s := NewSession(conn, l, testConfig(false), logr.Discard(), func(r Result) { result = &r })
	startFalling(t, s, conn)

	// Every other movement packet is dropped by the network,
	// absorbed by MaxIgnoredTicks=2.
	for _, tick := range []int{2, 4, 6, 8} {
		s.HandlePacket(ctx(conn, &packet.PlayerPosition{
			X: limbo.SpawnX, Y: fallY(l, tick), Z: limbo.SpawnZ,
		}))
	}
	assert.Equal(t, StateSuccess, s.State())
	require.NotNil(t, result)
	require.NoError(t, result.Err)
}

func TestSessionCollision(t *testing.T) {
	l := testLimbo(t)

	fullFall := func(t *testing.T, s *Session, conn *fakeConn) int {
		t.Helper()
		tick := 0
		for {
			tick++
			y := fallY(l, tick)
			if y <= float64(limbo.CollideY+1) {
				return tick
			}
			s.HandlePacket(ctx(conn, &packet.PlayerPosition{
				X: limbo.SpawnX, Y: y, Z: limbo.SpawnZ,
			}))
			require.Equal(t, StateFalling, s.State())
		}
	}

	t.Run("landing on the platform succeeds", func(t *testing.T) {
		conn := newFakeConn(version.Minecraft_1_18.Protocol)
		var result *Result
		s := NewSession(conn, l, testConfig(true), logr.Discard(), func(r Result) { result = &r })
		startFalling(t, s, conn)
		fullFall(t, s, conn)
		s.HandlePacket(ctx(conn, &packet.PlayerPosition{
			X: limbo.SpawnX, Y: float64(limbo.CollideY + 1), Z: limbo.SpawnZ, OnGround: true,
		}))
		assert.Equal(t, StateSuccess, s.State())
		require.NotNil(t, result)
		require.NoError(t, result.Err)
	})

	t.Run("landing off the platform fails", func(t *testing.T) {
		conn := newFakeConn(version.Minecraft_1_18.Protocol)
		var result *Result
		s := NewSession(conn, l, testConfig(true), logr.Discard(), func(r Result) { result = &r })
		startFalling(t, s, conn)
		fullFall(t, s, conn)
		s.HandlePacket(ctx(conn, &packet.PlayerPosition{
			X: 20, Y: float64(limbo.CollideY + 1), Z: limbo.SpawnZ, OnGround: true,
		}))
		assert.Equal(t, StateFailed, s.State())
		requireFailure(t, result, KindCollisionMissed)
	})

	t.Run("landing too early fails", func(t *testing.T) {
		conn := newFakeConn(version.Minecraft_1_18.Protocol)
		var result *Result
		s := NewSession(conn, l, testConfig(true), logr.Discard(), func(r Result) { result = &r })
		startFalling(t, s, conn)
		s.HandlePacket(ctx(conn, &packet.PlayerPosition{
			X: limbo.SpawnX, Y: float64(limbo.CollideY + 1), Z: limbo.SpawnZ, OnGround: true,
		}))
		assert.Equal(t, StateFailed, s.State())
		requireFailure(t, result, KindGravityViolation)
	})
}

func TestSessionInvalidUsername(t *testing.T) {
	for _, username := range []string{"", "name with spaces", "seventeen_chars__", "käse"} {
		conn := newFakeConn(version.Minecraft_1_18.Protocol)
		var result *Result
		s := NewSession(conn, testLimbo(t), testConfig(false), logr.Discard(), func(r Result) { result = &r })
		s.Activated()
		s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: username}))
		assert.Equal(t, StateFailed, s.State(), "username %q", username)
		requireFailure(t, result, KindInvalidUsername)
	}
}

func TestSessionKeepAliveMismatch(t *testing.T) {
	conn := newFakeConn(version.Minecraft_1_18.Protocol)
	var result *Result
	s := NewSession(conn, testLimbo(t), testConfig(false), logr.Discard(), func(r Result) { result = &r })
	s.Activated()
	s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Eve"}))
	s.HandlePacket(ctx(conn, &packet.ClientSettings{Locale: "en_US"}))
	s.HandlePacket(ctx(conn, &packet.KeepAlive{RandomID: conn.keepAliveToken(t) + 1}))
	assert.Equal(t, StateFailed, s.State())
	requireFailure(t, result, KindKeepAliveMismatch)
}

func TestSessionInvalidMetadata(t *testing.T) {
	t.Run("locale", func(t *testing.T) {
		conn := newFakeConn(version.Minecraft_1_18.Protocol)
		var result *Result
		s := NewSession(conn, testLimbo(t), testConfig(false), logr.Discard(), func(r Result) { result = &r })
		s.Activated()
		s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Eve"}))
		s.HandlePacket(ctx(conn, &packet.ClientSettings{Locale: "en-US!"}))
		requireFailure(t, result, KindInvalidLocale)
	})

	t.Run("brand", func(t *testing.T) {
		conn := newFakeConn(version.Minecraft_1_18.Protocol)
		var result *Result
		s := NewSession(conn, testLimbo(t), testConfig(false), logr.Discard(), func(r Result) { result = &r })
		s.Activated()
		s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Eve"}))
		s.HandlePacket(ctx(conn, &packet.PluginMessage{
			Channel: packet.BrandChannel,
			Data:    []byte{0x02, 0xc3, 0xa4}, // non-ascii brand
		}))
		requireFailure(t, result, KindInvalidBrand)
	})
}

func TestSessionTooManyPackets(t *testing.T) {
	conn := newFakeConn(version.Minecraft_1_18.Protocol)
	cfg := testConfig(false)
	cfg.MaxLoginPackets = 4
	var result *Result
	s := NewSession(conn, testLimbo(t), cfg, logr.Discard(), func(r Result) { result = &r })
	s.Activated()
	s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Eve"}))
	s.HandlePacket(ctx(conn, &packet.ClientSettings{Locale: "en_US"}))
	s.HandlePacket(ctx(conn, &packet.TeleportConfirm{TeleportID: 1}))
	s.HandlePacket(ctx(conn, &packet.TeleportConfirm{TeleportID: 1}))
	require.NotEqual(t, StateFailed, s.State())
	s.HandlePacket(ctx(conn, &packet.TeleportConfirm{TeleportID: 1}))
	assert.Equal(t, StateFailed, s.State())
	requireFailure(t, result, KindTooManyPackets)
}

func TestSessionEarlyDisconnect(t *testing.T) {
	conn := newFakeConn(version.Minecraft_1_18.Protocol)
	var result *Result
	s := NewSession(conn, testLimbo(t), testConfig(false), logr.Discard(), func(r Result) { result = &r })
	s.Activated()
	s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Eve"}))
	s.Disconnected()
	require.NotNil(t, result)
	assert.ErrorIs(t, result.Err, ErrDisconnected)
	assert.Equal(t, StateFailed, result.State)
}

func TestSessionOutOfOrder(t *testing.T) {
	conn := newFakeConn(version.Minecraft_1_18.Protocol)
	var result *Result
	s := NewSession(conn, testLimbo(t), testConfig(false), logr.Discard(), func(r Result) { result = &r })
	s.Activated()
	s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Eve"}))
	s.HandlePacket(ctx(conn, &packet.ServerLogin{Username: "Eve"}))
	assert.Equal(t, StateFailed, s.State())
	requireFailure(t, result, KindOutOfOrder)
}
