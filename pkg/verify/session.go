// Package verify implements the in-world verification session
// a joining client must pass before it is allowed to connect.
package verify

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"regexp"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.minekube.com/common/minecraft/component"

	"github.com/Chumb3x/sonar/pkg/limbo"
	"github.com/Chumb3x/sonar/pkg/netmc"
	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/packet"
	pconfig "github.com/Chumb3x/sonar/pkg/proto/packet/config"
	"github.com/Chumb3x/sonar/pkg/proto/state"
	"github.com/Chumb3x/sonar/pkg/proto/version"
	"github.com/Chumb3x/sonar/pkg/util/errs"
	"github.com/Chumb3x/sonar/pkg/util/netutil"
	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

// Failure kinds of a verification session.
const (
	KindInvalidUsername   = "invalid username"
	KindInvalidBrand      = "invalid client brand"
	KindInvalidLocale     = "invalid client locale"
	KindGravityViolation  = "gravity violation"
	KindCollisionMissed   = "missed platform collision"
	KindKeepAliveMismatch = "keep alive mismatch"
	KindTimeout           = "verification timed out"
	KindTooManyPackets    = "too many packets"
	KindOutOfOrder        = "packet out of order"
	KindUnknownPacket     = "unknown packet"
)

// ErrDisconnected indicates the client left before
// the session reached a terminal state.
var ErrDisconnected = errors.New("client disconnected during verification")

// gravityTolerance is the allowed absolute Y error per fall tick.
// The motion table is exact, only double rounding is absorbed.
const gravityTolerance = 1e-7

// State is the progress of a verification session.
type State int

const (
	StateAwaitLoginStart State = iota
	StateAwaitConfigOrJoin
	StateAwaitClientSettings
	StateAwaitKeepAlive
	StateFalling
	StateCollided
	StateSuccess
	StateFailed
)

var stateNames = map[State]string{
	StateAwaitLoginStart:     "await-login-start",
	StateAwaitConfigOrJoin:   "await-config-or-join",
	StateAwaitClientSettings: "await-client-settings",
	StateAwaitKeepAlive:      "await-keep-alive",
	StateFalling:             "falling",
	StateCollided:            "collided",
	StateSuccess:             "success",
	StateFailed:              "failed",
}

func (s State) String() string { return stateNames[s] }

// Terminal indicates whether no further transition can happen.
func (s State) Terminal() bool { return s == StateSuccess || s == StateFailed }

// Config is the immutable settings snapshot of a session.
type Config struct {
	MaxMovementTicks int
	MaxIgnoredTicks  int
	ReadTimeout      time.Duration
	MaxLoginPackets  int
	// CompressionThreshold below zero disables compression.
	CompressionThreshold int
	CheckCollisions      bool
	MaxBrandLength       int

	ValidName   *regexp.Regexp
	ValidBrand  *regexp.Regexp
	ValidLocale *regexp.Regexp

	SuccessMessage component.Component
	FailedMessage  component.Component

	// IsVerified reports whether the (address, player) pair already
	// passed verification. Matching pairs skip the limbo checks.
	IsVerified func(ip string, id uuid.UUID) bool
}

// Conn is the subset of the Minecraft connection a session drives.
type Conn interface {
	Protocol() proto.Protocol
	RemoteAddr() net.Addr
	State() *state.Registry
	SetState(*state.Registry)
	SetCompressionThreshold(int) error
	WritePacket(proto.Packet) error
	BufferPacket(proto.Packet) error
	Flush() error
	Close() error
}

// Result is reported exactly once when a session ends.
type Result struct {
	Username string
	UUID     uuid.UUID
	State    State
	// Bypassed is set when the pair was already verified and the
	// limbo checks were skipped.
	Bypassed bool
	Err      error // nil only on success
}

// Session is the netmc.SessionHandler driving a client
// through the verification world.
type Session struct {
	log   logr.Logger
	conn  Conn
	limbo *limbo.Limbo
	cfg   *Config
	done  func(Result)

	state    State
	start    time.Time
	packets  int
	username string
	playerID uuid.UUID

	configSent  bool // 1.20.2+, our FinishConfiguration is on the wire
	settingsOK  bool // client settings received and validated
	keepAliveID int64

	// tick indexes the motion table, expectedY[tick] is the
	// absolute Y position the client must be at.
	tick      int
	expectedY []float64

	resultOnce sync.Once
}

var _ netmc.SessionHandler = (*Session)(nil)

// NewSession returns a session handler for a connection in the Login state.
// done is called exactly once with the terminal result.
func NewSession(conn Conn, lb *limbo.Limbo, cfg *Config, log logr.Logger, done func(Result)) *Session {
	expected := make([]float64, len(lb.Motions))
	sum := 0.0
	for i, m := range lb.Motions {
		sum += m
		expected[i] = float64(lb.SpawnY) - sum
	}
	return &Session{
		log:       log,
		conn:      conn,
		limbo:     lb,
		cfg:       cfg,
		done:      done,
		state:     StateAwaitLoginStart,
		expectedY: expected,
	}
}

// State returns the current session state.
func (s *Session) State() State { return s.state }

func (s *Session) Activated()   { s.start = time.Now() }
func (s *Session) Deactivated() {}

func (s *Session) Disconnected() {
	if s.state.Terminal() {
		s.finish(Result{Username: s.username, UUID: s.playerID, State: s.state})
		return
	}
	s.state = StateFailed
	s.finish(Result{Username: s.username, UUID: s.playerID, State: s.state, Err: ErrDisconnected})
}

func (s *Session) HandlePacket(pc *proto.PacketContext) {
	if s.state.Terminal() {
		return
	}
	s.packets++
	if s.packets > s.cfg.MaxLoginPackets {
		s.fail(KindTooManyPackets, fmt.Errorf("%d packets", s.packets))
		return
	}
	if time.Since(s.start) > s.cfg.ReadTimeout {
		s.fail(KindTimeout, nil)
		return
	}
	if !pc.KnownPacket() {
		// The Play registries never fall back, unknown movement era
		// packets are simply dropped. Anywhere else they are fatal.
		if s.conn.State() == state.Play {
			return
		}
		s.fail(KindUnknownPacket, fmt.Errorf("packet id %s in state %s", pc.PacketID, s.conn.State()))
		return
	}

	switch p := pc.Packet.(type) {
	case *packet.Handshake:
		s.fail(KindOutOfOrder, errors.New("duplicate handshake"))
	case *packet.ServerLogin:
		s.handleLogin(p)
	case *packet.LoginAcknowledged:
		s.handleLoginAcknowledged()
	case *pconfig.FinishedUpdate:
		s.handleFinishConfiguration()
	case *packet.ClientSettings:
		s.handleClientSettings(p)
	case *packet.PluginMessage:
		s.handlePluginMessage(p)
	case *packet.KeepAlive:
		s.handleKeepAlive(p)
	case *packet.TeleportConfirm:
		// Confirms the spawn teleport, no validation value.
	case *packet.PlayerPosition:
		s.handleMovement(p.X, p.Y, p.Z, p.OnGround)
	case *packet.PlayerPositionLook:
		s.handleMovement(p.X, p.Y, p.Z, p.OnGround)
	default:
		s.fail(KindOutOfOrder, fmt.Errorf("unexpected packet %T", pc.Packet))
	}
}

func (s *Session) handleLogin(p *packet.ServerLogin) {
	if s.state != StateAwaitLoginStart {
		s.fail(KindOutOfOrder, errors.New("duplicate login start"))
		return
	}
	if len(p.Username) == 0 || len(p.Username) > 16 || !s.cfg.ValidName.MatchString(p.Username) {
		s.fail(KindInvalidUsername, fmt.Errorf("username %q", p.Username))
		return
	}
	s.username = p.Username
	s.playerID = uuid.OfflinePlayerUUID(p.Username)

	if s.cfg.IsVerified != nil && s.cfg.IsVerified(netutil.Host(s.conn.RemoteAddr()), s.playerID) {
		s.state = StateSuccess
		s.closeWith(s.cfg.SuccessMessage)
		s.finish(Result{Username: s.username, UUID: s.playerID, State: StateSuccess, Bypassed: true})
		return
	}

	protocol := s.conn.Protocol()
	if s.cfg.CompressionThreshold >= 0 && protocol.GreaterEqual(version.Minecraft_1_8) {
		if err := s.conn.WritePacket(&packet.SetCompression{Threshold: s.cfg.CompressionThreshold}); err != nil {
			return
		}
		if err := s.conn.SetCompressionThreshold(s.cfg.CompressionThreshold); err != nil {
			s.fail(KindOutOfOrder, err)
			return
		}
	}
	if err := s.conn.WritePacket(&packet.ServerLoginSuccess{
		UUID:     s.playerID,
		Username: s.username,
	}); err != nil {
		return
	}

	if protocol.GreaterEqual(version.Minecraft_1_20_2) {
		// The client acknowledges the login before switching
		// to the configuration state.
		s.state = StateAwaitConfigOrJoin
		return
	}
	s.conn.SetState(state.Play)
	if s.sendJoinSequence() != nil {
		return
	}
	s.state = StateAwaitClientSettings
}

func (s *Session) handleLoginAcknowledged() {
	if s.state != StateAwaitConfigOrJoin || s.configSent {
		s.fail(KindOutOfOrder, errors.New("unexpected login acknowledge"))
		return
	}
	s.conn.SetState(state.Config)
	if s.conn.BufferPacket(s.limbo.RegistrySync) != nil {
		return
	}
	if s.conn.BufferPacket(s.limbo.FinishConfiguration) != nil {
		return
	}
	if s.conn.Flush() != nil {
		return
	}
	s.configSent = true
}

func (s *Session) handleFinishConfiguration() {
	if s.state != StateAwaitConfigOrJoin || !s.configSent {
		s.fail(KindOutOfOrder, errors.New("unexpected configuration acknowledge"))
		return
	}
	s.conn.SetState(state.Play)
	if s.sendJoinSequence() != nil {
		return
	}
	if s.settingsOK {
		// Client settings already arrived during configuration.
		s.sendKeepAlive()
		return
	}
	s.state = StateAwaitClientSettings
}

// sendJoinSequence puts the client into the verification world:
// join game, revoked abilities, spawn teleport, the empty chunk
// and the collision platform.
func (s *Session) sendJoinSequence() error {
	protocol := s.conn.Protocol()
	if err := s.conn.BufferPacket(s.limbo.JoinGame(protocol)); err != nil {
		return err
	}
	if err := s.conn.BufferPacket(s.limbo.DefaultAbilities); err != nil {
		return err
	}
	if err := s.conn.BufferPacket(&packet.PlayerPosAndLook{
		X:          limbo.SpawnX,
		Y:          float64(s.limbo.SpawnY),
		Z:          limbo.SpawnZ,
		TeleportID: 1,
	}); err != nil {
		return err
	}
	if err := s.conn.BufferPacket(s.limbo.EmptyChunk); err != nil {
		return err
	}
	if err := s.conn.BufferPacket(s.limbo.UpdateSectionBlocks); err != nil {
		return err
	}
	return s.conn.Flush()
}

func (s *Session) sendKeepAlive() {
	s.keepAliveID = int64(rand.Int31()) // must survive the int32 encoding of 1.7
	if s.conn.WritePacket(&packet.KeepAlive{RandomID: s.keepAliveID}) != nil {
		return
	}
	s.state = StateAwaitKeepAlive
}

func (s *Session) handleClientSettings(p *packet.ClientSettings) {
	if p.Locale == "" || !s.cfg.ValidLocale.MatchString(p.Locale) {
		s.fail(KindInvalidLocale, fmt.Errorf("locale %q", p.Locale))
		return
	}
	s.settingsOK = true
	if s.state == StateAwaitClientSettings {
		s.sendKeepAlive()
	}
}

func (s *Session) handlePluginMessage(p *packet.PluginMessage) {
	if !p.IsBrandChannel(s.conn.Protocol()) {
		return
	}
	brand, err := p.BrandMessage(s.conn.Protocol(), s.cfg.MaxBrandLength)
	if err != nil {
		s.fail(KindInvalidBrand, err)
		return
	}
	if !s.cfg.ValidBrand.MatchString(brand) {
		s.fail(KindInvalidBrand, fmt.Errorf("brand %q", brand))
		return
	}
}

func (s *Session) handleKeepAlive(p *packet.KeepAlive) {
	if s.state != StateAwaitKeepAlive || p.RandomID != s.keepAliveID {
		s.fail(KindKeepAliveMismatch, fmt.Errorf("got token %d", p.RandomID))
		return
	}
	s.state = StateFalling
	s.tick = 0
}

func (s *Session) handleMovement(x, y, z float64, onGround bool) {
	switch s.state {
	case StateFalling:
	case StateAwaitClientSettings, StateAwaitKeepAlive:
		// Teleport echo before the fall is observed.
		return
	default:
		return
	}

	// The barrier platform occupies Y=255, its top surface is at 256.
	platformTop := float64(limbo.CollideY + 1)
	if onGround || y <= platformTop+gravityTolerance {
		if s.tick < s.cfg.MaxMovementTicks {
			s.fail(KindGravityViolation, fmt.Errorf("landed after %d ticks", s.tick))
			return
		}
		if math.Abs(y-platformTop) > gravityTolerance {
			s.fail(KindCollisionMissed, fmt.Errorf("landed at y %f", y))
			return
		}
		s.state = StateCollided
		if s.cfg.CheckCollisions && !(limbo.PlatformBounds(x) && limbo.PlatformBounds(z)) {
			s.fail(KindCollisionMissed, fmt.Errorf("landed outside the platform at %f, %f", x, z))
			return
		}
		s.succeed()
		return
	}

	next := s.matchTick(y)
	if next < 0 {
		s.fail(KindGravityViolation, fmt.Errorf("tick %d, y %f", s.tick, y))
		return
	}
	s.tick = next
	if !s.cfg.CheckCollisions && s.tick >= s.cfg.MaxMovementTicks {
		// The fall is verified, no need to wait for the landing.
		s.succeed()
		return
	}
	if s.tick >= len(s.expectedY)-1 {
		s.fail(KindGravityViolation, errors.New("fall did not reach the platform"))
	}
}

// matchTick resolves the motion table index of a reported Y position,
// absorbing up to MaxIgnoredTicks merged or repeated movement packets.
func (s *Session) matchTick(y float64) int {
	limit := s.tick + 1 + s.cfg.MaxIgnoredTicks
	for j := s.tick; j <= limit && j < len(s.expectedY); j++ {
		if math.Abs(s.expectedY[j]-y) <= gravityTolerance {
			return j
		}
	}
	return -1
}

func (s *Session) succeed() {
	s.state = StateSuccess
	s.closeWith(s.cfg.SuccessMessage)
	s.finish(Result{Username: s.username, UUID: s.playerID, State: StateSuccess})
}

func (s *Session) fail(kind string, cause error) {
	s.state = StateFailed
	err := &errs.VerificationError{Kind: kind, Err: cause}
	s.log.V(1).Info("verification failed", "username", s.username, "reason", kind)
	s.closeWith(s.cfg.FailedMessage)
	s.finish(Result{Username: s.username, UUID: s.playerID, State: StateFailed, Err: err})
}

func (s *Session) closeWith(reason component.Component) {
	d, err := packet.NewDisconnect(reason, s.conn.Protocol())
	if err == nil {
		_ = s.conn.WritePacket(d)
	}
	_ = s.conn.Close()
}

func (s *Session) finish(r Result) {
	s.resultOnce.Do(func() {
		if s.done != nil {
			s.done(r)
		}
	})
}

