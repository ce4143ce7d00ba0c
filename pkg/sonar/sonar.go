// Package sonar runs the anti-bot verification gateway.
// It accepts inbound Minecraft connections, runs them through the
// admission pipeline and verifies unknown players in a limbo world.
package sonar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/go-logr/logr"
	"github.com/pires/go-proxyproto"
	"go.minekube.com/common/minecraft/component"
	"golang.org/x/sync/errgroup"

	"github.com/Chumb3x/sonar/pkg/admission"
	"github.com/Chumb3x/sonar/pkg/event"
	"github.com/Chumb3x/sonar/pkg/internal/addrquota"
	"github.com/Chumb3x/sonar/pkg/limbo"
	"github.com/Chumb3x/sonar/pkg/netmc"
	"github.com/Chumb3x/sonar/pkg/sonar/config"
	"github.com/Chumb3x/sonar/pkg/store"
	"github.com/Chumb3x/sonar/pkg/util/componentutil"
	"github.com/Chumb3x/sonar/pkg/util/errs"
	"github.com/Chumb3x/sonar/pkg/verify"
)

// queuePollInterval is how often deferred admissions are promoted.
const queuePollInterval = 500 * time.Millisecond

// Sonar is the verification gateway.
type Sonar struct {
	log    logr.Logger
	cfg    *config.Config
	events event.Manager

	verified  *store.Verified
	blacklist *store.Blacklist
	pipeline  *admission.Pipeline
	limbo     *limbo.Limbo

	connectionsQuota *addrquota.Quota // nil if disabled

	verifyCfg *verify.Config
	msgs      *messages
	motd      *component.Text

	startTime time.Time
}

// messages are the parsed disconnect reasons.
type messages struct {
	success          component.Component
	failed           component.Component
	blacklisted      component.Component
	tooManyPlayers   component.Component
	tooManyOnline    component.Component
	tooFastReconnect component.Component
	alreadyVerifying component.Component
	invalidProtocol  component.Component
	lockdown         component.Component
}

// New validates the config and assembles the gateway.
func New(cfg *config.Config, log logr.Logger) (*Sonar, error) {
	warns, cfgErrs := cfg.Validate()
	for _, e := range warns {
		log.Info("config warning", "warn", e)
	}
	if len(cfgErrs) != 0 {
		for _, e := range cfgErrs {
			log.Info("config error", "error", e)
		}
		return nil, fmt.Errorf("config has %d errors", len(cfgErrs))
	}

	msgs, err := parseMessages(&cfg.Messages)
	if err != nil {
		return nil, fmt.Errorf("error parsing messages: %w", err)
	}
	motd, err := componentutil.ParseTextComponent(cfg.Status.Motd)
	if err != nil {
		return nil, fmt.Errorf("error parsing motd: %w", err)
	}

	var persist store.Persistence
	if cfg.Storage.VerifiedFile != "" {
		persist = store.NewYamlFile(cfg.Storage.VerifiedFile)
	}
	verified, err := store.NewVerified(cfg.Storage.MaxVerifiedEntries, persist)
	if err != nil {
		return nil, fmt.Errorf("error loading verified players: %w", err)
	}
	blacklist := store.NewBlacklist(time.Duration(cfg.Storage.BlacklistTime) * time.Millisecond)

	events := event.NewManager(log.WithName("event"))
	pipeline := admission.New(admission.Config{
		MaxVerifyingPlayers:      cfg.Admission.MaxVerifyingPlayers,
		MaxOnlinePerIP:           cfg.Admission.MaxOnlinePerIP,
		MaxQueuePolls:            cfg.Admission.MaxQueuePolls,
		ReconnectDelay:           time.Duration(cfg.Admission.ReconnectDelay) * time.Millisecond,
		MinPlayersForAttack:      cfg.Admission.MinPlayersForAttack,
		BlacklistThreshold:       cfg.Admission.BlacklistThreshold,
		AttackBlacklistThreshold: cfg.Admission.AttackBlacklistThreshold,
		LogDuringAttack:          cfg.Admission.LogDuringAttack,
	}, verified, blacklist, events, log.WithName("admission"))
	pipeline.SetLockdown(cfg.Lockdown)

	lb, err := limbo.Prepare(cfg.Verification.MaxMovementTicks, int16(cfg.Verification.Gamemode))
	if err != nil {
		return nil, fmt.Errorf("error preparing limbo world: %w", err)
	}

	s := &Sonar{
		log:       log,
		cfg:       cfg,
		events:    events,
		verified:  verified,
		blacklist: blacklist,
		pipeline:  pipeline,
		limbo:     lb,
		msgs:      msgs,
		motd:      motd,
		verifyCfg: &verify.Config{
			MaxMovementTicks:     cfg.Verification.MaxMovementTicks,
			MaxIgnoredTicks:      cfg.Verification.MaxIgnoredTicks,
			ReadTimeout:          time.Duration(cfg.ReadTimeout) * time.Millisecond,
			MaxLoginPackets:      cfg.Verification.MaxLoginPackets,
			CompressionThreshold: cfg.Compression.Threshold,
			CheckCollisions:      cfg.Verification.CheckCollisions,
			MaxBrandLength:       cfg.Verification.MaxBrandLength,
			ValidName:            regexp.MustCompile(cfg.Verification.ValidNameRegex),
			ValidBrand:           regexp.MustCompile(cfg.Verification.ValidBrandRegex),
			ValidLocale:          regexp.MustCompile(cfg.Verification.ValidLocaleRegex),
			SuccessMessage:       msgs.success,
			FailedMessage:        msgs.failed,
			IsVerified:           verified.Has,
		},
	}
	if cfg.Quota.Enabled {
		s.connectionsQuota = addrquota.NewQuota(cfg.Quota.OPS, cfg.Quota.Burst, cfg.Quota.MaxEntries)
	}
	return s, nil
}

func parseMessages(m *config.Messages) (*messages, error) {
	out := new(messages)
	for _, p := range []struct {
		dst *component.Component
		src string
	}{
		{&out.success, m.Success},
		{&out.failed, m.Failed},
		{&out.blacklisted, m.Blacklisted},
		{&out.tooManyPlayers, m.TooManyPlayers},
		{&out.tooManyOnline, m.TooManyOnline},
		{&out.tooFastReconnect, m.TooFastReconnect},
		{&out.alreadyVerifying, m.AlreadyVerifying},
		{&out.invalidProtocol, m.InvalidProtocol},
		{&out.lockdown, m.Lockdown},
	} {
		t, err := componentutil.ParseTextComponent(p.src)
		if err != nil {
			return nil, fmt.Errorf("invalid message %q: %w", p.src, err)
		}
		*p.dst = t
	}
	return out, nil
}

// rejectReason maps an admission decision to the disconnect reason.
func (s *Sonar) rejectReason(d admission.Decision) component.Component {
	switch d {
	case admission.RejectLockdown:
		return s.msgs.lockdown
	case admission.RejectInvalidProtocol:
		return s.msgs.invalidProtocol
	case admission.RejectTooManyOnline:
		return s.msgs.tooManyOnline
	case admission.RejectTooFastReconnect:
		return s.msgs.tooFastReconnect
	case admission.RejectBlacklisted:
		return s.msgs.blacklisted
	case admission.RejectAlreadyVerifying:
		return s.msgs.alreadyVerifying
	default:
		return s.msgs.tooManyPlayers
	}
}

// Event returns the event manager to subscribe to gateway events.
func (s *Sonar) Event() event.Manager { return s.events }

// Verified returns the verified players store.
func (s *Sonar) Verified() *store.Verified { return s.verified }

// Blacklist returns the blacklist store.
func (s *Sonar) Blacklist() *store.Blacklist { return s.blacklist }

// Pipeline returns the admission pipeline.
func (s *Sonar) Pipeline() *admission.Pipeline { return s.pipeline }

// Start begins listening for connections until the context is canceled.
func (s *Sonar) Start(ctx context.Context) error {
	s.startTime = time.Now()
	defer func() {
		s.pipeline.Shutdown()
		s.blacklist.Stop()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.pollQueue(ctx)
		return nil
	})
	g.Go(func() error {
		return s.listenAndServe(ctx, s.cfg.Bind)
	})
	return g.Wait()
}

// pollQueue drives the admission queue and the attack state.
func (s *Sonar) pollQueue(ctx context.Context) {
	ticker := time.NewTicker(queuePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pipeline.PollQueue()
		}
	}
}

// listenAndServe starts listening for connections on addr until the context is canceled.
func (s *Sonar) listenAndServe(ctx context.Context, addr string) error {
	if ctx.Err() != nil {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.cfg.ProxyProtocol {
		ln = &proxyproto.Listener{Listener: ln}
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.events.Fire(&event.ReadyEvent{Addr: ln.Addr()})
	s.log.Info("listening for connections", "addr", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var opErr *net.OpError
			if errors.As(err, &opErr) && errs.IsConnClosedErr(opErr.Err) {
				// Listener was closed
				return nil
			}
			return fmt.Errorf("error accepting new connection: %w", err)
		}
		go s.handleRawConn(ctx, conn)
	}
}

// handleRawConn handles a just-accepted connection that
// has not had any I/O performed on it yet.
func (s *Sonar) handleRawConn(ctx context.Context, raw net.Conn) {
	if s.connectionsQuota != nil && s.connectionsQuota.Blocked(raw.RemoteAddr()) {
		_ = raw.Close()
		s.log.V(1).Info("connection exceeded rate limit", "remoteAddr", raw.RemoteAddr())
		return
	}

	// Reads block until the read timeout even while a connection
	// waits in the admission queue, so the larger of the two applies.
	readTimeout := time.Duration(s.cfg.ReadTimeout) * time.Millisecond
	if d := time.Duration(s.cfg.Admission.ReconnectDelay) * time.Millisecond; d > readTimeout {
		readTimeout = d
	}

	conn, startReadLoop := netmc.NewMinecraftConn(
		logr.NewContext(ctx, s.log),
		raw,
		readTimeout,
		time.Duration(s.cfg.ConnectionTimeout)*time.Millisecond,
		s.cfg.Compression.Level,
	)
	conn.SetSessionHandler(newHandshakeSessionHandler(conn, s))
	startReadLoop()
}

// startVerification attaches a verification session to the connection.
// held is an already read login packet of a formerly queued connection.
func (s *Sonar) startVerification(conn netmc.MinecraftConn, held *heldPacket) {
	sess := verify.NewSession(conn, s.limbo, s.verifyCfg,
		s.log.WithName("session").WithValues("remoteAddr", conn.RemoteAddr()),
		func(r verify.Result) { s.onResult(conn, r) },
	)
	s.events.Fire(&event.PlayerAdmittedEvent{Addr: conn.RemoteAddr(), Protocol: conn.Protocol()})
	conn.SetSessionHandler(sess)
	if held != nil {
		held.mu.Lock()
		pc := held.pc
		held.mu.Unlock()
		if pc != nil {
			sess.HandlePacket(pc)
		}
	}
}

// onResult settles a finished verification session with the
// pipeline and the stores.
func (s *Sonar) onResult(conn netmc.MinecraftConn, r verify.Result) {
	addr := conn.RemoteAddr()
	failed := r.State == verify.StateFailed
	s.pipeline.Release(addr, failed)

	if failed {
		if s.pipeline.ShouldLog() {
			s.log.Info("player failed verification",
				"username", r.Username, "remoteAddr", addr, "reason", r.Err)
		}
		s.events.Fire(&event.VerificationFailedEvent{Addr: addr, Username: r.Username, Err: r.Err})
		return
	}

	if !r.Bypassed {
		if err := s.verified.Add(admission.IP(addr), r.UUID); err != nil {
			s.log.Error(err, "error persisting verified player", "username", r.Username)
		}
	}
	if s.pipeline.ShouldLog() {
		s.log.Info("player passed verification",
			"username", r.Username, "uuid", r.UUID, "remoteAddr", addr, "bypassed", r.Bypassed)
	}
	s.events.Fire(&event.PlayerVerifiedEvent{Addr: addr, Username: r.Username, UUID: r.UUID})
}
