// Package admission decides which inbound connections may enter
// verification and throttles everything else, especially under
// attack load.
package admission

import (
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/atomic"

	"github.com/Chumb3x/sonar/pkg/event"
	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/version"
	"github.com/Chumb3x/sonar/pkg/store"
	"github.com/Chumb3x/sonar/pkg/util/netutil"
)

// Decision is the outcome of the admission pipeline for one connection.
type Decision int

const (
	// Admit constructs a verification session.
	Admit Decision = iota
	// Bypass admits a connection of an address with verified players.
	// The session confirms the exact (address, player) pair at login.
	Bypass
	// Queued defers the admission to a later queue poll.
	Queued

	RejectLockdown
	RejectInvalidProtocol
	RejectTooManyOnline
	RejectTooFastReconnect
	RejectBlacklisted
	RejectAlreadyVerifying
	RejectTooManyPlayers
)

var decisionNames = map[Decision]string{
	Admit:                  "admit",
	Bypass:                 "bypass",
	Queued:                 "queued",
	RejectLockdown:         "lockdown",
	RejectInvalidProtocol:  "invalid protocol",
	RejectTooManyOnline:    "too many online per ip",
	RejectTooFastReconnect: "too fast reconnect",
	RejectBlacklisted:      "blacklisted",
	RejectAlreadyVerifying: "already verifying",
	RejectTooManyPlayers:   "too many players",
}

func (d Decision) String() string { return decisionNames[d] }

// Rejected indicates the connection must be disconnected.
func (d Decision) Rejected() bool { return d >= RejectLockdown }

// failureWindow is how long consecutive failures of an address
// are remembered for blacklist promotion.
const failureWindow = time.Minute

// Config are the admission settings.
type Config struct {
	MaxVerifyingPlayers int
	MaxOnlinePerIP      int
	MaxQueuePolls       int
	ReconnectDelay      time.Duration
	MinPlayersForAttack int
	// BlacklistThreshold is the number of consecutive failures
	// before an address is blacklisted. AttackBlacklistThreshold
	// applies while an attack is ongoing.
	BlacklistThreshold       int
	AttackBlacklistThreshold int
	LogDuringAttack          bool
}

// Pipeline runs the admission checks and owns the per address
// verifying markers, the queue and the attack state.
type Pipeline struct {
	log       logr.Logger
	cfg       Config
	verified  *store.Verified
	blacklist *store.Blacklist
	events    event.Manager

	queue  *Queue
	attack *attackTracker

	lockdown atomic.Bool

	attempts *ttlcache.Cache[string, struct{}] // fast reconnect markers
	fails    *ttlcache.Cache[string, int]      // consecutive failures

	mu        sync.Mutex // protects following fields, linearizes admission
	verifying map[string]struct{}
	online    map[string]int
}

func New(cfg Config, verified *store.Verified, blacklist *store.Blacklist, events event.Manager, log logr.Logger) *Pipeline {
	p := &Pipeline{
		log:       log,
		cfg:       cfg,
		verified:  verified,
		blacklist: blacklist,
		events:    events,
		queue:     NewQueue(),
		verifying: map[string]struct{}{},
		online:    map[string]int{},
		attempts: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](cfg.ReconnectDelay),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
		fails: ttlcache.New[string, int](
			ttlcache.WithTTL[string, int](failureWindow),
			ttlcache.WithDisableTouchOnHit[string, int](),
		),
	}
	p.attack = newAttackTracker(cfg.MinPlayersForAttack,
		func() {
			log.Info("attack detected, engaging throttling")
			events.Fire(&event.AttackStartEvent{})
		},
		func(duration time.Duration, peak int) {
			log.Info("attack ended", "duration", duration, "peakPerSecond", peak)
			events.Fire(&event.AttackEndEvent{Duration: duration, PeakRate: peak})
		},
	)
	go p.attempts.Start()
	go p.fails.Start()
	return p
}

// Check runs the admission checks for an inbound login attempt.
// admit and reject are deferred via the queue when the gateway is
// at capacity, otherwise neither is called.
func (p *Pipeline) Check(addr net.Addr, protocol proto.Protocol, admit, reject func()) Decision {
	ip := IP(addr)

	if p.lockdown.Load() {
		return RejectLockdown
	}
	if _, supported := version.ProtocolToVersion[protocol]; !supported {
		return RejectInvalidProtocol
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.online[ip] >= p.cfg.MaxOnlinePerIP {
		return RejectTooManyOnline
	}

	// Addresses with verified players skip the throttling gates.
	// The exact (address, player) pair is confirmed at login.
	if p.verified.HasIP(ip) {
		if _, ok := p.verifying[ip]; ok {
			return RejectAlreadyVerifying
		}
		p.admitLocked(ip)
		return Bypass
	}

	if p.attempts.Has(ip) {
		return RejectTooFastReconnect
	}
	p.attempts.Set(ip, struct{}{}, ttlcache.DefaultTTL)

	if p.blacklist.Has(ip) {
		return RejectBlacklisted
	}
	if _, ok := p.verifying[ip]; ok {
		return RejectAlreadyVerifying
	}

	if len(p.verifying) >= p.cfg.MaxVerifyingPlayers {
		if p.queue.Len() >= p.cfg.MaxVerifyingPlayers {
			return RejectTooManyPlayers
		}
		p.queue.Push(ip, admit, reject)
		return Queued
	}

	p.admitLocked(ip)
	return Admit
}

func (p *Pipeline) admitLocked(ip string) {
	p.verifying[ip] = struct{}{}
	p.attack.Admitted(time.Now())
}

// Release frees the verifying slot of an address when its session
// ended. Failed sessions count towards blacklist promotion.
func (p *Pipeline) Release(addr net.Addr, failed bool) {
	ip := IP(addr)
	p.mu.Lock()
	delete(p.verifying, ip)
	p.mu.Unlock()

	if !failed {
		p.fails.Delete(ip)
		return
	}

	count := 1
	if item := p.fails.Get(ip); item != nil {
		count = item.Value() + 1
	}
	threshold := p.cfg.BlacklistThreshold
	if p.attack.Active() {
		threshold = p.cfg.AttackBlacklistThreshold
	}
	if count >= threshold {
		p.fails.Delete(ip)
		p.blacklist.Add(ip)
		if p.shouldLog() {
			p.log.Info("blacklisted address after repeated failures", "ip", ip)
		}
		p.events.Fire(&event.PlayerBlacklistedEvent{Addr: addr})
		return
	}
	p.fails.Set(ip, count, ttlcache.DefaultTTL)
}

// PollQueue promotes deferred admissions up to the per tick limit
// and the free verifying capacity. It is driven by the 500ms tick.
func (p *Pipeline) PollQueue() {
	p.attack.Tick(time.Now())

	p.mu.Lock()
	free := p.cfg.MaxVerifyingPlayers - len(p.verifying)
	if free > p.cfg.MaxQueuePolls {
		free = p.cfg.MaxQueuePolls
	}
	var promoted []queued
	if free > 0 {
		promoted = p.queue.Poll(free)
		for _, e := range promoted {
			p.admitLocked(e.ip)
		}
	}
	p.mu.Unlock()

	for _, e := range promoted {
		e.admit()
	}
}

// Shutdown rejects all deferred admissions and stops the
// expiring caches.
func (p *Pipeline) Shutdown() {
	for _, e := range p.queue.Drain() {
		if e.reject != nil {
			e.reject()
		}
	}
	p.attempts.Stop()
	p.fails.Stop()
}

// Abandon drops the deferred admission of an address whose
// connection went away while queued.
func (p *Pipeline) Abandon(addr net.Addr) {
	p.queue.Remove(IP(addr))
}

// SetLockdown toggles the lockdown gate.
func (p *Pipeline) SetLockdown(on bool) { p.lockdown.Store(on) }

// Lockdown reports whether the lockdown gate is engaged.
func (p *Pipeline) Lockdown() bool { return p.lockdown.Load() }

// Attack reports whether an attack is ongoing.
func (p *Pipeline) Attack() bool { return p.attack.Active() }

// Verifying returns the number of active verification sessions.
func (p *Pipeline) Verifying() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.verifying)
}

// QueueLen returns the number of deferred admissions.
func (p *Pipeline) QueueLen() int { return p.queue.Len() }

// MarkOnline counts a connection of a verified player that was
// handed over to the backend collaborator.
func (p *Pipeline) MarkOnline(addr net.Addr) {
	p.mu.Lock()
	p.online[IP(addr)]++
	p.mu.Unlock()
}

// MarkOffline releases an online slot of an address.
func (p *Pipeline) MarkOffline(addr net.Addr) {
	p.mu.Lock()
	ip := IP(addr)
	if p.online[ip]--; p.online[ip] <= 0 {
		delete(p.online, ip)
	}
	p.mu.Unlock()
}

// shouldLog suppresses per connection logging during attacks.
func (p *Pipeline) shouldLog() bool {
	return !p.attack.Active() || p.cfg.LogDuringAttack
}

// ShouldLog reports whether per connection events should be logged.
func (p *Pipeline) ShouldLog() bool { return p.shouldLog() }

// IP extracts the bare address of a peer, without the port.
func IP(addr net.Addr) string {
	return netutil.Host(addr)
}
