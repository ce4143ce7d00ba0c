// Package config defines the gateway configuration.
package config

import (
	"fmt"
	"regexp"

	"github.com/Chumb3x/sonar/pkg/util/configutil"
	"github.com/Chumb3x/sonar/pkg/util/validation"
)

// Config is the configuration of the verification gateway.
type Config struct {
	Bind string // The address to listen for connections.

	// Whether to expect the ha-proxy protocol header on
	// inbound connections.
	ProxyProtocol bool

	// Lockdown rejects every new connection when enabled.
	Lockdown bool

	ConnectionTimeout int // Write timeout in milliseconds.
	ReadTimeout       int // Read timeout in milliseconds.

	Status       Status
	Compression  Compression
	Verification Verification
	Admission    Admission
	Storage      Storage
	Quota        QuotaSettings
	Messages     Messages

	Debug bool
}

type (
	Status struct {
		ShowMaxPlayers   int
		Motd             string
		ShowPingRequests bool
	}
	Compression struct {
		Threshold int
		Level     int
	}
	// Verification holds the in-world check settings.
	Verification struct {
		// How many movement packets a falling client must send
		// before it may pass. Clamped to 2..100.
		MaxMovementTicks int
		// How many movement packets a laggy client may skip
		// while its reported positions are matched.
		MaxIgnoredTicks int
		// Whether clients must land on the platform. When
		// disabled the fall alone decides.
		CheckCollisions bool
		Gamemode        int
		// Cap of packets per session before the client is failed.
		MaxLoginPackets int
		MaxBrandLength  int

		ValidNameRegex   string
		ValidBrandRegex  string
		ValidLocaleRegex string
	}
	// Admission holds the connection throttling settings.
	Admission struct {
		MaxVerifyingPlayers int
		MaxOnlinePerIP      int
		MaxQueuePolls       int
		ReconnectDelay      int // milliseconds
		// New admissions per second above which an attack is assumed.
		MinPlayersForAttack int
		// Consecutive failures before an address is blacklisted,
		// and the stricter threshold used during an attack.
		BlacklistThreshold       int
		AttackBlacklistThreshold int
		// Whether to keep per connection logging during attacks.
		LogDuringAttack bool
	}
	Storage struct {
		// VerifiedFile persists verified players across restarts,
		// empty keeps them in memory only.
		VerifiedFile       string
		MaxVerifiedEntries int
		BlacklistTime      int // milliseconds
	}
	// QuotaSettings rate limits new connections per source address.
	QuotaSettings struct {
		Enabled    bool
		OPS        float32 // Allowed connections per second, per address
		Burst      int     // The size of the token bucket
		MaxEntries int     // Maximum number of addresses to keep track of
	}
	Messages struct {
		Success          string
		Failed           string
		Blacklisted      string
		TooManyPlayers   string
		TooManyOnline    string
		TooFastReconnect string
		AlreadyVerifying string
		InvalidProtocol  string
		Lockdown         string
		Shutdown         string
	}
)

// SetDefaults sets Config defaults used with Viper.
func SetDefaults(i configutil.SetDefault) {
	i.SetDefault("bind", "0.0.0.0:25565")
	i.SetDefault("proxyProtocol", false)
	i.SetDefault("lockdown", false)

	i.SetDefault("connectiontimeout", 5000)
	i.SetDefault("readtimeout", 3500)

	i.SetDefault("status.motd", "§e§lSonar §7- §fAnti-bot verification")
	i.SetDefault("status.showmaxplayers", 1)
	i.SetDefault("status.showPingRequests", false)

	i.SetDefault("compression.threshold", 256)
	i.SetDefault("compression.level", -1)

	i.SetDefault("verification.maxMovementTicks", 8)
	i.SetDefault("verification.maxIgnoredTicks", 5)
	i.SetDefault("verification.checkCollisions", true)
	i.SetDefault("verification.gamemode", 3)
	i.SetDefault("verification.maxLoginPackets", 256)
	i.SetDefault("verification.maxBrandLength", 64)
	i.SetDefault("verification.validNameRegex", `^[a-zA-Z0-9_.*!]+$`)
	i.SetDefault("verification.validBrandRegex", `^[!-~ ]+$`)
	i.SetDefault("verification.validLocaleRegex", `^[a-zA-Z_]+$`)

	i.SetDefault("admission.maxVerifyingPlayers", 1024)
	i.SetDefault("admission.maxOnlinePerIp", 3)
	i.SetDefault("admission.maxQueuePolls", 30)
	i.SetDefault("admission.reconnectDelay", 8000)
	i.SetDefault("admission.minPlayersForAttack", 5)
	i.SetDefault("admission.blacklistThreshold", 2)
	i.SetDefault("admission.attackBlacklistThreshold", 1)
	i.SetDefault("admission.logDuringAttack", false)

	i.SetDefault("storage.verifiedFile", "verified.yml")
	i.SetDefault("storage.maxVerifiedEntries", 10000)
	i.SetDefault("storage.blacklistTime", 600000)

	// The default quota should never affect legitimate clients,
	// but rate limits aggressive reconnect behaviour.
	i.SetDefault("quota.enabled", true)
	i.SetDefault("quota.ops", 5)
	i.SetDefault("quota.burst", 10)
	i.SetDefault("quota.maxEntries", 1000)

	i.SetDefault("messages.success", "§aYou passed the verification, reconnect to join.")
	i.SetDefault("messages.failed", "§cVerification failed, please reconnect and try again.")
	i.SetDefault("messages.blacklisted", "§cYour address is temporarily denied from joining.")
	i.SetDefault("messages.tooManyPlayers", "§cToo many players are verifying right now, try again shortly.")
	i.SetDefault("messages.tooManyOnline", "§cToo many connections from your address.")
	i.SetDefault("messages.tooFastReconnect", "§cYou reconnected too fast, wait a moment.")
	i.SetDefault("messages.alreadyVerifying", "§cYour address is already being verified.")
	i.SetDefault("messages.invalidProtocol", "§cYour client version is not supported.")
	i.SetDefault("messages.lockdown", "§cThe server is under lockdown, try again later.")
	i.SetDefault("messages.shutdown", "§cThe verification gateway is shutting down.")
}

// Validate validates Config.
func (c *Config) Validate() (warns []error, errs []error) {
	e := func(m string, args ...interface{}) { errs = append(errs, fmt.Errorf(m, args...)) }
	w := func(m string, args ...interface{}) { warns = append(warns, fmt.Errorf(m, args...)) }

	if c == nil {
		e("config must not be nil")
		return
	}

	if len(c.Bind) == 0 {
		e("Bind is empty")
	} else if err := validation.ValidHostPort(c.Bind); err != nil {
		e("Invalid bind %q: %v", c.Bind, err)
	}

	if c.Verification.MaxMovementTicks < 2 || c.Verification.MaxMovementTicks > 100 {
		w("Movement ticks %d out of range, clamping to 2..100", c.Verification.MaxMovementTicks)
		if c.Verification.MaxMovementTicks < 2 {
			c.Verification.MaxMovementTicks = 2
		} else {
			c.Verification.MaxMovementTicks = 100
		}
	}
	if c.Verification.MaxIgnoredTicks < 0 {
		e("Invalid maxIgnoredTicks %d: must be >= 0", c.Verification.MaxIgnoredTicks)
	}
	if c.Verification.Gamemode < 0 || c.Verification.Gamemode > 3 {
		e("Invalid gamemode %d: must be 0..3", c.Verification.Gamemode)
	}
	if c.Verification.MaxLoginPackets < 1 {
		e("Invalid maxLoginPackets %d: must be >= 1", c.Verification.MaxLoginPackets)
	}

	for name, expr := range map[string]string{
		"validNameRegex":   c.Verification.ValidNameRegex,
		"validBrandRegex":  c.Verification.ValidBrandRegex,
		"validLocaleRegex": c.Verification.ValidLocaleRegex,
	} {
		if _, err := regexp.Compile(expr); err != nil {
			e("Invalid %s %q: %v", name, expr, err)
		}
	}

	if c.Admission.MaxVerifyingPlayers < 1 {
		e("Invalid maxVerifyingPlayers %d: must be >= 1", c.Admission.MaxVerifyingPlayers)
	}
	if c.Admission.MaxOnlinePerIP < 1 {
		e("Invalid maxOnlinePerIp %d: must be >= 1", c.Admission.MaxOnlinePerIP)
	}
	if c.Admission.MaxQueuePolls < 1 {
		e("Invalid maxQueuePolls %d: must be >= 1", c.Admission.MaxQueuePolls)
	}
	if c.Admission.BlacklistThreshold < 1 || c.Admission.AttackBlacklistThreshold < 1 {
		e("Invalid blacklist thresholds: must be >= 1")
	}

	if c.Storage.MaxVerifiedEntries < 1 {
		e("Invalid maxVerifiedEntries %d: must be >= 1", c.Storage.MaxVerifiedEntries)
	}

	if c.Compression.Level < -1 || c.Compression.Level > 9 {
		e("Unsupported compression level %d: must be -1..9", c.Compression.Level)
	}
	if c.Compression.Threshold < -1 {
		e("Invalid compression threshold %d: must be >= -1", c.Compression.Threshold)
	}

	if c.Quota.Enabled {
		if c.Quota.OPS <= 0 {
			e("Invalid quota ops %f, use a number > 0", c.Quota.OPS)
		}
		if c.Quota.Burst < 1 {
			e("Invalid quota burst %d, use a number >= 1", c.Quota.Burst)
		}
		if c.Quota.MaxEntries < 1 {
			e("Invalid quota max entries %d, use a number >= 1", c.Quota.MaxEntries)
		}
	}

	if c.Lockdown {
		w("Lockdown is enabled, every new connection will be rejected.")
	}

	return
}
