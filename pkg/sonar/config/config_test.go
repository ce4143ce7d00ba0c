package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chumb3x/sonar/pkg/util/configutil"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(configutil.SetDefaultFunc(v.SetDefault))
	cfg := new(Config)
	require.NoError(t, v.Unmarshal(cfg))
	return cfg
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig(t)
	warns, errs := cfg.Validate()
	assert.Empty(t, errs)
	assert.Empty(t, warns)

	assert.Equal(t, "0.0.0.0:25565", cfg.Bind)
	assert.Equal(t, 8, cfg.Verification.MaxMovementTicks)
	assert.Equal(t, 1024, cfg.Admission.MaxVerifyingPlayers)
	assert.Equal(t, 3, cfg.Admission.MaxOnlinePerIP)
	assert.Equal(t, 8000, cfg.Admission.ReconnectDelay)
	assert.True(t, cfg.Verification.CheckCollisions)
}

func TestValidateClampsMovementTicks(t *testing.T) {
	cfg := defaultConfig(t)

	cfg.Verification.MaxMovementTicks = 1
	warns, errs := cfg.Validate()
	assert.Empty(t, errs)
	assert.NotEmpty(t, warns)
	assert.Equal(t, 2, cfg.Verification.MaxMovementTicks)

	cfg.Verification.MaxMovementTicks = 1000
	_, errs = cfg.Validate()
	assert.Empty(t, errs)
	assert.Equal(t, 100, cfg.Verification.MaxMovementTicks)
}

func TestValidateRejectsBadValues(t *testing.T) {
	for _, tt := range []struct {
		name   string
		modify func(*Config)
	}{
		{"empty bind", func(c *Config) { c.Bind = "" }},
		{"invalid bind", func(c *Config) { c.Bind = "not-a-hostport" }},
		{"bad name regex", func(c *Config) { c.Verification.ValidNameRegex = "[" }},
		{"bad gamemode", func(c *Config) { c.Verification.Gamemode = 7 }},
		{"zero verifying players", func(c *Config) { c.Admission.MaxVerifyingPlayers = 0 }},
		{"bad compression level", func(c *Config) { c.Compression.Level = 12 }},
		{"zero quota ops", func(c *Config) { c.Quota.OPS = 0 }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.modify(cfg)
			_, errs := cfg.Validate()
			assert.NotEmpty(t, errs)
		})
	}
}

func TestValidateWarnsOnLockdown(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Lockdown = true
	warns, errs := cfg.Validate()
	assert.Empty(t, errs)
	assert.NotEmpty(t, warns)
}
