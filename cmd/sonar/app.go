package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/Chumb3x/sonar/pkg/sonar"
	"github.com/Chumb3x/sonar/pkg/sonar/config"
	"github.com/Chumb3x/sonar/pkg/util/configutil"
	"github.com/Chumb3x/sonar/pkg/version"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "sonar",
		Version: version.String(),
		Usage:   "An anti-bot verification gateway for Minecraft servers.",
		Description: `Sonar sits in front of a Minecraft server and verifies that
joining connections are real game clients before they may pass,
by letting unknown players fall through a small limbo world.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   "config.yml",
			},
			&cli.StringFlag{
				Name:    "bind",
				Aliases: []string{"b"},
				Usage:   "The address to bind to",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "lockdown",
				Usage: "Start with lockdown enabled, rejecting every connection",
			},
		},
		Action:   run,
		Commands: []*cli.Command{configCommand()},
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error loading config: %v", err), 1)
	}

	log, err := newLogger(cfg.Debug)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error creating logger: %v", err), 1)
	}

	s, err := sonar.New(cfg, log)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error setting up gateway: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context,
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err = s.Start(ctx); err != nil && ctx.Err() == nil {
		return cli.Exit(fmt.Sprintf("error running gateway: %v", err), 1)
	}
	log.Info("shutdown complete")
	return nil
}

// loadConfig reads the config file and environment with Viper
// and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(configutil.SetDefaultFunc(v.SetDefault))

	v.SetEnvPrefix("SONAR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigFile(c.String("config"))
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) && c.IsSet("config") {
			return nil, err
		}
		// Missing default config file, run with defaults.
	}

	cfg := new(config.Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if c.IsSet("bind") {
		cfg.Bind = c.String("bind")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if c.IsSet("lockdown") {
		cfg.Lockdown = c.Bool("lockdown")
	}
	return cfg, nil
}

func newLogger(debug bool) (log logr.Logger, err error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Output the default configuration file",
		Description: `Output the default configuration to stdout.
Redirect to a file to create a starting point:

	sonar config > config.yml`,
		Action: func(c *cli.Context) error {
			v := viper.New()
			config.SetDefaults(configutil.SetDefaultFunc(v.SetDefault))
			out, err := yaml.Marshal(v.AllSettings())
			if err != nil {
				return err
			}
			_, err = c.App.Writer.Write(out)
			return err
		},
	}
}
