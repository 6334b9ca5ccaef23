/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/showbox/mock"
	"github.com/Seednode/showbox/realtime"
)

type Config struct {
	// relay
	bind           string
	cardDelay      time.Duration
	port           int
	prefix         string
	profile        bool
	redisURL       string
	respond        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string

	// listen / emit
	address           string
	connectTimeout    time.Duration
	mock              bool
	reconnectAttempts int
	reconnectDelay    time.Duration
	show              string
	wait              time.Duration

	verbose bool
	version bool
}

const minSessionTimeout = time.Second

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.cardDelay < 0 {
		return fmt.Errorf("invalid card delay (must not be negative): %s", c.cardDelay)
	}
	if c.sessionTimeout != 0 && c.sessionTimeout < minSessionTimeout {
		return fmt.Errorf("invalid session timeout (must be 0 or at least %s): %s", minSessionTimeout, c.sessionTimeout)
	}
	if c.redisURL != "" && !strings.HasPrefix(c.redisURL, "redis://") && !strings.HasPrefix(c.redisURL, "rediss://") {
		return fmt.Errorf("invalid redis url (must start with redis:// or rediss://): %s", c.redisURL)
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.address == "" && !c.mock {
		return errors.New("--address is required unless --mock is set")
	}
	if c.reconnectDelay <= 0 {
		return fmt.Errorf("invalid reconnect delay (must be positive): %s", c.reconnectDelay)
	}
	if c.connectTimeout <= 0 {
		return fmt.Errorf("invalid connect timeout (must be positive): %s", c.connectTimeout)
	}
	if strings.Contains(c.show, "/") {
		return fmt.Errorf("invalid show id: %q", c.show)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// clientOptions builds the connection settings used by listen and emit.
func (c *Config) clientOptions() realtime.Options {
	opts := realtime.DefaultOptions()
	opts.ReconnectAttempts = c.reconnectAttempts
	opts.ReconnectDelay = c.reconnectDelay
	opts.DialTimeout = c.connectTimeout

	if c.show != "" {
		opts.Path = "/show/" + c.show + "/ws"
	}

	return opts
}

// bindFlags mirrors every flag in fs to a SHOWBOX_* environment variable.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SHOWBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

func addClientFlags(cfg *Config, fs *pflag.FlagSet) {
	fs.StringVarP(&cfg.address, "address", "a", "http://localhost:8080", "relay address to connect to (env: SHOWBOX_ADDRESS)")
	fs.DurationVar(&cfg.connectTimeout, "connect-timeout", 10*time.Second, "time to wait for a connection (env: SHOWBOX_CONNECT_TIMEOUT)")
	fs.BoolVarP(&cfg.mock, "mock", "m", false, "answer events locally instead of connecting (env: SHOWBOX_MOCK)")
	fs.IntVar(&cfg.reconnectAttempts, "reconnect-attempts", 5, "retries after a lost connection, negative for unlimited (env: SHOWBOX_RECONNECT_ATTEMPTS)")
	fs.DurationVar(&cfg.reconnectDelay, "reconnect-delay", time.Second, "wait between reconnect attempts (env: SHOWBOX_RECONNECT_DELAY)")
	fs.StringVarP(&cfg.show, "show", "s", "", "show to join, defaults to the relay's main show (env: SHOWBOX_SHOW)")
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "showbox",
		Short:         "A real-time event relay for game show host, overlay and player screens.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SHOWBOX_BIND)")
	fs.DurationVar(&cfg.cardDelay, "card-delay", mock.DefaultCardDelay, "time before a card resolves when responding (env: SHOWBOX_CARD_DELAY)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SHOWBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SHOWBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SHOWBOX_PROFILE)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "share shows across relays through redis pub/sub (env: SHOWBOX_REDIS_URL)")
	fs.BoolVar(&cfg.respond, "respond", false, "answer host events with the built-in game show rules (env: SHOWBOX_RESPOND)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle shows are ended (env: SHOWBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SHOWBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SHOWBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SHOWBOX_VERSION)")

	pfs := cmd.PersistentFlags()
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SHOWBOX_VERBOSE)")

	bindFlags(v, fs)
	bindFlags(v, pfs)

	cmd.AddCommand(newListenCmd(cfg, v), newEmitCmd(cfg, v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("showbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newListenCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print every event received from a show as one JSON envelope per line.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validateClient(); err != nil {
				return err
			}
			return runListen(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	addClientFlags(cfg, cmd.Flags())
	bindFlags(v, cmd.Flags())

	return cmd
}

func newEmitCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit <event> [json]",
		Short: "Send one event to a show, then print replies for --wait.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validateClient(); err != nil {
				return err
			}

			data := "{}"
			if len(args) == 2 {
				data = args[1]
			}

			return runEmit(cmd.Context(), cfg, cmd.OutOrStdout(), args[0], data)
		},
	}

	fs := cmd.Flags()
	addClientFlags(cfg, fs)
	fs.DurationVarP(&cfg.wait, "wait", "w", 0, "time to keep printing replies after sending (env: SHOWBOX_WAIT)")
	bindFlags(v, fs)

	return cmd
}
