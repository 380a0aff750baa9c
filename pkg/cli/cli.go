package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/config"
)

// Environment fallbacks for the persistent flags.
const (
	EnvDebug = "WELLNESS_DEBUG"
)

type Config struct {
	ConfigPath string
	Debug      bool
	Out        io.Writer
	In         io.Reader
}

type runtimeState struct {
	configPath string
	debug      bool
	out        io.Writer
	in         io.Reader
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath: getEnvString(config.ConfigPathEnv, ""),
		Debug:      getEnvBool(EnvDebug, false),
		Out:        os.Stdout,
		In:         os.Stdin,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, debug: cfg.Debug, out: cfg.Out, in: cfg.In}

	root := &cobra.Command{
		Use:           "wellness-api",
		Short:         "Tofte Wellness site API",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file (default ./config.yaml)")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", rt.debug, "Enable debug level logging")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewServeCommand(),
		NewProvisionAdminCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.out != nil {
		return rt.out
	}
	return os.Stdout
}

func (rt *runtimeState) Reader() io.Reader {
	if rt.in != nil {
		return rt.in
	}
	return os.Stdin
}

// loadConfig reads the config file and environment, applies defaults and
// validates the result.
func (rt *runtimeState) loadConfig() (config.Config, error) {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// printConfig logs the effective configuration without secrets.
func printConfig(log *zap.SugaredLogger, cfg config.Config) {
	log.Infow("Configuration",
		// Server
		"listen_address", cfg.Server.ListenAddress,
		"tls", cfg.Server.TLSCertFile != "",
		"allowed_origin", cfg.Server.AllowedOrigin,
		"trusted_proxies", cfg.Server.TrustedProxies,
		// Storage
		"database_backend", cfg.Database.Backend,
		"database_name", cfg.Database.Name,
		// Auth
		"setup_enabled", cfg.Auth.SetupEnabled,
		"token_ttl", cfg.Auth.TokenTTL.String(),
		// Rate limits
		"login_limit", cfg.RateLimits.Login.MaxAttempts,
		"login_window", cfg.RateLimits.Login.Window.String(),
		"signup_limit", cfg.RateLimits.Signup.MaxAttempts,
		"signup_window", cfg.RateLimits.Signup.Window.String(),
		"contact_limit", cfg.RateLimits.Contact.MaxAttempts,
		"contact_window", cfg.RateLimits.Contact.Window.String(),
		// Optional integrations
		"mail_enabled", cfg.Mail.Enabled(),
		"audit_enabled", cfg.Audit.Enabled,
		"audit_kafka", cfg.Audit.Kafka != nil,
		"telemetry_enabled", cfg.Telemetry.Enabled,
	)
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
