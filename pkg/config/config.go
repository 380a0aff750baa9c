/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ConfigPathEnv overrides the default config file location.
const ConfigPathEnv = "WELLNESS_CONFIG_PATH"

// Environment variables that carry secrets. They always win over the file.
const (
	EnvMongoURI      = "MONGODB_URI"
	EnvJWTSecret     = "JWT_SECRET"
	EnvSetupSecret   = "SETUP_SECRET"
	EnvSMTPPassword  = "SMTP_PASSWORD"
	EnvKafkaPassword = "KAFKA_PASSWORD"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Server struct {
	ListenAddress string `yaml:"listenAddress"`
	TLSCertFile   string `yaml:"tlsCertFile"`
	TLSKeyFile    string `yaml:"tlsKeyFile"`
	// TrustedProxies is passed to gin; empty means no proxy is trusted for ClientIP.
	TrustedProxies []string `yaml:"trustedProxies"`
	// AllowedOrigin is the single browser origin allowed by CORS, e.g. "https://toftewellness.com".
	AllowedOrigin string `yaml:"allowedOrigin"`
	// ShutdownTimeout bounds graceful shutdown of the HTTP server and background queues.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type Database struct {
	// Backend selects the document store: "mongo" (default) or "memory" for local development.
	Backend        string        `yaml:"backend"`
	URI            string        `yaml:"uri"`
	Name           string        `yaml:"name"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

type Auth struct {
	JWTSecret   string `yaml:"jwtSecret"`
	SetupSecret string `yaml:"setupSecret"`
	// SetupEnabled exposes POST /api/auth/setup. Turn it off once the first admin exists.
	SetupEnabled      bool          `yaml:"setupEnabled"`
	TokenTTL          time.Duration `yaml:"tokenTTL"`
	BcryptCost        int           `yaml:"bcryptCost"`
	MinPasswordLength int           `yaml:"minPasswordLength"`
}

// RateLimit is the sliding-window policy for a single category.
type RateLimit struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Window      time.Duration `yaml:"window"`
}

type RateLimits struct {
	Login   RateLimit `yaml:"login"`
	Signup  RateLimit `yaml:"signup"`
	Contact RateLimit `yaml:"contact"`
	// MaxKeys bounds the number of (category, identity) windows held in memory.
	MaxKeys         int           `yaml:"maxKeys"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// AdminRateLimit is the token-bucket guard in front of the admin read endpoints.
type AdminRateLimit struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type Mail struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	// NotifyAddresses receive a message for every new contact inquiry.
	NotifyAddresses []string `yaml:"notifyAddresses"`
	RetryCount      int      `yaml:"retryCount"`
	RetryBackoffMs  int      `yaml:"retryBackoffMs"`
	QueueSize       int      `yaml:"queueSize"`
}

// Enabled reports whether owner notifications should be sent at all.
func (m Mail) Enabled() bool {
	return m.Host != "" && len(m.NotifyAddresses) > 0
}

type Kafka struct {
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	SASLMechanism string   `yaml:"saslMechanism"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	TLS           bool     `yaml:"tls"`
}

type Audit struct {
	Enabled     bool   `yaml:"enabled"`
	QueueSize   int    `yaml:"queueSize"`
	WorkerCount int    `yaml:"workerCount"`
	Kafka       *Kafka `yaml:"kafka"`
}

// Telemetry configures OpenTelemetry tracing of HTTP requests.
type Telemetry struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	// Exporter is "otlp" (default), "stdout" or "none".
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type Config struct {
	Server         Server         `yaml:"server"`
	Database       Database       `yaml:"database"`
	Auth           Auth           `yaml:"auth"`
	RateLimits     RateLimits     `yaml:"rateLimits"`
	AdminRateLimit AdminRateLimit `yaml:"adminRateLimit"`
	Mail           Mail           `yaml:"mail"`
	Audit          Audit          `yaml:"audit"`
	Telemetry      Telemetry      `yaml:"telemetry"`
}

// Load loads the configuration from a file path.
// If configPath is empty, WELLNESS_CONFIG_PATH is consulted, then "./config.yaml".
// A missing file at the default location is not an error: the service can run
// from environment variables alone. Secrets from the environment are applied last.
func Load(configPath ...string) (Config, error) {
	var config Config

	path := ""
	explicit := false
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
		explicit = true
	} else if env := os.Getenv(ConfigPathEnv); env != "" {
		path = env
		explicit = true
	} else {
		path = "./config.yaml"
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &config); err != nil {
			return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// run from env only
	default:
		return config, fmt.Errorf("trying to open config file %s: %w", path, err)
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvMongoURI); v != "" {
		c.Database.URI = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvSetupSecret); v != "" {
		c.Auth.SetupSecret = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv(EnvKafkaPassword); v != "" && c.Audit.Kafka != nil {
		c.Audit.Kafka.Password = v
	}
}

// Defaults fills every zero value with the production default.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = "https://toftewellness.com"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Database.Backend == "" {
		c.Database.Backend = BackendMongo
	}
	if c.Database.Name == "" {
		c.Database.Name = "toftewellness"
	}
	if c.Database.ConnectTimeout <= 0 {
		c.Database.ConnectTimeout = 10 * time.Second
	}

	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.BcryptCost <= 0 {
		c.Auth.BcryptCost = 12
	}
	if c.Auth.MinPasswordLength <= 0 {
		c.Auth.MinPasswordLength = 8
	}

	defaultLimit(&c.RateLimits.Login, 5, 15*time.Minute)
	defaultLimit(&c.RateLimits.Signup, 3, time.Hour)
	defaultLimit(&c.RateLimits.Contact, 5, time.Hour)
	if c.RateLimits.MaxKeys <= 0 {
		c.RateLimits.MaxKeys = 10000
	}
	if c.RateLimits.CleanupInterval <= 0 {
		c.RateLimits.CleanupInterval = time.Minute
	}

	if c.AdminRateLimit.Rate <= 0 {
		c.AdminRateLimit.Rate = 5
	}
	if c.AdminRateLimit.Burst <= 0 {
		c.AdminRateLimit.Burst = 20
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.SenderName == "" {
		c.Mail.SenderName = "Tofte Wellness"
	}

	if c.Audit.QueueSize <= 0 {
		c.Audit.QueueSize = 1000
	}
	if c.Audit.WorkerCount <= 0 {
		c.Audit.WorkerCount = 2
	}

	if c.Telemetry.SamplingRate <= 0 {
		c.Telemetry.SamplingRate = 1.0
	}
}

func defaultLimit(l *RateLimit, maxAttempts int, window time.Duration) {
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = maxAttempts
	}
	if l.Window <= 0 {
		l.Window = window
	}
}

// Validate checks the settings the service cannot start without.
// Call it after Defaults.
func (c Config) Validate() error {
	var problems []string

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "auth.jwtSecret (or "+EnvJWTSecret+") is required")
	}
	if c.Auth.SetupEnabled && c.Auth.SetupSecret == "" {
		problems = append(problems, "auth.setupSecret (or "+EnvSetupSecret+") is required when setup is enabled")
	}
	switch c.Database.Backend {
	case BackendMongo:
		if c.Database.URI == "" {
			problems = append(problems, "database.uri (or "+EnvMongoURI+") is required for the mongo backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("database.backend %q is not supported", c.Database.Backend))
	}
	if c.Audit.Kafka != nil {
		if len(c.Audit.Kafka.Brokers) == 0 {
			problems = append(problems, "audit.kafka.brokers must not be empty")
		}
		if c.Audit.Kafka.Topic == "" {
			problems = append(problems, "audit.kafka.topic is required")
		}
	}

	switch c.Telemetry.Exporter {
	case "", "otlp", "stdout", "none":
	default:
		problems = append(problems, fmt.Sprintf("telemetry.exporter %q is not supported", c.Telemetry.Exporter))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
