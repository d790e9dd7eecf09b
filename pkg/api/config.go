package api

import (
	"os"
	"time"
)

// EnvJWTSecret is the environment variable overriding the JWT signing
// secret from the config file.
const EnvJWTSecret = "MOUNTKEEP_API_JWT_SECRET"

// JWTConfig holds token signing configuration.
type JWTConfig struct {
	// Secret signs and verifies tokens. Must be at least 32 characters.
	Secret string `mapstructure:"secret" yaml:"secret" json:"-"`

	// TokenDuration bounds token lifetime.
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration" json:"token_duration"`
}

// APIConfig configures the control API server.
type APIConfig struct {
	// Enabled starts the API server with the daemon.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Bind is the listen address. Defaults to loopback: the API controls
	// local mounts and is not meant to be exposed.
	Bind string `mapstructure:"bind" yaml:"bind" json:"bind"`

	// Port is the listen port.
	Port int `mapstructure:"port" yaml:"port" json:"port"`

	// AdminPasswordHash is the bcrypt hash accepted by the login
	// endpoint.
	AdminPasswordHash string `mapstructure:"admin_password_hash" yaml:"admin_password_hash" json:"-"`

	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt" json:"jwt"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
}

func (c *APIConfig) applyDefaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8474
	}
	if c.JWT.TokenDuration == 0 {
		c.JWT.TokenDuration = 24 * time.Hour
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
}

// GetJWTSecret returns the signing secret, preferring the environment
// variable over the config file.
func (c *APIConfig) GetJWTSecret() string {
	if env := os.Getenv(EnvJWTSecret); env != "" {
		return env
	}
	return c.JWT.Secret
}
