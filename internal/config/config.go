package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Host             string        `mapstructure:"host" yaml:"host"`
	Port             int           `mapstructure:"port" yaml:"port"`
	LogLevel         string        `mapstructure:"log_level" yaml:"log_level"`
	AdminAddr        string        `mapstructure:"admin_addr" yaml:"admin_addr"`
	JournalPath      string        `mapstructure:"journal_path" yaml:"journal_path"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxClients       int           `mapstructure:"max_clients" yaml:"max_clients"`
	RateLimit        float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst        int           `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// Default returns configuration with reasonable starter defaults.
// The admin server and the session journal are off unless configured.
func Default() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             9000,
		LogLevel:         "info",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ShutdownTimeout:  5 * time.Second,
		RateBurst:        5,
	}
}

// ListenAddr returns the chat listener address.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.HandshakeTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.MaxClients < 0 {
		errs = append(errs, fmt.Errorf("max_clients %d must not be negative", c.MaxClients))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit %v must not be negative", c.RateLimit))
	}
	return errors.Join(errs...)
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.AdminAddr != "" {
		c.AdminAddr = other.AdminAddr
	}
	if other.JournalPath != "" {
		c.JournalPath = other.JournalPath
	}
	if other.HandshakeTimeout != 0 {
		c.HandshakeTimeout = other.HandshakeTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.MaxClients != 0 {
		c.MaxClients = other.MaxClients
	}
	if other.RateLimit != 0 {
		c.RateLimit = other.RateLimit
	}
	if other.RateBurst != 0 {
		c.RateBurst = other.RateBurst
	}
}
