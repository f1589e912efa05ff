package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. WIRECHAT_PORT.
	EnvPrefix = "WIRECHAT"

	envConfigDir      = EnvPrefix + "_CONFIG_DIR"
	defaultConfigName = "wirechat.yaml"
)

// Load resolves configuration and returns it with the config file path used.
// Precedence: defaults < config file < WIRECHAT_* env vars. Command-line
// overrides are applied by the caller with UpdateFrom.
//
// A missing config file is created with the defaults so operators have a
// template to edit.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg := Default()
	path := configPath(explicitPath)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	for key, value := range defaultValues(cfg) {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := readOrCreate(v, path, cfg, logger); err != nil {
		return cfg, path, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, path, nil
}

// defaultValues lists every key so env vars are honoured even when the file omits them.
func defaultValues(cfg Config) map[string]any {
	return map[string]any{
		"host":              cfg.Host,
		"port":              cfg.Port,
		"log_level":         cfg.LogLevel,
		"admin_addr":        cfg.AdminAddr,
		"journal_path":      cfg.JournalPath,
		"handshake_timeout": cfg.HandshakeTimeout,
		"write_timeout":     cfg.WriteTimeout,
		"shutdown_timeout":  cfg.ShutdownTimeout,
		"max_clients":       cfg.MaxClients,
		"rate_limit":        cfg.RateLimit,
		"rate_burst":        cfg.RateBurst,
	}
}

func readOrCreate(v *viper.Viper, path string, cfg Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		logger.Debug().Str("path", path).Msg("config file loaded")
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	// Defaults are already in place, so failing to write the template is not fatal.
	if err := writeTemplate(path, cfg); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("could not write default config")
		return nil
	}
	logger.Info().Str("path", path).Msg("created default config")
	return nil
}

func configPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if dir := os.Getenv(envConfigDir); dir != "" {
		return filepath.Join(dir, defaultConfigName)
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, defaultConfigName)
	}
	return defaultConfigName
}

func writeTemplate(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
