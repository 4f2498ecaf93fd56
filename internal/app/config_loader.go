package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yourusername/vidsplit-go/internal/domain"
)

// LoadConfig loads configuration from .env, the config file and the environment.
// Environment variables use the VIDSPLIT_ prefix with dots replaced by
// underscores, e.g. VIDSPLIT_SESSION_WORKERS. TELEGRAM_BOT_TOKEN is also
// accepted for telegram.token.
func LoadConfig(configPath string) (*domain.Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vidsplit")
		v.AddConfigPath("/etc/vidsplit")
	}

	// Registering every key as a default lets AutomaticEnv reach it on Unmarshal
	for key, value := range configValues(config) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("VIDSPLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("telegram.token", "VIDSPLIT_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadDotEnv loads variables from the given files; missing files are ignored
// and variables already set in the environment win.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// configValues flattens config into viper keys
func configValues(c *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host": c.Server.Host,
		"server.port": c.Server.Port,

		"download.base_dir":     c.Download.BaseDir,
		"download.ytdlp_binary": c.Download.YTDLPBinary,
		"download.cookie_file":  c.Download.CookieFile,

		"transport.limit_bytes":       c.Transport.LimitBytes,
		"transport.safety_multiplier": c.Transport.SafetyMultiplier,
		"transport.height_tolerance":  c.Transport.HeightTolerance,

		"split.target_ratio":   c.Split.TargetRatio,
		"split.max_attempts":   c.Split.MaxAttempts,
		"split.shrink_factor":  c.Split.ShrinkFactor,
		"split.ffmpeg_binary":  c.Split.FFmpegBinary,
		"split.ffprobe_binary": c.Split.FFprobeBinary,

		"session.workers":    c.Session.Workers,
		"session.registry":   c.Session.Registry,
		"session.redis_addr": c.Session.RedisAddr,
		"session.key_prefix": c.Session.KeyPrefix,
		"session.ttl":        c.Session.TTL.String(),

		"cache.enabled":       c.Cache.Enabled,
		"cache.database_path": c.Cache.DatabasePath,
		"cache.ttl":           c.Cache.TTL.String(),

		"telegram.enabled":      c.Telegram.Enabled,
		"telegram.token":        c.Telegram.Token,
		"telegram.poll_timeout": c.Telegram.PollTimeout,

		"notification.enabled": c.Notification.Enabled,
		"notification.method":  c.Notification.Method,

		"logging.level":        c.Logging.Level,
		"logging.format":       c.Logging.Format,
		"logging.output_path":  c.Logging.OutputPath,
		"logging.max_size_mb":  c.Logging.MaxSizeMB,
		"logging.max_backups":  c.Logging.MaxBackups,
		"logging.max_age_days": c.Logging.MaxAgeDays,
		"logging.compress":     c.Logging.Compress,
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.CookieFile = expandPath(config.Download.CookieFile)
	config.Cache.DatabasePath = expandPath(config.Cache.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Transport.LimitBytes <= 0 {
		return fmt.Errorf("transport limit must be positive")
	}

	if config.Transport.SafetyMultiplier < 1 {
		return fmt.Errorf("safety multiplier must be at least 1")
	}

	if config.Transport.HeightTolerance < 0 {
		return fmt.Errorf("height tolerance cannot be negative")
	}

	if config.Split.TargetRatio <= 0 || config.Split.TargetRatio > 1 {
		return fmt.Errorf("split target ratio must be in (0, 1]: %v", config.Split.TargetRatio)
	}

	if config.Split.MaxAttempts < 1 {
		return fmt.Errorf("split max attempts must be at least 1")
	}

	if config.Split.ShrinkFactor <= 0 || config.Split.ShrinkFactor >= 1 {
		return fmt.Errorf("split shrink factor must be in (0, 1): %v", config.Split.ShrinkFactor)
	}

	if config.Session.Workers < 1 {
		return fmt.Errorf("session workers must be at least 1")
	}

	switch config.Session.Registry {
	case "memory":
	case "redis":
		if config.Session.RedisAddr == "" {
			return fmt.Errorf("redis registry requires session.redis_addr")
		}
	default:
		return fmt.Errorf("unknown session registry: %s", config.Session.Registry)
	}

	if config.Cache.Enabled && config.Cache.DatabasePath == "" {
		return fmt.Errorf("cache database path not configured")
	}

	if config.Telegram.Enabled && config.Telegram.Token == "" {
		return fmt.Errorf("telegram is enabled but no token is set (TELEGRAM_BOT_TOKEN)")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
