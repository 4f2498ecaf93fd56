package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Transport    TransportConfig    `mapstructure:"transport"`
	Split        SplitConfig        `mapstructure:"split"`
	Session      SessionConfig      `mapstructure:"session"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	YTDLPBinary string `mapstructure:"ytdlp_binary"`
	CookieFile  string `mapstructure:"cookie_file"`
}

// IncomingDir is the shared work directory for fetched files and split parts
func (c DownloadConfig) IncomingDir() string {
	return filepath.Join(c.BaseDir, "incoming")
}

// CompletedDir receives delivered files for sessions without a chat reporter
func (c DownloadConfig) CompletedDir() string {
	return filepath.Join(c.BaseDir, "completed")
}

// LogsDir holds the categorized event logs and raw tool output
func (c DownloadConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// ServerLogPath receives the output of a server started in the background
func (c DownloadConfig) ServerLogPath() string {
	return filepath.Join(c.LogsDir(), "server.log")
}

// TransportConfig describes the delivery channel ceiling and the planner tolerances
type TransportConfig struct {
	LimitBytes       int64   `mapstructure:"limit_bytes"`
	SafetyMultiplier float64 `mapstructure:"safety_multiplier"`
	HeightTolerance  int     `mapstructure:"height_tolerance"`
}

// SplitConfig contains splitter tuning and tool binaries
type SplitConfig struct {
	TargetRatio   float64 `mapstructure:"target_ratio"`
	MaxAttempts   int     `mapstructure:"max_attempts"`
	ShrinkFactor  float64 `mapstructure:"shrink_factor"`
	FFmpegBinary  string  `mapstructure:"ffmpeg_binary"`
	FFprobeBinary string  `mapstructure:"ffprobe_binary"`
}

// SessionConfig contains coordinator configuration
type SessionConfig struct {
	Workers   int           `mapstructure:"workers"`
	Registry  string        `mapstructure:"registry"` // memory, redis
	RedisAddr string        `mapstructure:"redis_addr"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// CacheConfig contains the metadata probe cache configuration
type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	DatabasePath string        `mapstructure:"database_path"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// TelegramConfig contains Telegram bot configuration
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"`
}

// NotificationConfig contains desktop notification configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultLimitBytes is the upload ceiling of the Telegram Bot API
const DefaultLimitBytes int64 = 50 * 1024 * 1024

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			BaseDir:     "$HOME/Downloads/vidsplit",
			YTDLPBinary: "yt-dlp",
			CookieFile:  "",
		},
		Transport: TransportConfig{
			LimitBytes:       DefaultLimitBytes,
			SafetyMultiplier: 1.5,
			HeightTolerance:  10,
		},
		Split: SplitConfig{
			TargetRatio:   45.0 / 50.0,
			MaxAttempts:   2,
			ShrinkFactor:  0.8,
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
		},
		Session: SessionConfig{
			Workers:   3,
			Registry:  "memory",
			RedisAddr: "localhost:6379",
			KeyPrefix: "vidsplit:active:",
			TTL:       2 * time.Hour,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DatabasePath: "$HOME/Downloads/vidsplit/probe-cache.db",
			TTL:          6 * time.Hour,
		},
		Telegram: TelegramConfig{
			Enabled:     false,
			PollTimeout: 30,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}
