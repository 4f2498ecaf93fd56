package domain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, int64(50*1024*1024), config.Transport.LimitBytes)
	assert.Equal(t, 1.5, config.Transport.SafetyMultiplier)
	assert.Equal(t, 10, config.Transport.HeightTolerance)
	assert.InDelta(t, 0.9, config.Split.TargetRatio, 1e-9)
	assert.Equal(t, 2, config.Split.MaxAttempts)
	assert.Equal(t, 0.8, config.Split.ShrinkFactor)
	assert.Equal(t, 3, config.Session.Workers)
	assert.Equal(t, "memory", config.Session.Registry)
	assert.Equal(t, 2*time.Hour, config.Session.TTL)
	assert.False(t, config.Cache.Enabled)
	assert.False(t, config.Telegram.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestDownloadConfig_Dirs(t *testing.T) {
	cfg := DownloadConfig{BaseDir: "/data/vidsplit"}

	assert.Equal(t, filepath.Join("/data/vidsplit", "incoming"), cfg.IncomingDir())
	assert.Equal(t, filepath.Join("/data/vidsplit", "completed"), cfg.CompletedDir())
	assert.Equal(t, filepath.Join("/data/vidsplit", "logs"), cfg.LogsDir())
	assert.Equal(t, filepath.Join("/data/vidsplit", "logs", "server.log"), cfg.ServerLogPath())
}
