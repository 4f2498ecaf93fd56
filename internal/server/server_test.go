package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidsplit-go/internal/app"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	config := domain.DefaultConfig()
	config.Download.BaseDir = t.TempDir()
	config.Server.Host = "127.0.0.1"
	return config
}

func TestBuild_CreatesDirectories(t *testing.T) {
	config := testConfig(t)

	c, err := Build(context.Background(), config, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	for _, dir := range []string{
		config.Download.IncomingDir(),
		config.Download.CompletedDir(),
		config.Download.LogsDir(),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	resolved, err := filepath.EvalSymlinks(config.Download.IncomingDir())
	require.NoError(t, err)
	assert.Equal(t, resolved, c.Guard.BaseDir())
	assert.NotNil(t, c.Coordinator)
	assert.NotNil(t, c.Splitter)
}

func TestBuild_ProbeCache(t *testing.T) {
	config := testConfig(t)
	config.Cache.Enabled = true
	config.Cache.DatabasePath = filepath.Join(config.Download.BaseDir, "cache", "probe.db")

	c, err := Build(context.Background(), config, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = os.Stat(config.Cache.DatabasePath)
	assert.NoError(t, err)
}

func TestBuild_RedisRegistry(t *testing.T) {
	mr := miniredis.RunT(t)
	config := testConfig(t)
	config.Session.Registry = "redis"
	config.Session.RedisAddr = mr.Addr()

	c, err := Build(context.Background(), config, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Coordinator.Submit(context.Background(), app.SubmitRequest{RequesterID: "42", URL: "https://vimeo.com/1"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)
}

func TestBuild_RedisUnavailable(t *testing.T) {
	config := testConfig(t)
	config.Session.Registry = "redis"
	config.Session.RedisAddr = "127.0.0.1:1"

	_, err := Build(context.Background(), config, zap.NewNop())
	assert.Error(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServe_StopsOnContext(t *testing.T) {
	config := testConfig(t)
	config.Server.Port = freePort(t)

	c, err := Build(context.Background(), config, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", config.Server.Port)
	assert.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
}
