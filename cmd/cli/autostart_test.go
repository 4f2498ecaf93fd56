package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidsplit-go/internal/domain"
)

// healthServer answers /health with 200 once healthy is set, 503 before
func healthServer(t *testing.T, healthy *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok","version":"1.0.0","active_sessions":0}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStarter(t *testing.T, baseURL string) (*serverStarter, *bytes.Buffer) {
	t.Helper()
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	config := domain.DefaultConfig()
	config.Server.Port = port
	config.Download.BaseDir = "/data/vidsplit"

	var out bytes.Buffer
	s := newServerStarter(baseURL, "/etc/vidsplit/config.yaml", config)
	s.out = &out
	s.timeout = 500 * time.Millisecond
	s.interval = 20 * time.Millisecond
	s.launch = func([]string) (string, error) {
		t.Fatal("server must not be launched")
		return "", nil
	}
	return s, &out
}

func TestServerStarter_AlreadyRunning(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := healthServer(t, &healthy)

	s, out := newTestStarter(t, srv.URL)
	require.NoError(t, s.ensure())
	assert.Empty(t, out.String())
}

func TestServerStarter_LaunchesDaemonAndWaits(t *testing.T) {
	var healthy atomic.Bool
	srv := healthServer(t, &healthy)

	s, out := newTestStarter(t, srv.URL)
	var launchedWith []string
	s.launch = func(args []string) (string, error) {
		launchedWith = args
		healthy.Store(true)
		return "Server started as daemon (PID: 4242, port: 8080, log: /data/vidsplit/logs/server.log)\n", nil
	}

	require.NoError(t, s.ensure())
	assert.Equal(t, []string{"-daemon", "-config", "/etc/vidsplit/config.yaml"}, launchedWith)
	assert.Contains(t, out.String(), "PID: 4242")
	assert.Contains(t, out.String(), "Server 1.0.0 ready at "+srv.URL)
}

func TestServerStarter_NeverHealthy(t *testing.T) {
	var healthy atomic.Bool
	srv := healthServer(t, &healthy)

	s, _ := newTestStarter(t, srv.URL)
	s.launch = func([]string) (string, error) { return "", nil }

	err := s.ensure()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not become healthy")
	assert.Contains(t, err.Error(), "/data/vidsplit/logs/server.log")
}

func TestServerStarter_LaunchError(t *testing.T) {
	var healthy atomic.Bool
	srv := healthServer(t, &healthy)

	s, _ := newTestStarter(t, srv.URL)
	s.launch = func([]string) (string, error) { return "", errors.New("vidsplit-server binary not found") }

	err := s.ensure()
	assert.ErrorContains(t, err, "failed to start vidsplit-server")
}

func TestServerStarter_CheckLocal(t *testing.T) {
	tests := []struct {
		baseURL string
		wantErr string
	}{
		{"http://localhost:8080", ""},
		{"http://127.0.0.1:8080", ""},
		{"http://[::1]:8080", ""},
		{"http://localhost:9090", "server.port"},
		{"http://localhost", "server.port"},
		{"http://media.internal:8080", "not reachable"},
	}

	for _, tt := range tests {
		t.Run(tt.baseURL, func(t *testing.T) {
			config := domain.DefaultConfig()
			s := newServerStarter(tt.baseURL, "", config)

			err := s.checkLocal()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
