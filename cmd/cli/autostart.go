package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/vidsplit-go/internal/domain"
)

const (
	serverBinary       = "vidsplit-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

// serverStarter brings up a local vidsplit-server when the one the CLI
// talks to is not answering health checks
type serverStarter struct {
	client     *apiClient
	config     *domain.Config
	configFile string
	timeout    time.Duration
	interval   time.Duration
	out        io.Writer

	// launch runs the server binary with args and returns what it printed
	launch func(args []string) (string, error)
}

func newServerStarter(baseURL, configFile string, config *domain.Config) *serverStarter {
	client := newAPIClient(baseURL)
	client.httpClient.Timeout = time.Second

	return &serverStarter{
		client:     client,
		config:     config,
		configFile: configFile,
		timeout:    serverStartTimeout,
		interval:   serverPollInterval,
		out:        os.Stdout,
		launch:     runServerBinary,
	}
}

// ensure returns once the server answers /health, starting it if needed
func (s *serverStarter) ensure() error {
	if _, err := s.client.health(); err == nil {
		return nil
	}

	if err := s.checkLocal(); err != nil {
		return err
	}

	fmt.Fprintln(s.out, "Server not running, starting...")

	args := []string{"-daemon"}
	if s.configFile != "" {
		args = append(args, "-config", s.configFile)
	}
	output, err := s.launch(args)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", serverBinary, err)
	}
	fmt.Fprint(s.out, output)

	health, err := s.waitHealthy()
	if err != nil {
		return fmt.Errorf("%w, see %s", err, s.config.Download.ServerLogPath())
	}

	fmt.Fprintf(s.out, "Server %s ready at %s\n", health.Version, s.client.baseURL)
	return nil
}

// checkLocal refuses to start a server that the --server URL would not reach
func (s *serverStarter) checkLocal() error {
	u, err := url.Parse(s.client.baseURL)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", s.client.baseURL, err)
	}

	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
	default:
		return fmt.Errorf("server at %s is not reachable", s.client.baseURL)
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	if port != strconv.Itoa(s.config.Server.Port) {
		return fmt.Errorf("server at %s is not reachable and a local server would listen on port %d (server.port)",
			s.client.baseURL, s.config.Server.Port)
	}
	return nil
}

func (s *serverStarter) waitHealthy() (*healthResponse, error) {
	deadline := time.Now().Add(s.timeout)
	for {
		health, err := s.client.health()
		if err == nil {
			return health, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("server did not become healthy within %v", s.timeout)
		}
		time.Sleep(s.interval)
	}
}

// runServerBinary runs vidsplit-server, found next to the CLI or on PATH
func runServerBinary(args []string) (string, error) {
	binary, err := findServerBinary()
	if err != nil {
		return "", err
	}

	out, err := exec.Command(binary, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func findServerBinary() (string, error) {
	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), serverBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(serverBinary)
	if err != nil {
		return "", fmt.Errorf("%s binary not found next to the CLI or on PATH", serverBinary)
	}
	return path, nil
}
