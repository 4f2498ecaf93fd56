//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vidsplit-go/api"
	"github.com/yourusername/vidsplit-go/internal/app"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"github.com/yourusername/vidsplit-go/internal/infrastructure"
	"github.com/yourusername/vidsplit-go/internal/source"
	"github.com/yourusername/vidsplit-go/pkg/logger"
)

const (
	testLimit      = 1000
	bytesPerSecond = 20
	videoDuration  = 100.0
	testURL        = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
)

const probeJSON = `{
  "id": "dQw4w9WgXcQ",
  "title": "Test video",
  "duration": 100,
  "extractor": "youtube",
  "formats": [
    {"format_id": "18", "ext": "mp4", "height": 360, "filesize": 1800, "vcodec": "avc1", "acodec": "mp4a"},
    {"format_id": "135", "ext": "mp4", "height": 480, "filesize": 2200, "vcodec": "avc1", "acodec": "none"},
    {"format_id": "140", "ext": "m4a", "filesize": 300, "vcodec": "none", "acodec": "mp4a", "abr": 128}
  ]
}`

// toolRunner stands in for yt-dlp, ffprobe and ffmpeg
type toolRunner struct {
	mu            sync.Mutex
	retrieveSizes []int64 // one per retrieve call; negative fails the call
	calls         []string
}

func (r *toolRunner) Run(_ context.Context, cmd infrastructure.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd.Binary)

	switch cmd.Binary {
	case "yt-dlp":
		return r.ytdlp(cmd)
	case "ffprobe":
		_, err := fmt.Fprintf(cmd.Stdout, "%.3f\n", videoDuration)
		return err
	case "ffmpeg":
		dur, err := strconv.ParseFloat(argAfter(cmd.Args, "-t"), 64)
		if err != nil {
			return err
		}
		return writeSized(argAfter(cmd.Args, "-y"), int64(dur*bytesPerSecond))
	}
	return fmt.Errorf("unexpected binary %s", cmd.Binary)
}

func (r *toolRunner) ytdlp(cmd infrastructure.Command) error {
	switch {
	case cmd.Args[0] == "--version":
		_, err := io.WriteString(cmd.Stdout, "2024.03.10\n")
		return err
	case cmd.Args[0] == "-J":
		_, err := io.WriteString(cmd.Stdout, probeJSON)
		return err
	}

	if len(r.retrieveSizes) == 0 {
		return fmt.Errorf("no retrieve scripted")
	}
	size := r.retrieveSizes[0]
	r.retrieveSizes = r.retrieveSizes[1:]
	if size < 0 {
		return fmt.Errorf("exit status 1")
	}

	out := strings.NewReplacer("%(id)s", "dQw4w9WgXcQ", "%(ext)s", "mp4").Replace(argAfter(cmd.Args, "-o"))
	return writeSized(out, size)
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func writeSized(path string, size int64) error {
	return os.WriteFile(path, bytes.Repeat([]byte{0}, int(size)), 0644)
}

type stack struct {
	server *httptest.Server
	config *domain.Config
	runner *toolRunner
}

func setupStack(t *testing.T, retrieveSizes ...int64) *stack {
	t.Helper()

	config := domain.DefaultConfig()
	config.Download.BaseDir = t.TempDir()
	config.Transport.LimitBytes = testLimit
	config.Session.Workers = 2

	log := zap.NewNop()
	ml, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "info", LogsDir: config.Download.LogsDir()})
	require.NoError(t, err)
	t.Cleanup(func() { ml.Close() })

	guard, err := infrastructure.NewPathGuard(config.Download.IncomingDir())
	require.NoError(t, err)

	runner := &toolRunner{retrieveSizes: retrieveSizes}
	processLog := infrastructure.NewProcessLog(config.Download.LogsDir())
	ytdlp := infrastructure.NewYTDLP(&config.Download, runner, processLog, log)
	ffmpeg := infrastructure.NewFFmpeg(&config.Split, runner, processLog)

	coordinator := app.NewCoordinator(
		source.NewResolver(source.DefaultHandlers(source.PolicyFromConfig(config.Transport))...),
		ytdlp,
		app.NewFetcher(ytdlp, guard, log),
		app.NewSplitter(ffmpeg, guard, &config.Split, log),
		infrastructure.NewMemoryRegistry(),
		guard,
		infrastructure.NewCompletedDirReporter(guard, config.Download.CompletedDir(), log),
		config,
		ml,
		log,
	)
	t.Cleanup(func() { coordinator.Shutdown(context.Background()) })

	router := api.SetupRouter(api.RouterDeps{
		Sessions:    coordinator,
		YTDLP:       ytdlp,
		MultiLogger: ml,
		Logger:      log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &stack{server: srv, config: config, runner: runner}
}

func (s *stack) submitAndWait(t *testing.T) *domain.Outcome {
	t.Helper()
	data, _ := json.Marshal(map[string]interface{}{
		"requester_id": "42",
		"url":          testURL,
		"wait":         true,
	})

	resp, err := http.Post(s.server.URL+"/api/v1/sessions", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Outcome *domain.Outcome `json:"outcome"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Outcome)
	return body.Outcome
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSession_SingleFile(t *testing.T) {
	s := setupStack(t, 800)

	outcome := s.submitAndWait(t)
	assert.Equal(t, domain.OutcomeDelivered, outcome.Kind)
	require.Len(t, outcome.Files, 1)
	assert.Equal(t, int64(800), outcome.Files[0].Size)
	assert.True(t, strings.HasPrefix(outcome.Files[0].Path, s.config.Download.CompletedDir()))

	assert.Empty(t, listDir(t, s.config.Download.IncomingDir()))
	assert.NotContains(t, s.runner.calls, "ffmpeg")
}

func TestSession_SplitsOversizedDownload(t *testing.T) {
	s := setupStack(t, 2500)

	outcome := s.submitAndWait(t)
	assert.Equal(t, domain.OutcomeDelivered, outcome.Kind)

	// 2500 bytes against a 900 byte target: three parts of 666 bytes
	require.Len(t, outcome.Files, 3)
	for i, f := range outcome.Files {
		assert.LessOrEqual(t, f.Size, int64(testLimit))
		assert.True(t, strings.HasSuffix(f.Path, fmt.Sprintf("_part%d.mp4", i+1)), f.Path)
	}

	assert.Empty(t, listDir(t, s.config.Download.IncomingDir()))
	assert.Len(t, listDir(t, s.config.Download.CompletedDir()), 3)
}

func TestSession_AllCandidatesFail(t *testing.T) {
	s := setupStack(t, -1, -1)

	outcome := s.submitAndWait(t)
	assert.Equal(t, domain.OutcomeFailed, outcome.Kind)
	assert.Equal(t, domain.UserMessage(domain.ErrDownloadFailed), outcome.Reason)
	assert.Empty(t, listDir(t, s.config.Download.IncomingDir()))
}

func TestSession_UnsupportedURL(t *testing.T) {
	s := setupStack(t)

	data, _ := json.Marshal(map[string]string{"requester_id": "42", "url": "https://vimeo.com/1"})
	resp, err := http.Post(s.server.URL+"/api/v1/sessions", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Empty(t, s.runner.calls)
}

func TestPlan_ShowsFallbackCascade(t *testing.T) {
	s := setupStack(t)

	data, _ := json.Marshal(map[string]string{"url": testURL})
	resp, err := http.Post(s.server.URL+"/api/v1/plan", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var plan app.PlanResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&plan))
	assert.Equal(t, "youtube", plan.Source)
	require.GreaterOrEqual(t, len(plan.Candidates), 2)
	assert.Equal(t, "18", plan.Candidates[len(plan.Candidates)-1].Selector)
}
