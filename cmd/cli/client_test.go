package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidsplit-go/internal/app"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

func TestAPIClient_Submit(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sessions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"session_id":"01HSESSION","requester_id":"cli"}`))
	}))
	defer srv.Close()

	resp, err := newAPIClient(srv.URL+"/").submit("cli", "https://youtu.be/dQw4w9WgXcQ", false)
	require.NoError(t, err)
	assert.Equal(t, "01HSESSION", resp.SessionID)
	assert.Nil(t, resp.Outcome)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", got["url"])
	assert.Equal(t, false, got["wait"])
}

func TestAPIClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"user message", http.StatusConflict, `{"error":"session already active","message":"A download is already in progress."}`, "A download is already in progress."},
		{"error only", http.StatusBadRequest, `{"error":"invalid log category: x"}`, "invalid log category: x"},
		{"plain text", http.StatusBadGateway, "upstream down\n", "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := newAPIClient(srv.URL).cancel("42")
			var apiErr *apiError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestAPIClient_LogsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/logs/session/search", r.URL.Path)
		assert.Equal(t, "01A B", r.URL.Query().Get("q"))
		assert.Equal(t, "2026-01-02", r.URL.Query().Get("date"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"entries":[{"timestamp":"t","level":"info","message":"session_submitted","fields":{"session_id":"01A"}}]}`))
	}))
	defer srv.Close()

	entries, err := newAPIClient(srv.URL).logs("session", "2026-01-02", "01A B", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session_submitted", entries[0].Message)
	assert.Equal(t, "01A", entries[0].Fields["session_id"])
}

func TestPrintSessions(t *testing.T) {
	var buf bytes.Buffer
	printSessions(&buf, nil)
	assert.Equal(t, "No active sessions\n", buf.String())

	buf.Reset()
	printSessions(&buf, []domain.Session{{
		ID:              "01HSESSION",
		RequesterID:     "42",
		URL:             "https://youtu.be/dQw4w9WgXcQ",
		Source:          "youtube",
		Stage:           domain.StageSplitting,
		CancelRequested: true,
		CreatedAt:       time.Now(),
	}})
	assert.Contains(t, buf.String(), "REQUESTER")
	assert.Contains(t, buf.String(), "splitting (cancelling)")
	assert.Contains(t, buf.String(), "01HSESSION")
}

func TestPrintPlan(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, &app.PlanResult{
		Source:     "youtube",
		VideoID:    "dQw4w9WgXcQ",
		Duration:   212,
		LimitBytes: 52428800,
		Candidates: []domain.FormatCandidate{
			{
				Label:         "720p",
				Selector:      "best[height<=720][ext=mp4]",
				ExtractorArgs: map[string]map[string]string{"youtube": {"player_client": "mediaconnect"}},
			},
			{Label: "360p", Selector: "18"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Duration: 3m32s")
	assert.Contains(t, out, "Limit:    50.0MB")
	assert.Contains(t, out, "1. 720p   best[height<=720][ext=mp4]  [youtube:player_client=mediaconnect]")
	assert.Contains(t, out, "2. 360p   18\n")
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, &domain.Outcome{
		Kind: domain.OutcomeDelivered,
		Files: []domain.LocalMediaFile{
			{Path: "/c/a_part1.mp4", Size: 1048576},
			{Path: "/c/a_part2.mp4", Size: 524288},
		},
	})
	assert.Equal(t, "Delivered 2 parts (1.0MB, 0.5MB)\n  1. /c/a_part1.mp4 (1.0MB)\n  2. /c/a_part2.mp4 (0.5MB)\n", buf.String())

	buf.Reset()
	printOutcome(&buf, &domain.Outcome{Kind: domain.OutcomeCancelled, Reason: "Download cancelled."})
	assert.Equal(t, "cancelled: Download cancelled.\n", buf.String())
}

func TestSplitLocalFile_AlreadyWithinLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

	config := domain.DefaultConfig()
	config.Download.BaseDir = t.TempDir()

	_, err := splitLocalFile(context.Background(), config, path, 1000, zap.NewNop())
	assert.ErrorContains(t, err, "already within")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
