package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yourusername/vidsplit-go/internal/app"
	"github.com/yourusername/vidsplit-go/internal/domain"
)

// apiClient talks to a running vidsplit server
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// apiError is a non-2xx response from the server
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// do sends body as JSON and decodes a 2xx response into out
func (c *apiClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &payload) == nil {
			if payload.Message != "" {
				msg = payload.Message
			} else if payload.Error != "" {
				msg = payload.Error
			}
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	ActiveSessions int    `json:"active_sessions"`
}

func (c *apiClient) health() (*healthResponse, error) {
	var resp healthResponse
	if err := c.do(http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type submitResponse struct {
	SessionID   string          `json:"session_id"`
	RequesterID string          `json:"requester_id"`
	Outcome     *domain.Outcome `json:"outcome,omitempty"`
}

func (c *apiClient) submit(requesterID, videoURL string, wait bool) (*submitResponse, error) {
	var resp submitResponse
	err := c.do(http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"requester_id": requesterID,
		"url":          videoURL,
		"wait":         wait,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) sessions() ([]domain.Session, error) {
	var resp struct {
		Sessions []domain.Session `json:"sessions"`
	}
	if err := c.do(http.MethodGet, "/api/v1/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *apiClient) cancel(requesterID string) error {
	return c.do(http.MethodPost, "/api/v1/sessions/"+url.PathEscape(requesterID)+"/cancel", nil, nil)
}

func (c *apiClient) plan(videoURL string) (*app.PlanResult, error) {
	var plan app.PlanResult
	if err := c.do(http.MethodPost, "/api/v1/plan", map[string]string{"url": videoURL}, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (c *apiClient) logs(category, date, query string, limit int) ([]logEntry, error) {
	path := "/api/v1/logs/" + url.PathEscape(category)
	if query != "" {
		path += "/search"
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if date != "" {
		params.Set("date", date)
	}
	if query != "" {
		params.Set("q", query)
	}
	path += "?" + params.Encode()

	var resp struct {
		Entries []logEntry `json:"entries"`
	}
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func printSessions(w io.Writer, sessions []domain.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No active sessions")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUESTER\tSESSION\tSOURCE\tSTAGE\tAGE\tURL")
	for _, s := range sessions {
		stage := string(s.Stage)
		if s.CancelRequested {
			stage += " (cancelling)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.RequesterID,
			s.ID,
			s.Source,
			stage,
			time.Since(s.CreatedAt).Round(time.Second),
			truncate(s.URL, 50))
	}
	tw.Flush()
}

func printPlan(w io.Writer, plan *app.PlanResult) {
	fmt.Fprintf(w, "Source:   %s\n", plan.Source)
	fmt.Fprintf(w, "Video:    %s\n", plan.VideoID)
	if plan.Title != "" {
		fmt.Fprintf(w, "Title:    %s\n", plan.Title)
	}
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(plan.Duration*float64(time.Second)).Round(time.Second))
	fmt.Fprintf(w, "Limit:    %s\n", domain.FormatSize(plan.LimitBytes))
	fmt.Fprintln(w, "Candidates:")
	for i, c := range plan.Candidates {
		line := fmt.Sprintf("  %d. %-6s %s", i+1, c.Label, c.Selector)
		if args := c.ExtractorArgValues(); len(args) > 0 {
			line += "  [" + strings.Join(args, " ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}

func printOutcome(w io.Writer, outcome *domain.Outcome) {
	switch outcome.Kind {
	case domain.OutcomeDelivered:
		fmt.Fprintln(w, outcome.Message())
		for i, f := range outcome.Files {
			fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, f.Path, domain.FormatSize(f.Size))
		}
	default:
		fmt.Fprintf(w, "%s: %s\n", outcome.Kind, outcome.Reason)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
