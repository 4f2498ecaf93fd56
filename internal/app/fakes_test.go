package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"github.com/yourusername/vidsplit-go/internal/infrastructure"
)

func newTestGuard(t *testing.T) *infrastructure.PathGuard {
	t.Helper()
	g, err := infrastructure.NewPathGuard(filepath.Join(t.TempDir(), "incoming"))
	require.NoError(t, err)
	return g
}

func writeSized(path string, size int64) error {
	return os.WriteFile(path, make([]byte, size), 0644)
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

// retrieveStep scripts one Retrieve call
type retrieveStep struct {
	name string // file name written after the template prefix; "" uses <id>.mp4
	size int64
	err  error
	skip bool // write nothing
}

// fakeRetriever plays back steps and records the selectors it was asked for
type fakeRetriever struct {
	mu        sync.Mutex
	videoID   string
	steps     []retrieveStep
	selectors []string
	gate      chan struct{} // if set, every call waits on it
	started   chan struct{} // if set, signalled when a call starts
}

func (r *fakeRetriever) Retrieve(_ context.Context, _ string, c domain.FormatCandidate, template string) error {
	r.mu.Lock()
	call := len(r.selectors)
	r.selectors = append(r.selectors, c.Selector)
	var step retrieveStep
	if call < len(r.steps) {
		step = r.steps[call]
	} else {
		step = retrieveStep{err: errors.New("no scripted step")}
	}
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}

	if !step.skip {
		name := step.name
		if name == "" {
			name = r.videoID + ".mp4"
		}
		prefix := strings.TrimSuffix(template, "%(id)s.%(ext)s")
		if err := writeSized(prefix+name, step.size); err != nil {
			return err
		}
	}
	return step.err
}

func (r *fakeRetriever) Selectors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.selectors...)
}

type trimCall struct {
	dst             string
	start, duration float64
}

// fakeMediaTool writes parts whose size is bytesPerSecond * duration unless
// an override is queued for the call
type fakeMediaTool struct {
	mu             sync.Mutex
	duration       float64
	durationErr    error
	bytesPerSecond float64
	overrides      map[int]int64 // trim call index -> size
	trimErrAt      int           // 1-based trim call that fails; 0 never
	calls          []trimCall
	durationCalls  int
}

func (m *fakeMediaTool) Duration(context.Context, string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durationCalls++
	return m.duration, m.durationErr
}

func (m *fakeMediaTool) Trim(_ context.Context, _, dst string, start, duration float64) error {
	m.mu.Lock()
	m.calls = append(m.calls, trimCall{dst: dst, start: start, duration: duration})
	index := len(m.calls)
	size, ok := m.overrides[index]
	if !ok {
		size = int64(m.bytesPerSecond * duration)
	}
	failing := m.trimErrAt == index
	m.mu.Unlock()

	if failing {
		return errors.New("ffmpeg exited with status 1")
	}
	return writeSized(dst, size)
}

func (m *fakeMediaTool) Calls() []trimCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]trimCall(nil), m.calls...)
}

// fakeProber returns fixed metadata and counts calls
type fakeProber struct {
	mu    sync.Mutex
	meta  *domain.VideoMetadata
	err   error
	calls int
}

func (p *fakeProber) Probe(context.Context, string) (*domain.VideoMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.meta, p.err
}

func (p *fakeProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// slowRegistry wraps MemoryRegistry; Acquire waits on gate when set and refreshes are counted
type slowRegistry struct {
	*infrastructure.MemoryRegistry

	mu        sync.Mutex
	gate      chan struct{}
	acquiring chan struct{}
	refreshes int
}

func newSlowRegistry() *slowRegistry {
	return &slowRegistry{MemoryRegistry: infrastructure.NewMemoryRegistry()}
}

func (r *slowRegistry) Acquire(ctx context.Context, requesterID, sessionID string) (bool, error) {
	r.mu.Lock()
	gate, acquiring := r.gate, r.acquiring
	r.mu.Unlock()

	if acquiring != nil {
		acquiring <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return r.MemoryRegistry.Acquire(ctx, requesterID, sessionID)
}

func (r *slowRegistry) Refresh(ctx context.Context, requesterID, sessionID string) (bool, error) {
	r.mu.Lock()
	r.refreshes++
	r.mu.Unlock()
	return r.MemoryRegistry.Refresh(ctx, requesterID, sessionID)
}

func (r *slowRegistry) Refreshes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshes
}
